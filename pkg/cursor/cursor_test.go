package cursor

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		cursor Cursor
	}{
		{name: "scan", cursor: Scan(42)},
		{name: "scan zero id", cursor: Scan(0)},
		{name: "index", cursor: Index("company-job_title-index", "Acme Corp", "Designer", 10)},
		{name: "index empty sort value", cursor: Index("job_title-company-index", "Engineer", "", 3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := Encode(tt.cursor)
			require.NoError(t, err)
			assert.NotContains(t, token, "=", "tokens should be unpadded")

			decoded, err := Decode(token)
			require.NoError(t, err)
			assert.Equal(t, tt.cursor, decoded)
		})
	}
}

func TestEncode_Stable(t *testing.T) {
	a, err := Encode(Index("company-job_title-index", "Acme Corp", "Designer", 3))
	require.NoError(t, err)
	b, err := Encode(Index("company-job_title-index", "Acme Corp", "Designer", 3))
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := Encode(Index("company-job_title-index", "Acme Corp", "Designer", 10))
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestEncode_Rejects(t *testing.T) {
	_, err := Encode(Cursor{Kind: "bogus"})
	assert.Error(t, err)

	_, err = Encode(Cursor{Kind: KindIndex})
	assert.Error(t, err)
}

func TestDecode_Malformed(t *testing.T) {
	raw := func(s string) string {
		return base64.RawURLEncoding.EncodeToString([]byte(s))
	}

	tests := []struct {
		name  string
		token string
	}{
		{name: "not base64", token: "!!!"},
		{name: "not json", token: raw("hello")},
		{name: "unknown kind", token: raw(`{"k":"offset","id":1}`)},
		{name: "missing id", token: raw(`{"k":"scan"}`)},
		{name: "unknown field", token: raw(`{"k":"scan","id":1,"x":2}`)},
		{name: "scan with index fields", token: raw(`{"k":"scan","id":1,"sv":"a"}`)},
		{name: "index without sort value", token: raw(`{"k":"index","id":1,"ix":"i","pv":"p"}`)},
		{name: "index with empty name", token: raw(`{"k":"index","id":1,"ix":"","pv":"p","sv":"s"}`)},
		{name: "string id", token: raw(`{"k":"scan","id":"1"}`)},
		{name: "trailing data", token: raw(`{"k":"scan","id":1}{}`)},
		{name: "padded base64", token: base64.URLEncoding.EncodeToString([]byte(`{"k":"scan","id":1}`)) + "=="},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.token)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}
