// Package cursor encodes and decodes the opaque continuation tokens handed to
// clients. A token records where the next page resumes and which access path
// produced it; it is not signed or encrypted.
package cursor

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrMalformed is returned when a token is not one of the known shapes.
var ErrMalformed = errors.New("cursor: malformed token")

// Kind identifies the access path a cursor belongs to.
type Kind string

const (
	// KindScan resumes a full-table scan after a record id.
	KindScan Kind = "scan"
	// KindIndex resumes an ordered index query after a sort key value.
	KindIndex Kind = "index"
)

// Cursor is the decoded form of a token.
type Cursor struct {
	Kind Kind
	// LastID is the scan resume position, or the tie-breaking id of the last
	// record returned by an index query.
	LastID int64
	// Index, Partition and SortValue are set for KindIndex only.
	Index     string
	Partition string
	SortValue string
}

// Scan builds a scan-path cursor.
func Scan(lastID int64) Cursor {
	return Cursor{Kind: KindScan, LastID: lastID}
}

// Index builds an index-path cursor.
func Index(index, partition, sortValue string, lastID int64) Cursor {
	return Cursor{Kind: KindIndex, Index: index, Partition: partition, SortValue: sortValue, LastID: lastID}
}

// wireCursor fixes the field order so equal cursors encode to equal tokens.
type wireCursor struct {
	Kind      Kind    `json:"k"`
	ID        *int64  `json:"id"`
	Index     *string `json:"ix,omitempty"`
	Partition *string `json:"pv,omitempty"`
	SortValue *string `json:"sv,omitempty"`
}

// Encode turns c into a URL-safe token.
func Encode(c Cursor) (string, error) {
	w := wireCursor{Kind: c.Kind, ID: &c.LastID}
	switch c.Kind {
	case KindScan:
	case KindIndex:
		if c.Index == "" {
			return "", fmt.Errorf("cursor: index cursor requires an index name")
		}
		w.Index, w.Partition, w.SortValue = &c.Index, &c.Partition, &c.SortValue
	default:
		return "", fmt.Errorf("cursor: unknown kind %q", c.Kind)
	}
	data, err := json.Marshal(w)
	if err != nil {
		return "", fmt.Errorf("failed to marshal cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// Decode parses a token produced by Encode.
func Decode(token string) (Cursor, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var w wireCursor
	if err := dec.Decode(&w); err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return Cursor{}, fmt.Errorf("%w: trailing data", ErrMalformed)
	}
	if w.ID == nil {
		return Cursor{}, fmt.Errorf("%w: missing id", ErrMalformed)
	}

	switch w.Kind {
	case KindScan:
		if w.Index != nil || w.Partition != nil || w.SortValue != nil {
			return Cursor{}, fmt.Errorf("%w: scan cursor carries index fields", ErrMalformed)
		}
		return Scan(*w.ID), nil
	case KindIndex:
		if w.Index == nil || w.Partition == nil || w.SortValue == nil || *w.Index == "" {
			return Cursor{}, fmt.Errorf("%w: incomplete index cursor", ErrMalformed)
		}
		return Index(*w.Index, *w.Partition, *w.SortValue, *w.ID), nil
	default:
		return Cursor{}, fmt.Errorf("%w: unknown kind %q", ErrMalformed, w.Kind)
	}
}
