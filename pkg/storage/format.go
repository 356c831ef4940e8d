package storage

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/adfharrison1/go-crm/pkg/domain"
)

const (
	// Magic bytes to identify the snapshot format
	MagicBytes = "GCRM"
	// Current version
	FormatVersion = 1
	// File extension for snapshots
	FileExtension = ".gocrm"
)

// FileHeader precedes the lz4 block in a snapshot file. RawSize is the
// length of the uncompressed msgpack payload.
type FileHeader struct {
	Magic    [4]byte
	Version  uint8
	Flags    uint8
	Reserved [2]byte
	RawSize  uint64
}

// WriteHeader writes the file header to the given writer
func WriteHeader(w io.Writer, rawSize int, flags uint8) error {
	header := FileHeader{
		Magic:   [4]byte{'G', 'C', 'R', 'M'},
		Version: FormatVersion,
		Flags:   flags,
		RawSize: uint64(rawSize),
	}

	return binary.Write(w, binary.LittleEndian, header)
}

// ReadHeader reads and validates the file header
func ReadHeader(r io.Reader) (*FileHeader, error) {
	var header FileHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	if string(header.Magic[:]) != MagicBytes {
		return nil, fmt.Errorf("invalid file format: expected %s, got %s", MagicBytes, string(header.Magic[:]))
	}

	if header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported file version: %d", header.Version)
	}

	return &header, nil
}

// Snapshot is the msgpack payload of a snapshot file.
type Snapshot struct {
	Records []domain.Record `msgpack:"records"`
	NextID  int64           `msgpack:"next_id"`
}
