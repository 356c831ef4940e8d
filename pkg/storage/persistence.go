package storage

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/adfharrison1/go-crm/pkg/domain"
	"github.com/dustin/go-humanize"
	"github.com/pierrec/lz4/v4"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

// flagRaw marks a payload stored without compression because lz4 found it
// incompressible.
const flagRaw uint8 = 1

// maxCompressionRatio bounds how far an lz4 block can expand.
const maxCompressionRatio = 255

// SaveToFile writes every record to filename as a header followed by an lz4
// block of msgpack. The file is replaced atomically.
func (ms *MemoryStore) SaveToFile(filename string) error {
	ms.mu.RLock()
	snapshot := Snapshot{
		Records: make([]domain.Record, 0, len(ms.order)),
		NextID:  ms.nextID,
	}
	for _, id := range ms.order {
		snapshot.Records = append(snapshot.Records, *ms.records[id])
	}
	ms.mu.RUnlock()

	msgpackData, err := msgpack.Marshal(&snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode MessagePack: %w", err)
	}

	compressedData := make([]byte, lz4.CompressBlockBound(len(msgpackData)))
	var hashTable [1 << 16]int
	n, err := lz4.CompressBlock(msgpackData, compressedData, hashTable[:])
	if err != nil {
		return fmt.Errorf("failed to compress data: %w", err)
	}
	payload, flags := compressedData[:n], uint8(0)
	if n == 0 {
		payload, flags = msgpackData, flagRaw
	}

	tmp, err := os.CreateTemp(filepath.Dir(filename), filepath.Base(filename)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := writeSnapshot(tmp, len(msgpackData), flags, payload); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filename); err != nil {
		return fmt.Errorf("failed to replace %s: %w", filename, err)
	}

	ms.logger.Info("snapshot saved",
		zap.String("file", filename),
		zap.Int("records", len(snapshot.Records)),
		zap.String("raw", humanize.Bytes(uint64(len(msgpackData)))),
		zap.String("stored", humanize.Bytes(uint64(len(payload)))),
	)
	return nil
}

func writeSnapshot(w io.Writer, rawSize int, flags uint8, payload []byte) error {
	if err := WriteHeader(w, rawSize, flags); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("failed to write compressed data: %w", err)
	}
	return nil
}

// LoadFromFile replaces the store contents with the snapshot in filename.
// A missing file leaves the store empty.
func (ms *MemoryStore) LoadFromFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			ms.logger.Info("no snapshot found, starting empty", zap.String("file", filename))
			return nil
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	header, err := ReadHeader(file)
	if err != nil {
		return fmt.Errorf("invalid file header: %w", err)
	}
	payload, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("failed to read compressed data: %w", err)
	}

	data := payload
	if header.Flags&flagRaw == 0 {
		if header.RawSize > uint64(len(payload))*maxCompressionRatio {
			return fmt.Errorf("invalid file header: raw size %d exceeds %d compressed bytes",
				header.RawSize, len(payload))
		}
		data = make([]byte, header.RawSize)
		n, err := lz4.UncompressBlock(payload, data)
		if err != nil {
			return fmt.Errorf("failed to decompress data: %w", err)
		}
		data = data[:n]
	}

	var snapshot Snapshot
	if err := msgpack.NewDecoder(bytes.NewReader(data)).Decode(&snapshot); err != nil {
		return fmt.Errorf("failed to decode MessagePack: %w", err)
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.records = make(map[int64]*domain.Record, len(snapshot.Records))
	ms.emails = make(map[string]int64, len(snapshot.Records))
	ms.order = make([]int64, 0, len(snapshot.Records))
	ms.nextID = 1
	for i := range snapshot.Records {
		rec := &snapshot.Records[i]
		if _, dup := ms.records[rec.ID]; !dup {
			ms.order = append(ms.order, rec.ID)
		}
		ms.records[rec.ID] = rec
		if key, ok := emailKey(rec); ok {
			ms.emails[key] = rec.ID
		}
		if rec.ID >= ms.nextID {
			ms.nextID = rec.ID + 1
		}
	}
	sort.Slice(ms.order, func(i, j int) bool { return ms.order[i] < ms.order[j] })
	ms.indexEngine.BuildIndex(ms.records)
	if snapshot.NextID > ms.nextID {
		ms.nextID = snapshot.NextID
	}
	ms.dirty = false

	ms.logger.Info("snapshot loaded",
		zap.String("file", filename),
		zap.Int("records", len(snapshot.Records)),
		zap.String("size", humanize.Bytes(uint64(len(payload)))),
	)
	return nil
}

// Save snapshots to the configured data file if anything changed since the
// last save.
func (ms *MemoryStore) Save() error {
	if ms.dataFile == "" {
		return nil
	}
	ms.mu.Lock()
	dirty := ms.dirty
	ms.dirty = false
	ms.mu.Unlock()
	if !dirty {
		return nil
	}
	if err := ms.SaveToFile(ms.dataFile); err != nil {
		ms.mu.Lock()
		ms.dirty = true
		ms.mu.Unlock()
		return err
	}
	return nil
}
