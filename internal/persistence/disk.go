package persistence

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"voxelterrain/internal/world"
)

const (
	diskOpDelete byte = 0
	diskOpSet    byte = 1

	diskHeaderSize = 9
	metaIndex      = uint32(0)

	LogFileName = "terrain.log"
)

// compactMinSize is the log size below which dead records are tolerated.
var compactMinSize int64 = 1 << 20

type diskMeta struct {
	ID        uuid.UUID
	SavedAt   time.Time
	Params    Params
	Viewpoint world.Pos
	Chunks    map[string]uint32
}

type diskChunk struct {
	Key    string
	Record ChunkRecord
}

type diskRecord struct {
	offset int64
	size   uint32
}

// DiskStore persists snapshots in an append-only record log. Every record
// carries a 9 byte header (op, index, payload size) followed by a gob
// payload. Index 0 holds the snapshot metadata; chunk records follow.
type DiskStore struct {
	path   string
	logger *log.Logger

	mu      sync.Mutex
	file    *os.File
	size    int64
	records map[uint32]diskRecord
	keys    map[string]uint32
	next    uint32
}

// OpenDiskStore opens or creates the record log inside dir.
func OpenDiskStore(dir string, logger *log.Logger) (*DiskStore, error) {
	if logger == nil {
		logger = log.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create save directory: %w", err)
	}
	path := filepath.Join(dir, LogFileName)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open save log: %w", err)
	}
	s := &DiskStore{
		path:    path,
		logger:  logger,
		file:    f,
		records: make(map[uint32]diskRecord),
		keys:    make(map[string]uint32),
		next:    metaIndex + 1,
	}
	if err := s.loadIndex(); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

func (s *DiskStore) Path() string {
	return s.path
}

func (s *DiskStore) loadIndex() error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind save log: %w", err)
	}

	header := make([]byte, diskHeaderSize)
	var offset int64
	for {
		if _, err := io.ReadFull(s.file, header); err != nil {
			if err == io.EOF {
				break
			}
			if err == io.ErrUnexpectedEOF {
				return fmt.Errorf("truncated record header: %w", err)
			}
			return fmt.Errorf("read record header: %w", err)
		}
		op := header[0]
		index := binary.LittleEndian.Uint32(header[1:5])
		size := binary.LittleEndian.Uint32(header[5:9])
		recordOffset := offset
		offset += diskHeaderSize + int64(size)

		if _, err := s.file.Seek(int64(size), io.SeekCurrent); err != nil {
			return fmt.Errorf("seek past payload: %w", err)
		}
		if op == diskOpSet {
			s.records[index] = diskRecord{offset: recordOffset, size: size}
		} else {
			delete(s.records, index)
		}
		if index >= s.next {
			s.next = index + 1
		}
	}
	s.size = offset

	// Chunk records no metadata record points at belong to a save that never
	// completed.
	live := make(map[uint32]bool)
	if _, ok := s.records[metaIndex]; ok {
		var meta diskMeta
		if err := s.read(metaIndex, &meta); err != nil {
			return fmt.Errorf("read snapshot metadata: %w", err)
		}
		live[metaIndex] = true
		for key, index := range meta.Chunks {
			s.keys[key] = index
			live[index] = true
		}
	}
	for index := range s.records {
		if !live[index] {
			delete(s.records, index)
		}
	}
	return nil
}

func (s *DiskStore) Save(ctx context.Context, snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(snap.Chunks))
	for key := range snap.Chunks {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	startSize, startNext := s.size, s.next
	var appended []uint32
	fail := func(err error) error {
		s.rollback(startSize, startNext, appended)
		return err
	}

	index := make(map[string]uint32, len(keys))
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		payload, err := encodePayload(diskChunk{Key: key, Record: snap.Chunks[key]})
		if err != nil {
			return fail(fmt.Errorf("encode chunk %s: %w", key, err))
		}
		idx := s.next
		s.next++
		if err := s.append(diskOpSet, idx, payload); err != nil {
			return fail(fmt.Errorf("save chunk %s: %w", key, err))
		}
		appended = append(appended, idx)
		index[key] = idx
	}

	payload, err := encodePayload(diskMeta{
		ID:        snap.ID,
		SavedAt:   snap.SavedAt,
		Params:    snap.Params,
		Viewpoint: snap.Viewpoint,
		Chunks:    index,
	})
	if err != nil {
		return fail(fmt.Errorf("encode snapshot metadata: %w", err))
	}
	previousMeta, hadMeta := s.records[metaIndex]
	if err := s.append(diskOpSet, metaIndex, payload); err != nil {
		s.restoreMeta(previousMeta, hadMeta)
		return fail(fmt.Errorf("save snapshot metadata: %w", err))
	}
	if err := s.file.Sync(); err != nil {
		s.restoreMeta(previousMeta, hadMeta)
		return fail(fmt.Errorf("sync save log: %w", err))
	}

	superseded := s.keys
	s.keys = index
	for key, idx := range superseded {
		if err := s.append(diskOpDelete, idx, nil); err != nil {
			s.logger.Printf("drop superseded chunk %s: %v", key, err)
			delete(s.records, idx)
		}
	}
	s.logger.Printf("snapshot %s saved: %d chunks", snap.ID, len(index))

	return s.compactIfNeeded()
}

// rollback forgets the records a failed save appended and cuts them from the
// log.
func (s *DiskStore) rollback(size int64, next uint32, appended []uint32) {
	for _, idx := range appended {
		delete(s.records, idx)
	}
	if err := s.file.Truncate(size); err != nil {
		s.logger.Printf("truncate save log after failed save: %v", err)
		return
	}
	s.size = size
	s.next = next
}

func (s *DiskStore) restoreMeta(rec diskRecord, ok bool) {
	if ok {
		s.records[metaIndex] = rec
		return
	}
	delete(s.records, metaIndex)
}

func (s *DiskStore) Load(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[metaIndex]; !ok {
		return nil, ErrNoSnapshot
	}
	var meta diskMeta
	if err := s.read(metaIndex, &meta); err != nil {
		return nil, fmt.Errorf("read snapshot metadata: %w", err)
	}
	snap := &Snapshot{
		ID:        meta.ID,
		SavedAt:   meta.SavedAt,
		Params:    meta.Params,
		Viewpoint: meta.Viewpoint,
		Chunks:    make(map[string]ChunkRecord, len(meta.Chunks)),
	}
	for key, idx := range meta.Chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var chunk diskChunk
		if err := s.read(idx, &chunk); err != nil {
			return nil, fmt.Errorf("read chunk %s: %w", key, err)
		}
		if chunk.Key != key {
			return nil, fmt.Errorf("read chunk %s: record %d holds %s", key, idx, chunk.Key)
		}
		snap.Chunks[key] = chunk.Record
	}
	return snap, nil
}

func (s *DiskStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

func (s *DiskStore) append(op byte, index uint32, payload []byte) error {
	header := make([]byte, diskHeaderSize)
	header[0] = op
	binary.LittleEndian.PutUint32(header[1:5], index)
	binary.LittleEndian.PutUint32(header[5:9], uint32(len(payload)))

	offset, err := s.file.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("seek log end: %w", err)
	}
	if _, err := s.file.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := s.file.Write(payload); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	s.size = offset + diskHeaderSize + int64(len(payload))
	if op == diskOpSet {
		s.records[index] = diskRecord{offset: offset, size: uint32(len(payload))}
	} else {
		delete(s.records, index)
	}
	return nil
}

func (s *DiskStore) read(index uint32, v any) error {
	rec, ok := s.records[index]
	if !ok {
		return fmt.Errorf("record %d: %w", index, os.ErrNotExist)
	}
	payload := make([]byte, rec.size)
	if _, err := s.file.ReadAt(payload, rec.offset+diskHeaderSize); err != nil {
		return fmt.Errorf("read payload at %d: %w", rec.offset, err)
	}
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(v); err != nil {
		return fmt.Errorf("decode record %d: %w", index, err)
	}
	return nil
}

func (s *DiskStore) liveSize() int64 {
	var live int64
	for _, rec := range s.records {
		live += diskHeaderSize + int64(rec.size)
	}
	return live
}

// compactIfNeeded rewrites the log with live records only once dead records
// outweigh them.
func (s *DiskStore) compactIfNeeded() error {
	live := s.liveSize()
	before := s.size
	if before < compactMinSize || before <= 2*live {
		return nil
	}

	indices := make([]uint32, 0, len(s.records))
	for idx := range s.records {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	tmpPath := s.path + ".compact"
	tmp, err := os.OpenFile(tmpPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create compacted log: %w", err)
	}
	fail := func(err error) error {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}

	records := make(map[uint32]diskRecord, len(indices))
	var offset int64
	for _, idx := range indices {
		rec := s.records[idx]
		raw := make([]byte, diskHeaderSize+int64(rec.size))
		if _, err := s.file.ReadAt(raw, rec.offset); err != nil {
			return fail(fmt.Errorf("compact record %d: %w", idx, err))
		}
		if _, err := tmp.Write(raw); err != nil {
			return fail(fmt.Errorf("compact record %d: %w", idx, err))
		}
		records[idx] = diskRecord{offset: offset, size: rec.size}
		offset += int64(len(raw))
	}
	if err := tmp.Sync(); err != nil {
		return fail(fmt.Errorf("sync compacted log: %w", err))
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fail(fmt.Errorf("replace save log: %w", err))
	}
	if err := s.file.Close(); err != nil {
		s.logger.Printf("close previous save log: %v", err)
	}
	s.file = tmp
	s.records = records
	s.size = offset
	s.logger.Printf("save log compacted: %d -> %d bytes", before, offset)
	return nil
}

func encodePayload(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
