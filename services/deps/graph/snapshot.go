// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// Store layout. A snapshot is two keys under snap/<id>/. Each pattern file
// also gets one index key per snapshot, ordered by save time, so the newest
// snapshot of a file is the last key under its prefix.
//
//	snap/<id>/meta                 JSON SnapshotMetadata
//	snap/<id>/graph                gzip JSON SerializableGraph
//	bysource/<source>/<nanos>/<id> empty
const (
	snapPrefix   = "snap/"
	sourcePrefix = "bysource/"
)

// DefaultSnapshotListLimit bounds List when no limit is given.
const DefaultSnapshotListLimit = 100

// SnapshotMetadata describes one stored graph.
type SnapshotMetadata struct {
	SnapshotID      string `json:"snapshot_id"`
	Source          string `json:"source"`
	Label           string `json:"label,omitempty"`
	GraphHash       string `json:"graph_hash"`
	CreatedAtMilli  int64  `json:"created_at_milli"`
	RecordCount     int    `json:"record_count"`
	DependencyCount int    `json:"dependency_count"`
	UnresolvedCount int    `json:"unresolved_count"`

	// PayloadBytes is the stored size of the compressed graph.
	PayloadBytes int64 `json:"payload_bytes"`

	// Checksum is the hex SHA-256 of the stored payload, verified on load.
	Checksum string `json:"checksum"`

	// savedAt orders the source index. Not serialized.
	savedAt int64
}

// SnapshotManager keeps dependency graphs of pattern files in BadgerDB so
// later runs can diff against them.
//
// Thread Safety: Safe for concurrent use.
type SnapshotManager struct {
	db     *badger.DB
	logger *slog.Logger
}

// NewSnapshotManager wraps an open database. The caller closes db.
func NewSnapshotManager(db *badger.DB, logger *slog.Logger) (*SnapshotManager, error) {
	if db == nil {
		return nil, fmt.Errorf("snapshot store: db must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("snapshot store: logger must not be nil")
	}
	return &SnapshotManager{db: db, logger: logger}, nil
}

// OpenStore opens a BadgerDB at dir for snapshot storage. An empty dir opens
// an in-memory store.
func OpenStore(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot store %q: %w", dir, err)
	}
	return db, nil
}

// Save stores g under a new snapshot id.
//
// Inputs:
//
//	ctx - Context for cancellation. Must not be nil.
//	g - The graph to store. Must not be nil.
//	label - Optional label shown by list and show.
//
// Outputs:
//
//	*SnapshotMetadata - The stored metadata, including the new id.
//	error - Non-nil if encoding or the write fails.
func (m *SnapshotManager) Save(ctx context.Context, g *Graph, label string) (*SnapshotMetadata, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}
	if g == nil {
		return nil, fmt.Errorf("graph must not be nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sg := g.ToSerializable()
	payload, err := encodeGraph(sg)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	meta := &SnapshotMetadata{
		SnapshotID:      newSnapshotID(),
		Source:          g.Source,
		Label:           label,
		GraphHash:       sg.GraphHash,
		CreatedAtMilli:  now.UnixMilli(),
		RecordCount:     g.Len(),
		DependencyCount: g.DependencyCount(),
		UnresolvedCount: unresolvedCount(g),
		PayloadBytes:    int64(len(payload)),
		Checksum:        checksum(payload),
		savedAt:         now.UnixNano(),
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot metadata: %w", err)
	}

	err = m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(metaKey(meta.SnapshotID), metaJSON); err != nil {
			return err
		}
		if err := txn.Set(graphKey(meta.SnapshotID), payload); err != nil {
			return err
		}
		return txn.Set(sourceKey(meta.Source, meta.savedAt, meta.SnapshotID), nil)
	})
	if err != nil {
		return nil, fmt.Errorf("writing snapshot: %w", err)
	}

	m.logger.Info("snapshot saved",
		slog.String("snapshot_id", meta.SnapshotID),
		slog.String("source", meta.Source),
		slog.Int("records", meta.RecordCount),
		slog.Int64("payload_bytes", meta.PayloadBytes),
	)
	return meta, nil
}

// Load returns the graph and metadata of a snapshot. An unknown id wraps
// ErrSnapshotNotFound.
func (m *SnapshotManager) Load(ctx context.Context, snapshotID string) (*Graph, *SnapshotMetadata, error) {
	if ctx == nil {
		return nil, nil, fmt.Errorf("ctx must not be nil")
	}
	if snapshotID == "" {
		return nil, nil, fmt.Errorf("snapshot id must not be empty")
	}

	var meta SnapshotMetadata
	var payload []byte
	err := m.db.View(func(txn *badger.Txn) error {
		if err := readJSON(txn, metaKey(snapshotID), &meta); err != nil {
			return err
		}
		item, err := txn.Get(graphKey(snapshotID))
		if err != nil {
			return err
		}
		payload, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot %s: %w", snapshotID, notFound(err))
	}

	if sum := checksum(payload); sum != meta.Checksum {
		return nil, nil, fmt.Errorf("snapshot %s: checksum mismatch, stored %s, computed %s", snapshotID, meta.Checksum, sum)
	}
	g, err := decodeGraph(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot %s: %w", snapshotID, err)
	}
	return g, &meta, nil
}

// LoadLatest returns the most recently saved snapshot of a pattern file.
func (m *SnapshotManager) LoadLatest(ctx context.Context, source string) (*Graph, *SnapshotMetadata, error) {
	if ctx == nil {
		return nil, nil, fmt.Errorf("ctx must not be nil")
	}

	var latest string
	err := m.db.View(func(txn *badger.Txn) error {
		ids := sourceIDs(txn, source, 1)
		if len(ids) == 0 {
			return ErrSnapshotNotFound
		}
		latest = ids[0]
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("latest snapshot of %s: %w", source, err)
	}
	return m.Load(ctx, latest)
}

// List returns snapshot metadata, newest first. A non-empty source limits
// the result to that pattern file. A limit <= 0 means
// DefaultSnapshotListLimit.
func (m *SnapshotManager) List(ctx context.Context, source string, limit int) ([]*SnapshotMetadata, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}
	if limit <= 0 {
		limit = DefaultSnapshotListLimit
	}

	var out []*SnapshotMetadata
	err := m.db.View(func(txn *badger.Txn) error {
		if source != "" {
			for _, id := range sourceIDs(txn, source, limit) {
				var meta SnapshotMetadata
				if err := readJSON(txn, metaKey(id), &meta); err != nil {
					m.logger.Warn("skipping unreadable snapshot", slog.String("snapshot_id", id), slog.Any("error", err))
					continue
				}
				out = append(out, &meta)
			}
			return nil
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(snapPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			if !strings.HasSuffix(string(item.Key()), "/meta") {
				continue
			}
			var meta SnapshotMetadata
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &meta) }); err != nil {
				m.logger.Warn("skipping unreadable snapshot", slog.String("key", string(item.Key())), slog.Any("error", err))
				continue
			}
			out = append(out, &meta)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAtMilli > out[j].CreatedAtMilli
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Delete removes a snapshot and its index entry.
func (m *SnapshotManager) Delete(ctx context.Context, snapshotID string) error {
	if ctx == nil {
		return fmt.Errorf("ctx must not be nil")
	}
	if snapshotID == "" {
		return fmt.Errorf("snapshot id must not be empty")
	}

	err := m.db.Update(func(txn *badger.Txn) error {
		var meta SnapshotMetadata
		if err := readJSON(txn, metaKey(snapshotID), &meta); err != nil {
			return err
		}
		if err := txn.Delete(metaKey(snapshotID)); err != nil {
			return err
		}
		if err := txn.Delete(graphKey(snapshotID)); err != nil {
			return err
		}
		return deleteSourceEntry(txn, meta.Source, snapshotID)
	})
	if err != nil {
		return fmt.Errorf("deleting snapshot %s: %w", snapshotID, notFound(err))
	}

	m.logger.Info("snapshot deleted", slog.String("snapshot_id", snapshotID))
	return nil
}

// sourceIDs returns up to limit snapshot ids of source, newest first.
func sourceIDs(txn *badger.Txn, source string, limit int) []string {
	prefix := sourceIndexPrefix(source)
	opts := badger.DefaultIteratorOptions
	opts.Reverse = true
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	var ids []string
	for it.Seek(append(append([]byte{}, prefix...), 0xff)); it.Valid() && len(ids) < limit; it.Next() {
		key := string(it.Item().Key())
		ids = append(ids, key[strings.LastIndexByte(key, '/')+1:])
	}
	return ids
}

func deleteSourceEntry(txn *badger.Txn, source, snapshotID string) error {
	prefix := sourceIndexPrefix(source)
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	var match []byte
	for it.Rewind(); it.Valid(); it.Next() {
		key := it.Item().KeyCopy(nil)
		if strings.HasSuffix(string(key), "/"+snapshotID) {
			match = key
			break
		}
	}
	it.Close()
	if match == nil {
		return nil
	}
	return txn.Delete(match)
}

func readJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error { return json.Unmarshal(val, v) })
}

func encodeGraph(sg *SerializableGraph) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if err := json.NewEncoder(zw).Encode(sg); err != nil {
		return nil, fmt.Errorf("encoding graph: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compressing graph: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeGraph(payload []byte) (*Graph, error) {
	zr, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("decompressing graph: %w", err)
	}
	defer zr.Close()

	var sg SerializableGraph
	if err := json.NewDecoder(io.LimitReader(zr, maxGraphPayload)).Decode(&sg); err != nil {
		return nil, fmt.Errorf("decoding graph: %w", err)
	}
	return FromSerializable(&sg)
}

// maxGraphPayload caps the decompressed size of a stored graph.
const maxGraphPayload = 256 << 20

func metaKey(id string) []byte  { return []byte(snapPrefix + id + "/meta") }
func graphKey(id string) []byte { return []byte(snapPrefix + id + "/graph") }

// sourceIndexPrefix escapes the path so the id stays the last segment.
func sourceIndexPrefix(source string) []byte {
	return []byte(sourcePrefix + url.PathEscape(source) + "/")
}

func sourceKey(source string, savedAt int64, id string) []byte {
	return append(sourceIndexPrefix(source), fmt.Sprintf("%020d/%s", savedAt, id)...)
}

func newSnapshotID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

func unresolvedCount(g *Graph) int {
	n := 0
	for _, rec := range g.Records() {
		n += len(rec.Unresolved())
	}
	return n
}

func checksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// notFound maps badger's missing-key error onto ErrSnapshotNotFound.
func notFound(err error) error {
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrSnapshotNotFound
	}
	return err
}
