// Package featurecache persists extracted features keyed by recording and
// segment index so repeated preprocessing runs skip recomputation.
//
// Records are msgpack-encoded and stored in BadgerDB. Publication is atomic:
// features are computed outside any transaction and become visible only when
// the single Set transaction commits, so concurrent readers never observe a
// partially written record. Two workers racing on the same key both compute
// and the last committed write wins — the records are identical, so the race
// is harmless. A record whose version tag no longer matches the extractor is
// treated as a miss and recomputed in place.
package featurecache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/taglish/masr/pkg/provider/extractor"
)

// Record is one immutable cache entry: the features extracted from a single
// segment, plus the provenance needed to decide reuse.
type Record struct {
	RecordingID  string    `msgpack:"rid"`
	SegmentIndex int       `msgpack:"idx"`
	Version      string    `msgpack:"ver"`
	NumFrames    int       `msgpack:"nf"`
	NumBins      int       `msgpack:"nb"`
	Data         []float32 `msgpack:"data"`
	ExtractedAt  time.Time `msgpack:"at"`
}

// Features returns the record's payload as an extractor.Features value.
func (r *Record) Features() extractor.Features {
	return extractor.Features{NumFrames: r.NumFrames, NumBins: r.NumBins, Data: r.Data}
}

// Cache is a durable feature store. Safe for concurrent use.
type Cache struct {
	db *badger.DB
}

// Options configures Open.
type Options struct {
	// Dir is the on-disk location. Required unless InMemory is set.
	Dir string

	// InMemory runs Badger without disk persistence. For tests.
	InMemory bool
}

// Open creates or opens a feature cache.
func Open(opts Options) (*Cache, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("featurecache: Dir is required for on-disk mode")
	}
	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(badgerSlog{})
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true).WithDir("").WithValueDir("")
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("featurecache: open %q: %w", opts.Dir, err)
	}
	return &Cache{db: db}, nil
}

// Close flushes and closes the underlying store.
func (c *Cache) Close() error {
	return c.db.Close()
}

// key builds the storage key for a segment.
func key(recordingID string, segmentIndex int) []byte {
	return []byte(recordingID + "/" + strconv.Itoa(segmentIndex))
}

// Get returns the stored record for the segment, or nil when absent.
func (c *Cache) Get(_ context.Context, recordingID string, segmentIndex int) (*Record, error) {
	var rec *Record
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(recordingID, segmentIndex))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var r Record
			if err := msgpack.Unmarshal(val, &r); err != nil {
				return fmt.Errorf("decode record: %w", err)
			}
			rec = &r
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("featurecache: get %s/%d: %w", recordingID, segmentIndex, err)
	}
	return rec, nil
}

// GetOrCompute returns the cached record when its version matches
// ext.Version(), and otherwise extracts features from samples and publishes
// the result atomically. The returned bool reports a cache hit.
//
// A cancelled context aborts before publication, leaving the cache unchanged.
func (c *Cache) GetOrCompute(ctx context.Context, recordingID string, segmentIndex int, samples []float32, sampleRate int, ext extractor.Extractor) (*Record, bool, error) {
	stored, err := c.Get(ctx, recordingID, segmentIndex)
	if err != nil {
		return nil, false, err
	}
	version := ext.Version()
	if stored != nil {
		if stored.Version == version {
			return stored, true, nil
		}
		slog.Debug("featurecache: version mismatch, recomputing",
			"recording", recordingID, "segment", segmentIndex,
			"stored", stored.Version, "current", version)
	}

	feats, err := ext.Extract(ctx, samples, sampleRate)
	if err != nil {
		return nil, false, fmt.Errorf("featurecache: extract %s/%d: %w", recordingID, segmentIndex, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	rec := &Record{
		RecordingID:  recordingID,
		SegmentIndex: segmentIndex,
		Version:      version,
		NumFrames:    feats.NumFrames,
		NumBins:      feats.NumBins,
		Data:         feats.Data,
		ExtractedAt:  time.Now().UTC(),
	}
	if err := c.put(recordingID, segmentIndex, rec); err != nil {
		return nil, false, err
	}
	return rec, false, nil
}

// put publishes a record in a single transaction commit. On a transaction
// conflict (two workers racing on one key) the write is retried; both sides
// computed identical data, so last-writer-wins is safe.
func (c *Cache) put(recordingID string, segmentIndex int, rec *Record) error {
	encoded, err := msgpack.Marshal(rec)
	if err != nil {
		return fmt.Errorf("featurecache: encode %s/%d: %w", recordingID, segmentIndex, err)
	}
	k := key(recordingID, segmentIndex)
	for {
		err := c.db.Update(func(txn *badger.Txn) error {
			return txn.Set(k, encoded)
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		if err != nil {
			return fmt.Errorf("featurecache: put %s/%d: %w", recordingID, segmentIndex, err)
		}
		return nil
	}
}

// Len counts stored records. Intended for tests and the inspect CLI.
func (c *Cache) Len() (int, error) {
	n := 0
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("featurecache: len: %w", err)
	}
	return n, nil
}

// badgerSlog routes Badger's internal logging through slog at debug level so
// cache housekeeping noise stays out of pipeline output.
type badgerSlog struct{}

func (badgerSlog) Errorf(format string, args ...any) {
	slog.Error("badger: " + fmt.Sprintf(format, args...))
}
func (badgerSlog) Warningf(format string, args ...any) {
	slog.Warn("badger: " + fmt.Sprintf(format, args...))
}
func (badgerSlog) Infof(format string, args ...any) {
	slog.Debug("badger: " + fmt.Sprintf(format, args...))
}
func (badgerSlog) Debugf(format string, args ...any) {
	slog.Debug("badger: " + fmt.Sprintf(format, args...))
}
