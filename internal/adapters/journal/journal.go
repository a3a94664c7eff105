// Package journal keeps a tamper-evident, append-only log of oracle events.
//
// Each record links to its predecessor by hash:
//
//	hash(n) = blake3(hash(n-1) || payload(n))
//
// with hash(0) all zeroes, so rewriting any stored record breaks every link
// after it. Records live in pebble under big-endian sequence keys, which
// keeps iteration in append order.
package journal

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/okian/quorum/internal/domain/model"
	"github.com/okian/quorum/pkg/metrics"
	"github.com/zeebo/blake3"
)

// ErrChainBroken is returned by Verify when a record does not link to its
// predecessor or its hash does not match its payload.
var ErrChainBroken = errors.New("journal chain broken")

const defaultSyncInterval = 100 * time.Millisecond

var (
	recordPrefix = []byte("r/")
	headKey      = []byte("m/head")
)

// Hash is a blake3-256 digest.
type Hash [32]byte

// String returns the hex form.
func (h Hash) String() string { return hex.EncodeToString(h[:]) }

// MarshalText implements encoding.TextMarshaler.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(b []byte) error {
	if hex.DecodedLen(len(b)) != len(h) {
		return fmt.Errorf("hash: want %d hex chars, got %d", 2*len(h), len(b))
	}
	_, err := hex.Decode(h[:], b)
	return err
}

// Record is one stored journal entry.
type Record struct {
	Seq      uint64          `json:"seq"`
	PrevHash Hash            `json:"prev_hash"`
	Hash     Hash            `json:"hash"`
	Payload  json.RawMessage `json:"event"`
}

// Event decodes the payload.
func (r Record) Event() (model.Event, error) {
	var e model.Event
	err := json.Unmarshal(r.Payload, &e)
	return e, err
}

type head struct {
	Seq  uint64 `json:"seq"`
	Hash Hash   `json:"hash"`
}

// Journal is a pebble-backed hash chain. It is safe for concurrent use;
// appends are serialized.
type Journal struct {
	db *pebble.DB

	mu   sync.Mutex
	head head

	syncInterval time.Duration
	stopSync     chan struct{}
	wg           sync.WaitGroup
}

// Option applies a configuration option to the Journal.
type Option func(*Journal)

// WithSyncInterval sets how often the WAL is synced to disk. Zero syncs on
// every append.
func WithSyncInterval(d time.Duration) Option {
	return func(j *Journal) {
		if d >= 0 {
			j.syncInterval = d
		}
	}
}

// Open opens or creates the journal at path and resumes from its head.
func Open(path string, opts ...Option) (*Journal, error) {
	db, err := pebble.Open(path, &pebble.Options{
		Cache:        pebble.NewCache(8 << 20),
		MemTableSize: 4 << 20,
	})
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}

	j := &Journal{
		db:           db,
		syncInterval: defaultSyncInterval,
		stopSync:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(j)
	}

	if err := j.loadHead(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if j.syncInterval > 0 {
		j.startSyncLoop()
	}
	return j, nil
}

func (j *Journal) loadHead() error {
	value, closer, err := j.db.Get(headKey)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read journal head: %w", err)
	}
	defer closer.Close()
	if err := json.Unmarshal(value, &j.head); err != nil {
		return fmt.Errorf("decode journal head: %w", err)
	}
	return nil
}

// Head returns the sequence number and hash of the last record. An empty
// journal reports zero for both.
func (j *Journal) Head() (uint64, Hash) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.head.Seq, j.head.Hash
}

// Append links e to the chain and stores it.
func (j *Journal) Append(_ context.Context, e model.Event) (Record, error) { //nolint:gocritic // hugeParam
	payload, err := json.Marshal(e)
	if err != nil {
		metrics.RecordJournalError()
		return Record{}, fmt.Errorf("encode event: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	rec := Record{
		Seq:      j.head.Seq + 1,
		PrevHash: j.head.Hash,
		Hash:     chain(j.head.Hash, payload),
		Payload:  payload,
	}
	value, err := json.Marshal(rec)
	if err != nil {
		metrics.RecordJournalError()
		return Record{}, fmt.Errorf("encode record: %w", err)
	}
	next := head{Seq: rec.Seq, Hash: rec.Hash}
	headValue, err := json.Marshal(next)
	if err != nil {
		metrics.RecordJournalError()
		return Record{}, fmt.Errorf("encode head: %w", err)
	}

	batch := j.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(recordKey(rec.Seq), value, nil); err != nil {
		metrics.RecordJournalError()
		return Record{}, err
	}
	if err := batch.Set(headKey, headValue, nil); err != nil {
		metrics.RecordJournalError()
		return Record{}, err
	}
	writeOpts := pebble.NoSync
	if j.syncInterval == 0 {
		writeOpts = pebble.Sync
	}
	if err := batch.Commit(writeOpts); err != nil {
		metrics.RecordJournalError()
		return Record{}, fmt.Errorf("commit record %d: %w", rec.Seq, err)
	}

	j.head = next
	metrics.RecordJournalAppend()
	return rec, nil
}

// Name implements worker.Sink.
func (j *Journal) Name() string { return "journal" }

// Handle implements worker.Sink.
func (j *Journal) Handle(ctx context.Context, e model.Event) error { //nolint:gocritic // hugeParam
	_, err := j.Append(ctx, e)
	return err
}

// Replay calls fn for every record in append order. Iteration stops at the
// first error from fn or from ctx.
func (j *Journal) Replay(ctx context.Context, fn func(Record) error) error {
	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: recordPrefix,
		UpperBound: prefixUpperBound(recordPrefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		value, err := iter.ValueAndErr()
		if err != nil {
			return err
		}
		var rec Record
		if err := json.Unmarshal(value, &rec); err != nil {
			return fmt.Errorf("decode record %x: %w", iter.Key(), err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

// Verify walks the chain from the first record and returns the number of
// records checked. The first broken link is reported as ErrChainBroken.
func (j *Journal) Verify(ctx context.Context) (int, error) {
	var (
		prev Hash
		want uint64 = 1
		n    int
	)
	err := j.Replay(ctx, func(rec Record) error {
		switch {
		case rec.Seq != want:
			return fmt.Errorf("%w: record %d found where %d expected", ErrChainBroken, rec.Seq, want)
		case rec.PrevHash != prev:
			return fmt.Errorf("%w: record %d does not link to %d", ErrChainBroken, rec.Seq, rec.Seq-1)
		case chain(prev, rec.Payload) != rec.Hash:
			return fmt.Errorf("%w: record %d hash mismatch", ErrChainBroken, rec.Seq)
		}
		prev = rec.Hash
		want++
		n++
		return nil
	})
	if err != nil {
		return n, err
	}

	seq, h := j.Head()
	if seq != uint64(n) || h != prev {
		return n, fmt.Errorf("%w: head %d does not match last record %d", ErrChainBroken, seq, n)
	}
	return n, nil
}

// Close stops the sync loop, flushes the WAL and closes the store.
func (j *Journal) Close() error {
	if j.syncInterval > 0 {
		close(j.stopSync)
		j.wg.Wait()
	}
	if err := j.db.LogData(nil, pebble.Sync); err != nil {
		_ = j.db.Close()
		return err
	}
	return j.db.Close()
}

func (j *Journal) startSyncLoop() {
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()

		ticker := time.NewTicker(j.syncInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := j.db.LogData(nil, pebble.Sync); err != nil {
					metrics.RecordJournalError()
				}
			case <-j.stopSync:
				return
			}
		}
	}()
}

func chain(prev Hash, payload []byte) Hash {
	h := blake3.New()
	_, _ = h.Write(prev[:])
	_, _ = h.Write(payload)
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

func recordKey(seq uint64) []byte {
	key := make([]byte, len(recordPrefix)+8)
	copy(key, recordPrefix)
	binary.BigEndian.PutUint64(key[len(recordPrefix):], seq)
	return key
}

// prefixUpperBound returns the exclusive upper bound for a prefix scan.
func prefixUpperBound(prefix []byte) []byte {
	upper := make([]byte, len(prefix))
	copy(upper, prefix)
	for i := len(upper) - 1; i >= 0; i-- {
		upper[i]++
		if upper[i] != 0 {
			return upper
		}
	}
	return nil
}
