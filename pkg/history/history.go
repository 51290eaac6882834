// Package history keeps a bounded ledger of upload attempts so that
// status can report what happened on previous runs.
package history

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"
)

// BucketName is the bbolt bucket the ledger lives in.
const BucketName = "uploads"

const defaultMaxRecords = 50

// Record is one upload attempt.
type Record struct {
	RunID      string        `json:"run_id"`
	Archive    string        `json:"archive"`
	Attempt    int           `json:"attempt"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	StatusCode int           `json:"status_code,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// Succeeded reports whether the service accepted the archive.
func (r Record) Succeeded() bool {
	return r.Error == "" && r.StatusCode >= 200 && r.StatusCode < 300
}

// key orders records by start time, then attempt.
func (r Record) key() []byte {
	return []byte(fmt.Sprintf("%020d-%03d", r.StartedAt.UnixNano(), r.Attempt))
}

// KVStore is the storage the ledger needs.
type KVStore interface {
	Set(key, value []byte) error
	ForEach(fn func(k, v []byte) error) error
	Count() (int, error)
	TrimOldest(keep int) (int, error)
}

type Option func(*Ledger)

// WithMaxRecords bounds how many records are retained.
func WithMaxRecords(n int) Option {
	return func(l *Ledger) {
		l.maxRecords = n
	}
}

type Ledger struct {
	logger     log.Logger
	store      KVStore
	maxRecords int
}

func New(logger log.Logger, store KVStore, opts ...Option) *Ledger {
	l := &Ledger{
		logger:     log.With(logger, "component", "history"),
		store:      store,
		maxRecords: defaultMaxRecords,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Add stores r and drops the oldest records beyond the retention limit.
func (l *Ledger) Add(r Record) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return errors.Wrap(err, "marshaling upload record")
	}

	if err := l.store.Set(r.key(), raw); err != nil {
		return errors.Wrap(err, "storing upload record")
	}

	removed, err := l.store.TrimOldest(l.maxRecords)
	if err != nil {
		return errors.Wrap(err, "trimming upload history")
	}
	if removed > 0 {
		level.Debug(l.logger).Log("msg", "trimmed upload history", "removed", removed)
	}

	return nil
}

// Recent returns up to n records, newest first. n <= 0 returns all of them.
func (l *Ledger) Recent(n int) ([]Record, error) {
	var records []Record
	err := l.store.ForEach(func(k, v []byte) error {
		var r Record
		if err := json.Unmarshal(v, &r); err != nil {
			level.Info(l.logger).Log("msg", "skipping unreadable upload record", "key", string(k), "err", err)
			return nil
		}
		records = append(records, r)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "reading upload history")
	}

	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}

	if n > 0 && len(records) > n {
		records = records[:n]
	}
	return records, nil
}

// Len returns how many records are retained.
func (l *Ledger) Len() (int, error) {
	n, err := l.store.Count()
	if err != nil {
		return 0, errors.Wrap(err, "counting upload records")
	}
	return n, nil
}

// LastSuccess returns the newest successful record, or nil.
func (l *Ledger) LastSuccess() (*Record, error) {
	records, err := l.Recent(0)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].Succeeded() {
			return &records[i], nil
		}
	}
	return nil, nil
}
