// Package memory provides an in-memory history store with the same partition
// semantics as the Postgres store: partitions must be provisioned before
// appends route into them. It backs tests and non-durable embeddings.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/griotdb/griot"
)

// Store holds records in per-month partitions guarded by a mutex. Event ids
// come from an atomic counter so concurrent appends never collide.
type Store struct {
	nextID atomic.Int64

	mu         sync.Mutex
	partitions map[griot.PartitionKey][]*griot.Record
}

func New() *Store {
	return &Store{partitions: make(map[griot.PartitionKey][]*griot.Record)}
}

// EnsurePartitions provisions the twelve monthly partitions of a year.
// Re-running is a no-op; existing partitions keep their records.
func (s *Store) EnsurePartitions(year int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	created := 0
	for m := time.January; m <= time.December; m++ {
		key := griot.KeyOf(year, m)
		if _, ok := s.partitions[key]; !ok {
			s.partitions[key] = nil
			created++
		}
	}
	return created
}

// HasPartition reports whether a partition exists.
func (s *Store) HasPartition(key griot.PartitionKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.partitions[key]
	return ok
}

// Append routes rec into the partition owning its statement time. A missing
// partition fails the append with griot.ErrNoPartition; nothing is stored.
func (s *Store) Append(_ context.Context, rec *griot.Record) error {
	key := griot.KeyFor(rec.StatementTime)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.partitions[key]; !ok {
		return fmt.Errorf("memory.Append: partition %s: %w", key, griot.ErrNoPartition)
	}
	rec.EventID = s.nextID.Add(1)
	s.partitions[key] = append(s.partitions[key], rec)
	return nil
}

// ListByTimeRange returns records with from <= statement time < to, ordered
// by event id. limit <= 0 means no limit.
func (s *Store) ListByTimeRange(_ context.Context, from, to time.Time, limit int) ([]*griot.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*griot.Record
	for _, recs := range s.partitions {
		for _, rec := range recs {
			if !rec.StatementTime.Before(from) && rec.StatementTime.Before(to) {
				out = append(out, rec)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventID < out[j].EventID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetByEventID scans the partitions for one record.
func (s *Store) GetByEventID(_ context.Context, eventID int64) (*griot.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, recs := range s.partitions {
		for _, rec := range recs {
			if rec.EventID == eventID {
				return rec, nil
			}
		}
	}
	return nil, fmt.Errorf("memory.GetByEventID: event %d: %w", eventID, griot.ErrNotFound)
}

// Len reports the number of stored records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, recs := range s.partitions {
		n += len(recs)
	}
	return n
}

var (
	_ griot.Appender = (*Store)(nil)
	_ griot.Reader   = (*Store)(nil)
)
