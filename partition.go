package griot

import (
	"strconv"
	"time"
)

// PartitionKey identifies the monthly partition owning a statement time,
// encoded as year*100+month: March 2025 is 202503. Bucketing is by UTC.
type PartitionKey int

// KeyFor computes the partition key owning t.
func KeyFor(t time.Time) PartitionKey {
	u := t.UTC()
	return PartitionKey(u.Year()*100 + int(u.Month()))
}

// KeyOf builds a key from a year and month.
func KeyOf(year int, month time.Month) PartitionKey {
	return PartitionKey(year*100 + int(month))
}

func (k PartitionKey) Year() int         { return int(k) / 100 }
func (k PartitionKey) Month() time.Month { return time.Month(int(k) % 100) }

// Range returns the half-open interval [start, end) the partition owns.
// Consecutive keys produce contiguous, non-overlapping ranges.
func (k PartitionKey) Range() (start, end time.Time) {
	start = time.Date(k.Year(), k.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// Contains reports whether t falls inside the partition's range.
func (k PartitionKey) Contains(t time.Time) bool {
	return KeyFor(t) == k
}

func (k PartitionKey) String() string {
	return strconv.Itoa(int(k))
}
