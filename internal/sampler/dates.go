// Package sampler draws random instants from a guild's configured window and
// turns channel history around those instants into eligible candidates.
package sampler

import (
	"errors"
	"math/rand"
	"time"
)

var ErrInvalidWindow = errors.New("invalid sampling window")

// RandomInstant returns a timestamp drawn uniformly from the closed interval
// [start, end] at seconds granularity. Callers sampling "up to now" pass a
// fresh end on every call so the window keeps growing with real time.
func RandomInstant(start, end time.Time) (time.Time, error) {
	if start.After(end) {
		return time.Time{}, ErrInvalidWindow
	}
	span := int64(end.Sub(start) / time.Second)
	offset := rand.Int63n(span + 1)
	return start.Add(time.Duration(offset) * time.Second), nil
}
