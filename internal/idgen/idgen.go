// Package idgen produces string identifiers for notes and folders.
package idgen

import (
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	SchemeTime = "time"
	SchemeUUID = "uuid"
)

// Generator returns a fresh identifier on every call
type Generator interface {
	NewID() string
}

// Func adapts a plain function to Generator
type Func func() string

func (f Func) NewID() string { return f() }

// TimeRandom builds ids from the current time in base 36 followed by a
// random base-36 suffix. Two ids generated in the same millisecond differ
// only by the suffix.
type TimeRandom struct {
	mu   sync.Mutex
	now  func() time.Time
	rand *rand.Rand
}

// NewTimeRandom creates a time based generator
func NewTimeRandom() *TimeRandom {
	return &TimeRandom{
		now:  time.Now,
		rand: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (g *TimeRandom) NewID() string {
	g.mu.Lock()
	suffix := g.rand.Int63()
	g.mu.Unlock()
	return strconv.FormatInt(g.now().UnixMilli(), 36) + strconv.FormatInt(suffix, 36)
}

// UUID returns random (v4) UUID strings
type UUID struct{}

func (UUID) NewID() string {
	return uuid.NewString()
}

// New returns the generator for the named scheme
func New(scheme string) (Generator, error) {
	switch scheme {
	case "", SchemeTime:
		return NewTimeRandom(), nil
	case SchemeUUID:
		return UUID{}, nil
	default:
		return nil, fmt.Errorf("unknown id scheme %q", scheme)
	}
}
