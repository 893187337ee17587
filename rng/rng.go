/*
Package rng provides the deterministic random streams used by the workforce engine.

PURPOSE:
  Every stochastic decision in the engine (raise jitter, market candidate
  generation) draws from its own named stream. A stream is identified by a
  (seed, streamID) pair and always produces the same sequence, so replays
  and saved games reproduce identical outcomes even when unrelated call sites
  change order.

KEY CONCEPTS:
  Stream:   A splitmix64 generator seeded from xxhash(seed, streamID).
  Provider: Hands out streams for one global seed and refuses to hand out
            the same stream id twice. Reusing an id for two logically
            distinct decisions would correlate them.

NO SYSTEM ENTROPY:
  Nothing in this package reads the clock, crypto/rand or math/rand's
  global source. The only inputs are the seed strings.

EXAMPLE:
  p := rng.NewProvider("save-42")
  s, err := p.Stream("hiring:market:struct-1:3")
  if err != nil {
      return err // id already used this tick
  }
  x := s.Float64()

  // Per-entity streams don't need a provider:
  jitter := rng.New(employee.RngSeedUUID, "workforce:raise:1").Float64()
*/
package rng

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// ErrStreamReused is returned when a provider is asked for a stream id it
// already handed out.
var ErrStreamReused = errors.New("rng stream id reused")

// =============================================================================
// STREAM
// =============================================================================

// Stream is a splitmix64 generator. Not safe for concurrent use.
type Stream struct {
	state uint64
}

// New returns the stream for (seed, streamID).
func New(seed, streamID string) *Stream {
	return &Stream{state: StreamKey(seed, streamID)}
}

// StreamKey hashes a (seed, streamID) pair into the initial generator state.
// A zero byte separates the two parts so ("ab","c") and ("a","bc") differ.
func StreamKey(seed, streamID string) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(seed)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(streamID)
	return d.Sum64()
}

// Uint64 returns the next raw value.
func (s *Stream) Uint64() uint64 {
	s.state += 0x9e3779b97f4a7c15
	z := s.state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// Float64 returns a value in [0, 1) with 53 bits of precision.
func (s *Stream) Float64() float64 {
	return float64(s.Uint64()>>11) * (1.0 / (1 << 53))
}

// Range returns a value in [lo, hi).
func (s *Stream) Range(lo, hi float64) float64 {
	return lo + (hi-lo)*s.Float64()
}

// Intn returns a value in [0, n). n must be positive.
func (s *Stream) Intn(n int) int {
	if n <= 0 {
		panic(fmt.Sprintf("rng: Intn called with n=%d", n))
	}
	return int(s.Uint64() % uint64(n))
}

// Jitter returns round((x*2-1)*amplitude) for the next draw x.
func (s *Stream) Jitter(amplitude float64) int {
	return int(math.Round((s.Float64()*2 - 1) * amplitude))
}

// =============================================================================
// PROVIDER
// =============================================================================

// Provider hands out streams for one global seed and tracks which stream ids
// have been claimed. Create one per tick.
type Provider struct {
	seed string

	mu      sync.Mutex
	claimed map[string]struct{}
}

func NewProvider(seed string) *Provider {
	return &Provider{seed: seed, claimed: make(map[string]struct{})}
}

// Seed returns the global seed.
func (p *Provider) Seed() string { return p.seed }

// Stream claims streamID and returns its generator.
func (p *Provider) Stream(streamID string) (*Stream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.claimed[streamID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrStreamReused, streamID)
	}
	p.claimed[streamID] = struct{}{}
	return New(p.seed, streamID), nil
}

// Claimed reports whether streamID was already handed out.
func (p *Provider) Claimed(streamID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.claimed[streamID]
	return ok
}
