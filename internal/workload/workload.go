// Package workload generates deterministic key streams for replaying against
// a cache.
package workload

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

// Kind selects the key distribution.
type Kind string

const (
	// Uniform draws every key with equal probability.
	Uniform Kind = "uniform"
	// Zipf draws keys with a power-law skew; low keys are hot.
	Zipf Kind = "zipf"
	// Scan walks the key space in order and wraps. With more keys than
	// capacity an exact LRU never hits.
	Scan Kind = "scan"
)

// MaxKeys bounds the key space. Replays pre-allocate one payload per key.
const MaxKeys = 1 << 22

var (
	// ErrUnknownKind is returned for a Kind outside Uniform, Zipf and Scan.
	ErrUnknownKind = errors.New("workload: unknown kind")

	// ErrInvalid wraps every other Config validation failure.
	ErrInvalid = errors.New("workload: invalid config")
)

// ParseKind maps a flag value to a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case Uniform, Zipf, Scan:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Config describes a stream.
//
// WriteRatio is the share of operations that are unconditional writes; the
// rest are reads. The default 0.2 reproduces an 80% get / 20% set mix.
type Config struct {
	Kind       Kind
	Keys       uint64
	Ops        int
	ZipfS      float64
	WriteRatio float64
	Seed       uint64
}

// Validate reports the first problem with c, wrapping ErrUnknownKind or
// ErrInvalid.
func (c Config) Validate() error {
	if _, err := ParseKind(string(c.Kind)); err != nil {
		return err
	}
	switch {
	case c.Keys == 0:
		return fmt.Errorf("%w: keys must be positive", ErrInvalid)
	case c.Keys > MaxKeys:
		return fmt.Errorf("%w: keys %d above limit %d", ErrInvalid, c.Keys, MaxKeys)
	case c.Ops < 0:
		return fmt.Errorf("%w: ops must not be negative", ErrInvalid)
	case c.WriteRatio < 0 || c.WriteRatio > 1:
		return fmt.Errorf("%w: write ratio %v outside [0,1]", ErrInvalid, c.WriteRatio)
	case c.Kind == Zipf && c.ZipfS <= 1:
		return fmt.Errorf("%w: zipf s must be > 1, got %v", ErrInvalid, c.ZipfS)
	}
	return nil
}

// Op is one access.
type Op struct {
	Key   uint64
	Write bool
}

// Stream yields Ops until Ops have been produced. It is not safe for
// concurrent use; give each goroutine its own stream via Split.
type Stream struct {
	cfg       Config
	rng       *rand.Rand
	key       func() uint64
	cursor    uint64
	remaining int
}

// New builds a stream from cfg.
func New(cfg Config) (*Stream, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Stream{
		cfg:       cfg,
		rng:       rand.New(rand.NewPCG(cfg.Seed, cfg.Seed+1)),
		remaining: cfg.Ops,
	}

	switch cfg.Kind {
	case Uniform:
		s.key = func() uint64 { return s.rng.Uint64N(cfg.Keys) }
	case Zipf:
		z := rand.NewZipf(s.rng, cfg.ZipfS, 1, cfg.Keys-1)
		s.key = z.Uint64
	case Scan:
		s.key = func() uint64 {
			k := s.cursor
			s.cursor = (s.cursor + 1) % cfg.Keys
			return k
		}
	}
	return s, nil
}

// Next returns the next op, or false once the stream is exhausted.
func (s *Stream) Next() (Op, bool) {
	if s.remaining <= 0 {
		return Op{}, false
	}
	s.remaining--
	return Op{
		Key:   s.key(),
		Write: s.cfg.WriteRatio > 0 && s.rng.Float64() < s.cfg.WriteRatio,
	}, true
}

// Remaining reports how many ops are left.
func (s *Stream) Remaining() int { return s.remaining }

// Split divides the stream's ops into n independent streams with derived
// seeds. Scan streams start at staggered offsets.
func (s *Stream) Split(n int) ([]*Stream, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: split into %d streams", ErrInvalid, n)
	}
	out := make([]*Stream, n)
	per, extra := s.remaining/n, s.remaining%n
	for i := range out {
		cfg := s.cfg
		cfg.Seed = s.cfg.Seed + uint64(i)*0x9e37
		cfg.Ops = per
		if i < extra {
			cfg.Ops++
		}
		sub, err := New(cfg)
		if err != nil {
			return nil, err
		}
		sub.cursor = uint64(i) * (cfg.Keys / uint64(n))
		out[i] = sub
	}
	s.remaining = 0
	return out, nil
}
