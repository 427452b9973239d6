package ids

import (
	"errors"
	"strconv"
	"sync"
	"time"
)

// Bit layout: timestamp(42) | instance(10) | sequence(12)
const (
	TimestampBits = 42
	InstanceBits  = 10
	SequenceBits  = 12

	MaxTimestamp = (1 << TimestampBits) - 1
	MaxInstance  = (1 << InstanceBits) - 1
	MaxSequence  = (1 << SequenceBits) - 1

	instanceShift  = SequenceBits
	timestampShift = InstanceBits + SequenceBits
)

// Epoch is the zero point of every timestamp field: 2025-09-01T00:00:00Z.
var Epoch = time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

var (
	ErrClockRegression   = errors.New("ids: clock moved backwards")
	ErrTimestampOverflow = errors.New("ids: timestamp exceeds 42 bits")
	ErrInvalidInstance   = errors.New("ids: instance id out of range [0, 1023]")
)

// Option customises a Generator.
type Option func(*Generator)

// WithClock injects the time source (tests).
func WithClock(clock func() time.Time) Option {
	return func(g *Generator) {
		if clock != nil {
			g.clock = clock
		}
	}
}

// WithEpoch overrides the epoch. IDs from generators with different epochs do not sort together.
func WithEpoch(epoch time.Time) Option {
	return func(g *Generator) {
		g.epochMS = epoch.UnixMilli()
	}
}

// Generator mints IDs for one instance. Safe for concurrent use.
type Generator struct {
	mu       sync.Mutex
	clock    func() time.Time
	epochMS  int64
	instance int64
	seq      int64
	lastTSMS int64
}

func NewGenerator(instance int64, opts ...Option) (*Generator, error) {
	if instance < 0 || instance > MaxInstance {
		return nil, ErrInvalidInstance
	}
	g := &Generator{
		clock:    time.Now,
		epochMS:  Epoch.UnixMilli(),
		instance: instance,
		lastTSMS: -1,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Instance returns the discriminator packed into every ID of this generator.
func (g *Generator) Instance() int64 {
	return g.instance
}

// Next returns an ID strictly greater than any ID previously returned by g.
// A clock that steps backwards yields ErrClockRegression instead of waiting.
func (g *Generator) Next() (ID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.elapsed()
	if now < g.lastTSMS {
		return 0, ErrClockRegression
	}
	if now == g.lastTSMS {
		g.seq = (g.seq + 1) & MaxSequence
		if g.seq == 0 {
			// sequence exhausted, wait for the next millisecond
			for now <= g.lastTSMS {
				now = g.elapsed()
				if now < g.lastTSMS {
					return 0, ErrClockRegression
				}
			}
		}
	} else {
		g.seq = 0
	}
	if now > MaxTimestamp {
		return 0, ErrTimestampOverflow
	}
	g.lastTSMS = now

	return ID(now<<timestampShift | g.instance<<instanceShift | g.seq), nil
}

func (g *Generator) elapsed() int64 {
	return g.clock().UnixMilli() - g.epochMS
}

// ---------------- default generator ----------------

var (
	defaultGen *Generator
	defaultMu  sync.RWMutex
)

func init() {
	defaultGen, _ = NewGenerator(1)
}

// SetNodeID replaces the process-wide generator; call once from main before serving.
func SetNodeID(nodeID int64) error {
	g, err := NewGenerator(nodeID)
	if err != nil {
		return err
	}
	defaultMu.Lock()
	defaultGen = g
	defaultMu.Unlock()
	return nil
}

// Default returns the process-wide generator.
func Default() *Generator {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultGen
}

// Generate mints an ID from the process-wide generator.
func Generate() (ID, error) {
	return Default().Next()
}

func GenerateString() (string, error) {
	id, err := Generate()
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(int64(id), 10), nil
}
