// Package id implements the "ID generation" external collaborator named
// in spec.md §6: new_id() -> string, monotonic/time-ordered preferred.
// The command engine accepts whatever aggregate_id the caller supplies
// and uses this package to mint one when the caller supplies none (user,
// org and project creation) and to mint session and token ids; event
// sequences and positions are assigned by the store, not here.
package id

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Generator mints new identifiers. The default implementation is
// monotonic-ULID based so ids sort by creation time, which keeps
// command_id and other caller-facing ids roughly ordered in logs and
// indexes without requiring a round trip to the database.
type Generator interface {
	// New returns a new time-ordered id.
	New() string
	// NewOpaque returns a new id that does not encode its creation
	// time, for values that must not leak ordering (e.g. session
	// tokens, encryption key references).
	NewOpaque() string
}

type generator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewGenerator returns the default Generator: ULID for New(), UUIDv4
// for NewOpaque().
func NewGenerator() Generator {
	return &generator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (g *generator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy).String()
}

func (g *generator) NewOpaque() string {
	return uuid.NewString()
}

var defaultGenerator = NewGenerator()

// Default returns the package-level Generator, created at process
// startup; there is exactly one per process, matching the teacher's
// internal/id package which configures a single sonyflake-style node at
// startup (internal/id.Configure in cmd/initialise/init.go).
func Default() Generator { return defaultGenerator }
