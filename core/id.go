package core

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// IDGenerator produces identifiers for new records. IDs are opaque and only
// compared for equality.
type IDGenerator interface {
	Next() string
}

// ULIDGenerator renders IDs as <prefix>_<ulid>. The ULID carries the
// creation time in milliseconds followed by random bits. IDs from a single
// generator are strictly increasing; across processes uniqueness is only
// probabilistic.
type ULIDGenerator struct {
	prefix string

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewIDGenerator(prefix string) *ULIDGenerator {
	return &ULIDGenerator{
		prefix:  prefix,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

func (g *ULIDGenerator) Next() string {
	g.mu.Lock()
	id, err := ulid.New(ulid.Timestamp(time.Now()), g.entropy)
	g.mu.Unlock()
	if err != nil {
		// monotonic entropy overflowed within one millisecond
		id = ulid.Make()
	}
	s := strings.ToLower(id.String())
	if g.prefix == "" {
		return s
	}
	return g.prefix + "_" + s
}

// IDPrefix derives a record prefix from a collection name, e.g.
// "vr-sessions" becomes "vr_session".
func IDPrefix(collection string) string {
	p := strings.TrimSuffix(collection, "s")
	return strings.ReplaceAll(p, "-", "_")
}
