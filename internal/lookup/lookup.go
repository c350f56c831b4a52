// Package lookup resolves source-database identifiers to Wikidata QIDs.
package lookup

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/lineage/internal/cache"
	"github.com/ppiankov/lineage/internal/model"
)

// Kind names one id namespace of the source database.
type Kind string

const (
	KindPerson     Kind = "person"
	KindPlace      Kind = "place"
	KindOccupation Kind = "occupation"
	KindReligion   Kind = "religion"
	KindSource     Kind = "source"
	KindPatronym   Kind = "patronym"
)

// Resolver maps a source id to a QID. An empty QID with a nil error means
// the id has no known item.
type Resolver interface {
	QID(ctx context.Context, kind Kind, id string) (string, error)
}

// Table is a static in-memory resolver, usually loaded from a YAML mapping
// file maintained alongside the bot.
type Table map[Kind]map[string]string

// LoadTable reads a resolver table from a YAML file.
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lookup table: %w", err)
	}
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse lookup table: %w", err)
	}
	return t, nil
}

func (t Table) QID(ctx context.Context, kind Kind, id string) (string, error) {
	qid := t[kind][id]
	if qid != "" && !model.IsQID(qid) {
		return "", model.Invalidf("lookup %s/%s: %q is not an item id", kind, id, qid)
	}
	return qid, nil
}

// Cached is a read-through decorator over any resolver. Misses are cached
// too, so an id without an item does not hit the backend every run.
type Cached struct {
	next  Resolver
	store cache.Cache
	ttl   time.Duration
}

// NewCached wraps a resolver with the cache.
func NewCached(next Resolver, store cache.Cache, ttl time.Duration) *Cached {
	return &Cached{next: next, store: store, ttl: ttl}
}

func (c *Cached) QID(ctx context.Context, kind Kind, id string) (string, error) {
	key := cache.CacheKey(fmt.Sprintf("lookup/%s/%s", kind, id))
	if val, ok := c.store.Get(key); ok {
		return string(val), nil
	}
	qid, err := c.next.QID(ctx, kind, id)
	if err != nil {
		return "", err
	}
	_ = c.store.Set(key, []byte(qid), c.ttl)
	return qid, nil
}

// PossibleLedger records (source id, qid) pairs that looked like a match but
// could not be confirmed. A pair seen again refuses reconciliation instead
// of guessing.
type PossibleLedger struct {
	mu    sync.Mutex
	pairs map[string]bool
}

// NewPossibleLedger creates an empty ledger.
func NewPossibleLedger() *PossibleLedger {
	return &PossibleLedger{pairs: map[string]bool{}}
}

func (l *PossibleLedger) key(id, qid string) string { return id + "\x00" + qid }

// Add records a possible match.
func (l *PossibleLedger) Add(id, qid string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pairs[l.key(id, qid)] = true
}

// Is reports whether the pair was recorded as a possible match.
func (l *PossibleLedger) Is(id, qid string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pairs[l.key(id, qid)]
}
