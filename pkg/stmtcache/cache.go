package stmtcache

import (
	"container/list"
	"slices"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"dictengine/pkg/catalog"
	"dictengine/pkg/catalog/depend"
	"dictengine/pkg/cursor"
	"dictengine/pkg/execution/scan"
	"dictengine/pkg/logging"
	"dictengine/pkg/primitives"
	"dictengine/pkg/statistics"
	"dictengine/pkg/storage"
)

// Key identifies a cached statement. Statements with the same text but a
// different scroll type are compiled separately.
type Key struct {
	Schema string
	Text   string
	Scroll cursor.ScrollType
}

// Statement is a compiled query kept for reuse. It is registered in the
// dependency graph as a statement depending on everything its plan reads.
type Statement struct {
	ID    primitives.ObjectID
	Key   Key
	Query scan.Query

	plan       *scan.Plan
	busy       bool
	recompiles int
	lruElement *list.Element
}

// Ref returns the statement's node in the dependency graph.
func (s *Statement) Ref() depend.Ref {
	return depend.Ref{Kind: depend.KindStatement, ID: s.ID}
}

// Activation is one use of a statement. The plan belongs to the holder
// until Release.
type Activation struct {
	Statement *Statement
	Plan      *scan.Plan
	// Recompiled is true when the statement had been invalidated and was
	// compiled again for this use.
	Recompiled bool

	cache  *Cache
	shared bool
	once   sync.Once
}

// Release returns the plan to the cache.
func (a *Activation) Release() {
	a.once.Do(func() {
		if a.shared {
			a.cache.release(a.Statement)
		}
	})
}

// Stats are the cache counters.
type Stats struct {
	Hits       int64
	Misses     int64
	Recompiles int64
	Evictions  int64
	Size       int
}

type cacheMetrics struct {
	hits       atomic.Int64
	misses     atomic.Int64
	recompiles atomic.Int64
	evictions  atomic.Int64
}

// Cache holds compiled statements of one database. When maxSize is
// positive the least recently used idle statement is evicted to make room.
type Cache struct {
	cat     *catalog.Catalog
	store   *storage.Store
	sink    statistics.Sink
	maxSize int

	mu      sync.Mutex
	entries map[Key]*Statement
	lruList *list.List
	metrics cacheMetrics
	log     *zap.Logger
}

// New creates a cache compiling against cat and store. Compiled plans
// report to sink, which may be nil.
func New(cat *catalog.Catalog, store *storage.Store, sink statistics.Sink, maxSize int) *Cache {
	c := &Cache{
		cat:     cat,
		store:   store,
		sink:    sink,
		maxSize: maxSize,
		entries: make(map[Key]*Statement),
		lruList: list.New(),
		log:     logging.WithComponent("stmtcache"),
	}
	cat.Subscribe(c.onChange)
	return c
}

// Activate returns a plan for q. A cached statement is reused when it is
// still valid and recompiled when a catalog change invalidated it. When
// the cached plan is in use elsewhere a private plan is compiled.
func (c *Cache) Activate(q scan.Query, scroll cursor.ScrollType) (*Activation, error) {
	key := Key{Schema: catalog.NormalizeName(q.Schema), Text: q.Text(), Scroll: scroll}

	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.entries[key]
	if !ok {
		c.metrics.misses.Add(1)
		var err error
		if st, err = c.compile(key, q); err != nil {
			return nil, err
		}
	} else {
		c.metrics.hits.Add(1)
		c.lruList.MoveToFront(st.lruElement)
	}

	act := &Activation{Statement: st, cache: c}
	if !c.cat.Graph().IsValid(st.Ref()) {
		reason := c.cat.Graph().InvalidReason(st.Ref())
		if err := c.recompile(st); err != nil {
			c.remove(st)
			return nil, err
		}
		act.Recompiled = true
		c.log.Debug("statement recompiled",
			zap.String("statement", st.Key.Text),
			zap.Stringer("reason", reason),
			zap.Int("recompiles", st.recompiles))
	}

	if st.busy {
		plan, err := scan.Build(c.cat, c.store, st.Query, c.sink)
		if err != nil {
			return nil, err
		}
		act.Plan = plan
		return act, nil
	}
	st.busy = true
	act.Plan = st.plan
	act.shared = true
	return act, nil
}

// compile builds a new statement and caches it.
func (c *Cache) compile(key Key, q scan.Query) (*Statement, error) {
	plan, err := scan.Build(c.cat, c.store, q, c.sink)
	if err != nil {
		return nil, err
	}
	if c.maxSize > 0 && len(c.entries) >= c.maxSize {
		c.evictLRU()
	}

	st := &Statement{ID: primitives.NewObjectID(), Key: key, Query: q, plan: plan}
	c.register(st)
	c.entries[key] = st
	st.lruElement = c.lruList.PushFront(key)
	return st, nil
}

func (c *Cache) recompile(st *Statement) error {
	plan, err := scan.Build(c.cat, c.store, st.Query, c.sink)
	if err != nil {
		return err
	}
	g := c.cat.Graph()
	g.RemoveDependent(nil, st.Ref())
	st.plan = plan
	st.recompiles++
	c.register(st)
	g.MarkValid(st.Ref())
	c.metrics.recompiles.Add(1)
	return nil
}

// register records the statement's providers. Edges of cached statements
// live outside any transaction.
func (c *Cache) register(st *Statement) {
	g := c.cat.Graph()
	for _, d := range st.plan.Dependencies {
		g.AddEdge(nil, st.Ref(), d.Provider, d.Usage)
	}
}

func (c *Cache) release(st *Statement) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st.busy = false
}

// evictLRU drops the least recently used statement that is not in use.
func (c *Cache) evictLRU() {
	for e := c.lruList.Back(); e != nil; e = e.Prev() {
		st := c.entries[e.Value.(Key)]
		if st.busy {
			continue
		}
		c.remove(st)
		c.metrics.evictions.Add(1)
		return
	}
}

func (c *Cache) remove(st *Statement) {
	if cur, ok := c.entries[st.Key]; !ok || cur != st {
		return
	}
	c.cat.Graph().RemoveDependent(nil, st.Ref())
	c.cat.Graph().MarkValid(st.Ref())
	c.lruList.Remove(st.lruElement)
	delete(c.entries, st.Key)
}

// onChange discards idle statements reading a dropped table.
func (c *Cache) onChange(ev catalog.ChangeEvent) {
	if ev.Kind != catalog.ChangeDropTable {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, st := range c.snapshot() {
		if st.busy || !slices.Contains(st.plan.Tables, ev.TableID) {
			continue
		}
		c.remove(st)
		c.metrics.evictions.Add(1)
		c.log.Debug("statement discarded", zap.String("statement", st.Key.Text), zap.String("table", ev.Object))
	}
}

func (c *Cache) snapshot() []*Statement {
	out := make([]*Statement, 0, len(c.entries))
	for _, st := range c.entries {
		out = append(out, st)
	}
	return out
}

// Lookup returns the cached statement for key.
func (c *Cache) Lookup(key Key) (*Statement, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.entries[key]
	return st, ok
}

// Recompiles returns how often the statement was compiled again after an
// invalidation.
func (c *Cache) Recompiles(st *Statement) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return st.recompiles
}

// Stats returns the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	size := len(c.entries)
	c.mu.Unlock()
	return Stats{
		Hits:       c.metrics.hits.Load(),
		Misses:     c.metrics.misses.Load(),
		Recompiles: c.metrics.recompiles.Load(),
		Evictions:  c.metrics.evictions.Load(),
		Size:       size,
	}
}

// Clear drops every idle statement.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, st := range c.snapshot() {
		if !st.busy {
			c.remove(st)
		}
	}
}
