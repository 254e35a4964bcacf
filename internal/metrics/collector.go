// Package metrics collects per-process statistics about history retrieval,
// LLM backends and the settings store.
package metrics

import (
	"cmp"
	"slices"
	"sync"
	"time"
)

// Latency aggregates the durations of one kind of call.
type Latency struct {
	Count int64
	Total time.Duration
	Min   time.Duration
	Max   time.Duration
}

func (l *Latency) add(d time.Duration) {
	if l.Count == 0 || d < l.Min {
		l.Min = d
	}
	if d > l.Max {
		l.Max = d
	}
	l.Count++
	l.Total += d
}

// Avg returns the mean duration, or zero without samples.
func (l Latency) Avg() time.Duration {
	if l.Count == 0 {
		return 0
	}
	return l.Total / time.Duration(l.Count)
}

// HistoryStats describes page fetches against a message source.
type HistoryStats struct {
	Pages int64
	// Messages is the number of messages the source returned, before
	// dedup and window filtering.
	Messages int64
	// EmptyPages counts fetches that returned nothing and ended a walk.
	EmptyPages int64
	Latency    Latency
}

// ProviderStats describes the calls made to one backend.
type ProviderStats struct {
	Name         string
	Calls        int64
	Failures     int64
	InputTokens  int64
	OutputTokens int64
	// Latency covers successful calls only.
	Latency Latency
}

// StoreStats describes one store method.
type StoreStats struct {
	Method  string
	Calls   int64
	Errors  int64
	Latency Latency
}

// Snapshot is the collector state at a point in time. Providers and Store
// are sorted by name.
type Snapshot struct {
	Uptime    time.Duration
	History   HistoryStats
	Providers []ProviderStats
	Store     []StoreStats
}

// Calls returns the total number of backend calls, failed ones included.
func (s Snapshot) Calls() int64 {
	var n int64
	for _, p := range s.Providers {
		n += p.Calls
	}
	return n
}

// Collector aggregates runtime statistics. It is safe for concurrent use;
// a nil *Collector ignores all records.
type Collector struct {
	mu        sync.Mutex
	startTime time.Time
	history   HistoryStats
	providers map[string]*ProviderStats
	store     map[string]*StoreStats
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		providers: make(map[string]*ProviderStats),
		store:     make(map[string]*StoreStats),
	}
}

// RecordPage records one history page fetch that returned received messages.
func (c *Collector) RecordPage(d time.Duration, received int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.history.Pages++
	c.history.Messages += int64(received)
	if received == 0 {
		c.history.EmptyPages++
	}
	c.history.Latency.add(d)
}

// RecordChat records a successful backend call and its token usage.
func (c *Collector) RecordChat(provider string, d time.Duration, inputTokens, outputTokens int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.provider(provider)
	p.Calls++
	p.InputTokens += inputTokens
	p.OutputTokens += outputTokens
	p.Latency.add(d)
}

// RecordChatFailure records a backend call that returned an error.
func (c *Collector) RecordChatFailure(provider string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.provider(provider)
	p.Calls++
	p.Failures++
}

// RecordStoreCall records one store method call; err marks it failed.
func (c *Collector) RecordStoreCall(method string, d time.Duration, err error) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.store[method]
	if !ok {
		s = &StoreStats{Method: method}
		c.store[method] = s
	}
	s.Calls++
	if err != nil {
		s.Errors++
	}
	s.Latency.add(d)
}

// provider returns the stats entry for name. Caller must hold mu.
func (c *Collector) provider(name string) *ProviderStats {
	p, ok := c.providers[name]
	if !ok {
		p = &ProviderStats{Name: name}
		c.providers[name] = p
	}
	return p
}

// Snapshot returns a copy of the collected statistics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		Uptime:  time.Since(c.startTime),
		History: c.history,
	}
	for _, p := range c.providers {
		snap.Providers = append(snap.Providers, *p)
	}
	for _, s := range c.store {
		snap.Store = append(snap.Store, *s)
	}
	slices.SortFunc(snap.Providers, func(a, b ProviderStats) int { return cmp.Compare(a.Name, b.Name) })
	slices.SortFunc(snap.Store, func(a, b StoreStats) int { return cmp.Compare(a.Method, b.Method) })
	return snap
}
