package pipeline

import (
	"image"
	"sync"
	"time"

	"github.com/dhjs0000/QERC/internal/barcode"
)

// Hit is one successful decode tagged with the region that produced it.
// Points are decoder result points in source image coordinates.
type Hit struct {
	Format    barcode.Format    `json:"type" yaml:"type"`
	Text      string            `json:"content" yaml:"content"`
	Region    Region            `json:"location" yaml:"location"`
	Variant   Variant           `json:"variant" yaml:"variant"`
	Binarizer barcode.Binarizer `json:"binarizer" yaml:"binarizer"`
	Points    []image.Point     `json:"points,omitempty" yaml:"points,omitempty"`
	Timestamp time.Time         `json:"timestamp" yaml:"timestamp"`
}

type hitKey struct {
	format barcode.Format
	text   string
}

func (h Hit) key() hitKey { return hitKey{format: h.Format, text: h.Text} }

// ResultSet is an ordered collection of hits in discovery order. No two hits
// share the same (format, text) pair. It is safe for concurrent use.
type ResultSet struct {
	mu   sync.RWMutex
	hits []Hit
	seen map[hitKey]struct{}
}

// NewResultSet returns an empty result set.
func NewResultSet() *ResultSet {
	return &ResultSet{seen: make(map[hitKey]struct{})}
}

// Add appends h unless a hit with the same format and text is already
// present. The check and the append happen under one lock.
func (rs *ResultSet) Add(h Hit) bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.seen == nil {
		rs.seen = make(map[hitKey]struct{})
	}
	k := h.key()
	if _, dup := rs.seen[k]; dup {
		return false
	}
	rs.seen[k] = struct{}{}
	rs.hits = append(rs.hits, h)
	return true
}

// Contains reports whether a hit with format and text is present.
func (rs *ResultSet) Contains(format barcode.Format, text string) bool {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	_, ok := rs.seen[hitKey{format: format, text: text}]
	return ok
}

// Hits returns a copy of the hits in discovery order.
func (rs *ResultSet) Hits() []Hit {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	out := make([]Hit, len(rs.hits))
	copy(out, rs.hits)
	return out
}

// Len returns the number of hits.
func (rs *ResultSet) Len() int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return len(rs.hits)
}

// Regions returns the region of every hit in discovery order.
func (rs *ResultSet) Regions() []Region {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	out := make([]Region, len(rs.hits))
	for i, h := range rs.hits {
		out[i] = h.Region
	}
	return out
}

// Clear removes all hits.
func (rs *ResultSet) Clear() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.hits = nil
	rs.seen = make(map[hitKey]struct{})
}

// Aggregator owns the result set of the active image and the location
// markers recorded for every image of a session. Callers read it; only the
// Searcher writes to it.
type Aggregator struct {
	mu        sync.RWMutex
	active    string
	current   *ResultSet
	locations map[string][]Region
	order     []string
}

// NewAggregator returns an aggregator with no active image.
func NewAggregator() *Aggregator {
	return &Aggregator{
		current:   NewResultSet(),
		locations: make(map[string][]Region),
	}
}

// Reset clears the current hits and the location markers of imageID and
// makes imageID the active image.
func (a *Aggregator) Reset(imageID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.active = imageID
	a.current = NewResultSet()
	if _, ok := a.locations[imageID]; !ok {
		a.order = append(a.order, imageID)
	}
	a.locations[imageID] = nil
}

// add records h for the active image if it is not a duplicate.
func (a *Aggregator) add(h Hit) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.current.Add(h) {
		return false
	}
	a.locations[a.active] = append(a.locations[a.active], h.Region)
	return true
}

// Active returns the identifier of the image being searched or last searched.
func (a *Aggregator) Active() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.active
}

// Hits returns a copy of the active image's hits in discovery order.
func (a *Aggregator) Hits() []Hit {
	a.mu.RLock()
	rs := a.current
	a.mu.RUnlock()
	return rs.Hits()
}

// Len returns the number of hits for the active image.
func (a *Aggregator) Len() int {
	a.mu.RLock()
	rs := a.current
	a.mu.RUnlock()
	return rs.Len()
}

// LocationsOf returns the regions recorded for imageID, for rendering.
func (a *Aggregator) LocationsOf(imageID string) []Region {
	a.mu.RLock()
	defer a.mu.RUnlock()
	locs := a.locations[imageID]
	out := make([]Region, len(locs))
	copy(out, locs)
	return out
}

// Images returns every image identifier seen by Reset, in first-seen order.
func (a *Aggregator) Images() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, len(a.order))
	copy(out, a.order)
	return out
}
