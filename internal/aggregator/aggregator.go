package aggregator

import (
	"sync"

	"github.com/dharmasatrya/flightpoll/internal/filter"
	"github.com/dharmasatrya/flightpoll/internal/models"
)

// Aggregator accumulates the results of one filter epoch. Writers are expected
// to be serialized by the owner; readers may call from any goroutine.
type Aggregator struct {
	mu      sync.RWMutex
	results []models.FlightResult
	index   map[string]struct{}
	facets  models.Facets
	total   int

	subMu       sync.Mutex
	subscribers map[int]chan struct{}
	nextSub     int
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		index:       make(map[string]struct{}),
		subscribers: make(map[int]chan struct{}),
	}
}

// Merge appends results whose id has not been seen in this epoch and returns
// how many were added. Count and facets are taken from the page as is.
func (a *Aggregator) Merge(page *models.PollPage) int {
	if page == nil {
		return 0
	}

	a.mu.Lock()
	added := 0
	for _, r := range page.Results {
		if _, seen := a.index[r.ID]; seen {
			continue
		}
		a.index[r.ID] = struct{}{}
		a.results = append(a.results, r)
		added++
	}
	a.facets = page.Facets.Clone()
	a.total = page.Count
	a.mu.Unlock()

	a.notify()
	return added
}

func (a *Aggregator) Reset() {
	a.mu.Lock()
	a.results = nil
	a.index = make(map[string]struct{})
	a.facets = models.Facets{}
	a.total = 0
	a.mu.Unlock()

	a.notify()
}

// Restore replaces the accumulated state with a previously converged set.
func (a *Aggregator) Restore(set models.ResultSet) {
	a.mu.Lock()
	a.results = make([]models.FlightResult, 0, len(set.Results))
	a.index = make(map[string]struct{}, len(set.Results))
	for _, r := range set.Results {
		if _, seen := a.index[r.ID]; seen {
			continue
		}
		a.index[r.ID] = struct{}{}
		a.results = append(a.results, r)
	}
	a.facets = set.Facets.Clone()
	a.total = set.Count
	a.mu.Unlock()

	a.notify()
}

func (a *Aggregator) Results() []models.FlightResult {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]models.FlightResult, len(a.results))
	copy(out, a.results)
	return out
}

// Count is the number of distinct results accumulated so far.
func (a *Aggregator) Count() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.results)
}

// Total is the server-reported size of the full result set.
func (a *Aggregator) Total() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.total
}

func (a *Aggregator) Facets() models.Facets {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.facets.Clone()
}

func (a *Aggregator) Snapshot() models.ResultSet {
	a.mu.RLock()
	defer a.mu.RUnlock()
	results := make([]models.FlightResult, len(a.results))
	copy(results, a.results)
	return models.ResultSet{
		Count:   a.total,
		Facets:  a.facets.Clone(),
		Results: results,
	}
}

// Sorted returns a locally sorted copy of the results.
func (a *Aggregator) Sorted(sortBy models.SortKey, order models.SortOrder) []models.FlightResult {
	return filter.Sort(a.Results(), sortBy, order)
}

// Subscribe returns a channel that receives a signal after every change.
// Signals coalesce: a slow reader sees one pending signal, not one per change.
func (a *Aggregator) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	a.subMu.Lock()
	id := a.nextSub
	a.nextSub++
	a.subscribers[id] = ch
	a.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			a.subMu.Lock()
			delete(a.subscribers, id)
			a.subMu.Unlock()
		})
	}
}

func (a *Aggregator) notify() {
	a.subMu.Lock()
	defer a.subMu.Unlock()
	for _, ch := range a.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
