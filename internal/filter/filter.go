package filter

import (
	"sync"

	"github.com/dharmasatrya/flightpoll/internal/models"
)

// Store holds the active PollFilter and whether it changed since the
// controller last started an epoch.
type Store struct {
	mu     sync.RWMutex
	filter models.PollFilter
	dirty  bool
}

func NewStore() *Store {
	return &Store{}
}

// Apply replaces the filter wholesale. Fields absent from f are cleared, not
// carried over.
func (s *Store) Apply(f models.PollFilter) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.filter = Clone(f)
	s.dirty = true
}

// ConsumeDirty returns the current filter and clears the dirty flag. The bool
// reports whether the flag was set.
func (s *Store) ConsumeDirty() (models.PollFilter, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	was := s.dirty
	s.dirty = false
	return Clone(s.filter), was
}

func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

func (s *Store) Current() models.PollFilter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Clone(s.filter)
}

func (s *Store) Serialize() models.Payload {
	return Serialize(s.Current())
}

func Clone(f models.PollFilter) models.PollFilter {
	out := models.PollFilter{
		MaxDuration:     cloneInt(f.MaxDuration),
		MaxStops:        cloneInt(f.MaxStops),
		IncludeAirlines: cloneStrings(f.IncludeAirlines),
		ExcludeAirlines: cloneStrings(f.ExcludeAirlines),
		IncludeAgencies: cloneStrings(f.IncludeAgencies),
		ExcludeAgencies: cloneStrings(f.ExcludeAgencies),
		PriceMin:        cloneFloat(f.PriceMin),
		PriceMax:        cloneFloat(f.PriceMax),
	}
	if f.SortBy != nil {
		v := *f.SortBy
		out.SortBy = &v
	}
	if f.SortOrder != nil {
		v := *f.SortOrder
		out.SortOrder = &v
	}
	if f.Times != nil {
		out.Times = make([]models.LegTimes, len(f.Times))
		for i, lt := range f.Times {
			out.Times[i] = models.LegTimes{
				Departure: cloneWindow(lt.Departure),
				Arrival:   cloneWindow(lt.Arrival),
			}
		}
	}
	return out
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

func cloneWindow(w *models.TimeWindow) *models.TimeWindow {
	if w == nil {
		return nil
	}
	return &models.TimeWindow{From: cloneInt(w.From), To: cloneInt(w.To)}
}
