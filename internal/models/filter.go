package models

type SortKey string

const (
	SortBest      SortKey = "best"
	SortPrice     SortKey = "price"
	SortDuration  SortKey = "duration"
	SortDeparture SortKey = "departure"
	SortArrival   SortKey = "arrival"
)

func (k SortKey) Valid() bool {
	switch k {
	case SortBest, SortPrice, SortDuration, SortDeparture, SortArrival:
		return true
	}
	return false
}

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

func (o SortOrder) Valid() bool {
	return o == SortAsc || o == SortDesc
}

const MinutesPerDay = 24 * 60

// TimeWindow bounds a time of day in minutes after midnight. A nil bound is
// open.
type TimeWindow struct {
	From *int `json:"from,omitempty"`
	To   *int `json:"to,omitempty"`
}

type LegTimes struct {
	Departure *TimeWindow `json:"departure,omitempty"`
	Arrival   *TimeWindow `json:"arrival,omitempty"`
}

// PollFilter holds the user's refinements. Every field is optional: nil means
// the user never touched it and the server applies no constraint.
type PollFilter struct {
	MaxDuration *int `json:"max_duration,omitempty"`
	// MaxStops pins the stop count. The backend filters on an exact count, so
	// it travels as equal min and max bounds.
	MaxStops        *int       `json:"max_stops,omitempty"`
	Times           []LegTimes `json:"times,omitempty"`
	IncludeAirlines []string   `json:"include_airlines,omitempty"`
	ExcludeAirlines []string   `json:"exclude_airlines,omitempty"`
	IncludeAgencies []string   `json:"include_agencies,omitempty"`
	ExcludeAgencies []string   `json:"exclude_agencies,omitempty"`
	PriceMin        *float64   `json:"price_min,omitempty"`
	PriceMax        *float64   `json:"price_max,omitempty"`
	SortBy          *SortKey   `json:"sort_by,omitempty"`
	SortOrder       *SortOrder `json:"sort_order,omitempty"`
}

// Payload is the sparse wire form of a PollFilter.
type Payload map[string]any
