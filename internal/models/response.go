package models

// Facets are computed by the server over the full eventual result set of the
// current filter, not over the page they arrive with.
type Facets struct {
	Airlines    []Airline `json:"airlines"`
	Agencies    []Agency  `json:"agencies"`
	MinDuration int       `json:"min_duration"`
	MaxDuration int       `json:"max_duration"`
	MinPrice    float64   `json:"min_price"`
	MaxPrice    float64   `json:"max_price"`
}

func (f Facets) Clone() Facets {
	out := f
	out.Airlines = append([]Airline(nil), f.Airlines...)
	out.Agencies = append([]Agency(nil), f.Agencies...)
	return out
}

type PollPage struct {
	Count   int            `json:"count"`
	Next    *string        `json:"next"`
	Cache   bool           `json:"cache"`
	Facets  Facets         `json:"facets"`
	Results []FlightResult `json:"results"`
}

// ResultSet is a point-in-time copy of accumulated results.
type ResultSet struct {
	Count   int            `json:"count"`
	Facets  Facets         `json:"facets"`
	Results []FlightResult `json:"results"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
