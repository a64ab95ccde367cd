package models

import "time"

type Airline struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type Agency struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type Segment struct {
	Carrier      string    `json:"carrier"`
	FlightNumber string    `json:"flight_number"`
	Origin       string    `json:"origin"`
	Destination  string    `json:"destination"`
	Departure    time.Time `json:"departure"`
	Arrival      time.Time `json:"arrival"`
	Duration     int       `json:"duration_minutes"`
}

type FlightLeg struct {
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	Departure   time.Time `json:"departure"`
	Arrival     time.Time `json:"arrival"`
	Stops       int       `json:"stops"`
	Segments    []Segment `json:"segments"`
}

// Fare is one underlying bookable fare of a split provider offer.
type Fare struct {
	Agency   string  `json:"agency"`
	Price    float64 `json:"price"`
	DeepLink string  `json:"deep_link,omitempty"`
}

type BookingProvider struct {
	Agency   string  `json:"agency"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
	DeepLink string  `json:"deep_link,omitempty"`
	Split    []Fare  `json:"split,omitempty"`
}

func (p BookingProvider) IsSplit() bool {
	return len(p.Split) > 1
}

type FlightResult struct {
	ID             string            `json:"id"`
	Duration       int               `json:"duration_minutes"`
	MinPrice       float64           `json:"min_price"`
	MaxPrice       float64           `json:"max_price"`
	Currency       string            `json:"currency"`
	Legs           []FlightLeg       `json:"legs"`
	Providers      []BookingProvider `json:"providers"`
	BestValueScore float64           `json:"best_value_score,omitempty"`
}

// TotalStops sums stops over every leg.
func (r FlightResult) TotalStops() int {
	n := 0
	for _, l := range r.Legs {
		n += l.Stops
	}
	return n
}

func (r FlightResult) FirstDeparture() time.Time {
	if len(r.Legs) == 0 {
		return time.Time{}
	}
	return r.Legs[0].Departure
}

func (r FlightResult) LastArrival() time.Time {
	if len(r.Legs) == 0 {
		return time.Time{}
	}
	return r.Legs[len(r.Legs)-1].Arrival
}
