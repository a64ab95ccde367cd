package models

import "time"

type CabinClass string

const (
	CabinEconomy        CabinClass = "economy"
	CabinPremiumEconomy CabinClass = "premium_economy"
	CabinBusiness       CabinClass = "business"
	CabinFirst          CabinClass = "first"
)

func (c CabinClass) Valid() bool {
	switch c {
	case CabinEconomy, CabinPremiumEconomy, CabinBusiness, CabinFirst:
		return true
	}
	return false
}

type Leg struct {
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	Date        time.Time `json:"date"`
}

// SearchRequest is built once per submission and never mutated afterwards.
type SearchRequest struct {
	Legs     []Leg      `json:"legs"`
	Cabin    CabinClass `json:"cabin_class"`
	Adults   int        `json:"adults"`
	Children int        `json:"children"`
	Infants  int        `json:"infants"`
}

func (r SearchRequest) Passengers() int {
	return r.Adults + r.Children + r.Infants
}

// SearchSession identifies one server-side search computation. A filter
// change reuses it; editing the request needs a new one.
type SearchSession struct {
	SearchID  string        `json:"search_id"`
	CreatedAt time.Time     `json:"created_at"`
	Request   SearchRequest `json:"request"`
	Language  string        `json:"language"`
	Currency  string        `json:"currency"`
}
