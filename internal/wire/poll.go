package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dharmasatrya/flightpoll/internal/models"
	"github.com/dharmasatrya/flightpoll/internal/timezone"
)

type pollResponse struct {
	Count   int          `json:"count"`
	Next    *string      `json:"next"`
	Cache   bool         `json:"cache"`
	Facets  pollFacets   `json:"facets"`
	Results []pollResult `json:"results"`
}

type pollFacets struct {
	Airlines    []pollNamed `json:"airlines"`
	Agencies    []pollNamed `json:"agencies"`
	MinDuration int         `json:"min_duration"`
	MaxDuration int         `json:"max_duration"`
	MinPrice    float64     `json:"min_price"`
	MaxPrice    float64     `json:"max_price"`
}

type pollNamed struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type pollResult struct {
	ID        string         `json:"id"`
	Duration  int            `json:"duration"`
	MinPrice  float64        `json:"min_price"`
	MaxPrice  float64        `json:"max_price"`
	Currency  string         `json:"currency"`
	Legs      []pollLeg      `json:"legs"`
	Providers []pollProvider `json:"providers"`
}

type pollLeg struct {
	Origin      string        `json:"origin"`
	Destination string        `json:"destination"`
	Departure   string        `json:"departure"`
	Arrival     string        `json:"arrival"`
	DepartureTZ string        `json:"departure_tz"`
	ArrivalTZ   string        `json:"arrival_tz"`
	Stops       *int          `json:"stops"`
	Segments    []pollSegment `json:"segments"`
}

type pollSegment struct {
	Carrier      string `json:"carrier"`
	FlightNumber string `json:"flight_number"`
	Origin       string `json:"origin"`
	Destination  string `json:"destination"`
	Departure    string `json:"departure"`
	Arrival      string `json:"arrival"`
	Duration     int    `json:"duration"`
}

type pollProvider struct {
	Agency   string     `json:"agency"`
	Price    float64    `json:"price"`
	Currency string     `json:"currency"`
	DeepLink string     `json:"deep_link"`
	Split    []pollFare `json:"split"`
}

type pollFare struct {
	Agency   string  `json:"agency"`
	Price    float64 `json:"price"`
	DeepLink string  `json:"deep_link"`
}

// DecodePollPage parses one poll response. A result that cannot be normalized
// fails the whole page: later cursors assume every earlier result was merged.
func DecodePollPage(body []byte) (*models.PollPage, error) {
	var resp pollResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &models.DecodeError{Err: err}
	}
	if resp.Count < 0 {
		return nil, &models.DecodeError{Err: fmt.Errorf("negative count %d", resp.Count)}
	}

	page := &models.PollPage{
		Count:   resp.Count,
		Cache:   resp.Cache,
		Facets:  normalizeFacets(resp.Facets),
		Results: make([]models.FlightResult, 0, len(resp.Results)),
	}
	if resp.Next != nil && strings.TrimSpace(*resp.Next) != "" {
		next := strings.TrimSpace(*resp.Next)
		page.Next = &next
	}

	for i, r := range resp.Results {
		result, err := normalizeResult(r)
		if err != nil {
			return nil, &models.DecodeError{Err: fmt.Errorf("result %d: %w", i, err)}
		}
		page.Results = append(page.Results, result)
	}

	return page, nil
}

func normalizeFacets(f pollFacets) models.Facets {
	out := models.Facets{
		MinDuration: f.MinDuration,
		MaxDuration: f.MaxDuration,
		MinPrice:    f.MinPrice,
		MaxPrice:    f.MaxPrice,
	}
	for _, a := range f.Airlines {
		out.Airlines = append(out.Airlines, models.Airline{Code: a.Code, Name: a.Name})
	}
	for _, a := range f.Agencies {
		out.Agencies = append(out.Agencies, models.Agency{Code: a.Code, Name: a.Name})
	}
	return out
}

func normalizeResult(r pollResult) (models.FlightResult, error) {
	if strings.TrimSpace(r.ID) == "" {
		return models.FlightResult{}, errors.New("missing id")
	}
	if len(r.Legs) == 0 {
		return models.FlightResult{}, errors.New("no legs")
	}

	legs := make([]models.FlightLeg, len(r.Legs))
	for i, l := range r.Legs {
		leg, err := normalizeLeg(l)
		if err != nil {
			return models.FlightResult{}, fmt.Errorf("leg %d: %w", i, err)
		}
		legs[i] = leg
	}

	providers := make([]models.BookingProvider, len(r.Providers))
	for i, p := range r.Providers {
		split := make([]models.Fare, len(p.Split))
		for j, s := range p.Split {
			split[j] = models.Fare{Agency: s.Agency, Price: s.Price, DeepLink: s.DeepLink}
		}
		currency := p.Currency
		if currency == "" {
			currency = r.Currency
		}
		providers[i] = models.BookingProvider{
			Agency:   p.Agency,
			Price:    p.Price,
			Currency: currency,
			DeepLink: p.DeepLink,
			Split:    split,
		}
	}

	result := models.FlightResult{
		ID:        r.ID,
		Duration:  r.Duration,
		MinPrice:  r.MinPrice,
		MaxPrice:  r.MaxPrice,
		Currency:  r.Currency,
		Legs:      legs,
		Providers: providers,
	}

	if result.Duration == 0 {
		for _, l := range legs {
			result.Duration += int(l.Arrival.Sub(l.Departure) / time.Minute)
		}
	}
	if result.MinPrice == 0 && result.MaxPrice == 0 && len(providers) > 0 {
		result.MinPrice, result.MaxPrice = providers[0].Price, providers[0].Price
		for _, p := range providers[1:] {
			if p.Price < result.MinPrice {
				result.MinPrice = p.Price
			}
			if p.Price > result.MaxPrice {
				result.MaxPrice = p.Price
			}
		}
	}
	if result.Currency == "" && len(providers) > 0 {
		result.Currency = providers[0].Currency
	}

	return result, nil
}

func normalizeLeg(l pollLeg) (models.FlightLeg, error) {
	dep, err := timezone.ParseTimestamp(l.Departure, l.DepartureTZ)
	if err != nil {
		return models.FlightLeg{}, fmt.Errorf("departure: %w", err)
	}
	arr, err := timezone.ParseTimestamp(l.Arrival, l.ArrivalTZ)
	if err != nil {
		return models.FlightLeg{}, fmt.Errorf("arrival: %w", err)
	}

	segments := make([]models.Segment, len(l.Segments))
	for i, s := range l.Segments {
		sdep, err := timezone.ParseTimestamp(s.Departure, l.DepartureTZ)
		if err != nil {
			return models.FlightLeg{}, fmt.Errorf("segment %d departure: %w", i, err)
		}
		sarr, err := timezone.ParseTimestamp(s.Arrival, l.ArrivalTZ)
		if err != nil {
			return models.FlightLeg{}, fmt.Errorf("segment %d arrival: %w", i, err)
		}
		duration := s.Duration
		if duration == 0 {
			duration = int(sarr.Sub(sdep) / time.Minute)
		}
		segments[i] = models.Segment{
			Carrier:      s.Carrier,
			FlightNumber: s.FlightNumber,
			Origin:       s.Origin,
			Destination:  s.Destination,
			Departure:    sdep,
			Arrival:      sarr,
			Duration:     duration,
		}
	}

	stops := 0
	if l.Stops != nil {
		stops = *l.Stops
	} else if len(segments) > 1 {
		stops = len(segments) - 1
	}

	return models.FlightLeg{
		Origin:      l.Origin,
		Destination: l.Destination,
		Departure:   dep,
		Arrival:     arr,
		Stops:       stops,
		Segments:    segments,
	}, nil
}

// EncodeFilter marshals a filter payload. An empty payload produces no body at
// all so the server sees no constraint.
func EncodeFilter(payload models.Payload) ([]byte, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	return json.Marshal(payload)
}
