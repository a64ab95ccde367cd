package builder

import (
	"strings"
	"time"

	"github.com/dharmasatrya/flightpoll/internal/models"
)

const MaxPassengers = 9

type LegInput struct {
	Origin      string
	Destination string
	Date        time.Time
}

// Input mirrors the fields bound to the search form.
type Input struct {
	Legs     []LegInput
	Cabin    string
	Adults   int
	Children int
	Infants  int
}

func RoundTrip(origin, destination string, out, back time.Time) []LegInput {
	return []LegInput{
		{Origin: origin, Destination: destination, Date: out},
		{Origin: destination, Destination: origin, Date: back},
	}
}

// Build validates the form state and produces a normalized request. It does no
// I/O; today is the caller's current date.
func Build(in Input, today time.Time) (models.SearchRequest, error) {
	if len(in.Legs) == 0 {
		return models.SearchRequest{}, models.NewValidationError("at least one leg is required")
	}

	cabin := models.CabinClass(strings.ToLower(strings.TrimSpace(in.Cabin)))
	if cabin == "" {
		cabin = models.CabinEconomy
	}
	if !cabin.Valid() {
		return models.SearchRequest{}, models.NewValidationError("unknown cabin class %q", in.Cabin)
	}

	if in.Adults < 1 {
		return models.SearchRequest{}, models.NewValidationError("at least one adult is required")
	}
	if in.Children < 0 || in.Infants < 0 {
		return models.SearchRequest{}, models.NewValidationError("passenger counts cannot be negative")
	}
	if total := in.Adults + in.Children + in.Infants; total > MaxPassengers {
		return models.SearchRequest{}, models.NewValidationError("at most %d passengers per search, got %d", MaxPassengers, total)
	}
	if in.Infants > in.Adults {
		return models.SearchRequest{}, models.NewValidationError("each infant must travel with an adult")
	}

	todayDate := dateOnly(today)
	legs := make([]models.Leg, 0, len(in.Legs))
	for i, l := range in.Legs {
		origin := normalizeCode(l.Origin)
		destination := normalizeCode(l.Destination)

		if !validCode(origin) {
			return models.SearchRequest{}, models.NewValidationError("leg %d: origin must be a 3-letter code", i+1)
		}
		if !validCode(destination) {
			return models.SearchRequest{}, models.NewValidationError("leg %d: destination must be a 3-letter code", i+1)
		}
		if origin == destination {
			return models.SearchRequest{}, models.NewValidationError("leg %d: origin and destination must differ", i+1)
		}
		if l.Date.IsZero() {
			return models.SearchRequest{}, models.NewValidationError("leg %d: departure date is required", i+1)
		}

		date := dateOnly(l.Date)
		if date.Before(todayDate) {
			return models.SearchRequest{}, models.NewValidationError("leg %d: departure date is in the past", i+1)
		}
		if i > 0 && date.Before(legs[i-1].Date) {
			return models.SearchRequest{}, models.NewValidationError("leg %d: departs before the previous leg", i+1)
		}

		legs = append(legs, models.Leg{
			Origin:      origin,
			Destination: destination,
			Date:        date,
		})
	}

	return models.SearchRequest{
		Legs:     legs,
		Cabin:    cabin,
		Adults:   in.Adults,
		Children: in.Children,
		Infants:  in.Infants,
	}, nil
}

func normalizeCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func validCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}

// dateOnly keeps the calendar date as seen in t's own location.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
