package ranking

import (
	"math"

	"github.com/dharmasatrya/flightpoll/internal/models"
)

const (
	PriceWeight    = 0.5
	DurationWeight = 0.3
	StopsWeight    = 0.2
)

// CalculateScores returns copies of results with BestValueScore filled in,
// normalized against the most expensive and longest result of the set.
func CalculateScores(results []models.FlightResult) []models.FlightResult {
	if len(results) == 0 {
		return results
	}

	maxPrice := findMaxPrice(results)
	maxDuration := findMaxDuration(results)

	scored := make([]models.FlightResult, len(results))
	for i, r := range results {
		scored[i] = r
		scored[i].BestValueScore = CalculateBestValue(r, maxPrice, maxDuration)
	}

	return scored
}

// Lower score = better value
func CalculateBestValue(r models.FlightResult, maxPrice, maxDuration float64) float64 {
	priceScore := 0.0
	if maxPrice > 0 {
		priceScore = (r.MinPrice / maxPrice) * 100
	}

	durationScore := 0.0
	if maxDuration > 0 {
		durationScore = (float64(r.Duration) / maxDuration) * 100
	}

	stopsScore := float64(r.TotalStops()) * 15
	score := (priceScore * PriceWeight) + (durationScore * DurationWeight) + (stopsScore * StopsWeight)

	return math.Round(score*100) / 100
}

func findMaxPrice(results []models.FlightResult) float64 {
	maxPrice := 0.0
	for _, r := range results {
		if r.MinPrice > maxPrice {
			maxPrice = r.MinPrice
		}
	}
	return maxPrice
}

func findMaxDuration(results []models.FlightResult) float64 {
	maxDuration := 0.0
	for _, r := range results {
		if d := float64(r.Duration); d > maxDuration {
			maxDuration = d
		}
	}
	return maxDuration
}
