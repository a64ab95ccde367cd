package filter

import (
	"sort"

	"github.com/dharmasatrya/flightpoll/internal/models"
	"github.com/dharmasatrya/flightpoll/internal/ranking"
)

// Sort returns a sorted copy of results. It is a view only; the server's
// ranking of the accumulated set is left untouched.
func Sort(results []models.FlightResult, sortBy models.SortKey, order models.SortOrder) []models.FlightResult {
	sorted := make([]models.FlightResult, len(results))
	copy(sorted, results)
	if len(sorted) == 0 {
		return sorted
	}

	ascending := order != models.SortDesc

	switch sortBy {
	case models.SortPrice:
		sort.SliceStable(sorted, func(i, j int) bool {
			if ascending {
				return sorted[i].MinPrice < sorted[j].MinPrice
			}
			return sorted[i].MinPrice > sorted[j].MinPrice
		})

	case models.SortDuration:
		sort.SliceStable(sorted, func(i, j int) bool {
			if ascending {
				return sorted[i].Duration < sorted[j].Duration
			}
			return sorted[i].Duration > sorted[j].Duration
		})

	case models.SortDeparture:
		sort.SliceStable(sorted, func(i, j int) bool {
			if ascending {
				return sorted[i].FirstDeparture().Before(sorted[j].FirstDeparture())
			}
			return sorted[i].FirstDeparture().After(sorted[j].FirstDeparture())
		})

	case models.SortArrival:
		sort.SliceStable(sorted, func(i, j int) bool {
			if ascending {
				return sorted[i].LastArrival().Before(sorted[j].LastArrival())
			}
			return sorted[i].LastArrival().After(sorted[j].LastArrival())
		})

	case models.SortBest:
		sorted = ranking.CalculateScores(sorted)
		sort.SliceStable(sorted, func(i, j int) bool {
			if ascending {
				return sorted[i].BestValueScore < sorted[j].BestValueScore
			}
			return sorted[i].BestValueScore > sorted[j].BestValueScore
		})

	default:
		// Unknown keys keep server order
	}

	return sorted
}
