package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dharmasatrya/flightpoll/internal/builder"
	"github.com/dharmasatrya/flightpoll/internal/controller"
	"github.com/dharmasatrya/flightpoll/internal/filter"
	"github.com/dharmasatrya/flightpoll/internal/models"
	"github.com/dharmasatrya/flightpoll/pkg/currency"
)

const dateLayout = "2006-01-02"

type SearchHandler struct {
	registry *Registry
	now      func() time.Time
}

func NewSearchHandler(registry *Registry) *SearchHandler {
	return &SearchHandler{
		registry: registry,
		now:      time.Now,
	}
}

// Register mounts the search routes on g.
func (h *SearchHandler) Register(g *echo.Group) {
	g.POST("/searches", h.Create)
	g.GET("/searches/:handle", h.Get)
	g.PUT("/searches/:handle/filter", h.UpdateFilter)
	g.POST("/searches/:handle/retry", h.Retry)
	g.DELETE("/searches/:handle", h.Delete)
}

type legRequest struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	Date        string `json:"date"`
}

type searchRequest struct {
	Legs []legRequest `json:"legs"`
	// ReturnDate turns a single leg into a round trip.
	ReturnDate string             `json:"return_date,omitempty"`
	CabinClass string             `json:"cabin_class"`
	Adults     int                `json:"adults"`
	Children   int                `json:"children"`
	Infants    int                `json:"infants"`
	Filter     *models.PollFilter `json:"filter,omitempty"`
}

type searchState struct {
	Handle    string `json:"handle"`
	State     string `json:"state"`
	Epoch     uint64 `json:"epoch"`
	SearchID  string `json:"search_id,omitempty"`
	Converged bool   `json:"converged"`
	FromCache bool   `json:"from_cache"`
	Error     string `json:"error,omitempty"`
}

type facetsView struct {
	models.Facets
	PriceRange string `json:"price_range,omitempty"`
}

type searchView struct {
	searchState
	Count   int                   `json:"count"`
	Total   int                   `json:"total"`
	Filter  models.PollFilter     `json:"filter"`
	Facets  facetsView            `json:"facets"`
	Results []models.FlightResult `json:"results"`
}

func (h *SearchHandler) Create(c echo.Context) error {
	var body searchRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Failed to parse request body: " + err.Error(),
			Code:    http.StatusBadRequest,
		})
	}

	req, err := h.buildRequest(body)
	if err != nil {
		return validationError(c, err)
	}
	if body.Filter != nil {
		if err := validateFilter(*body.Filter); err != nil {
			return validationError(c, err)
		}
	}

	handle, ctrl, err := h.registry.Create(req, body.Filter)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "search_error",
			Message: "Failed to start search: " + err.Error(),
			Code:    http.StatusInternalServerError,
		})
	}

	return c.JSON(http.StatusAccepted, stateOf(handle, ctrl.Status()))
}

func (h *SearchHandler) Get(c echo.Context) error {
	handle := c.Param("handle")
	ctrl, ok := h.registry.Get(handle)
	if !ok {
		return notFound(c, handle)
	}

	sortBy := models.SortKey(strings.ToLower(c.QueryParam("sort")))
	order := models.SortOrder(strings.ToLower(c.QueryParam("order")))
	if sortBy != "" && !sortBy.Valid() {
		return validationError(c, models.NewValidationError("unknown sort key %q", sortBy))
	}
	if order != "" && !order.Valid() {
		return validationError(c, models.NewValidationError("unknown sort order %q", order))
	}

	view := ctrl.View()
	status, set := view.Status, view.Results
	results := set.Results
	if sortBy != "" {
		results = filter.Sort(results, sortBy, order)
	}

	code := status.Currency
	if code == "" && len(results) > 0 {
		code = results[0].Currency
	}
	facets := facetsView{Facets: set.Facets}
	if set.Facets.MaxPrice > 0 {
		facets.PriceRange = currency.FormatRange(set.Facets.MinPrice, set.Facets.MaxPrice, code)
	}

	return c.JSON(http.StatusOK, searchView{
		searchState: stateOf(handle, status),
		Count:       len(results),
		Total:       set.Count,
		Filter:      view.Filter,
		Facets:      facets,
		Results:     results,
	})
}

func (h *SearchHandler) UpdateFilter(c echo.Context) error {
	handle := c.Param("handle")
	ctrl, ok := h.registry.Get(handle)
	if !ok {
		return notFound(c, handle)
	}

	var f models.PollFilter
	if err := c.Bind(&f); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Failed to parse filter: " + err.Error(),
			Code:    http.StatusBadRequest,
		})
	}
	if err := validateFilter(f); err != nil {
		return validationError(c, err)
	}

	if err := ctrl.Submit(f); err != nil {
		return controllerError(c, err)
	}
	return c.JSON(http.StatusAccepted, stateOf(handle, ctrl.Status()))
}

func (h *SearchHandler) Retry(c echo.Context) error {
	handle := c.Param("handle")
	ctrl, ok := h.registry.Get(handle)
	if !ok {
		return notFound(c, handle)
	}

	if err := ctrl.Retry(); err != nil {
		return controllerError(c, err)
	}
	return c.JSON(http.StatusAccepted, stateOf(handle, ctrl.Status()))
}

func (h *SearchHandler) Delete(c echo.Context) error {
	handle := c.Param("handle")
	if !h.registry.Remove(handle) {
		return notFound(c, handle)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *SearchHandler) buildRequest(body searchRequest) (models.SearchRequest, error) {
	legs := make([]builder.LegInput, 0, len(body.Legs)+1)
	for i, l := range body.Legs {
		date, err := time.Parse(dateLayout, l.Date)
		if err != nil {
			return models.SearchRequest{}, models.NewValidationError("leg %d: date must be YYYY-MM-DD", i+1)
		}
		legs = append(legs, builder.LegInput{Origin: l.Origin, Destination: l.Destination, Date: date})
	}

	if body.ReturnDate != "" {
		if len(legs) != 1 {
			return models.SearchRequest{}, models.NewValidationError("return_date needs exactly one outbound leg")
		}
		back, err := time.Parse(dateLayout, body.ReturnDate)
		if err != nil {
			return models.SearchRequest{}, models.NewValidationError("return_date must be YYYY-MM-DD")
		}
		legs = builder.RoundTrip(legs[0].Origin, legs[0].Destination, legs[0].Date, back)
	}

	return builder.Build(builder.Input{
		Legs:     legs,
		Cabin:    body.CabinClass,
		Adults:   body.Adults,
		Children: body.Children,
		Infants:  body.Infants,
	}, h.now())
}

func validateFilter(f models.PollFilter) error {
	if f.SortBy != nil && !f.SortBy.Valid() {
		return models.NewValidationError("unknown sort key %q", *f.SortBy)
	}
	if f.SortOrder != nil && !f.SortOrder.Valid() {
		return models.NewValidationError("unknown sort order %q", *f.SortOrder)
	}
	if f.MaxStops != nil && *f.MaxStops < 0 {
		return models.NewValidationError("max_stops must not be negative")
	}
	if f.MaxDuration != nil && *f.MaxDuration <= 0 {
		return models.NewValidationError("max_duration must be positive")
	}
	if f.PriceMin != nil && f.PriceMax != nil && *f.PriceMin > *f.PriceMax {
		return models.NewValidationError("price_min must not exceed price_max")
	}
	for i, lt := range f.Times {
		for _, w := range []*models.TimeWindow{lt.Departure, lt.Arrival} {
			if w == nil {
				continue
			}
			if !inDay(w.From) || !inDay(w.To) {
				return models.NewValidationError("leg %d: time bounds must be within 0-%d minutes", i+1, models.MinutesPerDay)
			}
			if w.From != nil && w.To != nil && *w.From > *w.To {
				return models.NewValidationError("leg %d: time window ends before it starts", i+1)
			}
		}
	}
	return nil
}

func inDay(v *int) bool {
	return v == nil || (*v >= 0 && *v <= models.MinutesPerDay)
}

func stateOf(handle string, st controller.Status) searchState {
	s := searchState{
		Handle:    handle,
		State:     st.State.String(),
		Epoch:     st.Epoch,
		SearchID:  st.SearchID,
		Converged: st.Converged,
		FromCache: st.FromCache,
	}
	if st.Err != nil {
		s.Error = st.Err.Error()
	}
	return s
}

func validationError(c echo.Context, err error) error {
	return c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   "validation_error",
		Message: err.Error(),
		Code:    http.StatusBadRequest,
	})
}

func notFound(c echo.Context, handle string) error {
	return c.JSON(http.StatusNotFound, models.ErrorResponse{
		Error:   "not_found",
		Message: "no search with handle " + handle,
		Code:    http.StatusNotFound,
	})
}

func controllerError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, controller.ErrClosed):
		return c.JSON(http.StatusGone, models.ErrorResponse{
			Error:   "search_closed",
			Message: err.Error(),
			Code:    http.StatusGone,
		})
	case errors.Is(err, controller.ErrNotFailed):
		return c.JSON(http.StatusConflict, models.ErrorResponse{
			Error:   "not_failed",
			Message: err.Error(),
			Code:    http.StatusConflict,
		})
	default:
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "search_error",
			Message: err.Error(),
			Code:    http.StatusInternalServerError,
		})
	}
}

func HealthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}
