package wire

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/dharmasatrya/flightpoll/internal/models"
)

const dateLayout = "2006-01-02"

type sessionRequest struct {
	Legs        []sessionLeg `json:"legs"`
	CabinClass  string       `json:"cabin_class"`
	Adults      int          `json:"adults"`
	Children    int          `json:"children"`
	Infants     int          `json:"infants"`
	CountryCode string       `json:"country_code,omitempty"`
	Currency    string       `json:"currency,omitempty"`
	Language    string       `json:"language,omitempty"`
}

type sessionLeg struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	Date        string `json:"date"`
}

type sessionResponse struct {
	SearchID string `json:"search_id"`
	Language string `json:"language"`
	Currency string `json:"currency"`
}

type Locale struct {
	Country  string
	Currency string
	Language string
}

func EncodeSessionRequest(req models.SearchRequest, locale Locale) ([]byte, error) {
	legs := make([]sessionLeg, len(req.Legs))
	for i, l := range req.Legs {
		legs[i] = sessionLeg{
			Origin:      l.Origin,
			Destination: l.Destination,
			Date:        l.Date.Format(dateLayout),
		}
	}
	return json.Marshal(sessionRequest{
		Legs:        legs,
		CabinClass:  string(req.Cabin),
		Adults:      req.Adults,
		Children:    req.Children,
		Infants:     req.Infants,
		CountryCode: locale.Country,
		Currency:    locale.Currency,
		Language:    locale.Language,
	})
}

// SessionInfo is what the session endpoint hands back.
type SessionInfo struct {
	SearchID string
	Language string
	Currency string
}

func DecodeSessionResponse(body []byte) (SessionInfo, error) {
	var resp sessionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return SessionInfo{}, &models.DecodeError{Err: err}
	}
	if strings.TrimSpace(resp.SearchID) == "" {
		return SessionInfo{}, &models.DecodeError{Err: errors.New("missing search_id")}
	}
	return SessionInfo{
		SearchID: resp.SearchID,
		Language: resp.Language,
		Currency: resp.Currency,
	}, nil
}
