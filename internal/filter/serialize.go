package filter

import (
	"fmt"
	"strings"

	"github.com/dharmasatrya/flightpoll/internal/models"
)

const (
	KeyMaxDuration     = "max_duration"
	KeyStopCountMin    = "stop_count_min"
	KeyStopCountMax    = "stop_count_max"
	KeyTimeWindows     = "time_windows"
	KeyAirlinesInclude = "airlines_include"
	KeyAirlinesExclude = "airlines_exclude"
	KeyAgenciesInclude = "agencies_include"
	KeyAgenciesExclude = "agencies_exclude"
	KeyPriceMin        = "price_min"
	KeyPriceMax        = "price_max"
	KeySortBy          = "sort_by"
	KeySortOrder       = "sort_order"
)

// Serialize emits only the fields the user actually set. An untouched filter
// yields an empty payload, which the server reads as "no constraint". Sending
// defaults instead would turn an open range into a degenerate one.
func Serialize(f models.PollFilter) models.Payload {
	p := models.Payload{}

	if f.MaxDuration != nil {
		p[KeyMaxDuration] = *f.MaxDuration
	}
	if f.MaxStops != nil {
		p[KeyStopCountMin] = *f.MaxStops
		p[KeyStopCountMax] = *f.MaxStops
	}
	if windows := serializeTimes(f.Times); len(windows) > 0 {
		p[KeyTimeWindows] = windows
	}
	if codes := normalizeCodes(f.IncludeAirlines); len(codes) > 0 {
		p[KeyAirlinesInclude] = codes
	}
	if codes := normalizeCodes(f.ExcludeAirlines); len(codes) > 0 {
		p[KeyAirlinesExclude] = codes
	}
	if codes := normalizeCodes(f.IncludeAgencies); len(codes) > 0 {
		p[KeyAgenciesInclude] = codes
	}
	if codes := normalizeCodes(f.ExcludeAgencies); len(codes) > 0 {
		p[KeyAgenciesExclude] = codes
	}
	if f.PriceMin != nil {
		p[KeyPriceMin] = *f.PriceMin
	}
	if f.PriceMax != nil {
		p[KeyPriceMax] = *f.PriceMax
	}
	if f.SortBy != nil && *f.SortBy != "" {
		p[KeySortBy] = string(*f.SortBy)
	}
	if f.SortOrder != nil && *f.SortOrder != "" {
		p[KeySortOrder] = string(*f.SortOrder)
	}

	return p
}

func serializeTimes(times []models.LegTimes) []map[string]any {
	var out []map[string]any
	for i, lt := range times {
		entry := map[string]any{}
		addWindow(entry, "departure", lt.Departure)
		addWindow(entry, "arrival", lt.Arrival)
		if len(entry) == 0 {
			continue
		}
		entry["leg"] = i
		out = append(out, entry)
	}
	return out
}

// addWindow writes the bounds of w that narrow the day. A bound sitting at
// the edge of the day constrains nothing and is left out.
func addWindow(entry map[string]any, prefix string, w *models.TimeWindow) {
	if w == nil {
		return
	}
	if w.From != nil && *w.From > 0 {
		entry[prefix+"_from"] = clockString(*w.From)
	}
	if w.To != nil && *w.To < models.MinutesPerDay {
		entry[prefix+"_to"] = clockString(*w.To)
	}
}

func clockString(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	if minutes >= models.MinutesPerDay {
		minutes = models.MinutesPerDay - 1
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func normalizeCodes(codes []string) []string {
	if len(codes) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
