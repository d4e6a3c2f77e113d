package us

import (
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
)

// CalendarSource is the part of the Alpaca trading client used to find
// trading days.
type CalendarSource interface {
	GetCalendar(req alpaca.GetCalendarRequest) ([]alpaca.CalendarDay, error)
}

// NewCalendarClient returns an Alpaca trading client for calendar lookups.
func NewCalendarClient(apiKey, apiSecret, baseURL string) *alpaca.Client {
	return alpaca.NewClient(alpaca.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
		BaseURL:   baseURL,
	})
}

// LatestFinishedTradingDay returns the most recent trading day whose daily
// bar is final: today counts only after 20:05 ET, once extended hours have
// settled.
func LatestFinishedTradingDay(cal CalendarSource, now time.Time) (time.Time, error) {
	et, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.Time{}, fmt.Errorf("loading ET timezone: %w", err)
	}
	now = now.In(et)

	days, err := cal.GetCalendar(alpaca.GetCalendarRequest{
		Start: now.AddDate(0, 0, -7),
		End:   now,
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("GetCalendar: %w", err)
	}
	if len(days) == 0 {
		return time.Time{}, fmt.Errorf("no trading days returned from calendar")
	}

	today := now.Format("2006-01-02")
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), 20, 5, 0, 0, et)

	for i := len(days) - 1; i >= 0; i-- {
		day, err := time.Parse("2006-01-02", days[i].Date)
		if err != nil {
			continue
		}
		if days[i].Date == today {
			if now.After(cutoff) {
				return day, nil
			}
			continue
		}
		if day.Format("2006-01-02") < today {
			return day, nil
		}
	}
	return time.Time{}, fmt.Errorf("could not determine latest finished trading day")
}
