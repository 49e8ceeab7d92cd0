package utils

import (
	"fmt"
	"time"

	"swing-trader/internal/models"
)

// IndiaLocation is the timezone for Indian markets.
var IndiaLocation *time.Location

func init() {
	var err error
	IndiaLocation, err = time.LoadLocation("Asia/Kolkata")
	if err != nil {
		// Fallback to UTC+5:30
		IndiaLocation = time.FixedZone("IST", 5*60*60+30*60)
	}
}

// NowIST returns the current time in IST.
func NowIST() time.Time {
	return time.Now().In(IndiaLocation)
}

// DateKey returns the IST calendar date of t as YYYY-MM-DD.
func DateKey(t time.Time) string {
	return t.In(IndiaLocation).Format(time.DateOnly)
}

// SameDay reports whether a and b fall on the same IST calendar date.
func SameDay(a, b time.Time) bool {
	return DateKey(a) == DateKey(b)
}

// Calendar decides whether a date is an NSE trading day. Weekends are always
// closed; holidays come from configuration.
type Calendar struct {
	holidays map[string]struct{}
}

// NewCalendar builds a calendar from YYYY-MM-DD holiday dates.
func NewCalendar(holidays []string) (*Calendar, error) {
	c := &Calendar{holidays: make(map[string]struct{}, len(holidays))}
	for _, h := range holidays {
		d, err := time.ParseInLocation(time.DateOnly, h, IndiaLocation)
		if err != nil {
			return nil, fmt.Errorf("invalid holiday %q: %w", h, err)
		}
		c.holidays[d.Format(time.DateOnly)] = struct{}{}
	}
	return c, nil
}

// IsHoliday reports whether t's IST date is a configured holiday.
func (c *Calendar) IsHoliday(t time.Time) bool {
	if c == nil {
		return false
	}
	_, ok := c.holidays[DateKey(t)]
	return ok
}

// IsTradingDay reports whether t's IST date is a weekday and not a holiday.
func (c *Calendar) IsTradingDay(t time.Time) bool {
	local := t.In(IndiaLocation)
	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return false
	}
	return !c.IsHoliday(local)
}

// NextTradingDay returns the first trading day strictly after t, at midnight IST.
func (c *Calendar) NextTradingDay(t time.Time) time.Time {
	local := t.In(IndiaLocation)
	next := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, IndiaLocation).AddDate(0, 0, 1)
	for !c.IsTradingDay(next) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// MarketStatus returns the market status at t.
func (c *Calendar) MarketStatus(t time.Time) models.MarketStatus {
	now := t.In(IndiaLocation)

	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		return models.MarketClosed
	}
	if c.IsHoliday(now) {
		return models.MarketHoliday
	}

	timeMinutes := now.Hour()*60 + now.Minute()

	// Pre-open: 9:00 - 9:15
	if timeMinutes >= 540 && timeMinutes < 555 {
		return models.MarketPreOpen
	}

	// Market open: 9:15 - 15:30
	if timeMinutes >= 555 && timeMinutes < 930 {
		return models.MarketOpen
	}

	return models.MarketClosed
}
