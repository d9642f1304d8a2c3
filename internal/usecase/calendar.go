package usecase

import (
	"os"
	"strings"
	"time"
)

// TradingCalendar knows when trading sessions close. Failed retryable
// orders expire at the next session close after their first failure;
// weekend and holiday gaps push the boundary to the following trading
// day's close.
type TradingCalendar struct {
	CloseHour   int
	CloseMinute int
	Location    *time.Location
	Holidays    map[string]bool // "2006-01-02" dates
}

// NewTradingCalendar returns a weekday calendar closing at 16:00 UTC.
func NewTradingCalendar() *TradingCalendar {
	return &TradingCalendar{
		CloseHour: 16,
		Location:  time.UTC,
		Holidays:  make(map[string]bool),
	}
}

// TradingCalendarFromEnv reads TRADING_HOLIDAYS, a comma-separated
// list of YYYY-MM-DD dates.
func TradingCalendarFromEnv() *TradingCalendar {
	c := NewTradingCalendar()
	for _, d := range strings.Split(os.Getenv("TRADING_HOLIDAYS"), ",") {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", d); err == nil {
			c.Holidays[d] = true
		}
	}
	return c
}

// IsTradingDay reports whether t falls on a weekday that is not a
// configured holiday.
func (c *TradingCalendar) IsTradingDay(t time.Time) bool {
	t = t.In(c.Location)
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !c.Holidays[t.Format("2006-01-02")]
}

// sessionCloseOn returns the close instant of t's calendar date.
func (c *TradingCalendar) sessionCloseOn(t time.Time) time.Time {
	t = t.In(c.Location)
	return time.Date(t.Year(), t.Month(), t.Day(), c.CloseHour, c.CloseMinute, 0, 0, c.Location)
}

// NextSessionClose returns the first session close at or after t.
// On a trading day before the close that is the same day's close;
// otherwise the next trading day's close.
func (c *TradingCalendar) NextSessionClose(t time.Time) time.Time {
	t = t.In(c.Location)
	if c.IsTradingDay(t) {
		if closeAt := c.sessionCloseOn(t); t.Before(closeAt) {
			return closeAt
		}
	}

	day := t.AddDate(0, 0, 1)
	for !c.IsTradingDay(day) {
		day = day.AddDate(0, 0, 1)
	}
	return c.sessionCloseOn(day)
}
