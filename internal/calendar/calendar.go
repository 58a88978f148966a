// Package calendar answers trading-day questions for the two markets this
// system knows about: the domestic A-share market (holiday tables plus
// government makeup workdays, supplied as data) and the offshore US market
// (federal holiday set, computed). It also owns the 15:00 unknown-price
// cutoff and T+N confirmation-date derivation.
package calendar

import (
	"errors"
	"fmt"
	"time"
)

// Market selects which trading calendar a query runs against.
type Market int

const (
	Domestic Market = iota // CN A-share
	Offshore               // US (QDII settlement leg)
)

func (m Market) String() string {
	switch m {
	case Domestic:
		return "domestic"
	case Offshore:
		return "offshore"
	default:
		return "unknown"
	}
}

// FundType determines the confirmation schedule of an instrument.
type FundType string

const (
	FundDomestic FundType = "domestic" // T+1, domestic calendar only
	FundQDII     FundType = "qdii"     // T+2, both calendars must be open
)

// ErrCalendarData means the domestic holiday table has no data for the
// requested year. Callers must treat this as fatal for the query; guessing
// "trading day" would silently misdate confirmations.
var ErrCalendarData = errors.New("calendar: no domestic holiday data for year")

// scanLimit bounds next-trading-day searches. The longest real gap (spring
// festival golden week plus surrounding weekends) is under two weeks.
const scanLimit = 60

// DomesticTable holds the data-driven part of the domestic calendar:
// public holidays and the weekend days converted to makeup workdays.
type DomesticTable struct {
	Years    map[int]bool
	Holidays map[Date]bool
	Workdays map[Date]bool
}

// NewDomesticTable indexes holiday and makeup-workday lists. years lists
// every year the table covers, so a year with no listed holidays still
// counts as known data rather than ErrCalendarData.
func NewDomesticTable(years []int, holidays, workdays []Date) DomesticTable {
	t := DomesticTable{
		Years:    map[int]bool{},
		Holidays: map[Date]bool{},
		Workdays: map[Date]bool{},
	}
	for _, y := range years {
		t.Years[y] = true
	}
	for _, d := range holidays {
		t.Holidays[d] = true
		t.Years[d.Year] = true
	}
	for _, d := range workdays {
		t.Workdays[d] = true
		t.Years[d.Year] = true
	}
	return t
}

// Calendar is the trading-calendar oracle. It is pure: no I/O after
// construction, stable answers for the same inputs.
type Calendar struct {
	domestic DomesticTable
	loc      *time.Location
	cutoff   int // minutes after midnight, local time
}

// New builds a calendar. cutoff is "HH:MM" local wall time in loc.
func New(table DomesticTable, loc *time.Location, cutoff string) (*Calendar, error) {
	var hh, mm int
	if _, err := fmt.Sscanf(cutoff, "%d:%d", &hh, &mm); err != nil {
		return nil, fmt.Errorf("invalid cutoff %q: %w", cutoff, err)
	}
	if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return nil, fmt.Errorf("invalid cutoff %q", cutoff)
	}
	return &Calendar{domestic: table, loc: loc, cutoff: hh*60 + mm}, nil
}

// IsTradingDay reports whether d is a trading day on market m.
func (c *Calendar) IsTradingDay(m Market, d Date) (bool, error) {
	switch m {
	case Domestic:
		return c.isDomesticTradingDay(d)
	case Offshore:
		return isOffshoreTradingDay(d), nil
	default:
		return false, fmt.Errorf("unknown market %d", m)
	}
}

func (c *Calendar) isDomesticTradingDay(d Date) (bool, error) {
	if !c.domestic.Years[d.Year] {
		return false, fmt.Errorf("%w: %d", ErrCalendarData, d.Year)
	}
	if c.domestic.Holidays[d] {
		return false, nil
	}
	wd := d.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		// Makeup workdays around golden weeks reopen selected weekends.
		return c.domestic.Workdays[d], nil
	}
	return true, nil
}

// NextTradingDay returns the first date strictly after d that is a trading
// day on market m.
func (c *Calendar) NextTradingDay(m Market, d Date) (Date, error) {
	cur := d
	for i := 0; i < scanLimit; i++ {
		cur = cur.AddDays(1)
		ok, err := c.IsTradingDay(m, cur)
		if err != nil {
			return Date{}, err
		}
		if ok {
			return cur, nil
		}
	}
	return Date{}, fmt.Errorf("no %s trading day within %d days after %s", m, scanLimit, d)
}

// BeforeCutoff reports whether t, viewed in the configured timezone, is
// before the daily order cutoff.
func (c *Calendar) BeforeCutoff(t time.Time) bool {
	local := t.In(c.loc)
	return local.Hour()*60+local.Minute() < c.cutoff
}

// EffectiveTradeDate maps an order submission instant to the date whose
// closing price the order will receive. Before cutoff on a trading day the
// order keeps same-day pricing; past cutoff or on a closed day it rolls to
// the next trading day (the unknown-price rule).
func (c *Calendar) EffectiveTradeDate(submit time.Time, m Market) (Date, error) {
	d := DateOf(submit.In(c.loc))
	if c.BeforeCutoff(submit) {
		ok, err := c.IsTradingDay(m, d)
		if err != nil {
			return Date{}, err
		}
		if ok {
			return d, nil
		}
	}
	return c.NextTradingDay(m, d)
}

// ConfirmSchedule derives the expected NAV date and share confirmation date
// for a trade executed on tradeDate.
//
// Domestic funds price at T and confirm T+1 (next domestic trading day).
// QDII funds price at the next domestic trading day and confirm on the
// first day at least two calendar days after T that is a trading day in
// both calendars; a day closed in either market pushes the confirmation
// forward.
func (c *Calendar) ConfirmSchedule(tradeDate Date, ft FundType) (navDate, confirmDate Date, err error) {
	switch ft {
	case FundQDII:
		navDate, err = c.NextTradingDay(Domestic, tradeDate)
		if err != nil {
			return Date{}, Date{}, err
		}
		confirmDate, err = c.dualTradingDayOnOrAfter(tradeDate.AddDays(2))
		if err != nil {
			return Date{}, Date{}, err
		}
		return navDate, confirmDate, nil
	case FundDomestic:
		fallthrough
	default:
		navDate = tradeDate
		confirmDate, err = c.NextTradingDay(Domestic, tradeDate)
		if err != nil {
			return Date{}, Date{}, err
		}
		return navDate, confirmDate, nil
	}
}

// dualTradingDayOnOrAfter finds the first date on or after d that is open
// in both the domestic and offshore calendars. This is an intersection
// search: the domestic settlement infrastructure and the offshore market
// must both be running for a QDII confirmation to complete, and d itself
// counts when it qualifies.
func (c *Calendar) dualTradingDayOnOrAfter(d Date) (Date, error) {
	for i := 0; i < scanLimit; i++ {
		cur := d.AddDays(i)
		cn, err := c.isDomesticTradingDay(cur)
		if err != nil {
			return Date{}, err
		}
		if cn && isOffshoreTradingDay(cur) {
			return cur, nil
		}
	}
	return Date{}, fmt.Errorf("no dual trading day within %d days of %s", scanLimit, d)
}
