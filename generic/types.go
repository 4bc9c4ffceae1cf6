/*
Package generic provides the domain-agnostic value layer of the ledger.

PURPOSE:
  Holds the small set of types every other package speaks: exact hour
  quantities, calendar dates, times of day, the generated/used balance and
  the error kinds. Nothing in here knows what a work session is.

KEY CONCEPTS IN THIS FILE (types.go):
  - Hours: A non-float quantity of hours backed by decimal.Decimal

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal so 0.1 + 0.2 is 0.3
  2. Seconds first: durations are summed as integer seconds and converted
     to Hours once, so thirds of an hour add up to whole hours
  3. Immutability: every operation returns a new value

USAGE:
  h := generic.HoursFromSeconds(5400) // 1.5h
  left := h.Sub(generic.NewHours(2)).ClampZero()

SEE ALSO:
  - time.go: Date and ClockTime
  - balance.go: Generated vs. used balance
  - errors.go: Error kinds shared by store, service and API
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// HOURS - Exact quantity of hours
// =============================================================================

type Hours struct {
	Value decimal.Decimal
}

var secondsPerHour = decimal.NewFromInt(3600)

func NewHours(value float64) Hours {
	return Hours{Value: decimal.NewFromFloat(value)}
}

func NewHoursFromDecimal(d decimal.Decimal) Hours {
	return Hours{Value: d}
}

// HoursFromSeconds converts a whole number of seconds to hours.
func HoursFromSeconds(seconds int64) Hours {
	return Hours{Value: decimal.NewFromInt(seconds).Div(secondsPerHour)}
}

// ParseHours parses a plain decimal literal such as "4.65".
func ParseHours(s string) (Hours, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Hours{}, err
	}
	return Hours{Value: d}, nil
}

// MustParseHours is ParseHours for trusted input; bad input yields zero.
func MustParseHours(s string) Hours {
	h, err := ParseHours(s)
	if err != nil {
		return Hours{}
	}
	return h
}

func (h Hours) Add(o Hours) Hours        { return Hours{Value: h.Value.Add(o.Value)} }
func (h Hours) Sub(o Hours) Hours        { return Hours{Value: h.Value.Sub(o.Value)} }
func (h Hours) Neg() Hours               { return Hours{Value: h.Value.Neg()} }
func (h Hours) IsNegative() bool         { return h.Value.IsNegative() }
func (h Hours) IsZero() bool             { return h.Value.IsZero() }
func (h Hours) IsPositive() bool         { return h.Value.IsPositive() }
func (h Hours) Equal(o Hours) bool       { return h.Value.Equal(o.Value) }
func (h Hours) GreaterThan(o Hours) bool { return h.Value.GreaterThan(o.Value) }

// Round rounds to the given number of decimal places.
func (h Hours) Round(places int32) Hours {
	return Hours{Value: h.Value.Round(places)}
}

// ClampZero returns h, or zero when h is negative.
func (h Hours) ClampZero() Hours {
	if h.IsNegative() {
		return Hours{Value: decimal.Zero}
	}
	return h
}

// Minutes returns the hour count expressed in minutes.
func (h Hours) Minutes() decimal.Decimal {
	return h.Value.Mul(decimal.NewFromInt(60))
}

func (h Hours) Float64() float64 {
	f, _ := h.Value.Float64()
	return f
}

// String renders the value with two decimals, e.g. "1.50".
func (h Hours) String() string {
	return h.Value.StringFixed(2)
}

// SumHours adds up a list of hour values.
func SumHours(values ...Hours) Hours {
	total := Hours{Value: decimal.Zero}
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
