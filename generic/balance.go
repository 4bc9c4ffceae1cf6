/*
balance.go - Generated vs. used balance

PURPOSE:
  A balance here is two totals and nothing else: hours generated and hours
  used. There is no persisted running total; callers rebuild a Balance from
  source rows every time they need one.

AVAILABILITY CALCULATION:
  Available = max(0, Generated - Used)

  Used may exceed Generated (e.g. a work session was shortened after the
  hours were spent). Available then reads zero, never negative.

VALIDATION:
  CanConsume(amount) is true when amount <= Available. Spending exactly the
  available balance is allowed and drives Available to zero.

  Both sides are compared at ComparePlaces decimal places. Per-day values
  such as 20min = 0.333...h carry division rounding in the 16th place, so
  three of them sum to 0.9999999999999999 and must still cover a 1h request.

SEE ALSO:
  - overtime/ledger.go: builds a Balance from sessions and usage records
*/
package generic

type Balance struct {
	Generated Hours
	Used      Hours
}

// Available returns what can still be spent, floored at zero.
func (b Balance) Available() Hours {
	return b.Generated.Sub(b.Used).ClampZero()
}

// Raw returns Generated - Used without the floor.
func (b Balance) Raw() Hours {
	return b.Generated.Sub(b.Used)
}

// ComparePlaces is the precision CanConsume compares at.
const ComparePlaces = 10

// CanConsume reports whether amount fits in the available balance.
func (b Balance) CanConsume(amount Hours) bool {
	return !amount.Round(ComparePlaces).GreaterThan(b.Available().Round(ComparePlaces))
}

// Consume returns the balance after spending amount. It does not validate.
func (b Balance) Consume(amount Hours) Balance {
	return Balance{Generated: b.Generated, Used: b.Used.Add(amount)}
}
