package overtime

import (
	"fmt"

	"github.com/warp/extrahours/generic"
)

// InsufficientHoursError is returned when a usage asks for more hours than
// the ledger has available. It is a validation error, not a clamp.
type InsufficientHoursError struct {
	Available generic.Hours
	Requested generic.Hours
}

func (e *InsufficientHoursError) Error() string {
	return fmt.Sprintf("insufficient extra hours: you have %s available (%sh), requested %s",
		FormatHours(e.Available), e.Available, FormatHours(e.Requested))
}

func (e *InsufficientHoursError) Unwrap() error {
	return generic.ErrValidation
}

func sessionNotFound(id string) error {
	return &generic.NotFoundError{Kind: "work session", ID: id}
}

func usageNotFound(id string) error {
	return &generic.NotFoundError{Kind: "extra hours usage", ID: id}
}
