package overtime

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/extrahours/generic"
)

var sixty = decimal.NewFromInt(60)

// FormatHours renders a decimal hour count as "<H>h <M>min".
//
// Minutes are rounded on the total first and then split, so 1.999h reads
// "2h 0min" rather than "1h 60min".
func FormatHours(h generic.Hours) string {
	total := h.Minutes().Round(0)
	sign := ""
	if total.IsNegative() {
		sign = "-"
		total = total.Neg()
	}
	mins := total.IntPart()
	return fmt.Sprintf("%s%dh %dmin", sign, mins/60, mins%60)
}

// ParseHoursInput normalises user-entered hours to a decimal value.
//
//	"4.65" -> 4.65  (anything containing '.' is a decimal literal)
//	"4:30" -> 4.5   (hours:minutes; parts after the second are ignored)
//	":30"  -> 0.5   (an empty part is zero)
//	"3"    -> 3
//
// Unparseable input yields zero; it never fails.
func ParseHoursInput(input string) generic.Hours {
	input = strings.TrimSpace(input)

	if strings.Contains(input, ".") {
		return generic.MustParseHours(input)
	}

	if strings.Contains(input, ":") {
		parts := strings.Split(input, ":")
		hours, herr := clockPart(parts[0])
		minutes, merr := clockPart(parts[1])
		if herr == nil && merr == nil {
			d := decimal.NewFromInt(hours).Add(decimal.NewFromInt(minutes).Div(sixty))
			return generic.NewHoursFromDecimal(d)
		}
	}

	return generic.MustParseHours(input)
}

// clockPart reads one side of "H:M". An empty side counts as zero.
func clockPart(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
