package display

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Bar emphasis factors
const (
	CandidateScale = 2.0
	PartyScale     = 1.5
)

var grouped = message.NewPrinter(language.TraditionalChinese)

// BarValue maps a percentage to a progress bar fill, clamped to [0, 100]
func BarValue(percentage, scale float64) float64 {
	v := percentage * scale
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return math.Min(v, 100)
}

// FormatVotes splits counts of ten thousand or more into the 萬 unit and a
// zero-padded four digit remainder, e.g. 123456 -> "12 萬 3456".
func FormatVotes(votes int) string {
	if votes < 10000 {
		return strconv.Itoa(votes)
	}
	return fmt.Sprintf("%d 萬 %04d", votes/10000, votes%10000)
}

// FormatGrouped renders votes with digit grouping, e.g. "123,456"
func FormatGrouped(votes int) string {
	return grouped.Sprintf("%d", votes)
}

// FormatPercent renders a percentage without trailing zeros
func FormatPercent(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

// FormatClock renders the on-screen time as HH:MM
func FormatClock(t time.Time) string {
	return t.Format("15:04")
}

func formatWidth(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "%"
}
