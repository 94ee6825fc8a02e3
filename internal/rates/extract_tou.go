package rates

import (
	"regexp"
	"strconv"

	"github.com/wattbuy/planengine/pkg/textextract"
)

var (
	touPeakRe       = regexp.MustCompile(`(?i)Energy\s+Charge\s+Peak\s*([0-9]+(?:\.[0-9]+)?)\s*[¢c]`)
	touOffPeakRe    = regexp.MustCompile(`(?i)Off-?Peak\s*([0-9]+(?:\.[0-9]+)?)\s*[¢c]`)
	touHoursRe      = regexp.MustCompile(`(?i)Off-?Peak\s+hours\s+are\s+([0-9]{1,2}):([0-9]{2})\s*(AM|PM)\s*[-–]\s*([0-9]{1,2}):([0-9]{2})\s*(AM|PM)`)
	touNightUsageRe = regexp.MustCompile(`(?i)([0-9]+(?:\.[0-9]+)?)\s*%\s*of\s+Off-?Peak\s+consumption`)
)

// clockToHour24 converts a 12-hour clock reading to a 24-hour hour number.
// 12AM is hour 0, 12PM is hour 12 (spec §4.3). roundUpMinute controls
// whether a non-zero minute component rounds the hour up by one (used for
// interval end points, per spec: "minute>0 rounds end hour up").
func clockToHour24(hh, mm int, ampm string, roundUpMinute bool) int {
	h := hh % 12
	if ampm == "PM" {
		h += 12
	}
	if roundUpMinute && mm > 0 {
		h++
	}
	return h
}

// TOUWindow is the raw extraction of an intra-day off-peak window plus the
// disclosed off-peak usage percent (used by the validator's night-usage
// assumption).
type TOUWindow struct {
	StartHour           int
	EndHour             int
	OffPeakUsagePercent *float64
}

// ExtractTOUPeakOffPeakRates finds "Energy Charge Peak X¢" / "Off-Peak X¢"
// disclosures.
func ExtractTOUPeakOffPeakRates(rawText string) (peak, offPeak *float64) {
	if v, ok := textextract.ParseFirstFloatOK(touPeakRe, rawText); ok {
		r := textextract.RoundCents(v)
		peak = &r
	}
	if v, ok := textextract.ParseFirstFloatOK(touOffPeakRe, rawText); ok {
		r := textextract.RoundCents(v)
		offPeak = &r
	}
	return
}

// ExtractTOUWindow finds "Off-Peak hours are HH:MM AM - HH:MM PM" plus an
// optional disclosed off-peak usage percent, and converts the clock window
// to a 24-hour half-open interval.
func ExtractTOUWindow(rawText string) (TOUWindow, bool) {
	m := touHoursRe.FindStringSubmatch(rawText)
	if m == nil {
		return TOUWindow{}, false
	}
	startHH, _ := strconv.Atoi(m[1])
	startMM, _ := strconv.Atoi(m[2])
	startAMPM := upper2(m[3])
	endHH, _ := strconv.Atoi(m[4])
	endMM, _ := strconv.Atoi(m[5])
	endAMPM := upper2(m[6])

	start := clockToHour24(startHH, startMM, startAMPM, false)
	end := clockToHour24(endHH, endMM, endAMPM, true)

	out := TOUWindow{StartHour: start, EndHour: end}
	if v, ok := textextract.ParseFirstFloatOK(touNightUsageRe, rawText); ok {
		pct := v / 100.0
		out.OffPeakUsagePercent = &pct
	}
	return out, true
}

func upper2(s string) string {
	if len(s) == 2 {
		b := []byte(s)
		for i, c := range b {
			if c >= 'a' && c <= 'z' {
				b[i] = c - ('a' - 'A')
			}
		}
		return string(b)
	}
	return s
}
