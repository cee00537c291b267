// Package dates implements the two date transforms the card database uses:
// best-effort display formatting and the narrow save-time rewrite.
package dates

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Layouts accepted when formatting a stored value for display.
var displayLayouts = []string{
	"2006-01-02",
	"02.01.2006",
	"02/01/2006",
	"2006/01/02",
	"02-01-2006",
	"2006.01.02",
}

var savePattern = regexp.MustCompile(`^\d{1,2}\.\d{1,2}\.\d{4}$`)

// FormatDisplay renders a stored date value as DD.MM.YYYY. Values that match
// none of the known layouts are returned unchanged.
func FormatDisplay(value string) string {
	if value == "" {
		return ""
	}
	for _, layout := range displayLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format("02.01.2006")
		}
	}
	return value
}

// RewriteForSave converts a D.M.YYYY or DD.MM.YYYY value to YYYY-MM-DD for
// storage. Anything else passes through verbatim, including dates in other
// formats; this is a deliberate narrow transform, not general date parsing.
func RewriteForSave(value string) string {
	if !savePattern.MatchString(value) {
		return value
	}
	parts := strings.Split(value, ".")
	day, err1 := strconv.Atoi(parts[0])
	month, err2 := strconv.Atoi(parts[1])
	year, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return value
	}
	return fmt.Sprintf("%d-%02d-%02d", year, month, day)
}
