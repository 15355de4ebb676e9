// Package parser extracts structured values from raw OBJCLASS cell text.
// Converts the OMB export's free-text conventions into the canonical
// representation stored in the dimension and fact tables.
package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// codeNameSep is the literal separator used by OMB composite fields,
// e.g. "501 - Education, Training, Employment".
const codeNameSep = " - "

var (
	fiscalYearPattern = regexp.MustCompile(`20\d{2}`)
	thousand          = decimal.NewFromInt(1000)
)

// periodTokens is the match priority when a header contains more than one
// period substring. First match wins.
var periodTokens = []string{"PY", "CY", "BY"}

// SplitCodeName parses a composite "CODE - NAME" field. The boolean reports
// whether the separator was actually present; when it is absent the whole
// trimmed value is returned as both code and name, which conflates a
// malformed field with a legitimate single-token one, so callers surface a
// warning for that case.
func SplitCodeName(raw string) (code, name string, split bool) {
	raw = strings.TrimSpace(raw)

	if before, after, ok := strings.Cut(raw, codeNameSep); ok {
		return strings.TrimSpace(before), strings.TrimSpace(after), true
	}

	return raw, raw, false
}

// ParseAmount converts a raw cell value into thousands of dollars as an
// int64. Source values are already expressed in thousands but are parsed as
// decimal dollars and rescaled by 1000 with truncation, matching the OMB
// round-trip convention. Blank, "NaN" and unparsable cells report ok=false;
// this function never fails to the caller.
func ParseAmount(raw string) (amount int64, ok bool) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.TrimPrefix(cleaned, "$")

	if cleaned == "" || strings.EqualFold(cleaned, "nan") {
		return 0, false
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, false
	}

	return d.Mul(thousand).IntPart(), true
}

// Period extracts the budget period from an amount column header.
// Case-sensitive literal search, PY > CY > BY priority, defaulting to CY.
func Period(header string) string {
	for _, token := range periodTokens {
		if strings.Contains(header, token) {
			return token
		}
	}
	return "CY"
}

// FiscalYear extracts the first four-digit year starting with "20" from an
// amount column header, falling back to the given default when absent.
func FiscalYear(header string, fallback int) int {
	if match := fiscalYearPattern.FindString(header); match != "" {
		year, err := strconv.Atoi(match)
		if err == nil {
			return year
		}
	}
	return fallback
}

// Abbreviation extracts a parenthesized abbreviation from a title,
// e.g. "Department of Education (ED)" -> "ED". Returns "" when none.
func Abbreviation(title string) string {
	start := strings.LastIndex(title, "(")
	end := strings.LastIndex(title, ")")
	if start == -1 || end == -1 || start+1 >= end {
		return ""
	}
	return strings.TrimSpace(title[start+1 : end])
}

// GroupCode derives an object class group by truncating the code at the
// first period, e.g. "25.1" -> "25". Codes without a period are their own
// group.
func GroupCode(code string) string {
	group, _, _ := strings.Cut(code, ".")
	return group
}

// IsAmountColumn reports whether a header names a financial column. The
// exact set varies between export years, so columns are discovered by the
// period substrings rather than hardcoded.
func IsAmountColumn(header string) bool {
	for _, token := range periodTokens {
		if strings.Contains(header, token) {
			return true
		}
	}
	return false
}
