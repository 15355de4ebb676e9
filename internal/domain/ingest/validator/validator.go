// Package validator runs the structural pre-flight check on an OBJCLASS
// header row before any processing begins.
package validator

import (
	"fmt"
	"strings"

	"github.com/FACorreiaa/federal-budget-tracker/internal/domain/ingest/parser"
)

// RequiredColumns is the fixed OBJCLASS column vocabulary. The odd
// "Account _Title" spelling is how the OMB export actually names it.
var RequiredColumns = []string{
	"OMB Agency Code",
	"Agency Title",
	"OMB Bureau Code",
	"Bureau Title",
	"OMB Account",
	"Account _Title",
	"Default Budget Function",
	"Default Budget Subfunction",
	"OB Class Code",
	"OB Class",
}

// Result reports the outcome of validating a header row
type Result struct {
	MissingColumns []string
	AmountColumns  []string
	Issues         []string
}

// Valid reports whether the file may be processed
func (r *Result) Valid() bool {
	return len(r.Issues) == 0
}

// Validate checks that all required columns are present and that at least
// one amount column is discoverable. Amount columns are identified by the
// PY/CY/BY substrings because their exact names change between export
// years.
func Validate(headers []string) *Result {
	result := &Result{}

	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[strings.TrimSpace(h)] = true
	}

	for _, col := range RequiredColumns {
		if !present[col] {
			result.MissingColumns = append(result.MissingColumns, col)
		}
	}
	if len(result.MissingColumns) > 0 {
		result.Issues = append(result.Issues,
			fmt.Sprintf("missing required columns: %s", strings.Join(result.MissingColumns, ", ")))
	}

	for _, h := range headers {
		if parser.IsAmountColumn(h) {
			result.AmountColumns = append(result.AmountColumns, strings.TrimSpace(h))
		}
	}
	if len(result.AmountColumns) == 0 {
		result.Issues = append(result.Issues,
			"no amount columns found (expecting headers containing PY, CY or BY)")
	}

	return result
}
