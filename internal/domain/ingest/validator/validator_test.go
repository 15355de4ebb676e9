package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func objclassHeaders(extra ...string) []string {
	headers := []string{
		"OMB Agency Code", "Agency Title",
		"OMB Bureau Code", "Bureau Title",
		"OMB Account", "Account _Title",
		"Default Budget Function", "Default Budget Subfunction",
		"OB Class Code", "OB Class",
	}
	return append(headers, extra...)
}

func TestValidate_OK(t *testing.T) {
	result := Validate(objclassHeaders("2026 PY Amount", "CY Amount", "BY Amount"))

	assert.True(t, result.Valid())
	assert.Empty(t, result.MissingColumns)
	assert.Equal(t, []string{"2026 PY Amount", "CY Amount", "BY Amount"}, result.AmountColumns)
}

func TestValidate_MissingRequiredColumns(t *testing.T) {
	headers := []string{"OMB Agency Code", "Agency Title", "PY Amount"}

	result := Validate(headers)

	assert.False(t, result.Valid())
	assert.Contains(t, result.MissingColumns, "OMB Bureau Code")
	assert.Contains(t, result.MissingColumns, "Account _Title")
	assert.Len(t, result.MissingColumns, 8)
	assert.Len(t, result.Issues, 1)
}

func TestValidate_NoAmountColumns(t *testing.T) {
	result := Validate(objclassHeaders())

	assert.False(t, result.Valid())
	assert.Empty(t, result.MissingColumns)
	assert.Empty(t, result.AmountColumns)
	assert.Contains(t, result.Issues[0], "no amount columns")
}

func TestValidate_TrimsHeaderWhitespace(t *testing.T) {
	headers := objclassHeaders(" PY Amount ")
	// Pad one required header with whitespace too.
	headers[0] = " OMB Agency Code "

	result := Validate(headers)

	assert.True(t, result.Valid())
	assert.Equal(t, []string{"PY Amount"}, result.AmountColumns)
}
