package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitCodeName(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantCode  string
		wantName  string
		wantSplit bool
	}{
		{
			name:      "code dash name",
			raw:       "501 - Education, Training, Employment",
			wantCode:  "501",
			wantName:  "Education, Training, Employment",
			wantSplit: true,
		},
		{
			name:      "single token falls back to whole value",
			raw:       "GENERAL",
			wantCode:  "GENERAL",
			wantName:  "GENERAL",
			wantSplit: false,
		},
		{
			name:      "splits on first separator only",
			raw:       "800 - General Government - Other",
			wantCode:  "800",
			wantName:  "General Government - Other",
			wantSplit: true,
		},
		{
			name:      "hyphen without spaces is not a separator",
			raw:       "091-0001",
			wantCode:  "091-0001",
			wantName:  "091-0001",
			wantSplit: false,
		},
		{
			name:      "surrounding whitespace trimmed",
			raw:       "  501 -  Education ",
			wantCode:  "501",
			wantName:  "Education",
			wantSplit: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, name, split := SplitCodeName(tt.raw)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantSplit, split)
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		raw    string
		want   int64
		wantOK bool
	}{
		{"1,234.50", 1234500, true},
		{"$1,234.50", 1234500, true},
		{"100", 100000, true},
		{"0", 0, true},
		{"-42.7", -42700, true},
		{"  5 ", 5000, true},
		// Truncation, not rounding.
		{"0.0009", 0, true},
		{"", 0, false},
		{"NaN", 0, false},
		{"nan", 0, false},
		{"n/a", 0, false},
		{"12.3.4", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParseAmount(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPeriod(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"PY Amount", "PY"},
		{"CY Amount", "CY"},
		{"BY Amount", "BY"},
		// PY wins over later substrings.
		{"2026 PY CY Amount", "PY"},
		{"BY CY", "CY"},
		{"Amount", "CY"},
		// Case-sensitive literal search.
		{"py amount", "CY"},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			assert.Equal(t, tt.want, Period(tt.header))
		})
	}
}

func TestFiscalYear(t *testing.T) {
	assert.Equal(t, 2024, FiscalYear("FY 2024 PY Amount", 2026))
	assert.Equal(t, 2026, FiscalYear("PY Amount", 2026))
	assert.Equal(t, 2030, FiscalYear("CY", 2030))
	// Only years starting with "20" are recognized.
	assert.Equal(t, 2026, FiscalYear("FY 1999 Amount", 2026))
}

func TestAbbreviation(t *testing.T) {
	assert.Equal(t, "ED", Abbreviation("Department of Education (ED)"))
	assert.Equal(t, "X", Abbreviation("Nested (Department) Title (X)"))
	assert.Equal(t, "", Abbreviation("Department of Education"))
	assert.Equal(t, "", Abbreviation("Unbalanced ) ("))
	assert.Equal(t, "", Abbreviation("Empty ()"))
}

func TestGroupCode(t *testing.T) {
	assert.Equal(t, "25", GroupCode("25.1"))
	assert.Equal(t, "10", GroupCode("10"))
	assert.Equal(t, "11", GroupCode("11.1.2"))
}

func TestIsAmountColumn(t *testing.T) {
	assert.True(t, IsAmountColumn("2026 PY Amount"))
	assert.True(t, IsAmountColumn("BY"))
	assert.False(t, IsAmountColumn("Agency Title"))
	assert.False(t, IsAmountColumn("OMB Account"))
}
