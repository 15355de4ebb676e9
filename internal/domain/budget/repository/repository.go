// Package repository provides read access to ingested budget data.
package repository

import (
	"context"

	"github.com/google/uuid"

	ingestrepo "github.com/FACorreiaa/federal-budget-tracker/internal/domain/ingest/repository"
)

// OutlayFilter narrows the outlay aggregation. Zero values mean "no filter".
type OutlayFilter struct {
	FiscalYear   int
	Period       string
	AgencyCode   string
	FunctionCode string
}

// OutlaySummary is one aggregated outlay bucket: agency x function x
// fiscal year x period. Amounts are in thousands of dollars.
type OutlaySummary struct {
	AgencyCode    string `json:"agency_code"`
	AgencyTitle   string `json:"agency_title"`
	FunctionCode  string `json:"function_code"`
	FunctionTitle string `json:"function_title"`
	FiscalYear    int    `json:"fiscal_year"`
	Period        string `json:"period"`
	TotalAmount   int64  `json:"total_amount"`
	OutlayCount   int    `json:"outlay_count"`
}

// BudgetRepository defines the query-side data access.
// GetImportBatch returns (nil, nil) when no batch matches.
type BudgetRepository interface {
	SummarizeOutlays(ctx context.Context, filter OutlayFilter) ([]*OutlaySummary, error)
	GetImportBatch(ctx context.Context, id uuid.UUID) (*ingestrepo.ImportBatch, error)
}
