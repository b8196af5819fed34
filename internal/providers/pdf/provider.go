package pdf

import (
	"context"
	"io"
)

// Provider renders downloadable documents for the artist dashboard.
type Provider interface {
	GeneratePayoutStatement(ctx context.Context, data StatementData) (io.Reader, error)
}

type StatementLine struct {
	Date        string
	Kind        string
	Description string
	Amount      string
}

// StatementData is the rendered view of an artist's ledger around a
// payout. Amounts arrive preformatted so the renderer stays free of
// currency logic.
type StatementData struct {
	StatementNumber string
	GeneratedAt     string

	ArtistName string
	PeriodFrom string
	PeriodTo   string

	Lines []StatementLine

	TotalEarned  string
	TotalPaidOut string
	Available    string

	PayoutAmount string
	PayoutStatus string
	PayoutDate   string
}

type PDFProvider struct{}

func NewProvider() Provider {
	return &PDFProvider{}
}
