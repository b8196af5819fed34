// Package statement renders an artist's ledger history around a
// payout into a downloadable PDF.
package statement

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/cadenzalabs/cadenza/internal/catalog/domain"
	"github.com/cadenzalabs/cadenza/internal/clock"
	ledgerdomain "github.com/cadenzalabs/cadenza/internal/ledger/domain"
	"github.com/cadenzalabs/cadenza/internal/providers/pdf"
	"github.com/cadenzalabs/cadenza/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// statementPageSize is the pagination ceiling; older history beyond it
// stays in the dashboard listing.
const statementPageSize = 50

type Params struct {
	fx.In

	Log     *zap.Logger
	Ledger  ledgerdomain.Service
	Catalog catalogdomain.Service
	PDF     pdf.Provider
	Clock   clock.Clock
}

type Service struct {
	log     *zap.Logger
	ledger  ledgerdomain.Service
	catalog catalogdomain.Service
	pdf     pdf.Provider
	clock   clock.Clock
}

func New(p Params) *Service {
	return &Service{
		log:     p.Log.Named("ledger.statement"),
		ledger:  p.Ledger,
		catalog: p.Catalog,
		pdf:     p.PDF,
		clock:   p.Clock,
	}
}

// RenderPayoutStatement builds the PDF for one payout: the payout
// itself, the artist's ledger lines up to now, and the balance totals.
func (s *Service) RenderPayoutStatement(ctx context.Context, artistID, payoutID snowflake.ID) (io.Reader, error) {
	payout, err := s.ledger.GetPayout(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if payout.ArtistID != artistID {
		return nil, ledgerdomain.ErrPayoutNotFound
	}

	artist, err := s.catalog.GetArtist(ctx, artistID)
	if err != nil {
		return nil, err
	}

	balance, err := s.ledger.GetBalance(ctx, artistID)
	if err != nil {
		return nil, err
	}

	entries, _, err := s.ledger.ListEntries(ctx, artistID, pagination.Page{Page: 1, PageSize: statementPageSize})
	if err != nil {
		return nil, err
	}

	lines := make([]pdf.StatementLine, 0, len(entries))
	periodFrom := payout.CreatedAt
	for _, entry := range entries {
		if entry.CreatedAt.Before(periodFrom) {
			periodFrom = entry.CreatedAt
		}
		lines = append(lines, pdf.StatementLine{
			Date:        entry.CreatedAt.Format("2006-01-02"),
			Kind:        string(entry.Type),
			Description: describeEntry(entry),
			Amount:      formatAmount(entry.Amount, entry.Currency),
		})
	}

	payoutDate := payout.CreatedAt
	if payout.ProcessedAt != nil {
		payoutDate = *payout.ProcessedAt
	}

	data := pdf.StatementData{
		StatementNumber: fmt.Sprintf("ST-%d", payout.ID.Int64()),
		GeneratedAt:     s.clock.Now().Format("2006-01-02"),
		ArtistName:      artist.Name,
		PeriodFrom:      periodFrom.Format("2006-01-02"),
		PeriodTo:        s.clock.Now().Format("2006-01-02"),
		Lines:           lines,
		TotalEarned:     formatAmount(balance.TotalEarned, balance.Currency),
		TotalPaidOut:    formatAmount(balance.TotalPaidOut, balance.Currency),
		Available:       formatAmount(balance.AvailableBalance, balance.Currency),
		PayoutAmount:    formatAmount(payout.Amount, payout.Currency),
		PayoutStatus:    string(payout.Status),
		PayoutDate:      payoutDate.Format("2006-01-02"),
	}

	return s.pdf.GeneratePayoutStatement(ctx, data)
}

func describeEntry(entry ledgerdomain.Entry) string {
	if entry.Source == ledgerdomain.SourcePayout {
		return fmt.Sprintf("Payout #%d", entry.RefID.Int64())
	}
	return fmt.Sprintf("%s revenue, transaction #%d", string(entry.Source), entry.RefID.Int64())
}

func formatAmount(minor int64, currency string) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, minor/100, minor%100, strings.ToUpper(currency))
}
