package pdf

import (
	"bytes"
	"context"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

func (p *PDFProvider) GeneratePayoutStatement(ctx context.Context, data StatementData) (io.Reader, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(30,
		text.NewCol(8, "Payout statement", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		col.New(4).Add(
			text.New("Statement: "+data.StatementNumber, props.Text{Size: 9, Align: align.Right}),
			text.New("Generated: "+data.GeneratedAt, props.Text{Size: 9, Top: 5, Align: align.Right}),
		),
	)

	m.AddRow(20,
		col.New(6).Add(
			text.New(data.ArtistName, props.Text{Style: fontstyle.Bold}),
			text.New("Period: "+data.PeriodFrom+" to "+data.PeriodTo, props.Text{Top: 6, Size: 9}),
		),
		col.New(6),
	)

	if data.PayoutAmount != "" {
		m.AddRow(15,
			text.NewCol(12, data.PayoutAmount+" payout, "+data.PayoutStatus+" on "+data.PayoutDate, props.Text{
				Size:  13,
				Style: fontstyle.Bold,
				Top:   4,
			}),
		)
	}

	m.AddRow(10,
		text.NewCol(3, "Date", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Type", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(5, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	for _, line := range data.Lines {
		m.AddRow(10,
			text.NewCol(3, line.Date, props.Text{Size: 9}),
			text.NewCol(2, line.Kind, props.Text{Size: 9}),
			text.NewCol(5, line.Description, props.Text{Size: 9}),
			text.NewCol(2, line.Amount, props.Text{Size: 9, Align: align.Right}),
		)
	}

	m.AddRow(10,
		col.New(7),
		text.NewCol(3, "Total earned", props.Text{Size: 9}),
		text.NewCol(2, data.TotalEarned, props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(10,
		col.New(7),
		text.NewCol(3, "Total paid out", props.Text{Size: 9}),
		text.NewCol(2, data.TotalPaidOut, props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(10,
		col.New(7),
		text.NewCol(3, "Available", props.Text{Size: 9, Style: fontstyle.Bold}),
		text.NewCol(2, data.Available, props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(doc.GetBytes()), nil
}
