package pricing

import (
	"math"
	"strings"

	catalogdomain "github.com/cadenzalabs/cadenza/internal/catalog/domain"
	"github.com/cadenzalabs/cadenza/internal/pricing/domain"
)

// staticConverter converts with a fixed USD-relative rate table. Rates
// are refreshed by ops through the revenue config file, not per request.
type staticConverter struct {
	// usdRates maps currency code to units per USD.
	usdRates map[string]float64
	display  []string
}

var defaultUSDRates = map[string]float64{
	"USD": 1,
	"EUR": 0.92,
	"GBP": 0.79,
	"INR": 83.2,
	"JPY": 149.5,
}

// NewStaticConverter builds the default converter.
func NewStaticConverter() domain.Converter {
	return &staticConverter{
		usdRates: defaultUSDRates,
		display:  []string{"USD", "EUR", "GBP", "INR", "JPY"},
	}
}

func (c *staticConverter) Convert(base catalogdomain.Price) ([]catalogdomain.Price, error) {
	from := strings.ToUpper(strings.TrimSpace(base.Currency))
	fromRate, ok := c.usdRates[from]
	if !ok {
		return nil, domain.ErrUnsupportedCurrency
	}

	usdAmount := float64(base.Amount) / fromRate
	out := make([]catalogdomain.Price, 0, len(c.display))
	for _, code := range c.display {
		if code == from {
			out = append(out, catalogdomain.Price{Amount: base.Amount, Currency: code})
			continue
		}
		rate := c.usdRates[code]
		out = append(out, catalogdomain.Price{
			Amount:   int64(math.Round(usdAmount * rate)),
			Currency: code,
		})
	}
	return out, nil
}

func (c *staticConverter) USDRate(currency string) (float64, error) {
	code := strings.ToUpper(strings.TrimSpace(currency))
	rate, ok := c.usdRates[code]
	if !ok {
		return 0, domain.ErrUnsupportedCurrency
	}
	return rate, nil
}
