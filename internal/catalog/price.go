package catalog

import (
	"fmt"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// PriceFormatter renders cent amounts in a fixed currency and locale.
type PriceFormatter struct {
	unit    currency.Unit
	printer *message.Printer
}

// NewPriceFormatter parses an ISO 4217 code and a BCP 47 locale.
func NewPriceFormatter(code, locale string) (*PriceFormatter, error) {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return nil, fmt.Errorf("currency %q: %w", code, err)
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("locale %q: %w", locale, err)
	}
	return &PriceFormatter{unit: unit, printer: message.NewPrinter(tag)}, nil
}

func (f *PriceFormatter) Format(cents int64) string {
	return f.printer.Sprint(currency.Symbol(f.unit.Amount(float64(cents) / 100)))
}
