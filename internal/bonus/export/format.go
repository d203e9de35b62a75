package export

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// DefaultLocale formats amounts the way Chilean finance teams read them.
const DefaultLocale = "es-CL"

// maxGroupedDigits keeps the integer part inside int64 for the printer.
const maxGroupedDigits = 18

// Formatter renders amounts for human readers of exported files.
type Formatter struct {
	printer *message.Printer
	point   string
}

// NewFormatter builds a Formatter for a BCP 47 locale, falling back to
// DefaultLocale when the tag cannot be parsed.
func NewFormatter(locale string) Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.MustParse(DefaultLocale)
	}
	printer := message.NewPrinter(tag)
	point := strings.Trim(printer.Sprint(number.Decimal(1.5, number.Scale(1))), "15")
	if point == "" {
		point = "."
	}
	return Formatter{printer: printer, point: point}
}

// Money renders d with two decimals and locale grouping.
func (f Formatter) Money(d decimal.Decimal) string {
	return f.render(d.Round(2).StringFixed(2))
}

// Percent renders a percentage value with up to three decimals.
func (f Formatter) Percent(d decimal.Decimal) string {
	return f.render(d.Round(3).String()) + "%"
}

// render groups the integer digits of a plain decimal string with the
// locale separators. Digits are never routed through float64.
func (f Formatter) render(plain string) string {
	sign := ""
	if strings.HasPrefix(plain, "-") {
		sign, plain = "-", plain[1:]
	}
	whole, frac, _ := strings.Cut(plain, ".")
	grouped := whole
	if f.printer != nil && len(whole) <= maxGroupedDigits {
		var n int64
		for _, c := range whole {
			n = n*10 + int64(c-'0')
		}
		grouped = f.printer.Sprint(number.Decimal(n))
	}
	if frac == "" {
		return sign + grouped
	}
	return sign + grouped + f.point + frac
}

func fixed(d decimal.Decimal) string {
	return d.StringFixed(2)
}
