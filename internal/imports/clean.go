package imports

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	newlines       = regexp.MustCompile(`(\r?\n)+`)
	scientific     = regexp.MustCompile(`(?i)^\d+\.?\d*e\+?\d+$`)
	currencyTokens = strings.NewReplacer(
		"₹", "", "INR", "", "inr", "", "Rs.", "", "rs.", "", "RS.", "", "Rs", "", "rs", "", "RS", "",
		",", "", " ", "", "\u00a0", "",
	)
	intSeparators = strings.NewReplacer(",", "", " ", "", "\u00a0", "")
)

func cleanString(v string) string {
	return newlines.ReplaceAllString(strings.TrimSpace(v), " - ")
}

// cleanBarcode restores identifiers that a spreadsheet stored as floats.
func cleanBarcode(v string) string {
	s := strings.TrimSpace(v)
	if s == "" {
		return ""
	}
	s = strings.TrimSuffix(s, ".0")
	if scientific.MatchString(s) {
		if d, err := decimal.NewFromString(s); err == nil {
			s = d.Truncate(0).String()
		}
	}
	return s
}

// cleanPrice parses a currency cell. ok is false when the cell is blank or
// not a number.
func cleanPrice(v string) (decimal.Decimal, bool) {
	s := currencyTokens.Replace(strings.TrimSpace(v))
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func cleanInt(v string) *int {
	s := intSeparators.Replace(strings.TrimSpace(v))
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	n := int(d.IntPart())
	return &n
}

func cleanBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "y", "true", "1":
		return true
	}
	return false
}

// boolLike reports whether v reads as a yes/no answer.
func boolLike(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "y", "true", "1", "no", "n", "false", "0":
		return true
	}
	return false
}

func cleanUnit(v string) string {
	if s := strings.ToUpper(cleanString(v)); s != "" {
		return s
	}
	return "PCS"
}

func cleanStockType(v string) string {
	if s := strings.ToLower(cleanString(v)); s != "" {
		return s
	}
	return StockStocked
}

func isNumeric(v string) bool {
	_, ok := cleanPrice(v)
	return ok
}

var printTypePatterns = []struct {
	re   *regexp.Regexp
	name string
}{
	{regexp.MustCompile(`(?i)\b4\s*-?\s*colou?r`), "4 Color"},
	{regexp.MustCompile(`(?i)\b2\s*-?\s*colou?r`), "2 Color"},
	{regexp.MustCompile(`(?i)\b1\s*-?\s*colou?r`), "1 Color"},
	{regexp.MustCompile(`(?i)\bplain\b`), "Plain"},
	{regexp.MustCompile(`(?i)\bcustom\s+print|\bprinted\b`), "Custom"},
}

// inferPrintType guesses the print type from a product name.
func inferPrintType(name string) *string {
	for _, p := range printTypePatterns {
		if p.re.MatchString(name) {
			v := p.name
			return &v
		}
	}
	return nil
}
