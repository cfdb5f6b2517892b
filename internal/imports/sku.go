package imports

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/equinox-erp/equinox/internal/masterdata/divisions"
)

// SKUGenerator hands out auto-generated identifiers for one import.
type SKUGenerator struct {
	// Prefix is the division code.
	Prefix string
	// CategoryCodeLen > 0 inserts a category short code after the prefix;
	// otherwise the literal AUTO is used.
	CategoryCodeLen int
	// Width is the zero padding of the sequence.
	Width int

	next  int
	taken map[string]struct{}
}

// NewSKUGenerator continues after maxSequence and never returns a member of
// existing.
func NewSKUGenerator(division string, maxSequence int, existing []string) *SKUGenerator {
	division = strings.ToUpper(strings.TrimSpace(division))
	g := &SKUGenerator{
		Prefix: division,
		Width:  4,
		next:   maxSequence + 1,
		taken:  make(map[string]struct{}, len(existing)),
	}
	if division == divisions.CodeHOSPI {
		g.CategoryCodeLen = 3
	}
	g.Reserve(existing...)
	return g
}

// Reserve marks identifiers as unavailable.
func (g *SKUGenerator) Reserve(skus ...string) {
	for _, s := range skus {
		if s = strings.TrimSpace(s); s != "" {
			g.taken[strings.ToLower(s)] = struct{}{}
		}
	}
}

// Peek returns the next sequence number Next would try.
func (g *SKUGenerator) Peek() int { return g.next }

// Next returns the next free identifier for a row of category.
func (g *SKUGenerator) Next(category string) string {
	for {
		candidate := g.Format(category, g.next)
		g.next++
		key := strings.ToLower(candidate)
		if _, ok := g.taken[key]; ok {
			continue
		}
		g.taken[key] = struct{}{}
		return candidate
	}
}

// Format renders the identifier for seq without consuming it.
func (g *SKUGenerator) Format(category string, seq int) string {
	width := g.Width
	if width <= 0 {
		width = 4
	}
	prefix := g.Prefix
	if prefix == "" {
		prefix = "SKU"
	}
	if g.CategoryCodeLen > 0 {
		return fmt.Sprintf("%s-%s-%0*d", prefix, categoryCode(category, g.CategoryCodeLen), width, seq)
	}
	return fmt.Sprintf("%s-AUTO-%0*d", prefix, width, seq)
}

func categoryCode(category string, n int) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(category) {
		if b.Len() >= n {
			break
		}
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "GEN"
	}
	return b.String()
}
