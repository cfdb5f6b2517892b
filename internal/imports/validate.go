package imports

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Product classes.
const (
	ClassStandard    = "standard"
	ClassCustomPrint = "custom_print"
	ClassMadeToOrder = "made_to_order"
)

// Stock types.
const (
	StockStocked     = "stocked"
	StockMadeToOrder = "made_to_order"
)

var (
	AllowedUnits          = []string{"PCS", "KG", "BOX", "SET", "PAIR", "METER", "ROLL"}
	AllowedProductClasses = []string{ClassStandard, ClassCustomPrint, ClassMadeToOrder}
	AllowedStockTypes     = []string{StockStocked, StockMadeToOrder}
)

// DefaultValidateWorkers bounds the parallel field checks.
const DefaultValidateWorkers = 4

// Validator checks parsed rows. The zero value is ready to use.
type Validator struct {
	Workers int
}

// Validate checks rows with the default Validator.
func Validate(rows []ParsedRow, existing []string, gen *SKUGenerator) []ValidatedRow {
	return Validator{}.Validate(rows, existing, gen)
}

// Validate runs the field rules in parallel, then assigns auto-SKUs in row
// order and applies the cross-row identifier rules over the full set.
func (v Validator) Validate(rows []ParsedRow, existing []string, gen *SKUGenerator) []ValidatedRow {
	if gen == nil {
		gen = NewSKUGenerator("", 0, existing)
	}
	workers := v.Workers
	if workers <= 0 {
		workers = DefaultValidateWorkers
	}

	out := make([]ValidatedRow, len(rows))
	required := make([][]ValidationMessage, len(rows))
	domain := make([][]ValidationMessage, len(rows))

	var g errgroup.Group
	g.SetLimit(workers)
	for i := range rows {
		g.Go(func() error {
			row := rows[i]
			required[i] = requiredRules(row)
			domain[i] = domainRules(&row)
			out[i] = ValidatedRow{ParsedRow: row}
			return nil
		})
	}
	_ = g.Wait()

	fileSKUs := make(map[string][]int)
	for i, row := range rows {
		if row.SKU == "" {
			continue
		}
		key := strings.ToLower(row.SKU)
		fileSKUs[key] = append(fileSKUs[key], i)
		gen.Reserve(row.SKU)
	}

	catalog := make(map[string]struct{}, len(existing))
	for _, s := range existing {
		catalog[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}

	for i := range out {
		row := &out[i]
		row.Messages = append(row.Messages, required[i]...)
		if row.SKU == "" {
			row.SKU = gen.Next(row.CategoryName)
			row.IsAutoSKU = true
			row.addMessage(SeverityInfo, "sku", CodeSKUGenerated, "Auto-generated SKU: "+row.SKU)
		}
		row.Messages = append(row.Messages, domain[i]...)

		if row.IsAutoSKU {
			continue
		}
		key := strings.ToLower(row.SKU)
		if idx := fileSKUs[key]; len(idx) > 1 {
			nums := make([]string, len(idx))
			for j, k := range idx {
				nums[j] = strconv.Itoa(rows[k].RowNumber)
			}
			row.addMessage(SeverityError, "sku", CodeSKUDuplicateInFile,
				fmt.Sprintf("Duplicate SKU %q found in rows: %s", row.SKU, strings.Join(nums, ", ")))
			row.ConflictType = ConflictDuplicateInFile
		}
		if _, ok := catalog[key]; ok {
			row.addMessage(SeverityWarning, "sku", CodeSKUExists, existsMessage(row.SKU))
			if row.ConflictType == ConflictNone {
				row.ConflictType = ConflictExistingProduct
			}
		}
	}
	return out
}

func existsMessage(sku string) string {
	return fmt.Sprintf("SKU %q already exists in the catalog", sku)
}

func requiredRules(row ParsedRow) []ValidationMessage {
	var msgs []ValidationMessage
	add := func(field, code, text string) {
		msgs = append(msgs, ValidationMessage{Severity: SeverityError, Field: field, Code: code, Message: text})
	}
	if row.Name == "" {
		add("name", CodeNameRequired, "Product name is required")
	}
	if row.CategoryName == "" {
		add("category", CodeCategoryRequired, "Category is required")
	}
	if row.Unit == "" {
		add("unit", CodeUnitRequired, "Unit is required")
	}
	if !row.SellingPrice.IsPositive() {
		add("selling_price", CodeSellingPriceInvalid, "Selling price must be greater than 0")
	}
	if row.ProductClass == "" {
		add("product_class", CodeProductClassRequired, "Product class is required")
	}
	return msgs
}

// domainRules checks enumerations and pricing. An unknown stock type falls
// back to stocked on row.
func domainRules(row *ParsedRow) []ValidationMessage {
	var msgs []ValidationMessage
	add := func(sev Severity, field, code, text string) {
		msgs = append(msgs, ValidationMessage{Severity: sev, Field: field, Code: code, Message: text})
	}
	if row.Unit != "" && !slices.Contains(AllowedUnits, strings.ToUpper(row.Unit)) {
		add(SeverityError, "unit", CodeUnitInvalid,
			fmt.Sprintf("Invalid unit %q. Must be one of: %s", row.Unit, strings.Join(AllowedUnits, ", ")))
	}
	if row.ProductClass != "" && !slices.Contains(AllowedProductClasses, row.ProductClass) {
		add(SeverityError, "product_class", CodeProductClassInvalid,
			fmt.Sprintf("Invalid product class %q. Must be one of: %s", row.ProductClass, strings.Join(AllowedProductClasses, ", ")))
	}
	if row.StockType != "" && !slices.Contains(AllowedStockTypes, row.StockType) {
		add(SeverityWarning, "stock_type", CodeStockTypeInvalid,
			fmt.Sprintf("Invalid stock type %q. Defaulting to %q", row.StockType, StockStocked))
		row.StockType = StockStocked
	}
	if row.ListPrice.Valid && row.SellingPrice.IsPositive() && row.ListPrice.Decimal.LessThan(row.SellingPrice) {
		add(SeverityWarning, "list_price", CodeListPriceBelowSelling,
			fmt.Sprintf("List price (%s) is less than selling price (%s)", row.ListPrice.Decimal.String(), row.SellingPrice.String()))
	}
	return msgs
}
