package products

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a catalog record.
type Product struct {
	ID              int64               `json:"id"`
	DivisionID      int64               `json:"division_id"`
	CategoryID      int64               `json:"category_id"`
	SKU             string              `json:"sku"`
	Barcode         *string             `json:"barcode,omitempty"`
	Name            string              `json:"name"`
	Specifications  string              `json:"specifications,omitempty"`
	ProductClass    string              `json:"product_class"`
	IsCustomizable  bool                `json:"is_customizable"`
	PrintType       *string             `json:"print_type,omitempty"`
	Unit            string              `json:"unit"`
	MOQ             *int                `json:"moq,omitempty"`
	SleeveQuantity  *int                `json:"sleeve_quantity,omitempty"`
	BoxQuantity     *int                `json:"box_quantity,omitempty"`
	SellingPrice    decimal.Decimal     `json:"selling_price"`
	ListPrice       decimal.NullDecimal `json:"list_price"`
	HSNCode         string              `json:"hsn_code,omitempty"`
	GSTPercent      *float64            `json:"gst_percent,omitempty"`
	StockType       string              `json:"stock_type"`
	WarehouseZone   string              `json:"warehouse_zone,omitempty"`
	Remarks         string              `json:"remarks,omitempty"`
	IsActive        bool                `json:"is_active"`
	IsAutoSKU       bool                `json:"is_auto_sku"`
	ImportBatchID   *uuid.UUID          `json:"import_batch_id,omitempty"`
	ImportNotes     string              `json:"import_notes,omitempty"`
	SourceRowNumber int                 `json:"source_row_number,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`

	// ReplaceExisting selects upsert on (division_id, sku) instead of a plain
	// insert. It is a write mode, not a stored column.
	ReplaceExisting bool `json:"-"`
}
