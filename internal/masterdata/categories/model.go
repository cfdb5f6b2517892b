package categories

// Category represents a product category within a division.
type Category struct {
	ID         int64    `json:"id"`
	DivisionID int64    `json:"division_id"`
	Name       string   `json:"name"`
	HSNCode    string   `json:"hsn_code,omitempty"`
	GSTPercent *float64 `json:"gst_percent,omitempty"`
	SortOrder  int      `json:"sort_order"`
	IsActive   bool     `json:"is_active"`
}
