package divisions

// Division is a business-unit partition of the catalog.
type Division struct {
	ID       int64  `json:"id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

// Known division codes.
const (
	CodeAPT   = "APT"
	CodeHOSPI = "HOSPI"
)
