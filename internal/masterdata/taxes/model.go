package taxes

// Preset is a named HSN/GST pair offered as a one-click assignment.
type Preset struct {
	Name       string  `json:"name"`
	HSNCode    string  `json:"hsn_code"`
	GSTPercent float64 `json:"gst_percent"`
}

// HSNCode is a reference entry in the HSN lookup list.
type HSNCode struct {
	Code        string  `json:"code"`
	Description string  `json:"description"`
	GSTPercent  float64 `json:"gst_percent"`
}

// GSTRates lists the slabs a category may be assigned.
var GSTRates = []float64{0, 5, 12, 18, 28}

// Presets returns the quick-apply presets.
func Presets() []Preset {
	return []Preset{
		{Name: "Paper", HSNCode: "4823", GSTPercent: 18},
		{Name: "Plastic", HSNCode: "3924", GSTPercent: 18},
		{Name: "Ceramic", HSNCode: "6912", GSTPercent: 12},
	}
}

// Reference returns the HSN codes commonly used for packaging and tableware.
func Reference() []HSNCode {
	return []HSNCode{
		{Code: "3924", Description: "Plastic tableware and kitchenware", GSTPercent: 18},
		{Code: "4823", Description: "Paper cups, plates and trays", GSTPercent: 18},
		{Code: "6912", Description: "Ceramic tableware", GSTPercent: 12},
		{Code: "7013", Description: "Glassware", GSTPercent: 18},
		{Code: "7323", Description: "Steel kitchenware", GSTPercent: 18},
		{Code: "7615", Description: "Aluminium foil containers", GSTPercent: 18},
		{Code: "3926", Description: "Other articles of plastic", GSTPercent: 18},
		{Code: "4819", Description: "Cartons and boxes of paper", GSTPercent: 18},
		{Code: "4420", Description: "Wooden tableware", GSTPercent: 12},
		{Code: "3923", Description: "Plastic containers and closures", GSTPercent: 18},
		{Code: "6911", Description: "Porcelain tableware", GSTPercent: 12},
	}
}
