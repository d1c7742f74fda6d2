package domain

// ExportRow is one trip in the schedule export: a flat, denormalised view
// with dates in display format and the derived fields filled in.
type ExportRow struct {
	Index          int    `json:"index"` // 1-based position in the exported list
	TripID         string `json:"trip_id"`
	DriverName     string `json:"driver_name"`
	DriverCompany  string `json:"driver_company"`
	ClientName     string `json:"client_name"`
	RouteName      string `json:"route_name"`
	StartDate      string `json:"start_date"` // "02.01.2006", empty when unset
	EndDate        string `json:"end_date"`
	Leg            string `json:"leg"`
	Status         string `json:"status"`
	DocumentNumber string `json:"document_number"`
	Notes          string `json:"notes"`
}
