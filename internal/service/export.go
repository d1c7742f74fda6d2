package service

import (
	"fmt"

	"github.com/pkordes/fleet-schedule/internal/domain"
)

// TripLister is the read side of the trip store used by the export.
type TripLister interface {
	List() []domain.Trip
	Archived() []domain.Trip
}

// ExportService assembles a flat export of one trip set.
type ExportService struct {
	trips TripLister
}

// NewExportService constructs an ExportService reading from trips.
func NewExportService(trips TripLister) *ExportService {
	return &ExportService{trips: trips}
}

// Export returns one ExportRow per trip of coll, in the order the store
// lists them.
func (s *ExportService) Export(coll domain.Collection) ([]domain.ExportRow, error) {
	var trips []domain.Trip
	switch coll {
	case domain.CollectionLive:
		trips = s.trips.List()
	case domain.CollectionArchive:
		trips = s.trips.Archived()
	default:
		return nil, fmt.Errorf("%w: unknown collection %q", domain.ErrValidation, coll)
	}

	rows := make([]domain.ExportRow, 0, len(trips))
	for i, t := range trips {
		rows = append(rows, domain.ExportRow{
			Index:          i + 1,
			TripID:         t.ID.String(),
			DriverName:     t.DriverName,
			DriverCompany:  t.DriverCompany,
			ClientName:     t.ClientName,
			RouteName:      t.RouteName,
			StartDate:      domain.FormatOptionalDate(t.StartDate),
			EndDate:        domain.FormatOptionalDate(t.EndDate),
			Leg:            t.Leg.String(),
			Status:         t.Status.String(),
			DocumentNumber: t.DocumentNumber,
			Notes:          t.Notes,
		})
	}
	return rows, nil
}
