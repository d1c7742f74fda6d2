package domain

import (
	"time"

	"github.com/google/uuid"
)

// Driver is a person who can be assigned to trips. IsOwn separates the
// company's own drivers from subcontractor drivers.
type Driver struct {
	ID               uuid.UUID  `json:"id"`
	Name             string     `json:"name"`
	Phone            string     `json:"phone"`
	Company          string     `json:"company"`
	IsOwn            bool       `json:"is_own"`
	Tractor          string     `json:"tractor"`
	Tanker           string     `json:"tanker"`
	DriverCardExpiry *time.Time `json:"driver_card_expiry,omitempty"`
	ADRExpiry        *time.Time `json:"adr_expiry,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// VehicleKind distinguishes tractor units from tank trailers.
type VehicleKind string

const (
	VehicleTractor VehicleKind = "tractor"
	VehicleTanker  VehicleKind = "tanker"
)

// Vehicle is a tractor or tanker with its compliance dates.
type Vehicle struct {
	ID               uuid.UUID   `json:"id"`
	Number           string      `json:"number"`
	Kind             VehicleKind `json:"kind"`
	InsuranceExpiry  *time.Time  `json:"insurance_expiry,omitempty"`
	ADRExpiry        *time.Time  `json:"adr_expiry,omitempty"`
	InspectionExpiry *time.Time  `json:"inspection_expiry,omitempty"`
	Brand            string      `json:"brand"`
	Model            string      `json:"model"`
	VIN              string      `json:"vin"`
	Notes            string      `json:"notes"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// Document names a compliance document checked by the expiry classifier.
type Document string

const (
	DocDriverCard Document = "driver_card"
	DocADR        Document = "adr"
	DocInsurance  Document = "insurance"
	DocInspection Document = "inspection"
)

// ComplianceItem is one classified document of one driver or vehicle.
type ComplianceItem struct {
	OwnerID   uuid.UUID  `json:"owner_id"`
	OwnerKind string     `json:"owner_kind"` // "driver", "tractor" or "tanker"
	OwnerName string     `json:"owner_name"`
	Document  Document   `json:"document"`
	Date      *time.Time `json:"date,omitempty"`
	Expiry    Expiry     `json:"expiry"`
}
