package model

import (
	"database/sql/driver"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type Role string

const (
	AdminRole   Role = "admin"
	StaffRole   Role = "staff"
	StudentRole Role = "student"
)

// IsValid returns true if Role is known
func (r Role) IsValid() bool {
	switch r {
	case AdminRole, StaffRole, StudentRole:
		return true
	}
	return false
}

func (r *Role) Scan(value interface{ any }) error {
	v, ok := value.(string)
	if !ok {
		return fmt.Errorf("cannot scan %T into Role", value)
	}
	*r = Role(v)
	return nil
}

func (r Role) Value() (driver.Value, error) {
	if !r.IsValid() {
		return nil, fmt.Errorf("invalid Role %q", r)
	}
	return string(r), nil
}

// A UserProfile is the application-side row that mirrors an account in the
// backend identity store.
//
// The backend creates one profile per auth user via a trigger; this code only
// ever flips role/approval fields on it. Exactly one profile exists per email.
type UserProfile struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	FirstName  string     `json:"first_name"`
	LastName   string     `json:"last_name"`
	Role       Role       `json:"role"`
	IsApproved bool       `json:"is_approved"`
	ApprovedBy *string    `json:"approved_by"`
	ApprovedAt *time.Time `json:"approved_at"`
	CreatedAt  *time.Time `json:"created_at"`
}

// Medication as served by the REST API; only the columns the smoke tests
// select are mapped.
type Medication struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Strength string `json:"strength"`
}

type InventoryItem struct {
	MedicationID string `json:"medication_id"`
	QtyUnits     int    `json:"qty_units"`
	LotNumber    string `json:"lot_number"`
}

type DispensingLog struct {
	ID               string `json:"id,omitempty"`
	LogDate          string `json:"log_date"`
	PatientID        string `json:"patient_id"`
	MedicationID     string `json:"medication_id"`
	MedicationName   string `json:"medication_name"`
	DoseInstructions string `json:"dose_instructions"`
	LotNumber        string `json:"lot_number"`
	ExpirationDate   string `json:"expiration_date"`
	AmountDispensed  string `json:"amount_dispensed"`
	PhysicianName    string `json:"physician_name"`
	StudentName      string `json:"student_name"`
	Notes            string `json:"notes"`
}

type AuditLog struct {
	gorm.Model
	Tool     string `gorm:"index"` // e.g. "setup-auth"
	Step     string `gorm:"index"` // e.g. "migration", "ensure-admin", "verify"
	Action   string `gorm:"index"` // e.g. "ADMIN_CREATED", "ADMIN_RECONCILED"
	Message  string // human-readable message, optional
	Metadata string // optional JSON blob for advanced inspection
}
