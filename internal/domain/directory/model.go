package directory

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DoctorStatus is the directory lifecycle of a doctor's profile. Only
// approved doctors are bookable.
type DoctorStatus string

const (
	DoctorPending   DoctorStatus = "PENDING"
	DoctorApproved  DoctorStatus = "APPROVED"
	DoctorSuspended DoctorStatus = "SUSPENDED"
)

// ParseDoctorStatus validates a status string against the closed set.
func ParseDoctorStatus(s string) (DoctorStatus, error) {
	switch DoctorStatus(s) {
	case DoctorPending, DoctorApproved, DoctorSuspended:
		return DoctorStatus(s), nil
	}
	return "", fmt.Errorf("invalid doctor status: %q", s)
}

// Doctor maps to the doctor table. ConsultationFee is in minor
// currency units; zero means free consultations.
type Doctor struct {
	ID              uuid.UUID    `db:"id" json:"id"`
	Name            string       `db:"name" json:"name"`
	Email           string       `db:"email" json:"email"`
	Specialty       string       `db:"specialty" json:"specialty"`
	Status          DoctorStatus `db:"status" json:"status"`
	ConsultationFee int64        `db:"consultation_fee" json:"consultation_fee"`
	Bio             *string      `db:"bio" json:"bio,omitempty"`
	CreatedAt       time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at" json:"updated_at"`
}
