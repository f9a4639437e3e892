package directory

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type Service struct {
	doctors Repository
}

func NewService(doctors Repository) *Service {
	return &Service{doctors: doctors}
}

// RegisterDoctor creates a profile in PENDING status. An admin approves
// it before the doctor becomes bookable.
func (s *Service) RegisterDoctor(ctx context.Context, d *Doctor) error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(d.Email) == "" {
		return fmt.Errorf("email is required")
	}
	if d.ConsultationFee < 0 {
		return fmt.Errorf("consultation_fee must not be negative")
	}
	d.Status = DoctorPending
	return s.doctors.Create(ctx, d)
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

// UpdateProfile changes the mutable profile fields. Status is managed
// separately through the approval operations.
func (s *Service) UpdateProfile(ctx context.Context, d *Doctor) (*Doctor, error) {
	if d.ConsultationFee < 0 {
		return nil, fmt.Errorf("consultation_fee must not be negative")
	}
	current, err := s.doctors.GetByID(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	if d.Name == "" {
		d.Name = current.Name
	}
	if d.Email == "" {
		d.Email = current.Email
	}
	if d.Specialty == "" {
		d.Specialty = current.Specialty
	}
	if d.Bio == nil {
		d.Bio = current.Bio
	}
	if err := s.doctors.Update(ctx, d); err != nil {
		return nil, err
	}
	return s.doctors.GetByID(ctx, d.ID)
}

func (s *Service) SearchDoctors(ctx context.Context, params map[string]string, limit, offset int) ([]*Doctor, int, error) {
	if st, ok := params["status"]; ok {
		if _, err := ParseDoctorStatus(st); err != nil {
			return nil, 0, err
		}
	}
	return s.doctors.Search(ctx, params, limit, offset)
}

func (s *Service) ApproveDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	if err := s.doctors.SetStatus(ctx, id, DoctorApproved); err != nil {
		return nil, err
	}
	return s.doctors.GetByID(ctx, id)
}

func (s *Service) SuspendDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	if err := s.doctors.SetStatus(ctx, id, DoctorSuspended); err != nil {
		return nil, err
	}
	return s.doctors.GetByID(ctx, id)
}
