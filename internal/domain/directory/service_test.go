package directory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type mockRepo struct {
	doctors map[uuid.UUID]*Doctor
}

func newMockRepo() *mockRepo {
	return &mockRepo{doctors: make(map[uuid.UUID]*Doctor)}
}

func (m *mockRepo) Create(_ context.Context, d *Doctor) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	d.CreatedAt = time.Now()
	d.UpdatedAt = d.CreatedAt
	cp := *d
	m.doctors[d.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	d, ok := m.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, d *Doctor) error {
	existing, ok := m.doctors[d.ID]
	if !ok {
		return ErrDoctorNotFound
	}
	d.Status = existing.Status
	cp := *d
	m.doctors[d.ID] = &cp
	return nil
}

func (m *mockRepo) Search(_ context.Context, params map[string]string, limit, offset int) ([]*Doctor, int, error) {
	var result []*Doctor
	for _, d := range m.doctors {
		if s, ok := params["status"]; ok && string(d.Status) != s {
			continue
		}
		cp := *d
		result = append(result, &cp)
	}
	return result, len(result), nil
}

func (m *mockRepo) SetStatus(_ context.Context, id uuid.UUID, status DoctorStatus) error {
	d, ok := m.doctors[id]
	if !ok {
		return ErrDoctorNotFound
	}
	d.Status = status
	return nil
}

func TestRegisterDoctor(t *testing.T) {
	svc := NewService(newMockRepo())

	d := &Doctor{Name: "Dr. Asha Rao", Email: "asha@example.com", Specialty: "cardiology", ConsultationFee: 50000}
	if err := svc.RegisterDoctor(context.Background(), d); err != nil {
		t.Fatalf("RegisterDoctor: %v", err)
	}
	if d.Status != DoctorPending {
		t.Errorf("status = %s, want %s", d.Status, DoctorPending)
	}
}

func TestRegisterDoctor_Validation(t *testing.T) {
	svc := NewService(newMockRepo())

	cases := []struct {
		name string
		d    Doctor
	}{
		{"missing name", Doctor{Email: "a@b.c"}},
		{"missing email", Doctor{Name: "Dr. X"}},
		{"negative fee", Doctor{Name: "Dr. X", Email: "a@b.c", ConsultationFee: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := tc.d
			if err := svc.RegisterDoctor(context.Background(), &d); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestApproveDoctor(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	d := &Doctor{Name: "Dr. X", Email: "x@example.com"}
	if err := svc.RegisterDoctor(context.Background(), d); err != nil {
		t.Fatalf("register: %v", err)
	}

	out, err := svc.ApproveDoctor(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("ApproveDoctor: %v", err)
	}
	if out.Status != DoctorApproved {
		t.Errorf("status = %s, want %s", out.Status, DoctorApproved)
	}
}

func TestSuspendDoctor(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	d := &Doctor{Name: "Dr. X", Email: "x@example.com"}
	if err := svc.RegisterDoctor(context.Background(), d); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.ApproveDoctor(context.Background(), d.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}

	out, err := svc.SuspendDoctor(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("SuspendDoctor: %v", err)
	}
	if out.Status != DoctorSuspended {
		t.Errorf("status = %s, want %s", out.Status, DoctorSuspended)
	}
}

func TestApproveDoctor_NotFound(t *testing.T) {
	svc := NewService(newMockRepo())

	_, err := svc.ApproveDoctor(context.Background(), uuid.New())
	if !errors.Is(err, ErrDoctorNotFound) {
		t.Errorf("err = %v, want ErrDoctorNotFound", err)
	}
}

func TestUpdateProfile_KeepsUnsetFields(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	bio := "20 years of practice"
	d := &Doctor{Name: "Dr. X", Email: "x@example.com", Specialty: "dermatology", Bio: &bio}
	if err := svc.RegisterDoctor(context.Background(), d); err != nil {
		t.Fatalf("register: %v", err)
	}

	out, err := svc.UpdateProfile(context.Background(), &Doctor{ID: d.ID, ConsultationFee: 30000})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if out.Name != "Dr. X" || out.Specialty != "dermatology" {
		t.Errorf("unset fields overwritten: %+v", out)
	}
	if out.ConsultationFee != 30000 {
		t.Errorf("fee = %d, want 30000", out.ConsultationFee)
	}
	if out.Bio == nil || *out.Bio != bio {
		t.Error("bio lost on partial update")
	}
}

func TestParseDoctorStatus(t *testing.T) {
	if _, err := ParseDoctorStatus("APPROVED"); err != nil {
		t.Errorf("ParseDoctorStatus(APPROVED): %v", err)
	}
	if _, err := ParseDoctorStatus("RETIRED"); err == nil {
		t.Error("ParseDoctorStatus accepted an unknown status")
	}
}
