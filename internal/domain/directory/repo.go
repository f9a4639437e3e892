package directory

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrDoctorNotFound = errors.New("doctor not found")

// Repository stores doctor profiles.
type Repository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	Update(ctx context.Context, d *Doctor) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Doctor, int, error)
	SetStatus(ctx context.Context, id uuid.UUID, status DoctorStatus) error
}
