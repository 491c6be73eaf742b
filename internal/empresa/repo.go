package empresa

import (
	"context"
	"errors"
	"time"

	"agendacerto/internal/googlecal"
	"agendacerto/internal/model"
)

var (
	// ErrNotFound means the requested user or empresa does not exist
	ErrNotFound = errors.New("empresa: not found")
	// ErrEmailTaken means a user with the email already exists
	ErrEmailTaken = errors.New("empresa: email already registered")
	// ErrSlugTaken means an empresa already owns the slug
	ErrSlugTaken = errors.New("empresa: slug already in use")
)

// ProvisionClaimStaleAfter is how long a "provisioning" claim may hold
// before it is considered abandoned, e.g. after a crash mid-provision,
// and can be taken over.
const ProvisionClaimStaleAfter = 15 * time.Minute

// Repository is the persistence surface for users, empresas and their
// Google token bundles. The GORM implementation lives in gorm_repo.go;
// repofakes provides an in-memory one for tests.
type Repository interface {
	CreateUser(ctx context.Context, user *model.User) error
	UserByEmail(ctx context.Context, email string) (*model.User, error)
	UserByID(ctx context.Context, id uint) (*model.User, error)
	UpdateUser(ctx context.Context, user *model.User) error

	CreateEmpresa(ctx context.Context, emp *model.Empresa) error
	EmpresaByID(ctx context.Context, id uint) (*model.Empresa, error)
	EmpresaByUserID(ctx context.Context, userID uint) (*model.Empresa, error)
	EmpresaBySlug(ctx context.Context, slug string) (*model.Empresa, error)
	UpdateEmpresa(ctx context.Context, emp *model.Empresa) error

	// Token bundle storage, keyed by empresa id
	Bundle(ctx context.Context, empresaID uint) (googlecal.Bundle, error)
	SaveBundle(ctx context.Context, empresaID uint, b googlecal.Bundle) error
	ClearBundle(ctx context.Context, empresaID uint) error
	ExpiringWithin(ctx context.Context, window time.Duration) ([]uint, error)

	// Workflow provisioning state. The claim fires from any of the given
	// statuses, or from a "provisioning" claim older than
	// ProvisionClaimStaleAfter.
	ClaimProvisioning(ctx context.Context, empresaID uint, from ...string) (bool, error)
	SaveWorkflow(ctx context.Context, empresaID uint, workflowID, status string, googleConnected bool) error
}
