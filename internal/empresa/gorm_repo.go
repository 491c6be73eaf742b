package empresa

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"agendacerto/internal/googlecal"
	"agendacerto/internal/model"
	"agendacerto/prometheus"
)

// GormRepository implements Repository over a Postgres database
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository wraps the given database handle
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) CreateUser(ctx context.Context, user *model.User) error {
	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

func (r *GormRepository) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())
	var user model.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, notFoundOr(err)
	}
	return &user, nil
}

func (r *GormRepository) UserByID(ctx context.Context, id uint) (*model.User, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())
	var user model.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFoundOr(err)
	}
	return &user, nil
}

func (r *GormRepository) UpdateUser(ctx context.Context, user *model.User) error {
	defer prometheus.TrackDBOperation("update")(time.Now())
	return r.db.WithContext(ctx).Save(user).Error
}

func (r *GormRepository) CreateEmpresa(ctx context.Context, emp *model.Empresa) error {
	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := r.db.WithContext(ctx).Create(emp).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrSlugTaken
		}
		return err
	}
	return nil
}

func (r *GormRepository) EmpresaByID(ctx context.Context, id uint) (*model.Empresa, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())
	var emp model.Empresa
	if err := r.db.WithContext(ctx).First(&emp, id).Error; err != nil {
		return nil, notFoundOr(err)
	}
	return &emp, nil
}

func (r *GormRepository) EmpresaByUserID(ctx context.Context, userID uint) (*model.Empresa, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())
	var emp model.Empresa
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&emp).Error; err != nil {
		return nil, notFoundOr(err)
	}
	return &emp, nil
}

func (r *GormRepository) EmpresaBySlug(ctx context.Context, slug string) (*model.Empresa, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())
	var emp model.Empresa
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&emp).Error; err != nil {
		return nil, notFoundOr(err)
	}
	return &emp, nil
}

func (r *GormRepository) UpdateEmpresa(ctx context.Context, emp *model.Empresa) error {
	defer prometheus.TrackDBOperation("update")(time.Now())
	return r.db.WithContext(ctx).Save(emp).Error
}

func (r *GormRepository) Bundle(ctx context.Context, empresaID uint) (googlecal.Bundle, error) {
	emp, err := r.EmpresaByID(ctx, empresaID)
	if err != nil {
		return googlecal.Bundle{}, err
	}
	return googlecal.Bundle{
		AccessToken:  emp.GoogleAccessToken,
		RefreshToken: emp.GoogleRefreshToken,
		Expiry:       emp.GoogleTokenExpiry,
		Scope:        emp.GoogleScope,
	}, nil
}

func (r *GormRepository) SaveBundle(ctx context.Context, empresaID uint, b googlecal.Bundle) error {
	defer prometheus.TrackDBOperation("update")(time.Now())
	return r.db.WithContext(ctx).Model(&model.Empresa{}).
		Where("id = ?", empresaID).
		Updates(map[string]interface{}{
			"google_access_token":  b.AccessToken,
			"google_refresh_token": b.RefreshToken,
			"google_token_expiry":  b.Expiry,
			"google_scope":         b.Scope,
			"google_connected":     true,
		}).Error
}

func (r *GormRepository) ClearBundle(ctx context.Context, empresaID uint) error {
	defer prometheus.TrackDBOperation("update")(time.Now())
	return r.db.WithContext(ctx).Model(&model.Empresa{}).
		Where("id = ?", empresaID).
		Updates(map[string]interface{}{
			"google_access_token":  "",
			"google_refresh_token": "",
			"google_token_expiry":  time.Time{},
			"google_scope":         "",
			"google_connected":     false,
		}).Error
}

func (r *GormRepository) ExpiringWithin(ctx context.Context, window time.Duration) ([]uint, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())
	var ids []uint
	err := r.db.WithContext(ctx).Model(&model.Empresa{}).
		Where("google_refresh_token <> '' AND google_token_expiry < ?", time.Now().Add(window)).
		Pluck("id", &ids).Error
	return ids, err
}

// ClaimProvisioning flips the workflow status to "provisioning" only when no
// other provisioning run holds it. The single UPDATE makes the claim atomic
// across concurrent requests and instances. A claim stuck in "provisioning"
// past the staleness cutoff is treated as abandoned and can be retaken.
func (r *GormRepository) ClaimProvisioning(ctx context.Context, empresaID uint, from ...string) (bool, error) {
	defer prometheus.TrackDBOperation("update")(time.Now())
	if len(from) == 0 {
		from = []string{model.WorkflowStatusInactive, model.WorkflowStatusError}
	}
	res := r.db.WithContext(ctx).Model(&model.Empresa{}).
		Where("id = ? AND (n8n_workflow_status IN ? OR (n8n_workflow_status = ? AND updated_at < ?))",
			empresaID, from, model.WorkflowStatusProvisioning,
			time.Now().Add(-ProvisionClaimStaleAfter)).
		Update("n8n_workflow_status", model.WorkflowStatusProvisioning)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormRepository) SaveWorkflow(ctx context.Context, empresaID uint, workflowID, status string, googleConnected bool) error {
	defer prometheus.TrackDBOperation("update")(time.Now())
	return r.db.WithContext(ctx).Model(&model.Empresa{}).
		Where("id = ?", empresaID).
		Updates(map[string]interface{}{
			"n8n_workflow_id":     workflowID,
			"n8n_workflow_status": status,
			"google_connected":    googleConnected,
		}).Error
}

func notFoundOr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
