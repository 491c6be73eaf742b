// Package repofakes provides an in-memory empresa.Repository for tests.
package repofakes

import (
	"context"
	"sync"
	"time"

	"agendacerto/internal/empresa"
	"agendacerto/internal/googlecal"
	"agendacerto/internal/model"
)

// FakeRepository keeps users and empresas in maps guarded by one mutex
type FakeRepository struct {
	mu         sync.Mutex
	users      map[uint]*model.User
	empresas   map[uint]*model.Empresa
	nextUserID uint
	nextEmpID  uint

	// Now is the clock used for timestamps, ExpiringWithin and claim
	// staleness; tests may replace it
	Now func() time.Time
}

// New returns an empty fake repository
func New() *FakeRepository {
	return &FakeRepository{
		users:      make(map[uint]*model.User),
		empresas:   make(map[uint]*model.Empresa),
		nextUserID: 1,
		nextEmpID:  1,
		Now:        time.Now,
	}
}

func (f *FakeRepository) CreateUser(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == user.Email {
			return empresa.ErrEmailTaken
		}
	}
	user.ID = f.nextUserID
	f.nextUserID++
	user.CreatedAt = f.Now()
	user.UpdatedAt = user.CreatedAt
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *FakeRepository) UserByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, empresa.ErrNotFound
}

func (f *FakeRepository) UserByID(_ context.Context, id uint) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, empresa.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *FakeRepository) UpdateUser(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[user.ID]; !ok {
		return empresa.ErrNotFound
	}
	user.UpdatedAt = f.Now()
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *FakeRepository) CreateEmpresa(_ context.Context, emp *model.Empresa) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.empresas {
		if e.Slug == emp.Slug {
			return empresa.ErrSlugTaken
		}
	}
	emp.ID = f.nextEmpID
	f.nextEmpID++
	emp.CreatedAt = f.Now()
	emp.UpdatedAt = emp.CreatedAt
	cp := *emp
	f.empresas[emp.ID] = &cp
	return nil
}

func (f *FakeRepository) EmpresaByID(_ context.Context, id uint) (*model.Empresa, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.empresas[id]
	if !ok {
		return nil, empresa.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *FakeRepository) EmpresaByUserID(_ context.Context, userID uint) (*model.Empresa, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.empresas {
		if e.UserID == userID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, empresa.ErrNotFound
}

func (f *FakeRepository) EmpresaBySlug(_ context.Context, slug string) (*model.Empresa, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.empresas {
		if e.Slug == slug {
			cp := *e
			return &cp, nil
		}
	}
	return nil, empresa.ErrNotFound
}

func (f *FakeRepository) UpdateEmpresa(_ context.Context, emp *model.Empresa) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.empresas[emp.ID]; !ok {
		return empresa.ErrNotFound
	}
	emp.UpdatedAt = f.Now()
	cp := *emp
	f.empresas[emp.ID] = &cp
	return nil
}

func (f *FakeRepository) Bundle(_ context.Context, empresaID uint) (googlecal.Bundle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.empresas[empresaID]
	if !ok {
		return googlecal.Bundle{}, empresa.ErrNotFound
	}
	return googlecal.Bundle{
		AccessToken:  e.GoogleAccessToken,
		RefreshToken: e.GoogleRefreshToken,
		Expiry:       e.GoogleTokenExpiry,
		Scope:        e.GoogleScope,
	}, nil
}

func (f *FakeRepository) SaveBundle(_ context.Context, empresaID uint, b googlecal.Bundle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.empresas[empresaID]
	if !ok {
		return empresa.ErrNotFound
	}
	e.GoogleAccessToken = b.AccessToken
	e.GoogleRefreshToken = b.RefreshToken
	e.GoogleTokenExpiry = b.Expiry
	e.GoogleScope = b.Scope
	e.GoogleConnected = true
	return nil
}

func (f *FakeRepository) ClearBundle(_ context.Context, empresaID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.empresas[empresaID]
	if !ok {
		return empresa.ErrNotFound
	}
	e.GoogleAccessToken = ""
	e.GoogleRefreshToken = ""
	e.GoogleTokenExpiry = time.Time{}
	e.GoogleScope = ""
	e.GoogleConnected = false
	return nil
}

func (f *FakeRepository) ExpiringWithin(_ context.Context, window time.Duration) ([]uint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uint
	cutoff := f.Now().Add(window)
	for id, e := range f.empresas {
		if e.GoogleRefreshToken != "" && e.GoogleTokenExpiry.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *FakeRepository) ClaimProvisioning(_ context.Context, empresaID uint, from ...string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.empresas[empresaID]
	if !ok {
		return false, nil
	}
	if len(from) == 0 {
		from = []string{model.WorkflowStatusInactive, model.WorkflowStatusError}
	}
	claimable := false
	for _, st := range from {
		if e.N8NWorkflowStatus == st {
			claimable = true
		}
	}
	if e.N8NWorkflowStatus == model.WorkflowStatusProvisioning &&
		e.UpdatedAt.Before(f.Now().Add(-empresa.ProvisionClaimStaleAfter)) {
		claimable = true
	}
	if !claimable {
		return false, nil
	}
	e.N8NWorkflowStatus = model.WorkflowStatusProvisioning
	e.UpdatedAt = f.Now()
	return true, nil
}

func (f *FakeRepository) SaveWorkflow(_ context.Context, empresaID uint, workflowID, status string, googleConnected bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.empresas[empresaID]
	if !ok {
		return empresa.ErrNotFound
	}
	e.N8NWorkflowID = workflowID
	e.N8NWorkflowStatus = status
	e.GoogleConnected = googleConnected
	e.UpdatedAt = f.Now()
	return nil
}
