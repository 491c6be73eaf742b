package empresa

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"agendacerto/internal/model"
	"agendacerto/internal/slugify"
)

var (
	// ErrInvalidCredentials covers both unknown email and wrong password
	ErrInvalidCredentials = errors.New("empresa: invalid credentials")
	// ErrUserInactive means the account exists but has been deactivated
	ErrUserInactive = errors.New("empresa: user is inactive")
	// ErrValidation wraps input problems the caller should report as 400
	ErrValidation = errors.New("empresa: invalid input")
)

// SignupInput is everything needed to open an account with its empresa.
// The public signup form sends the empresa name as companyName; nome is
// accepted as well and wins when both are present.
type SignupInput struct {
	Email         string  `json:"email"`
	Password      string  `json:"password"`
	Nome          string  `json:"nome"`
	CompanyName   string  `json:"companyName"`
	RamoAtividade string  `json:"ramo_atividade"`
	InfoGerais    *string `json:"info_gerais,omitempty"`
	Telefone      *string `json:"telefone,omitempty"`
}

// UpdateInput carries the mutable empresa profile fields. Nil means
// "leave unchanged".
type UpdateInput struct {
	Nome          *string `json:"nome,omitempty"`
	RamoAtividade *string `json:"ramo_atividade,omitempty"`
	InfoGerais    *string `json:"info_gerais,omitempty"`
	LogoURL       *string `json:"logo_url,omitempty"`
}

// Service implements account and empresa lifecycle on top of a Repository
type Service struct {
	repo Repository
}

// NewService builds the empresa service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Signup creates a user plus its empresa in one step. The empresa starts
// disconnected from Google with an inactive workflow; its slug is derived
// from the nome, suffixed with a counter when already taken.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*model.User, *model.Empresa, error) {
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	in.Nome = strings.TrimSpace(in.Nome)
	if in.Nome == "" {
		in.Nome = strings.TrimSpace(in.CompanyName)
	}

	if in.Email == "" || !strings.Contains(in.Email, "@") {
		return nil, nil, fmt.Errorf("%w: valid email is required", ErrValidation)
	}
	if len(in.Password) < 8 {
		return nil, nil, fmt.Errorf("%w: password must be at least 8 characters", ErrValidation)
	}
	if in.Nome == "" {
		return nil, nil, fmt.Errorf("%w: nome is required", ErrValidation)
	}
	if in.RamoAtividade == "" {
		in.RamoAtividade = "outros"
	}

	if _, err := s.repo.UserByEmail(ctx, in.Email); err == nil {
		return nil, nil, ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return nil, nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, err
	}

	user := &model.User{
		Email:    in.Email,
		Password: string(hashed),
		IsActive: true,
		Phone:    in.Telefone,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, nil, err
	}

	slug, err := s.availableSlug(ctx, in.Nome)
	if err != nil {
		return nil, nil, err
	}

	emp := &model.Empresa{
		UserID:            user.ID,
		Nome:              in.Nome,
		Slug:              slug,
		RamoAtividade:     in.RamoAtividade,
		InfoGerais:        in.InfoGerais,
		GoogleConnected:   false,
		N8NWorkflowStatus: model.WorkflowStatusInactive,
	}
	if err := s.repo.CreateEmpresa(ctx, emp); err != nil {
		return nil, nil, err
	}
	return user, emp, nil
}

// Authenticate verifies the email/password pair and returns the user
func (s *Service) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, err := s.repo.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	return user, nil
}

// ByUser returns the empresa owned by the given user
func (s *Service) ByUser(ctx context.Context, userID uint) (*model.Empresa, error) {
	return s.repo.EmpresaByUserID(ctx, userID)
}

// ByID returns an empresa by id
func (s *Service) ByID(ctx context.Context, id uint) (*model.Empresa, error) {
	return s.repo.EmpresaByID(ctx, id)
}

// Update applies the given profile changes. Renaming does not change the
// slug: share links and workflow names keep working.
func (s *Service) Update(ctx context.Context, empresaID uint, in UpdateInput) (*model.Empresa, error) {
	emp, err := s.repo.EmpresaByID(ctx, empresaID)
	if err != nil {
		return nil, err
	}
	if in.Nome != nil {
		nome := strings.TrimSpace(*in.Nome)
		if nome == "" {
			return nil, fmt.Errorf("%w: nome cannot be empty", ErrValidation)
		}
		emp.Nome = nome
	}
	if in.RamoAtividade != nil {
		emp.RamoAtividade = *in.RamoAtividade
	}
	if in.InfoGerais != nil {
		emp.InfoGerais = in.InfoGerais
	}
	if in.LogoURL != nil {
		emp.LogoURL = in.LogoURL
	}
	if err := s.repo.UpdateEmpresa(ctx, emp); err != nil {
		return nil, err
	}
	return emp, nil
}

// ProfileInput carries the mutable user profile fields
type ProfileInput struct {
	FullName  *string `json:"full_name,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// Profile returns the user record for the authenticated user
func (s *Service) Profile(ctx context.Context, userID uint) (*model.User, error) {
	return s.repo.UserByID(ctx, userID)
}

// UpdateProfile applies profile changes to the user
func (s *Service) UpdateProfile(ctx context.Context, userID uint, in ProfileInput) (*model.User, error) {
	user, err := s.repo.UserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if in.FullName != nil {
		user.FullName = in.FullName
	}
	if in.Phone != nil {
		user.Phone = in.Phone
	}
	if in.AvatarURL != nil {
		user.AvatarURL = in.AvatarURL
	}
	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ChangePassword verifies the current password, stores the new hash and
// clears the must-change flag.
func (s *Service) ChangePassword(ctx context.Context, userID uint, current, next string) error {
	user, err := s.repo.UserByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(current)); err != nil {
		return ErrInvalidCredentials
	}
	if len(next) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", ErrValidation)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user.Password = string(hashed)
	user.MustChangePassword = false
	return s.repo.UpdateUser(ctx, user)
}

// availableSlug slugifies the nome and walks a numeric suffix until the
// slug is free.
func (s *Service) availableSlug(ctx context.Context, nome string) (string, error) {
	base := slugify.Slugify(nome)
	if base == "" {
		return "", fmt.Errorf("%w: nome produces an empty slug", ErrValidation)
	}
	slug := base
	for i := 2; ; i++ {
		_, err := s.repo.EmpresaBySlug(ctx, slug)
		if errors.Is(err, ErrNotFound) {
			return slug, nil
		}
		if err != nil {
			return "", err
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
}
