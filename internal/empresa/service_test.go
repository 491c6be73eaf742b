package empresa_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"agendacerto/internal/empresa"
	"agendacerto/internal/empresa/repofakes"
	"agendacerto/internal/model"
)

func TestSignup_CreatesUserAndEmpresa(t *testing.T) {
	svc := empresa.NewService(repofakes.New())

	user, emp, err := svc.Signup(context.Background(), empresa.SignupInput{
		Email:    "joao@example.com",
		Password: "super-secret-1",
		Nome:     "Barbearia do João",
	})
	require.NoError(t, err)

	require.NotZero(t, user.ID)
	require.Equal(t, "joao@example.com", user.Email)
	require.NotEqual(t, "super-secret-1", user.Password, "password must be stored hashed")

	require.Equal(t, user.ID, emp.UserID)
	require.Equal(t, "barbearia-do-joao", emp.Slug)
	require.False(t, emp.GoogleConnected)
	require.Equal(t, model.WorkflowStatusInactive, emp.N8NWorkflowStatus)
	require.Equal(t, "outros", emp.RamoAtividade)

	authed, err := svc.Authenticate(context.Background(), "JOAO@example.com", "super-secret-1")
	require.NoError(t, err)
	require.Equal(t, user.ID, authed.ID)
}

func TestSignup_DuplicateEmailRejected(t *testing.T) {
	svc := empresa.NewService(repofakes.New())

	_, _, err := svc.Signup(context.Background(), empresa.SignupInput{
		Email: "dup@example.com", Password: "super-secret-1", Nome: "Loja Um",
	})
	require.NoError(t, err)

	_, _, err = svc.Signup(context.Background(), empresa.SignupInput{
		Email: "dup@example.com", Password: "super-secret-1", Nome: "Loja Dois",
	})
	require.ErrorIs(t, err, empresa.ErrEmailTaken)
}

func TestSignup_SlugCollisionGetsSuffix(t *testing.T) {
	svc := empresa.NewService(repofakes.New())

	_, first, err := svc.Signup(context.Background(), empresa.SignupInput{
		Email: "a@example.com", Password: "super-secret-1", Nome: "Studio Glamour",
	})
	require.NoError(t, err)
	require.Equal(t, "studio-glamour", first.Slug)

	_, second, err := svc.Signup(context.Background(), empresa.SignupInput{
		Email: "b@example.com", Password: "super-secret-1", Nome: "Stúdio Glamour",
	})
	require.NoError(t, err)
	require.Equal(t, "studio-glamour-2", second.Slug)
}

func TestSignup_Validation(t *testing.T) {
	svc := empresa.NewService(repofakes.New())
	ctx := context.Background()

	_, _, err := svc.Signup(ctx, empresa.SignupInput{Email: "no-at-sign", Password: "super-secret-1", Nome: "X"})
	require.ErrorIs(t, err, empresa.ErrValidation)

	_, _, err = svc.Signup(ctx, empresa.SignupInput{Email: "ok@example.com", Password: "short", Nome: "X"})
	require.ErrorIs(t, err, empresa.ErrValidation)

	_, _, err = svc.Signup(ctx, empresa.SignupInput{Email: "ok@example.com", Password: "super-secret-1", Nome: "   "})
	require.ErrorIs(t, err, empresa.ErrValidation)
}

func TestAuthenticate_WrongPassword(t *testing.T) {
	svc := empresa.NewService(repofakes.New())

	_, _, err := svc.Signup(context.Background(), empresa.SignupInput{
		Email: "x@example.com", Password: "super-secret-1", Nome: "Oficina",
	})
	require.NoError(t, err)

	_, err = svc.Authenticate(context.Background(), "x@example.com", "wrong-password")
	require.ErrorIs(t, err, empresa.ErrInvalidCredentials)

	_, err = svc.Authenticate(context.Background(), "nobody@example.com", "whatever")
	require.ErrorIs(t, err, empresa.ErrInvalidCredentials)
}

func TestUpdate_KeepsSlugOnRename(t *testing.T) {
	svc := empresa.NewService(repofakes.New())

	_, emp, err := svc.Signup(context.Background(), empresa.SignupInput{
		Email: "r@example.com", Password: "super-secret-1", Nome: "Salão Antigo",
	})
	require.NoError(t, err)
	require.Equal(t, "salao-antigo", emp.Slug)

	novo := "Salão Novo"
	updated, err := svc.Update(context.Background(), emp.ID, empresa.UpdateInput{Nome: &novo})
	require.NoError(t, err)
	require.Equal(t, "Salão Novo", updated.Nome)
	require.Equal(t, "salao-antigo", updated.Slug, "renaming must not invalidate existing links")
}
