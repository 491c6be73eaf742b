package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"agendacerto/internal/empresa"
	"agendacerto/internal/empresa/repofakes"
	"agendacerto/internal/model"
	"agendacerto/pkg/config"
	"agendacerto/pkg/jwtutil"
)

func init() {
	jwtutil.Initialize(&config.JWTConfig{SigningKey: "test-signing-key", ExpirationHours: 1})
}

func postJSON(e *echo.Echo, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestSignup_EndToEnd(t *testing.T) {
	e := echo.New()
	h := NewAuthHandler(empresa.NewService(repofakes.New()))

	c, rec := postJSON(e, "/auth/signup",
		`{"email":"joao@example.com","password":"super-secret-1","nome":"Barbearia do João"}`)
	require.NoError(t, h.Signup(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Token   string        `json:"token"`
		Empresa model.Empresa `json:"empresa"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	require.Equal(t, "barbearia-do-joao", resp.Empresa.Slug)
	require.False(t, resp.Empresa.GoogleConnected)
	require.Equal(t, model.WorkflowStatusInactive, resp.Empresa.N8NWorkflowStatus)

	claims, err := jwtutil.ValidateToken(resp.Token)
	require.NoError(t, err)
	require.Equal(t, "joao@example.com", claims.Email)
	require.NotNil(t, claims.EmpresaID)
	require.Equal(t, resp.Empresa.ID, *claims.EmpresaID)
}

func TestSignup_AcceptsCompanyNameField(t *testing.T) {
	e := echo.New()
	h := NewAuthHandler(empresa.NewService(repofakes.New()))

	c, rec := postJSON(e, "/auth/signup",
		`{"email":"a@b.com","password":"12345678","companyName":"Barbearia do João"}`)
	require.NoError(t, h.Signup(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Empresa model.Empresa `json:"empresa"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "Barbearia do João", resp.Empresa.Nome)
	require.Equal(t, "barbearia-do-joao", resp.Empresa.Slug)
}

func TestLogin_ReturnsTokenWithEmpresa(t *testing.T) {
	e := echo.New()
	svc := empresa.NewService(repofakes.New())
	h := NewAuthHandler(svc)

	c, rec := postJSON(e, "/auth/signup",
		`{"email":"ana@example.com","password":"super-secret-1","nome":"Studio Ana"}`)
	require.NoError(t, h.Signup(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	c, rec = postJSON(e, "/auth/login",
		`{"email":"ana@example.com","password":"super-secret-1"}`)
	require.NoError(t, h.Login(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	claims, err := jwtutil.ValidateToken(resp.Token)
	require.NoError(t, err)
	require.NotNil(t, claims.EmpresaID)
}

func TestLogin_BadPassword(t *testing.T) {
	e := echo.New()
	h := NewAuthHandler(empresa.NewService(repofakes.New()))

	c, rec := postJSON(e, "/auth/signup",
		`{"email":"x@example.com","password":"super-secret-1","nome":"Oficina"}`)
	require.NoError(t, h.Signup(c))

	c, rec = postJSON(e, "/auth/login", `{"email":"x@example.com","password":"nope"}`)
	require.NoError(t, h.Login(c))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSignup_DuplicateEmailConflict(t *testing.T) {
	e := echo.New()
	h := NewAuthHandler(empresa.NewService(repofakes.New()))

	c, _ := postJSON(e, "/auth/signup",
		`{"email":"dup@example.com","password":"super-secret-1","nome":"Loja Um"}`)
	require.NoError(t, h.Signup(c))

	c, rec := postJSON(e, "/auth/signup",
		`{"email":"dup@example.com","password":"super-secret-1","nome":"Loja Dois"}`)
	require.NoError(t, h.Signup(c))
	require.Equal(t, http.StatusConflict, rec.Code)
}
