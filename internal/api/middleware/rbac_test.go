package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/escrow-service/internal/core/domain"
)

func rbacContext(role string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	if role != "" {
		c.Set("role", role)
	}
	return c
}

func TestRBAC_Allows(t *testing.T) {
	c := rbacContext(domain.RoleOperator)

	called := false
	handler := RBAC(domain.RoleOperator)(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})

	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called {
		t.Fatalf("next handler not called")
	}
}

func TestRBAC_ForbidsOtherRoles(t *testing.T) {
	c := rbacContext(domain.RoleMember)

	handler := RBAC(domain.RoleOperator)(func(c echo.Context) error {
		t.Fatalf("should not reach next handler")
		return nil
	})

	if err := handler(c); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestRBAC_MissingRole(t *testing.T) {
	c := rbacContext("")

	handler := RBAC(domain.RoleOperator)(func(c echo.Context) error {
		t.Fatalf("should not reach next handler")
		return nil
	})

	var he *echo.HTTPError
	if err := handler(c); !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}
