package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shashiranjanraj/kashvi-shop/pkg/middleware"
)

func TestHasRole(t *testing.T) {
	h := HasRole("admin")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	cases := []struct {
		name      string
		principal *middleware.Principal
		want      int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"customer", &middleware.Principal{UserID: 2, Role: "customer"}, http.StatusForbidden},
		{"admin", &middleware.Principal{UserID: 1, Role: "admin"}, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.principal != nil {
				req = req.WithContext(middleware.WithPrincipal(req.Context(), *tc.principal))
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}
