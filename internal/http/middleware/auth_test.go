package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"placa-service/internal/auth"
	"placa-service/internal/model"
)

type stubParser struct {
	principal model.Principal
	err       error
}

func (s stubParser) Parse(string) (model.Principal, error) {
	return s.principal, s.err
}

func TestAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	userID := uuid.New()

	tests := []struct {
		name       string
		header     string
		parser     stubParser
		wantStatus int
	}{
		{name: "valid", header: "Bearer tok", parser: stubParser{principal: model.Principal{UserID: userID, Role: model.UserRoleAdmin}}, wantStatus: http.StatusOK},
		{name: "lowercase scheme", header: "bearer tok", parser: stubParser{principal: model.Principal{UserID: userID}}, wantStatus: http.StatusOK},
		{name: "missing header", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "rejected token", header: "Bearer tok", parser: stubParser{err: auth.ErrTokenExpired}, wantStatus: http.StatusUnauthorized},
		{name: "invalid token", header: "Bearer tok", parser: stubParser{err: errors.New("bad")}, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/p", Auth(tt.parser), func(c *gin.Context) {
				p, ok := GetPrincipal(c)
				if !ok || p.UserID != userID {
					t.Errorf("GetPrincipal() = %+v, %v", p, ok)
				}
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/p", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}
