package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestRequireAccessToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := newManager(t)

	r := gin.New()
	r.GET("/me", RequireAccessToken(m), func(c *gin.Context) {
		id, err := IdentityFrom(c.Request.Context())
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id.UserID, "role": id.Role})
	})

	pair, err := m.IssuePair(time.Now(), Identity{UserID: 9, Role: "employee"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	stale, err := m.IssuePair(time.Now().Add(-2*time.Hour), Identity{UserID: 9, Role: "employee"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	cases := []struct {
		name    string
		header  string
		want    int
		wantMsg string
	}{
		{"missing", "", http.StatusUnauthorized, "missing bearer token"},
		{"not bearer", "Basic abc", http.StatusUnauthorized, "missing bearer token"},
		{"empty bearer", "Bearer ", http.StatusUnauthorized, "missing bearer token"},
		{"refresh token", "Bearer " + pair.RefreshToken, http.StatusUnauthorized, "invalid token"},
		{"expired", "Bearer " + stale.AccessToken, http.StatusUnauthorized, "token expired"},
		{"access token", "Bearer " + pair.AccessToken, http.StatusOK, ""},
		{"lowercase scheme", "bearer " + pair.AccessToken, http.StatusOK, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			r.ServeHTTP(w, req)
			if w.Code != tc.want {
				t.Fatalf("expected %d, got %d (%s)", tc.want, w.Code, w.Body.String())
			}
			if tc.wantMsg != "" && !strings.Contains(w.Body.String(), tc.wantMsg) {
				t.Fatalf("expected %q in %s", tc.wantMsg, w.Body.String())
			}
		})
	}
}
