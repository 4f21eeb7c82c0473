package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tianyuan-next/internal/constants"
	"github.com/tianyuan-next/internal/models"
	"github.com/tianyuan-next/internal/repository"
	"github.com/tianyuan-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

func TestResolveAllowedOrigin(t *testing.T) {
	got := resolveAllowedOrigin("https://example.com", []string{"*"}, false)
	if got != "*" {
		t.Fatalf("wildcard without credentials should return *, got %s", got)
	}

	got = resolveAllowedOrigin("https://example.com", []string{"*"}, true)
	if got != "https://example.com" {
		t.Fatalf("wildcard with credentials should echo origin, got %s", got)
	}

	got = resolveAllowedOrigin("https://a.example.com", []string{"https://a.example.com", "https://b.example.com"}, false)
	if got != "https://a.example.com" {
		t.Fatalf("allow-list should return matched origin, got %s", got)
	}

	got = resolveAllowedOrigin("https://x.example.com", []string{"https://a.example.com"}, false)
	if got != "" {
		t.Fatalf("unmatched origin should be empty, got %s", got)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"request_id": getRequestID(c)})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(requestIDHeader, "req-123")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status want 200 got %d", w.Code)
	}
	if w.Header().Get(requestIDHeader) != "req-123" {
		t.Fatalf("response request id want req-123 got %s", w.Header().Get(requestIDHeader))
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	if resp["request_id"] != "req-123" {
		t.Fatalf("context request id want req-123 got %s", resp["request_id"])
	}

	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/ping", nil)
	r.ServeHTTP(w2, req2)
	generated := w2.Header().Get(requestIDHeader)
	if strings.TrimSpace(generated) == "" {
		t.Fatalf("generated request id should not be empty")
	}
}

type fakeAdminRepo struct {
	admin *models.Admin
}

func (r *fakeAdminRepo) GetByUsername(username string) (*models.Admin, error) { return nil, nil }
func (r *fakeAdminRepo) GetByID(id uint) (*models.Admin, error) {
	if r.admin != nil && r.admin.ID == id {
		return r.admin, nil
	}
	return nil, nil
}
func (r *fakeAdminRepo) List() ([]models.Admin, error)                             { return nil, nil }
func (r *fakeAdminRepo) Count() (int64, error)                                     { return 0, nil }
func (r *fakeAdminRepo) Create(admin *models.Admin) error                          { return nil }
func (r *fakeAdminRepo) Update(admin *models.Admin) error                          { return nil }
func (r *fakeAdminRepo) Updates(id uint, updates map[string]interface{}) error     { return nil }
func (r *fakeAdminRepo) Delete(id uint) error                                      { return nil }

type fakeAgentRepo struct {
	agent *models.AgentUser
}

func (r *fakeAgentRepo) Create(agent *models.AgentUser) error { return nil }
func (r *fakeAgentRepo) GetByID(id uint) (*models.AgentUser, error) {
	if r.agent != nil && r.agent.ID == id {
		return r.agent, nil
	}
	return nil, nil
}
func (r *fakeAgentRepo) GetByIDForUpdate(id uint) (*models.AgentUser, error) { return r.GetByID(id) }
func (r *fakeAgentRepo) GetByUsername(username string) (*models.AgentUser, error) { return nil, nil }
func (r *fakeAgentRepo) GetByDomainSuffix(suffix string) (*models.AgentUser, error) {
	return nil, nil
}
func (r *fakeAgentRepo) List(filter repository.AgentListFilter) ([]models.AgentUser, int64, error) {
	return nil, 0, nil
}
func (r *fakeAgentRepo) Updates(id uint, updates map[string]interface{}) error { return nil }
func (r *fakeAgentRepo) WithTx(tx *gorm.DB) *repository.GormAgentUserRepository { return nil }

func signTestToken(t *testing.T, secret, role string, subjectID uint, tokenVersion uint64) string {
	t.Helper()
	claims := service.JWTClaims{
		SubjectID:    subjectID,
		Username:     "tester",
		Role:         role,
		TokenVersion: tokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token failed: %v", err)
	}
	return token
}

func decodeEnvelope(t *testing.T, body []byte) int {
	t.Helper()
	var resp struct {
		StatusCode int `json:"status_code"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	return resp.StatusCode
}

func newAdminAuthRouter(repo repository.AdminRepository, secret string) *gin.Engine {
	r := gin.New()
	r.Use(AdminJWTAuthMiddleware(secret, repo))
	r.GET("/admin/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func TestAdminJWTAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	const secret = "test-secret"
	repo := &fakeAdminRepo{admin: &models.Admin{ID: 9, Username: "tester", TokenVersion: 1}}
	r := newAdminAuthRouter(repo, secret)

	// 缺少令牌
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/ping", nil))
	if code := decodeEnvelope(t, w.Body.Bytes()); code != 401 {
		t.Fatalf("missing token want 401 got %d", code)
	}

	// 角色不匹配
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, secret, constants.OwnerTypeAgent, 9, 1))
	r.ServeHTTP(w, req)
	if code := decodeEnvelope(t, w.Body.Bytes()); code != 401 {
		t.Fatalf("agent token on admin route want 401 got %d", code)
	}

	// 令牌版本过期
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, secret, constants.OwnerTypeAdmin, 9, 0))
	r.ServeHTTP(w, req)
	if code := decodeEnvelope(t, w.Body.Bytes()); code != 401 {
		t.Fatalf("stale token version want 401 got %d", code)
	}

	// 合法令牌
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, secret, constants.OwnerTypeAdmin, 9, 1))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("valid token status want 200 got %d", w.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	if ok, _ := body["ok"].(bool); !ok {
		t.Fatalf("valid token should reach handler, got %s", w.Body.String())
	}
}

func TestAgentJWTAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	const secret = "test-secret"
	agent := &models.AgentUser{ID: 3, Username: "tester", TokenVersion: 2}
	repo := &fakeAgentRepo{agent: agent}

	r := gin.New()
	r.Use(AgentJWTAuthMiddleware(secret, repo))
	r.GET("/agent/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	// 签名不匹配
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/agent/ping", nil)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, "wrong-secret", constants.OwnerTypeAgent, 3, 2))
	r.ServeHTTP(w, req)
	if code := decodeEnvelope(t, w.Body.Bytes()); code != 401 {
		t.Fatalf("bad signature want 401 got %d", code)
	}

	// 合法令牌
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/agent/ping", nil)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, secret, constants.OwnerTypeAgent, 3, 2))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("valid token status want 200 got %d", w.Code)
	}

	// 锁定账号
	agent.IsLocked = true
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/agent/ping", nil)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, secret, constants.OwnerTypeAgent, 3, 2))
	r.ServeHTTP(w, req)
	if code := decodeEnvelope(t, w.Body.Bytes()); code != 401 {
		t.Fatalf("locked agent want 401 got %d", code)
	}
}

func TestIsIssuedAfterInvalidBeforeUnix(t *testing.T) {
	now := time.Now()
	issued := jwt.NewNumericDate(now)

	if !isIssuedAfterInvalidBeforeUnix(issued, 0) {
		t.Fatalf("zero invalid-before should accept any token")
	}
	if !isIssuedAfterInvalidBeforeUnix(issued, now.Add(-time.Minute).Unix()) {
		t.Fatalf("token issued after invalid-before should pass")
	}
	if isIssuedAfterInvalidBeforeUnix(issued, now.Add(time.Minute).Unix()) {
		t.Fatalf("token issued before invalid-before should be rejected")
	}
	if isIssuedAfterInvalidBeforeUnix(nil, now.Unix()) {
		t.Fatalf("missing issued-at should be rejected when invalid-before is set")
	}
}
