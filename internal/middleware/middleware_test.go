package middleware

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osvaldoandrade/budgetauth/internal/repository"
	"github.com/osvaldoandrade/budgetauth/internal/requestid"
	"github.com/osvaldoandrade/budgetauth/internal/services"
	"github.com/osvaldoandrade/budgetauth/pkg/auth"
	"github.com/osvaldoandrade/budgetauth/pkg/domain"
	"github.com/osvaldoandrade/budgetauth/pkg/persistence/memory"
	"github.com/osvaldoandrade/budgetauth/pkg/token"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	codec       *token.Codec
	revocations services.RevocationService
	router      *gin.Engine
}

func setupEnv(t *testing.T, outer ...gin.HandlerFunc) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	codec, err := token.NewCodec(token.Config{
		AccessSecret:  "middleware-access-secret-0123456789abcdef",
		RefreshSecret: "middleware-refresh-secret-0123456789abcdef",
	})
	require.NoError(t, err)

	dir := memory.New()
	require.NoError(t, dir.AddFamily(domain.Family{ID: "fam-1", OwnerID: "owner", IsActive: true}))
	require.NoError(t, dir.AddUser(domain.User{ID: "owner", Email: "owner@example.com", IsActive: true, IsEmailVerified: true, FamilyID: "fam-1", RoleInFamily: "OWNER"}))
	require.NoError(t, dir.AddUser(domain.User{ID: "member", Email: "member@example.com", IsActive: true, FamilyID: "fam-1", RoleInFamily: "MEMBER"}))

	revocations := services.NewRevocationService(repository.NewMemoryKV(time.Now), codec, logger, time.Now, time.Second)
	builder := services.NewAuthContextService(revocations, codec, dir, logger)

	r := gin.New()
	r.Use(outer...)
	r.Use(RequestIDMiddleware(), LoggerMiddleware(logger), AuthContextMiddleware(builder))
	ok := func(c *gin.Context) {
		v, _ := GetVerified(c)
		c.JSON(http.StatusOK, gin.H{"userId": v.User.ID, "authenticated": GetAuthContext(c).IsAuthenticated()})
	}
	r.GET("/open", ok)
	r.GET("/private", RequireAuth(), ok)
	r.GET("/families/:familyId", RequireFamilyAccess("familyId"), ok)
	r.GET("/users/:userId", RequireSelfOrAdmin("userId"), ok)
	r.POST("/invite", RequirePermission(domain.PermInviteMembers), ok)
	r.POST("/verified", RequireEmailVerified(), ok)
	r.GET("/family", RequireFamily(), ok)
	r.GET("/admin", RequireAdminKey("s3cret"), ok)
	return &testEnv{codec: codec, revocations: revocations, router: r}
}

func (e *testEnv) access(t *testing.T, userID string) string {
	t.Helper()
	raw, _, err := e.codec.Issue(token.PurposeAccess, token.Subject{UserID: userID})
	require.NoError(t, err)
	return raw
}

func (e *testEnv) do(method, path, raw string, header ...string) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(method, path, nil)
	if raw != "" {
		req.Header.Set("Authorization", "Bearer "+raw)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	var body map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body
}

func TestAnonymousPassesThrough(t *testing.T) {
	env := setupEnv(t)
	rec, body := env.do(http.MethodGet, "/open", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["authenticated"])
}

func TestRequireAuthRejects(t *testing.T) {
	env := setupEnv(t)
	rec, body := env.do(http.MethodGet, "/private", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Authentication required", body["error"])
	assert.Equal(t, "UNAUTHENTICATED", body["code"])
	assert.NotContains(t, body, "reason")

	rec, body = env.do(http.MethodGet, "/private", "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid token", body["reason"])
}

func TestRequireAuthRevoked(t *testing.T) {
	env := setupEnv(t)
	raw := env.access(t, "owner")
	_, err := env.revocations.Revoke(context.Background(), raw, services.ReasonLogout)
	require.NoError(t, err)

	rec, body := env.do(http.MethodGet, "/private", raw)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Token has been revoked", body["reason"])
}

func TestRequireAuthAccepts(t *testing.T) {
	env := setupEnv(t)
	rec, body := env.do(http.MethodGet, "/private", env.access(t, "member"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "member", body["userId"])
}

func TestRequireFamilyAccess(t *testing.T) {
	env := setupEnv(t)
	raw := env.access(t, "member")

	rec, _ := env.do(http.MethodGet, "/families/fam-1", raw)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = env.do(http.MethodGet, "/families/FAM-1", raw)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, body := env.do(http.MethodGet, "/families/fam-2", raw)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "CROSS_TENANT_ACCESS", body["code"])
}

func TestRequireSelfOrAdmin(t *testing.T) {
	env := setupEnv(t)
	rec, _ := env.do(http.MethodGet, "/users/member", env.access(t, "member"))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, body := env.do(http.MethodGet, "/users/owner", env.access(t, "member"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "ACCESS_DENIED", body["code"])

	rec, _ = env.do(http.MethodGet, "/users/member", env.access(t, "owner"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequirePermissionAndEmail(t *testing.T) {
	env := setupEnv(t)
	rec, body := env.do(http.MethodPost, "/invite", env.access(t, "member"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Permission denied: canInviteMembers", body["error"])

	rec, _ = env.do(http.MethodPost, "/invite", env.access(t, "owner"))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, body = env.do(http.MethodPost, "/verified", env.access(t, "member"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "EMAIL_NOT_VERIFIED", body["code"])

	rec, _ = env.do(http.MethodGet, "/family", env.access(t, "member"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAdminKey(t *testing.T) {
	env := setupEnv(t)
	rec, _ := env.do(http.MethodGet, "/admin", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec, _ = env.do(http.MethodGet, "/admin", "", AdminKeyHeader, "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec, _ = env.do(http.MethodGet, "/admin", "", AdminKeyHeader, "s3cret")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAdminKeyEmptyDisables(t *testing.T) {
	r := gin.New()
	r.GET("/admin", RequireAdminKey(""), func(c *gin.Context) { c.Status(http.StatusOK) })
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set(AdminKeyHeader, "")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequestID(t *testing.T) {
	env := setupEnv(t)
	rec, _ := env.do(http.MethodGet, "/open", "", requestid.Header, "req-123")
	assert.Equal(t, "req-123", rec.Header().Get(requestid.Header))

	rec, _ = env.do(http.MethodGet, "/open", "")
	assert.Len(t, rec.Header().Get(requestid.Header), 26)

	rec, _ = env.do(http.MethodGet, "/open", "", requestid.Header, "bad id")
	assert.NotEqual(t, "bad id", rec.Header().Get(requestid.Header))
}

func TestGetAuthContextWithoutMiddleware(t *testing.T) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	ac := GetAuthContext(c)
	assert.False(t, ac.IsAuthenticated())
	assert.Equal(t, auth.FailureNone, ac.Failure())
	assert.NotNil(t, GetLogger(c))
}

func TestAbortWithNonGuardError(t *testing.T) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	AbortWithGuardError(c, assert.AnError)
	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
