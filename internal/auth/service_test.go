package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgAuth "github.com/toolyard/toolyard-backend/pkg/auth"
	"github.com/toolyard/toolyard-backend/pkg/auth/session"
	"github.com/toolyard/toolyard-backend/pkg/config"
	"github.com/toolyard/toolyard-backend/pkg/db/models"
	"github.com/toolyard/toolyard-backend/pkg/enums"
	pkgerrors "github.com/toolyard/toolyard-backend/pkg/errors"
	"github.com/toolyard/toolyard-backend/pkg/security"
)

func TestServiceLoginIssuesTokenPair(t *testing.T) {
	password := "member-secret"
	user := testUser(t, password)
	cfg := testJWTConfig()

	svc, sessionMgr, err := buildTestService(user, cfg)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	sessionMgr.refreshToken = "refresh-token"

	resp, err := svc.Login(context.Background(), LoginRequest{
		Email:    user.Email,
		Password: password,
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	claims, err := pkgAuth.ParseAccessToken(cfg, resp.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.UserID != user.ID {
		t.Fatalf("expected user id %s in claims, got %s", user.ID, claims.UserID)
	}
	if claims.Role != enums.UserRoleMember {
		t.Fatalf("expected member role claim, got %s", claims.Role)
	}
	if claims.ID == "" {
		t.Fatalf("expected jti to be set")
	}
	if resp.RefreshToken != "refresh-token" {
		t.Fatalf("expected refresh token to be returned")
	}
	if resp.User == nil || resp.User.Email != user.Email {
		t.Fatalf("expected user profile in response")
	}
	if user.LastLoginAt == nil {
		t.Fatalf("expected last login to be recorded")
	}
}

func TestServiceLoginWrongPassword(t *testing.T) {
	user := testUser(t, "member-secret")
	svc, _, err := buildTestService(user, testJWTConfig())
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	_, err = svc.Login(context.Background(), LoginRequest{
		Email:    user.Email,
		Password: "wrong-password",
	})
	assertUnauthorized(t, err)
}

func TestServiceLoginInactiveUser(t *testing.T) {
	password := "member-secret"
	user := testUser(t, password)
	user.IsActive = false

	svc, _, err := buildTestService(user, testJWTConfig())
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	_, err = svc.Login(context.Background(), LoginRequest{
		Email:    user.Email,
		Password: password,
	})
	assertUnauthorized(t, err)
}

func TestServiceLoginUnknownEmail(t *testing.T) {
	svc, _, err := buildTestService(nil, testJWTConfig())
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	_, err = svc.Login(context.Background(), LoginRequest{
		Email:    "missing@example.com",
		Password: "whatever",
	})
	assertUnauthorized(t, err)
}

func TestServiceAdminLoginRejectsMember(t *testing.T) {
	password := "member-secret"
	user := testUser(t, password)

	svc, _, err := buildTestService(user, testJWTConfig())
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	_, err = svc.AdminLogin(context.Background(), LoginRequest{
		Email:    user.Email,
		Password: password,
	})
	assertUnauthorized(t, err)
}

func TestServiceAdminLoginIssuesAdminClaims(t *testing.T) {
	password := "admin-secret"
	user := testUser(t, password)
	user.Role = enums.UserRoleAdmin
	cfg := testJWTConfig()

	svc, _, err := buildTestService(user, cfg)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	resp, err := svc.AdminLogin(context.Background(), LoginRequest{
		Email:    user.Email,
		Password: password,
	})
	if err != nil {
		t.Fatalf("admin login: %v", err)
	}

	claims, err := pkgAuth.ParseAccessToken(cfg, resp.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.Role != enums.UserRoleAdmin {
		t.Fatalf("expected admin role claim, got %s", claims.Role)
	}
}

func TestServiceRefreshRotatesSession(t *testing.T) {
	user := testUser(t, "member-secret")
	cfg := testJWTConfig()

	svc, sessionMgr, err := buildTestService(user, cfg)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	sessionMgr.newAccessID = "new-access-id"
	sessionMgr.newRefresh = "rotated-refresh"

	accessToken := mintTestToken(t, cfg, user, "old-access-id", time.Now().UTC())

	resp, err := svc.Refresh(context.Background(), RefreshRequest{
		AccessToken:  accessToken,
		RefreshToken: "current-refresh",
	})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if sessionMgr.rotatedFrom != "old-access-id" {
		t.Fatalf("expected rotation keyed on old jti, got %q", sessionMgr.rotatedFrom)
	}
	claims, err := pkgAuth.ParseAccessToken(cfg, resp.AccessToken)
	if err != nil {
		t.Fatalf("parse rotated access token: %v", err)
	}
	if claims.ID != "new-access-id" {
		t.Fatalf("expected new jti in rotated token, got %q", claims.ID)
	}
	if claims.UserID != user.ID {
		t.Fatalf("expected user id to carry over, got %s", claims.UserID)
	}
	if resp.RefreshToken != "rotated-refresh" {
		t.Fatalf("expected rotated refresh token, got %q", resp.RefreshToken)
	}
}

func TestServiceRefreshAcceptsExpiredAccessToken(t *testing.T) {
	user := testUser(t, "member-secret")
	cfg := testJWTConfig()

	svc, sessionMgr, err := buildTestService(user, cfg)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	sessionMgr.newAccessID = "new-access-id"
	sessionMgr.newRefresh = "rotated-refresh"

	// Minted two hours ago with a 30 minute TTL, so exp is long past.
	expired := mintTestToken(t, cfg, user, "old-access-id", time.Now().UTC().Add(-2*time.Hour))

	resp, err := svc.Refresh(context.Background(), RefreshRequest{
		AccessToken:  expired,
		RefreshToken: "current-refresh",
	})
	if err != nil {
		t.Fatalf("refresh with expired access token: %v", err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatalf("expected fresh token pair")
	}
}

func TestServiceRefreshInvalidRefreshToken(t *testing.T) {
	user := testUser(t, "member-secret")
	cfg := testJWTConfig()

	svc, sessionMgr, err := buildTestService(user, cfg)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	sessionMgr.rotateErr = session.ErrInvalidRefreshToken

	accessToken := mintTestToken(t, cfg, user, "old-access-id", time.Now().UTC())

	_, err = svc.Refresh(context.Background(), RefreshRequest{
		AccessToken:  accessToken,
		RefreshToken: "stolen-or-stale",
	})
	assertUnauthorized(t, err)
}

func TestServiceRefreshInactiveUserDoesNotRotate(t *testing.T) {
	user := testUser(t, "member-secret")
	user.IsActive = false
	cfg := testJWTConfig()

	svc, sessionMgr, err := buildTestService(user, cfg)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	accessToken := mintTestToken(t, cfg, user, "old-access-id", time.Now().UTC())

	_, err = svc.Refresh(context.Background(), RefreshRequest{
		AccessToken:  accessToken,
		RefreshToken: "current-refresh",
	})
	assertUnauthorized(t, err)
	if sessionMgr.rotateCalls != 0 {
		t.Fatalf("expected no session rotation for inactive user")
	}
}

func TestServiceRefreshGarbageAccessToken(t *testing.T) {
	svc, _, err := buildTestService(testUser(t, "member-secret"), testJWTConfig())
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	_, err = svc.Refresh(context.Background(), RefreshRequest{
		AccessToken:  "not-a-jwt",
		RefreshToken: "current-refresh",
	})
	assertUnauthorized(t, err)
}

func TestServiceLogoutRevokesSession(t *testing.T) {
	svc, sessionMgr, err := buildTestService(testUser(t, "member-secret"), testJWTConfig())
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	if err := svc.Logout(context.Background(), "access-id-1"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if len(sessionMgr.revoked) != 1 || sessionMgr.revoked[0] != "access-id-1" {
		t.Fatalf("expected session access-id-1 to be revoked, got %v", sessionMgr.revoked)
	}
}

func TestServiceLogoutBlankAccessID(t *testing.T) {
	svc, _, err := buildTestService(testUser(t, "member-secret"), testJWTConfig())
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	err = svc.Logout(context.Background(), "  ")
	assertUnauthorized(t, err)
}

func buildTestService(user *models.User, jwtCfg config.JWTConfig) (Service, *stubSessionManager, error) {
	sessionMgr := &stubSessionManager{refreshToken: "refresh-token"}
	svc, err := NewService(ServiceParams{
		UserRepo:       stubUserRepo{user: user},
		SessionManager: sessionMgr,
		JWTConfig:      jwtCfg,
	})
	return svc, sessionMgr, err
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "secret",
		Issuer:            "toolyard",
		ExpirationMinutes: 30,
	}
}

func testUser(t *testing.T, password string) *models.User {
	t.Helper()
	return &models.User{
		ID:           uuid.New(),
		Email:        "maker@example.com",
		PasswordHash: mustHashPassword(t, password),
		FirstName:    "Robin",
		LastName:     "Vale",
		Role:         enums.UserRoleMember,
		IsActive:     true,
	}
}

func mintTestToken(t *testing.T, cfg config.JWTConfig, user *models.User, jti string, now time.Time) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg, now, pkgAuth.AccessTokenPayload{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		JTI:    jti,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func mustHashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{})
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return hash
}

func assertUnauthorized(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected unauthorized error")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
}

type stubUserRepo struct {
	user *models.User
	err  error
}

func (s stubUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.user == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

func (s stubUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.user == nil || s.user.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

func (s stubUserRepo) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	if s.user != nil && s.user.ID == id {
		s.user.LastLoginAt = &at
	}
	return nil
}

type stubSessionManager struct {
	refreshToken string
	newAccessID  string
	newRefresh   string
	rotateErr    error
	rotatedFrom  string
	rotateCalls  int
	revoked      []string
}

func (s *stubSessionManager) Generate(ctx context.Context, accessID string) (string, error) {
	return s.refreshToken, nil
}

func (s *stubSessionManager) Rotate(ctx context.Context, oldAccessID, refreshToken string) (string, string, error) {
	s.rotateCalls++
	if s.rotateErr != nil {
		return "", "", s.rotateErr
	}
	s.rotatedFrom = oldAccessID
	return s.newAccessID, s.newRefresh, nil
}

func (s *stubSessionManager) Revoke(ctx context.Context, accessID string) error {
	s.revoked = append(s.revoked, accessID)
	return nil
}
