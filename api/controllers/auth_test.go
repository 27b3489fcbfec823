package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/toolyard/toolyard-backend/internal/auth"
	"github.com/toolyard/toolyard-backend/internal/users"
	"github.com/toolyard/toolyard-backend/pkg/config"
	"github.com/toolyard/toolyard-backend/pkg/enums"
)

type stubAuthService struct {
	loginResp   *auth.LoginResponse
	loginErr    error
	adminResp   *auth.LoginResponse
	adminErr    error
	refreshResp *auth.RefreshResponse
	refreshErr  error
	logoutErr   error

	loggedOutID string
	refreshReq  auth.RefreshRequest
}

func (s *stubAuthService) Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
	return s.loginResp, s.loginErr
}

func (s *stubAuthService) AdminLogin(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
	return s.adminResp, s.adminErr
}

func (s *stubAuthService) Refresh(ctx context.Context, req auth.RefreshRequest) (*auth.RefreshResponse, error) {
	s.refreshReq = req
	return s.refreshResp, s.refreshErr
}

func (s *stubAuthService) Logout(ctx context.Context, accessID string) error {
	s.loggedOutID = accessID
	return s.logoutErr
}

type stubAdminRegisterService struct {
	user *users.UserDTO
	err  error
}

func (s stubAdminRegisterService) Register(ctx context.Context, req auth.AdminRegisterRequest) (*users.UserDTO, error) {
	return s.user, s.err
}

func memberDTO(email string) *users.UserDTO {
	return &users.UserDTO{
		ID:       uuid.New(),
		Email:    email,
		Role:     enums.UserRoleMember,
		IsActive: true,
	}
}

func TestAuthLoginSuccess(t *testing.T) {
	svc := &stubAuthService{loginResp: &auth.LoginResponse{
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		User:         memberDTO("alice@example.com"),
	}}
	handler := AuthLogin(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader([]byte(`{"email":"alice@example.com","password":"Secret123!"}`)))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if got := resp.Header().Get("X-Toolyard-Token"); got != "access-token" {
		t.Fatalf("expected token header got %q", got)
	}

	var envelope struct {
		Data auth.LoginResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.User == nil || envelope.Data.User.Email != "alice@example.com" {
		t.Fatalf("expected user in payload got %+v", envelope.Data.User)
	}
}

func TestAuthLoginInvalidPayload(t *testing.T) {
	handler := AuthLogin(&stubAuthService{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader([]byte(`{"email":"not-an-email"}`)))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestAdminAuthRegisterSuccess(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "dev", Port: "0"}}
	dto := memberDTO("admin@example.com")
	dto.Role = enums.UserRoleAdmin

	handler := AdminAuthRegister(
		stubAdminRegisterService{user: dto},
		&stubAuthService{adminResp: &auth.LoginResponse{
			AccessToken:  "access-token",
			RefreshToken: "refresh-token",
			User:         dto,
		}},
		cfg,
		nil,
	)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/auth/register", bytes.NewReader([]byte(`{"first_name":"Admin","last_name":"User","email":"admin@example.com","password":"Secret#123"}`)))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()

	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}
	if got := resp.Header().Get("X-Toolyard-Token"); got != "access-token" {
		t.Fatalf("expected token header got %q", got)
	}

	var envelope struct {
		Data struct {
			User *users.UserDTO `json:"user"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.User == nil || envelope.Data.User.Email != "admin@example.com" {
		t.Fatalf("expected admin user in payload got %+v", envelope.Data.User)
	}
}

func TestAdminAuthRegisterDisabledInProd(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "prod", Port: "0"}}
	handler := AdminAuthRegister(nil, nil, cfg, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/auth/register", bytes.NewReader([]byte(`{"email":"admin@example.com","password":"Secret#123"}`)))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()

	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}
