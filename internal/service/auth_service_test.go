package service

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"connectrpc.com/connect"
	"golang.org/x/crypto/bcrypt"

	"github.com/kiumaa/kixikila-sub001/internal/auth"
	"github.com/kiumaa/kixikila-sub001/internal/middleware"
	"github.com/kiumaa/kixikila-sub001/internal/storage/sqlite"
	"github.com/kiumaa/kixikila-sub001/pkg/api"
	"github.com/kiumaa/kixikila-sub001/pkg/api/apiconnect"
)

// setupAuthTestServer runs AuthService behind the real JWT interceptor.
func setupAuthTestServer(t *testing.T) (*apiconnect.AuthServiceClient, func()) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpFile.Close()

	store, err := sqlite.New(tmpFile.Name())
	if err != nil {
		os.Remove(tmpFile.Name())
		t.Fatalf("failed to create store: %v", err)
	}

	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	authenticator := auth.NewPasswordAuthenticator(store, bcrypt.MinCost)
	svc := NewAuthService(authenticator, jwtManager, store, slog.Default())

	interceptors := connect.WithInterceptors(middleware.RequireAuth(jwtManager,
		apiconnect.AuthServiceRegisterProcedure,
		apiconnect.AuthServiceLoginProcedure,
	))
	path, handler := apiconnect.NewAuthServiceHandler(svc, interceptors)

	mux := http.NewServeMux()
	mux.Handle(path, handler)
	server := httptest.NewServer(mux)

	client := apiconnect.NewAuthServiceClient(http.DefaultClient, server.URL)

	cleanup := func() {
		server.Close()
		store.Close()
		os.Remove(tmpFile.Name())
	}
	return client, cleanup
}

func TestRegisterLoginAndGetCurrentUser(t *testing.T) {
	client, cleanup := setupAuthTestServer(t)
	defer cleanup()
	ctx := context.Background()

	reg, err := client.Register(ctx, connect.NewRequest(&api.RegisterRequest{
		Email:       "Ana@Example.com",
		Phone:       "+244923456789",
		DisplayName: "Ana",
		Password:    "kwanza-2024",
	}))
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if reg.Msg.Token == "" {
		t.Fatal("expected token after registration")
	}
	if reg.Msg.User.Email != "ana@example.com" {
		t.Errorf("expected normalized email, got %s", reg.Msg.User.Email)
	}

	login, err := client.Login(ctx, connect.NewRequest(&api.LoginRequest{
		Email:    "ana@example.com",
		Password: "kwanza-2024",
	}))
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if login.Msg.User.ID != reg.Msg.User.ID {
		t.Errorf("expected user %s, got %s", reg.Msg.User.ID, login.Msg.User.ID)
	}

	req := connect.NewRequest(&api.GetCurrentUserRequest{})
	req.Header().Set("Authorization", "Bearer "+login.Msg.Token)
	me, err := client.GetCurrentUser(ctx, req)
	if err != nil {
		t.Fatalf("GetCurrentUser failed: %v", err)
	}
	if me.Msg.User.DisplayName != "Ana" || me.Msg.User.Phone != "+244923456789" {
		t.Errorf("unexpected user: %+v", me.Msg.User)
	}
}

func TestRegister_Errors(t *testing.T) {
	client, cleanup := setupAuthTestServer(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := client.Register(ctx, connect.NewRequest(&api.RegisterRequest{
		Email: "bento@example.com", DisplayName: "Bento", Password: "long-enough",
	})); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	tests := []struct {
		name   string
		req    *api.RegisterRequest
		code   connect.Code
		reason string
	}{
		{"duplicate email", &api.RegisterRequest{Email: "bento@example.com", DisplayName: "B", Password: "long-enough"}, connect.CodeAlreadyExists, "EMAIL_EXISTS"},
		{"weak password", &api.RegisterRequest{Email: "c@example.com", DisplayName: "C", Password: "short"}, connect.CodeInvalidArgument, "WEAK_PASSWORD"},
		{"bad email", &api.RegisterRequest{Email: "not-an-email", DisplayName: "D", Password: "long-enough"}, connect.CodeInvalidArgument, "INVALID_EMAIL"},
		{"bad phone", &api.RegisterRequest{Email: "e@example.com", Phone: "923456789", DisplayName: "E", Password: "long-enough"}, connect.CodeInvalidArgument, "INVALID_PHONE"},
		{"missing name", &api.RegisterRequest{Email: "f@example.com", Password: "long-enough"}, connect.CodeInvalidArgument, "DISPLAY_NAME_REQUIRED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Register(ctx, connect.NewRequest(tt.req))
			assertCode(t, err, tt.code, tt.reason)
		})
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	client, cleanup := setupAuthTestServer(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := client.Register(ctx, connect.NewRequest(&api.RegisterRequest{
		Email: "carla@example.com", DisplayName: "Carla", Password: "long-enough",
	})); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	_, err := client.Login(ctx, connect.NewRequest(&api.LoginRequest{Email: "carla@example.com", Password: "wrong-password"}))
	assertCode(t, err, connect.CodeUnauthenticated, "INVALID_CREDENTIALS")

	_, err = client.Login(ctx, connect.NewRequest(&api.LoginRequest{Email: "nobody@example.com", Password: "long-enough"}))
	assertCode(t, err, connect.CodeUnauthenticated, "INVALID_CREDENTIALS")
}

func TestGetCurrentUser_RequiresToken(t *testing.T) {
	client, cleanup := setupAuthTestServer(t)
	defer cleanup()

	_, err := client.GetCurrentUser(context.Background(), connect.NewRequest(&api.GetCurrentUserRequest{}))
	assertCode(t, err, connect.CodeUnauthenticated, "")

	req := connect.NewRequest(&api.GetCurrentUserRequest{})
	req.Header().Set("Authorization", "Bearer not-a-token")
	_, err = client.GetCurrentUser(context.Background(), req)
	assertCode(t, err, connect.CodeUnauthenticated, "")
}
