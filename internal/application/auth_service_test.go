package application_test

import (
	"context"
	"errors"
	"testing"

	"github.com/example/workstation-scheduler/internal/application"
	"github.com/example/workstation-scheduler/internal/scheduler"
	"github.com/example/workstation-scheduler/internal/testfixtures"
)

func TestAuthService(t *testing.T) {
	t.Parallel()

	newAuth := func(t *testing.T) (*application.AuthService, *testfixtures.Harness) {
		t.Helper()
		factory := testfixtures.NewServiceFactory()
		harness := testfixtures.NewMemoryHarness(t)
		return factory.NewAuthService(harness.Users), harness
	}

	t.Run("register and authenticate", func(t *testing.T) {
		t.Parallel()
		auth, _ := newAuth(t)
		ctx := context.Background()

		user, err := auth.RegisterUser(ctx, application.RegisterUserParams{ID: "carol", Name: "Carol", Email: " Carol@Example.com ", Role: scheduler.RoleAdmin, PIN: "123456"})
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if user.Email != "carol@example.com" || user.PINHash == "" || user.PINHash == "123456" {
			t.Fatalf("unexpected stored user %+v", user)
		}

		principal, err := auth.Authenticate(ctx, "carol", "123456")
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if !principal.IsAdmin() {
			t.Fatalf("expected admin principal, got %+v", principal)
		}
	})

	t.Run("rejects bad credentials uniformly", func(t *testing.T) {
		t.Parallel()
		auth, harness := newAuth(t)
		ctx := context.Background()
		if _, err := auth.RegisterUser(ctx, application.RegisterUserParams{ID: "dave", Name: "Dave", PIN: "1111"}); err != nil {
			t.Fatalf("register: %v", err)
		}
		harness.SeedUsers(t, testfixtures.NewUser(testfixtures.WithUserID("nopin")))

		for _, tc := range []struct{ user, pin string }{
			{"dave", "2222"},
			{"ghost", "1111"},
			{"nopin", "1111"},
			{"dave", ""},
		} {
			if _, err := auth.Authenticate(ctx, tc.user, tc.pin); !errors.Is(err, application.ErrInvalidCredentials) {
				t.Fatalf("%s/%q: expected ErrInvalidCredentials, got %v", tc.user, tc.pin, err)
			}
		}
	})

	t.Run("validates registration", func(t *testing.T) {
		t.Parallel()
		auth, _ := newAuth(t)

		_, err := auth.RegisterUser(context.Background(), application.RegisterUserParams{ID: "x", Role: "guest", PIN: "12a4"})
		var vErr *application.ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected validation error, got %v", err)
		}
		for _, field := range []string{"name", "role", "pin"} {
			if _, ok := vErr.FieldErrors[field]; !ok {
				t.Fatalf("expected error on %s, got %v", field, vErr.FieldErrors)
			}
		}
	})

	t.Run("duplicate user", func(t *testing.T) {
		t.Parallel()
		auth, _ := newAuth(t)
		ctx := context.Background()
		params := application.RegisterUserParams{ID: "erin", Name: "Erin"}
		if _, err := auth.RegisterUser(ctx, params); err != nil {
			t.Fatalf("register: %v", err)
		}
		if _, err := auth.RegisterUser(ctx, params); !errors.Is(err, application.ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})

	t.Run("setup PIN once", func(t *testing.T) {
		t.Parallel()
		auth, _ := newAuth(t)
		ctx := context.Background()
		if _, err := auth.RegisterUser(ctx, application.RegisterUserParams{ID: "fay", Name: "Fay"}); err != nil {
			t.Fatalf("register: %v", err)
		}

		if _, err := auth.SetupPIN(ctx, "fay", "4321"); err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if _, err := auth.Authenticate(ctx, "fay", "4321"); err != nil {
			t.Fatalf("expected new PIN to work, got %v", err)
		}

		_, err := auth.SetupPIN(ctx, "fay", "9999")
		var stateErr *application.InvalidStateError
		if !errors.As(err, &stateErr) {
			t.Fatalf("expected invalid state error, got %v", err)
		}
		if _, err := auth.SetupPIN(ctx, "ghost", "9999"); !errors.Is(err, application.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestPINHashRoundTrip(t *testing.T) {
	t.Parallel()

	encoded, err := testfixtures.FastPINHasher("0000")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := application.VerifyPIN(encoded, "0000"); err != nil {
		t.Fatalf("expected match, got %v", err)
	}
	if err := application.VerifyPIN(encoded, "0001"); !errors.Is(err, application.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := application.VerifyPIN("not-a-hash", "0000"); !errors.Is(err, application.ErrInvalidPINHash) {
		t.Fatalf("expected ErrInvalidPINHash, got %v", err)
	}
}

func TestAuthServiceListUsers(t *testing.T) {
	t.Parallel()
	factory := testfixtures.NewServiceFactory()
	harness := testfixtures.NewMemoryHarness(t)
	auth := factory.NewAuthService(harness.Users)
	harness.SeedUsers(t,
		testfixtures.NewUser(testfixtures.WithUserID("z"), testfixtures.WithUserName("Zed")),
		testfixtures.NewUser(testfixtures.WithUserID("a"), testfixtures.WithUserName("Amy")),
	)

	if _, err := auth.ListUsers(context.Background(), application.Principal{UserID: "z", Role: scheduler.RoleUser}); !errors.Is(err, application.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	users, err := auth.ListUsers(context.Background(), application.Principal{UserID: "root", Role: scheduler.RoleAdmin})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(users) != 2 || users[0].Name != "Amy" || users[1].Name != "Zed" {
		t.Fatalf("expected users ordered by name, got %+v", users)
	}
}
