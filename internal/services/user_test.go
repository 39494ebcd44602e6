package services

import (
	"context"
	"testing"

	"localeloop/internal/apperr"
	"localeloop/internal/validation"
)

func TestRegisterAndAuthenticate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, err := env.users.Register(ctx, validation.RegisterInput{
		Name: " Ada ", Email: "Ada@Example.com", Password: "Secret123",
	})
	if err != nil {
		t.Fatal(err)
	}
	if user.Name != "Ada" || user.Email != "ada@example.com" || user.Password == "Secret123" {
		t.Fatalf("user = %+v", user)
	}

	_, err = env.users.Register(ctx, validation.RegisterInput{
		Name: "Imposter", Email: "ADA@example.com", Password: "Secret123",
	})
	wantKind(t, err, apperr.Conflict)
	if apperr.Message(err) != "User with this email already exists" {
		t.Errorf("message = %q", apperr.Message(err))
	}

	got, err := env.users.Authenticate(ctx, "ada@example.com", "Secret123")
	if err != nil || got.ID != user.ID {
		t.Fatalf("authenticate = %v, %v", got, err)
	}

	for _, creds := range [][2]string{
		{"ada@example.com", "wrong"},
		{"nobody@example.com", "Secret123"},
	} {
		_, err := env.users.Authenticate(ctx, creds[0], creds[1])
		wantKind(t, err, apperr.AuthenticationRequired)
		if apperr.Message(err) != "Invalid email or password" {
			t.Errorf("message = %q", apperr.Message(err))
		}
	}
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.users.Register(context.Background(), validation.RegisterInput{
		Name: "Ada", Email: "ada@example.com", Password: "short",
	})
	wantKind(t, err, apperr.ValidationFailed)
}

func TestUpsertOAuthUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	profile := GoogleProfile{
		ID: "g-1", Email: "grace@example.com", VerifiedEmail: true,
		Name: "Grace Hopper", Picture: "https://example.com/g.png",
	}
	created, err := env.users.UpsertOAuthUser(ctx, profile)
	if err != nil {
		t.Fatal(err)
	}
	if created.Name != "Grace Hopper" || created.GoogleID != "g-1" || created.Password != "" {
		t.Fatalf("created = %+v", created)
	}

	again, err := env.users.UpsertOAuthUser(ctx, profile)
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != created.ID {
		t.Fatal("second login created a new account")
	}

	// an existing password account gets linked
	ada := env.user(t, "ada")
	linked, err := env.users.UpsertOAuthUser(ctx, GoogleProfile{
		ID: "g-2", Email: "ada@example.com", VerifiedEmail: true, Picture: "https://example.com/a.png",
	})
	if err != nil {
		t.Fatal(err)
	}
	if linked.ID != ada.UserID || linked.GoogleID != "g-2" || linked.Image != "https://example.com/a.png" {
		t.Fatalf("linked = %+v", linked)
	}

	_, err = env.users.UpsertOAuthUser(ctx, GoogleProfile{ID: "g-3", Email: "x@example.com"})
	wantKind(t, err, apperr.AuthenticationRequired)
}

func TestProfileHidesDrafts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ada := env.user(t, "ada")
	bob := env.user(t, "bob")

	pub := env.createLoop(t, ada, loopInput("Published Walk", true))
	env.createLoop(t, ada, loopInput("Draft Walk", false))
	if _, err := env.engagement.ToggleLike(ctx, bob, pub.ID); err != nil {
		t.Fatal(err)
	}

	p, err := env.users.Profile(ctx, "ADA")
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Loops) != 1 || p.Loops[0].ID != pub.ID {
		t.Fatalf("profile loops = %+v", p.Loops)
	}
	if p.Totals.Loops != 1 || p.Totals.Likes != 1 {
		t.Errorf("totals = %+v", p.Totals)
	}

	_, err = env.users.Profile(ctx, "nobody")
	wantKind(t, err, apperr.NotFound)
}
