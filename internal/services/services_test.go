package services

import (
	"context"
	"testing"

	"localeloop/internal/apperr"
	"localeloop/internal/auth"
	"localeloop/internal/models"
	"localeloop/internal/store"
	"localeloop/internal/store/memstore"
	"localeloop/internal/utils"
	"localeloop/internal/validation"

	"go.uber.org/zap"
)

type testEnv struct {
	db         *memstore.DB
	store      store.Storage
	cache      *utils.LocalCache
	loops      *LoopService
	engagement *EngagementService
	search     *SearchService
	users      *UserService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := memstore.New()
	s := db.Storage()
	cache := utils.NewLocalCache(32)
	log := zap.NewNop().Sugar()
	return &testEnv{
		db:         db,
		store:      s,
		cache:      cache,
		loops:      NewLoopService(s, cache, log),
		engagement: NewEngagementService(s, log),
		search:     NewSearchService(s, cache),
		users:      NewUserService(s, log),
	}
}

// user 直接写入存储，跳过 bcrypt
func (e *testEnv) user(t *testing.T, name string) auth.Identity {
	t.Helper()
	u := &models.User{Name: name, Email: name + "@example.com"}
	if err := e.store.Users.Create(context.Background(), u); err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return auth.FromUser(u)
}

func (e *testEnv) createLoop(t *testing.T, caller auth.Identity, in validation.LoopInput) *LoopRef {
	t.Helper()
	ref, err := e.loops.Create(context.Background(), caller, in)
	if err != nil {
		t.Fatalf("create loop: %v", err)
	}
	return ref
}

func place(name, category string) validation.PlaceInput {
	return validation.PlaceInput{
		Name:        name,
		Description: name + " description",
		Category:    category,
		MapURL:      "https://maps.google.com/?q=" + name,
	}
}

func loopInput(title string, published bool, names ...string) validation.LoopInput {
	if len(names) == 0 {
		names = []string{"A"}
	}
	places := make([]validation.PlaceInput, len(names))
	for i, n := range names {
		places[i] = place(n, "Cafe")
	}
	return validation.LoopInput{
		Title:       title,
		Description: "A walk through " + title,
		City:        "New York",
		Tags:        []string{"coffee"},
		Published:   published,
		Places:      places,
	}
}

func placeNames(places []models.Place) []string {
	out := make([]string, len(places))
	for i, p := range places {
		out[i] = p.Name
	}
	return out
}

func wantKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	if got := apperr.KindOf(err); err == nil || got != kind {
		t.Fatalf("error = %v (kind %v), want kind %v", err, got, kind)
	}
}
