package services

import (
	"context"
	"errors"
	"reflect"
	"strconv"
	"strings"
	"testing"

	"localeloop/internal/apperr"
	"localeloop/internal/auth"
)

func TestCreateLoopAllocatesUniqueSlugs(t *testing.T) {
	env := newTestEnv(t)
	ada := env.user(t, "ada")

	want := []string{
		"best-coffee-shops-in-brooklyn",
		"best-coffee-shops-in-brooklyn-1",
		"best-coffee-shops-in-brooklyn-2",
	}
	for _, w := range want {
		ref := env.createLoop(t, ada, loopInput("Best Coffee Shops in Brooklyn", true))
		if ref.Slug != w {
			t.Errorf("slug = %q, want %q", ref.Slug, w)
		}
	}
}

func TestCreateLoopValidatesBeforeSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	bad := loopInput("", true)
	_, err := env.loops.Create(ctx, auth.Anonymous(), bad)
	wantKind(t, err, apperr.ValidationFailed)
	if apperr.Message(err) != "Title is required" {
		t.Errorf("message = %q", apperr.Message(err))
	}

	_, err = env.loops.Create(ctx, auth.Anonymous(), loopInput("Ok", true))
	wantKind(t, err, apperr.AuthenticationRequired)
}

func TestCreateLoopOrdersPlaces(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ada := env.user(t, "ada")

	ref := env.createLoop(t, ada, loopInput("Best Coffee Shops in Brooklyn", true, "A", "B", "C"))
	places, err := env.store.Places.ListByLoop(ctx, ref.ID)
	if err != nil {
		t.Fatal(err)
	}
	for i, p := range places {
		if p.Order != i+1 {
			t.Errorf("place %s order = %d, want %d", p.Name, p.Order, i+1)
		}
	}
	if got := placeNames(places); !reflect.DeepEqual(got, []string{"A", "B", "C"}) {
		t.Fatalf("places = %v", got)
	}
}

func TestCreateLoopRollsBackOnPlaceFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ada := env.user(t, "ada")

	env.db.FailNext("places.create", errors.New("connection reset"))
	_, err := env.loops.Create(ctx, ada, loopInput("Museum Mile", true))
	wantKind(t, err, apperr.StoreUnavailable)

	taken, err := env.store.Loops.SlugExists(ctx, "museum-mile")
	if err != nil {
		t.Fatal(err)
	}
	if taken {
		t.Fatal("loop row survived a failed place insert")
	}

	// the slug is free again
	ref := env.createLoop(t, ada, loopInput("Museum Mile", true))
	if ref.Slug != "museum-mile" {
		t.Errorf("slug = %q", ref.Slug)
	}
}

func TestUpdateLoopReplacesPlaces(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ada := env.user(t, "ada")

	ref := env.createLoop(t, ada, loopInput("Best Coffee Shops in Brooklyn", true, "A", "B", "C"))
	before, _ := env.store.Places.ListByLoop(ctx, ref.ID)

	updated, err := env.loops.Update(ctx, ada, ref.ID, loopInput("Best Coffee Shops in Brooklyn", true, "C", "A", "B"))
	if err != nil {
		t.Fatal(err)
	}
	if updated.Slug != ref.Slug {
		t.Errorf("slug changed to %q with the same title", updated.Slug)
	}

	after, err := env.store.Places.ListByLoop(ctx, ref.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got := placeNames(after); !reflect.DeepEqual(got, []string{"C", "A", "B"}) {
		t.Fatalf("places = %v, want [C A B]", got)
	}
	old := map[string]bool{}
	for _, p := range before {
		old[p.ID] = true
	}
	for i, p := range after {
		if p.Order != i+1 {
			t.Errorf("%s order = %d", p.Name, p.Order)
		}
		if old[p.ID] {
			t.Errorf("place %s kept its old id", p.Name)
		}
	}
}

func TestUpdateLoopIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ada := env.user(t, "ada")

	ref := env.createLoop(t, ada, loopInput("Harlem Jazz", false, "A"))
	payload := loopInput("Harlem Jazz Night", true, "Minton's", "Showmans", "Apollo")

	snapshot := func() []string {
		places, err := env.store.Places.ListByLoop(ctx, ref.ID)
		if err != nil {
			t.Fatal(err)
		}
		out := []string{}
		for _, p := range places {
			out = append(out, p.Name+"|"+p.Description+"|"+p.Category+"|"+p.MapURL+"|"+strconv.Itoa(p.Order))
		}
		return out
	}

	first, err := env.loops.Update(ctx, ada, ref.ID, payload)
	if err != nil {
		t.Fatal(err)
	}
	s1 := snapshot()
	second, err := env.loops.Update(ctx, ada, ref.ID, payload)
	if err != nil {
		t.Fatal(err)
	}
	s2 := snapshot()

	if !reflect.DeepEqual(s1, s2) {
		t.Fatalf("place sets differ:\n%v\n%v", s1, s2)
	}
	if first.Slug != "harlem-jazz-night" || second.Slug != first.Slug {
		t.Errorf("slugs = %q, %q", first.Slug, second.Slug)
	}
}

func TestUpdateLoopReallocatesSlugAroundOthers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ada := env.user(t, "ada")

	env.createLoop(t, ada, loopInput("Museum Mile", true))
	ref := env.createLoop(t, ada, loopInput("Art Walk", true))

	updated, err := env.loops.Update(ctx, ada, ref.ID, loopInput("Museum Mile", true))
	if err != nil {
		t.Fatal(err)
	}
	if updated.Slug != "museum-mile-1" {
		t.Errorf("slug = %q, want museum-mile-1", updated.Slug)
	}
}

func TestOwnershipIsEnforcedWithoutMutation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ada := env.user(t, "ada")
	bob := env.user(t, "bob")

	ref := env.createLoop(t, ada, loopInput("Best Coffee Shops in Brooklyn", true, "A", "B"))

	_, err := env.loops.Update(ctx, bob, ref.ID, loopInput("Hijacked", true, "X"))
	wantKind(t, err, apperr.Unauthorized)
	wantKind(t, env.loops.Delete(ctx, bob, ref.ID), apperr.Unauthorized)

	places, _ := env.store.Places.ListByLoop(ctx, ref.ID)
	wantKind(t, env.loops.ReorderPlaces(ctx, bob, ref.ID, []string{places[1].ID, places[0].ID}), apperr.Unauthorized)

	loop, err := env.store.Loops.GetByID(ctx, ref.ID)
	if err != nil {
		t.Fatalf("loop gone after rejected delete: %v", err)
	}
	if loop.Title != "Best Coffee Shops in Brooklyn" || loop.Slug != ref.Slug {
		t.Errorf("loop mutated: %+v", loop)
	}
	after, _ := env.store.Places.ListByLoop(ctx, ref.ID)
	if got := placeNames(after); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Errorf("places mutated: %v", got)
	}
}

func TestUpdateMissingLoop(t *testing.T) {
	env := newTestEnv(t)
	ada := env.user(t, "ada")

	_, err := env.loops.Update(context.Background(), ada, "missing", loopInput("X", true))
	wantKind(t, err, apperr.NotFound)
	if apperr.Message(err) != "Loop not found" {
		t.Errorf("message = %q", apperr.Message(err))
	}
}

func TestDeleteLoopCascades(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ada := env.user(t, "ada")
	bob := env.user(t, "bob")

	ref := env.createLoop(t, ada, loopInput("Museum Mile", true, "A", "B"))
	if _, err := env.engagement.ToggleLike(ctx, bob, ref.ID); err != nil {
		t.Fatal(err)
	}
	if err := env.loops.Delete(ctx, ada, ref.ID); err != nil {
		t.Fatal(err)
	}

	if _, err := env.store.Loops.GetByID(ctx, ref.ID); err == nil {
		t.Error("loop still present")
	}
	places, _ := env.store.Places.ListByLoop(ctx, ref.ID)
	if len(places) != 0 {
		t.Errorf("%d places survived", len(places))
	}
	if n, _ := env.store.Likes.Count(ctx, ref.ID); n != 0 {
		t.Errorf("%d likes survived", n)
	}
}

func TestReorderPlaces(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ada := env.user(t, "ada")

	ref := env.createLoop(t, ada, loopInput("Best Coffee Shops in Brooklyn", true, "A", "B", "C"))
	places, _ := env.store.Places.ListByLoop(ctx, ref.ID)
	a, b, c := places[0].ID, places[1].ID, places[2].ID

	if err := env.loops.ReorderPlaces(ctx, ada, ref.ID, []string{c, a, b}); err != nil {
		t.Fatal(err)
	}
	after, _ := env.store.Places.ListByLoop(ctx, ref.ID)
	if got := placeNames(after); !reflect.DeepEqual(got, []string{"C", "A", "B"}) {
		t.Fatalf("places = %v", got)
	}
	if after[0].ID != c {
		t.Error("reorder must keep place ids")
	}

	for _, ids := range [][]string{
		{a, b},
		{a, a, b},
		{a, b, "elsewhere"},
	} {
		err := env.loops.ReorderPlaces(ctx, ada, ref.ID, ids)
		wantKind(t, err, apperr.ValidationFailed)
	}
}

func TestGetLoopDraftVisibility(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ada := env.user(t, "ada")
	bob := env.user(t, "bob")

	ref := env.createLoop(t, ada, loopInput("Secret Spots", false, "A", "B"))

	detail, err := env.loops.Get(ctx, ada, ref.Slug)
	if err != nil {
		t.Fatalf("owner cannot see draft: %v", err)
	}
	if !detail.IsOwner || len(detail.Places) != 2 {
		t.Errorf("detail = %+v", detail)
	}
	if detail.Metrics.EstimatedDuration != "1h 10min" {
		t.Errorf("duration = %q", detail.Metrics.EstimatedDuration)
	}

	_, err = env.loops.Get(ctx, bob, ref.Slug)
	wantKind(t, err, apperr.NotFound)
	_, err = env.loops.Get(ctx, auth.Anonymous(), ref.Slug)
	wantKind(t, err, apperr.NotFound)
}

func TestGetLoopRendersDescriptionAndLiked(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ada := env.user(t, "ada")
	bob := env.user(t, "bob")

	in := loopInput("Museum Mile", true)
	in.Description = "**Bold** start <script>alert(1)</script>"
	ref := env.createLoop(t, ada, in)

	if _, err := env.engagement.ToggleLike(ctx, bob, ref.ID); err != nil {
		t.Fatal(err)
	}
	detail, err := env.loops.Get(ctx, bob, ref.Slug)
	if err != nil {
		t.Fatal(err)
	}
	if !detail.Liked || detail.IsOwner || detail.LikeCount != 1 {
		t.Errorf("liked=%v owner=%v likes=%d", detail.Liked, detail.IsOwner, detail.LikeCount)
	}
	if want := "<strong>Bold</strong>"; !strings.Contains(detail.DescriptionHTML, want) {
		t.Errorf("html = %q", detail.DescriptionHTML)
	}
	if strings.Contains(detail.DescriptionHTML, "<script>") {
		t.Errorf("script tag not sanitized: %q", detail.DescriptionHTML)
	}
}

func TestDashboardIncludesDrafts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ada := env.user(t, "ada")
	bob := env.user(t, "bob")

	env.createLoop(t, ada, loopInput("Published Walk", true))
	env.createLoop(t, ada, loopInput("Draft Walk", false))
	env.createLoop(t, bob, loopInput("Bob Walk", true))

	d, err := env.loops.Dashboard(ctx, ada)
	if err != nil {
		t.Fatal(err)
	}
	if d.Totals.Loops != 2 || d.Totals.Published != 1 || d.Totals.Drafts != 1 {
		t.Errorf("totals = %+v", d.Totals)
	}
	for _, l := range d.Loops {
		if l.UserID != ada.UserID {
			t.Errorf("foreign loop %q on dashboard", l.Title)
		}
	}

	_, err = env.loops.Dashboard(ctx, auth.Anonymous())
	wantKind(t, err, apperr.AuthenticationRequired)
}

func TestGetForEditOwnerOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ada := env.user(t, "ada")
	bob := env.user(t, "bob")

	ref := env.createLoop(t, ada, loopInput("Draft Walk", false, "A", "B"))
	loop, err := env.loops.GetForEdit(ctx, ada, ref.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(loop.Places) != 2 {
		t.Errorf("places = %d", len(loop.Places))
	}
	_, err = env.loops.GetForEdit(ctx, bob, ref.ID)
	wantKind(t, err, apperr.Unauthorized)
}

func TestSetFeaturedAdminOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ada := env.user(t, "ada")
	ref := env.createLoop(t, ada, loopInput("Museum Mile", true))

	wantKind(t, env.loops.SetFeatured(ctx, ada, ref.ID, true), apperr.Unauthorized)

	admin := auth.Identity{UserID: ada.UserID, Role: "ADMIN"}
	if err := env.loops.SetFeatured(ctx, admin, ref.ID, true); err != nil {
		t.Fatal(err)
	}
	featured, err := env.search.Featured(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(featured) != 1 || featured[0].ID != ref.ID {
		t.Errorf("featured = %v", featured)
	}
	wantKind(t, env.loops.SetFeatured(ctx, admin, "missing", true), apperr.NotFound)
}
