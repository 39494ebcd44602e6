package services

import (
	"context"
	"strings"
	"sync"
	"testing"

	"localeloop/internal/apperr"
	"localeloop/internal/auth"
	"localeloop/internal/validation"
)

func TestToggleLikeInvolution(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ada := env.user(t, "ada")
	bob := env.user(t, "bob")
	ref := env.createLoop(t, ada, loopInput("Museum Mile", true))

	res, err := env.engagement.ToggleLike(ctx, bob, ref.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Liked || res.Count != 1 || res.Message != "Loop liked" {
		t.Fatalf("first toggle = %+v", res)
	}

	res, err = env.engagement.ToggleLike(ctx, bob, ref.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Liked || res.Count != 0 || res.Message != "Like removed" {
		t.Fatalf("second toggle = %+v", res)
	}
	if ok, _ := env.store.Likes.Exists(ctx, bob.UserID, ref.ID); ok {
		t.Fatal("like row left behind")
	}
}

func TestConcurrentToggleLikeLeavesAtMostOneRow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ada := env.user(t, "ada")
	bob := env.user(t, "bob")
	ref := env.createLoop(t, ada, loopInput("Museum Mile", true))

	for round := 0; round < 20; round++ {
		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = env.engagement.ToggleLike(ctx, bob, ref.ID)
			}(i)
		}
		wg.Wait()

		for _, err := range errs {
			if err != nil && apperr.KindOf(err) != apperr.Conflict {
				t.Fatalf("round %d: unexpected error %v", round, err)
			}
		}
		n, err := env.store.Likes.Count(ctx, ref.ID)
		if err != nil {
			t.Fatal(err)
		}
		if n > 1 {
			t.Fatalf("round %d: %d like rows for one user", round, n)
		}
	}
}

func TestToggleLikeRequiresVisibleLoop(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ada := env.user(t, "ada")
	bob := env.user(t, "bob")
	ref := env.createLoop(t, ada, loopInput("Draft", false))

	_, err := env.engagement.ToggleLike(ctx, bob, ref.ID)
	wantKind(t, err, apperr.NotFound)
	_, err = env.engagement.ToggleLike(ctx, auth.Anonymous(), ref.ID)
	wantKind(t, err, apperr.AuthenticationRequired)
	_, err = env.engagement.ToggleLike(ctx, bob, "missing")
	wantKind(t, err, apperr.NotFound)
}

func TestCreateCommentGating(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ada := env.user(t, "ada")
	bob := env.user(t, "bob")
	draft := env.createLoop(t, ada, loopInput("Draft", false))

	// even the owner cannot comment on a draft
	for _, caller := range []auth.Identity{ada, bob} {
		_, err := env.engagement.CreateComment(ctx, caller, validation.CommentInput{
			Content: "Nice", LoopID: draft.ID, UserID: caller.UserID,
		})
		wantKind(t, err, apperr.NotFound)
		if apperr.Message(err) != "Loop not found or not published" {
			t.Errorf("message = %q", apperr.Message(err))
		}
	}

	_, err := env.engagement.CreateComment(ctx, bob, validation.CommentInput{
		Content: "Nice", LoopID: "missing", UserID: bob.UserID,
	})
	wantKind(t, err, apperr.NotFound)
}

func TestCreateComment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ada := env.user(t, "ada")
	bob := env.user(t, "bob")
	ref := env.createLoop(t, ada, loopInput("Museum Mile", true))

	c, err := env.engagement.CreateComment(ctx, bob, validation.CommentInput{
		Content: "Loved the Met", LoopID: ref.ID, UserID: bob.UserID,
	})
	if err != nil {
		t.Fatal(err)
	}
	if c.ID == "" || c.User == nil || c.User.Name != "bob" || c.LikeCount != 0 {
		t.Fatalf("comment = %+v", c)
	}

	_, err = env.engagement.CreateComment(ctx, bob, validation.CommentInput{
		Content: strings.Repeat("x", 501), LoopID: ref.ID, UserID: bob.UserID,
	})
	wantKind(t, err, apperr.ValidationFailed)

	// posting as someone else
	_, err = env.engagement.CreateComment(ctx, bob, validation.CommentInput{
		Content: "Spoof", LoopID: ref.ID, UserID: ada.UserID,
	})
	wantKind(t, err, apperr.Unauthorized)

	_, err = env.engagement.CreateComment(ctx, auth.Anonymous(), validation.CommentInput{
		Content: "Hi", LoopID: ref.ID, UserID: bob.UserID,
	})
	wantKind(t, err, apperr.AuthenticationRequired)
}

func TestCommentContentHTMLIsSanitized(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ada := env.user(t, "ada")
	ref := env.createLoop(t, ada, loopInput("Museum Mile", true))

	raw := "**Great** walk <img src=x onerror=alert(1)>"
	c, err := env.engagement.CreateComment(ctx, ada, validation.CommentInput{
		Content: raw, LoopID: ref.ID, UserID: ada.UserID,
	})
	if err != nil {
		t.Fatal(err)
	}
	if c.Content != raw {
		t.Errorf("content changed: %q", c.Content)
	}

	page, err := env.engagement.ListComments(ctx, ada, ref.ID, 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	for _, html := range []string{c.ContentHTML, page.Comments[0].ContentHTML} {
		if !strings.Contains(html, "<strong>Great</strong>") {
			t.Errorf("markdown not rendered: %q", html)
		}
		if strings.Contains(html, "<img") || strings.Contains(html, "onerror") {
			t.Errorf("unsafe html kept: %q", html)
		}
	}
}

func TestDeleteCommentAuthorOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ada := env.user(t, "ada")
	bob := env.user(t, "bob")
	ref := env.createLoop(t, ada, loopInput("Museum Mile", true))

	c, err := env.engagement.CreateComment(ctx, bob, validation.CommentInput{
		Content: "Hello", LoopID: ref.ID, UserID: bob.UserID,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.engagement.ToggleCommentLike(ctx, ada, c.ID); err != nil {
		t.Fatal(err)
	}

	// the loop owner is not the comment author
	wantKind(t, env.engagement.DeleteComment(ctx, ada, c.ID), apperr.Unauthorized)
	if _, err := env.store.Comments.GetByID(ctx, c.ID); err != nil {
		t.Fatalf("comment removed by non-author: %v", err)
	}

	if err := env.engagement.DeleteComment(ctx, bob, c.ID); err != nil {
		t.Fatal(err)
	}
	if n, _ := env.store.CommentLikes.Count(ctx, c.ID); n != 0 {
		t.Errorf("%d comment likes survived", n)
	}
	err = env.engagement.DeleteComment(ctx, bob, c.ID)
	wantKind(t, err, apperr.NotFound)
	if apperr.Message(err) != "Comment not found" {
		t.Errorf("message = %q", apperr.Message(err))
	}
}

func TestToggleCommentLike(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ada := env.user(t, "ada")
	bob := env.user(t, "bob")
	ref := env.createLoop(t, ada, loopInput("Museum Mile", true))
	c, err := env.engagement.CreateComment(ctx, bob, validation.CommentInput{
		Content: "Hello", LoopID: ref.ID, UserID: bob.UserID,
	})
	if err != nil {
		t.Fatal(err)
	}

	res, err := env.engagement.ToggleCommentLike(ctx, ada, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Liked || res.Count != 1 || res.Message != "Comment liked" {
		t.Fatalf("like = %+v", res)
	}
	res, _ = env.engagement.ToggleCommentLike(ctx, bob, c.ID)
	if res.Count != 2 {
		t.Fatalf("count = %d, want 2", res.Count)
	}
	res, _ = env.engagement.ToggleCommentLike(ctx, ada, c.ID)
	if res.Liked || res.Count != 1 || res.Message != "Like removed" {
		t.Fatalf("unlike = %+v", res)
	}

	_, err = env.engagement.ToggleCommentLike(ctx, ada, "missing")
	wantKind(t, err, apperr.NotFound)
}

func TestListComments(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ada := env.user(t, "ada")
	bob := env.user(t, "bob")
	ref := env.createLoop(t, ada, loopInput("Museum Mile", true))

	var ids []string
	for _, text := range []string{"first", "second", "third"} {
		c, err := env.engagement.CreateComment(ctx, bob, validation.CommentInput{
			Content: text, LoopID: ref.ID, UserID: bob.UserID,
		})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, c.ID)
	}
	if _, err := env.engagement.ToggleCommentLike(ctx, ada, ids[0]); err != nil {
		t.Fatal(err)
	}

	page, err := env.engagement.ListComments(ctx, ada, ref.ID, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if page.Pagination.Total != 3 || page.Pagination.Pages != 2 || len(page.Comments) != 2 {
		t.Fatalf("pagination = %+v, comments = %d", page.Pagination, len(page.Comments))
	}
	if page.Comments[0].Content != "third" {
		t.Errorf("newest first: got %q", page.Comments[0].Content)
	}

	last, err := env.engagement.ListComments(ctx, ada, ref.ID, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(last.Comments) != 1 || !last.Comments[0].Liked || last.Comments[0].LikeCount != 1 {
		t.Fatalf("last page = %+v", last.Comments)
	}

	anon, err := env.engagement.ListComments(ctx, auth.Anonymous(), ref.ID, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if anon.Comments[0].Liked {
		t.Error("anonymous viewer cannot have liked a comment")
	}

	far, err := env.engagement.ListComments(ctx, ada, ref.ID, 1<<62, 2)
	if err != nil {
		t.Fatal(err)
	}
	if far.Pagination.Page != maxPage || len(far.Comments) != 0 {
		t.Fatalf("far page = %+v, %d comments", far.Pagination, len(far.Comments))
	}
}
