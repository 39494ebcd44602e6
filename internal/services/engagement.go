package services

import (
	"context"
	"math"

	"localeloop/internal/apperr"
	"localeloop/internal/auth"
	"localeloop/internal/metrics"
	"localeloop/internal/models"
	"localeloop/internal/store"
	"localeloop/internal/utils"
	"localeloop/internal/validation"

	"go.uber.org/zap"
)

// EngagementService 处理点赞和评论
type EngagementService struct {
	store store.Storage
	log   *zap.SugaredLogger
}

func NewEngagementService(s store.Storage, log *zap.SugaredLogger) *EngagementService {
	return &EngagementService{store: s, log: log}
}

type ToggleResult struct {
	Liked   bool   `json:"liked"`
	Count   int64  `json:"count"`
	Message string `json:"message"`
}

type CommentPage struct {
	Comments   []models.Comment `json:"comments"`
	Pagination Pagination       `json:"pagination"`
}

func toggleOutcome(liked bool) string {
	if liked {
		return "liked"
	}
	return "unliked"
}

// ToggleLike flips the caller's like on a loop. Two concurrent toggles that
// both observe "absent" cannot leave two rows: the second insert hits the
// unique index and comes back as Conflict.
func (s *EngagementService) ToggleLike(ctx context.Context, caller auth.Identity, loopID string) (*ToggleResult, error) {
	if _, err := auth.RequireSession(caller); err != nil {
		return nil, err
	}
	loop, err := s.store.Loops.GetByID(ctx, loopID)
	if err != nil {
		return nil, storeErr(err, "Loop not found")
	}
	if !loop.VisibleTo(caller.UserID) {
		return nil, apperr.NotFoundError("Loop not found")
	}

	liked, err := s.store.Likes.Exists(ctx, caller.UserID, loopID)
	if err != nil {
		return nil, storeErr(err, "Loop not found")
	}
	if liked {
		err = s.store.Likes.Delete(ctx, caller.UserID, loopID)
	} else {
		err = s.store.Likes.Create(ctx, caller.UserID, loopID)
	}
	if err != nil {
		err = storeErr(err, "Loop not found")
		if apperr.KindOf(err) == apperr.Conflict {
			s.log.Warnw("concurrent like toggle rejected", "user_id", caller.UserID, "loop_id", loopID)
		}
		metrics.Toggles.WithLabelValues("loop", metrics.Outcome(err)).Inc()
		return nil, err
	}

	count, err := s.store.Likes.Count(ctx, loopID)
	if err != nil {
		return nil, storeErr(err, "Loop not found")
	}

	res := &ToggleResult{Liked: !liked, Count: count, Message: "Loop liked"}
	if liked {
		res.Message = "Like removed"
	}
	metrics.Toggles.WithLabelValues("loop", toggleOutcome(res.Liked)).Inc()
	return res, nil
}

// CreateComment 只能评论已发布的 Loop
func (s *EngagementService) CreateComment(ctx context.Context, caller auth.Identity, in validation.CommentInput) (*models.Comment, error) {
	if _, err := auth.RequireSession(caller); err != nil {
		return nil, err
	}
	if err := validation.Comment(in); err != nil {
		return nil, err
	}
	if in.UserID != caller.UserID {
		return nil, apperr.Forbidden()
	}

	loop, err := s.store.Loops.GetByID(ctx, in.LoopID)
	if err != nil {
		return nil, storeErr(err, "Loop not found or not published")
	}
	if !loop.Published {
		return nil, apperr.NotFoundError("Loop not found or not published")
	}

	comment := models.Comment{
		Content: in.Content,
		UserID:  caller.UserID,
		LoopID:  loop.ID,
	}
	if err := s.store.Comments.Create(ctx, &comment); err != nil {
		return nil, storeErr(err, "Loop not found or not published")
	}

	author, err := s.store.Users.GetByID(ctx, caller.UserID)
	if err != nil {
		return nil, storeErr(err, "User not found")
	}
	comment.User = author
	comment.LikeCount = 0
	comment.ContentHTML = utils.RenderComment(comment.Content)
	return &comment, nil
}

// DeleteComment 只有评论作者可以删除，Loop 作者不行
func (s *EngagementService) DeleteComment(ctx context.Context, caller auth.Identity, commentID string) error {
	if _, err := auth.RequireSession(caller); err != nil {
		return err
	}
	comment, err := s.store.Comments.GetByID(ctx, commentID)
	if err != nil {
		return storeErr(err, "Comment not found")
	}
	if err := auth.RequireOwner(comment.UserID, caller); err != nil {
		return err
	}
	return storeErr(s.store.Comments.Delete(ctx, commentID), "Comment not found")
}

func (s *EngagementService) ToggleCommentLike(ctx context.Context, caller auth.Identity, commentID string) (*ToggleResult, error) {
	if _, err := auth.RequireSession(caller); err != nil {
		return nil, err
	}
	if _, err := s.store.Comments.GetByID(ctx, commentID); err != nil {
		return nil, storeErr(err, "Comment not found")
	}

	liked, err := s.store.CommentLikes.Exists(ctx, caller.UserID, commentID)
	if err != nil {
		return nil, storeErr(err, "Comment not found")
	}
	if liked {
		err = s.store.CommentLikes.Delete(ctx, caller.UserID, commentID)
	} else {
		err = s.store.CommentLikes.Create(ctx, caller.UserID, commentID)
	}
	if err != nil {
		return nil, storeErr(err, "Comment not found")
	}

	count, err := s.store.CommentLikes.Count(ctx, commentID)
	if err != nil {
		return nil, storeErr(err, "Comment not found")
	}

	res := &ToggleResult{Liked: !liked, Count: count, Message: "Comment liked"}
	if liked {
		res.Message = "Like removed"
	}
	metrics.Toggles.WithLabelValues("comment", toggleOutcome(res.Liked)).Inc()
	return res, nil
}

// ListComments 最新的在前，附带当前用户是否点过赞
func (s *EngagementService) ListComments(ctx context.Context, viewer auth.Identity, loopID string, page, limit int) (*CommentPage, error) {
	loop, err := s.store.Loops.GetByID(ctx, loopID)
	if err != nil {
		return nil, storeErr(err, "Loop not found")
	}
	if !loop.VisibleTo(viewer.UserID) {
		return nil, apperr.NotFoundError("Loop not found")
	}

	page, limit = normalizePage(page, limit, 20)
	comments, total, err := s.store.Comments.ListByLoop(ctx, loopID, (page-1)*limit, limit)
	if err != nil {
		return nil, storeErr(err, "Loop not found")
	}
	if comments == nil {
		comments = []models.Comment{}
	}
	for i := range comments {
		comments[i].ContentHTML = utils.RenderComment(comments[i].Content)
	}

	if viewer.Authenticated() && len(comments) > 0 {
		ids := make([]string, len(comments))
		for i, c := range comments {
			ids[i] = c.ID
		}
		liked, err := s.store.CommentLikes.LikedBy(ctx, viewer.UserID, ids)
		if err != nil {
			return nil, storeErr(err, "Loop not found")
		}
		for i := range comments {
			comments[i].Liked = liked[comments[i].ID]
		}
	}

	return &CommentPage{
		Comments: comments,
		Pagination: Pagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: int(math.Ceil(float64(total) / float64(limit))),
		},
	}, nil
}
