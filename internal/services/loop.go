package services

import (
	"context"

	"localeloop/internal/apperr"
	"localeloop/internal/auth"
	"localeloop/internal/metrics"
	"localeloop/internal/models"
	"localeloop/internal/slug"
	"localeloop/internal/store"
	"localeloop/internal/utils"
	"localeloop/internal/validation"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// LoopService 负责 Loop 的创建、更新、删除和地点排序
type LoopService struct {
	store store.Storage
	cache utils.Cache
	log   *zap.SugaredLogger
}

func NewLoopService(s store.Storage, cache utils.Cache, log *zap.SugaredLogger) *LoopService {
	return &LoopService{store: s, cache: cache, log: log}
}

type LoopRef struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
}

// LoopDetail 详情页数据
type LoopDetail struct {
	*models.Loop
	DescriptionHTML string      `json:"description_html"`
	Liked           bool        `json:"liked"`
	IsOwner         bool        `json:"is_owner"`
	Metrics         LoopMetrics `json:"metrics"`
}

type DashboardTotals struct {
	Loops     int   `json:"loops"`
	Published int   `json:"published"`
	Drafts    int   `json:"drafts"`
	Likes     int64 `json:"likes"`
	Comments  int64 `json:"comments"`
}

type Dashboard struct {
	Loops  []models.Loop   `json:"loops"`
	Totals DashboardTotals `json:"totals"`
}

func buildPlaces(loopID string, in []validation.PlaceInput) []models.Place {
	places := make([]models.Place, len(in))
	for i, p := range in {
		places[i] = models.Place{
			Name:        p.Name,
			Description: p.Description,
			Category:    p.Category,
			MapURL:      p.MapURL,
			Address:     p.Address,
			Image:       p.Image,
			Latitude:    p.Latitude,
			Longitude:   p.Longitude,
			Order:       i + 1,
			LoopID:      loopID,
		}
	}
	return places
}

func (s *LoopService) record(op string, err error) {
	metrics.LoopOperations.WithLabelValues(op, metrics.Outcome(err)).Inc()
	if apperr.KindOf(err) == apperr.StoreUnavailable {
		s.log.Errorw("loop operation failed", "operation", op, "error", err)
	}
}

// Create validates the payload, then inserts the loop and its places in
// one transaction. Places get order 1..n in payload order.
func (s *LoopService) Create(ctx context.Context, caller auth.Identity, in validation.LoopInput) (ref *LoopRef, err error) {
	defer func() { s.record("create", err) }()

	if err := validation.Loop(&in); err != nil {
		return nil, err
	}
	if _, err := auth.RequireSession(caller); err != nil {
		return nil, err
	}

	loop := models.Loop{
		Title:       in.Title,
		Description: in.Description,
		City:        in.City,
		CoverImage:  in.CoverImage,
		Tags:        pq.StringArray(in.Tags),
		Published:   in.Published,
		UserID:      caller.UserID,
	}
	err = s.store.WithTx(ctx, func(tx store.Storage) error {
		allocated, err := slug.Allocate(ctx, in.Title, tx.Loops.SlugExists, "")
		if err != nil {
			return err
		}
		loop.Slug = allocated
		if err := tx.Loops.Create(ctx, &loop); err != nil {
			return err
		}
		return tx.Places.CreateBatch(ctx, buildPlaces(loop.ID, in.Places))
	})
	if err != nil {
		return nil, storeErr(err, "User not found")
	}

	s.invalidateDerived(ctx)
	return &LoopRef{ID: loop.ID, Slug: loop.Slug}, nil
}

// Update replaces the loop fields and its whole place list. The slug is
// reallocated only when the title changes.
func (s *LoopService) Update(ctx context.Context, caller auth.Identity, loopID string, in validation.LoopInput) (ref *LoopRef, err error) {
	defer func() { s.record("update", err) }()

	if _, err := auth.RequireSession(caller); err != nil {
		return nil, err
	}
	existing, err := s.store.Loops.GetByID(ctx, loopID)
	if err != nil {
		return nil, storeErr(err, "Loop not found")
	}
	if err := auth.RequireOwner(existing.UserID, caller); err != nil {
		return nil, err
	}
	if err := validation.Loop(&in); err != nil {
		return nil, err
	}

	updated := *existing
	updated.Title = in.Title
	updated.Description = in.Description
	updated.City = in.City
	updated.CoverImage = in.CoverImage
	updated.Tags = pq.StringArray(in.Tags)
	updated.Published = in.Published

	err = s.store.WithTx(ctx, func(tx store.Storage) error {
		if in.Title != existing.Title {
			allocated, err := slug.Allocate(ctx, in.Title, tx.Loops.SlugExists, existing.Slug)
			if err != nil {
				return err
			}
			updated.Slug = allocated
		}
		if err := tx.Loops.Update(ctx, &updated); err != nil {
			return err
		}
		if err := tx.Places.DeleteByLoop(ctx, loopID); err != nil {
			return err
		}
		return tx.Places.CreateBatch(ctx, buildPlaces(loopID, in.Places))
	})
	if err != nil {
		return nil, storeErr(err, "Loop not found")
	}

	s.invalidateDerived(ctx)
	return &LoopRef{ID: loopID, Slug: updated.Slug}, nil
}

// Delete removes the loop; places, comments and likes go with it.
func (s *LoopService) Delete(ctx context.Context, caller auth.Identity, loopID string) (err error) {
	defer func() { s.record("delete", err) }()

	if _, err := auth.RequireSession(caller); err != nil {
		return err
	}
	existing, err := s.store.Loops.GetByID(ctx, loopID)
	if err != nil {
		return storeErr(err, "Loop not found")
	}
	if err := auth.RequireOwner(existing.UserID, caller); err != nil {
		return err
	}
	if err := s.store.Loops.Delete(ctx, loopID); err != nil {
		return storeErr(err, "Loop not found")
	}

	s.invalidateDerived(ctx)
	return nil
}

// ReorderPlaces sets order = position+1 for each id. placeIDs must name
// every place of the loop exactly once.
func (s *LoopService) ReorderPlaces(ctx context.Context, caller auth.Identity, loopID string, placeIDs []string) (err error) {
	defer func() { s.record("reorder", err) }()

	if _, err := auth.RequireSession(caller); err != nil {
		return err
	}
	existing, err := s.store.Loops.GetByID(ctx, loopID)
	if err != nil {
		return storeErr(err, "Loop not found")
	}
	if err := auth.RequireOwner(existing.UserID, caller); err != nil {
		return err
	}

	places, err := s.store.Places.ListByLoop(ctx, loopID)
	if err != nil {
		return storeErr(err, "Loop not found")
	}
	if !isPermutation(places, placeIDs) {
		return apperr.Validation("Place order must list every place of the loop exactly once")
	}

	err = s.store.WithTx(ctx, func(tx store.Storage) error {
		for i, id := range placeIDs {
			if err := tx.Places.SetOrder(ctx, id, i+1); err != nil {
				return err
			}
		}
		return nil
	})
	return storeErr(err, "Place not found")
}

func isPermutation(places []models.Place, ids []string) bool {
	if len(places) != len(ids) {
		return false
	}
	owned := make(map[string]bool, len(places))
	for _, p := range places {
		owned[p.ID] = true
	}
	for _, id := range ids {
		if !owned[id] {
			return false
		}
		delete(owned, id)
	}
	return true
}

// Get returns a loop by slug. Drafts are visible to their owner only and
// look like a missing loop to everyone else.
func (s *LoopService) Get(ctx context.Context, viewer auth.Identity, loopSlug string) (*LoopDetail, error) {
	loop, err := s.store.Loops.GetBySlug(ctx, loopSlug)
	if err != nil {
		return nil, storeErr(err, "Loop not found")
	}
	if !loop.VisibleTo(viewer.UserID) {
		return nil, apperr.NotFoundError("Loop not found")
	}

	places, err := s.store.Places.ListByLoop(ctx, loop.ID)
	if err != nil {
		return nil, storeErr(err, "Loop not found")
	}
	loop.Places = places

	detail := &LoopDetail{
		Loop:            loop,
		DescriptionHTML: utils.RenderDescription(loop.Description),
		IsOwner:         viewer.Authenticated() && viewer.UserID == loop.UserID,
		Metrics:         CalculateLoopMetrics(places),
	}
	if viewer.Authenticated() {
		liked, err := s.store.Likes.Exists(ctx, viewer.UserID, loop.ID)
		if err != nil {
			return nil, storeErr(err, "Loop not found")
		}
		detail.Liked = liked
	}
	return detail, nil
}

// GetForEdit loads a loop with its places for its owner.
func (s *LoopService) GetForEdit(ctx context.Context, caller auth.Identity, loopID string) (*models.Loop, error) {
	if _, err := auth.RequireSession(caller); err != nil {
		return nil, err
	}
	loop, err := s.store.Loops.GetByID(ctx, loopID)
	if err != nil {
		return nil, storeErr(err, "Loop not found")
	}
	if err := auth.RequireOwner(loop.UserID, caller); err != nil {
		return nil, err
	}
	places, err := s.store.Places.ListByLoop(ctx, loopID)
	if err != nil {
		return nil, storeErr(err, "Loop not found")
	}
	loop.Places = places
	return loop, nil
}

// Dashboard lists all of the caller's loops, drafts included.
func (s *LoopService) Dashboard(ctx context.Context, caller auth.Identity) (*Dashboard, error) {
	if _, err := auth.RequireSession(caller); err != nil {
		return nil, err
	}
	loops, err := s.store.Loops.ListByUser(ctx, caller.UserID, false)
	if err != nil {
		return nil, storeErr(err, "User not found")
	}

	d := &Dashboard{Loops: loops}
	if d.Loops == nil {
		d.Loops = []models.Loop{}
	}
	for _, l := range loops {
		d.Totals.Loops++
		if l.Published {
			d.Totals.Published++
		} else {
			d.Totals.Drafts++
		}
		d.Totals.Likes += l.LikeCount
		d.Totals.Comments += l.CommentCount
	}
	return d, nil
}

// SetFeatured 管理员设置/取消精选
func (s *LoopService) SetFeatured(ctx context.Context, caller auth.Identity, loopID string, featured bool) error {
	if err := auth.RequireAdmin(caller); err != nil {
		return err
	}
	if err := s.store.Loops.SetFeatured(ctx, loopID, featured); err != nil {
		return storeErr(err, "Loop not found")
	}
	return nil
}

func (s *LoopService) invalidateDerived(ctx context.Context) {
	s.cache.Delete(ctx, cacheKeyFilterOptions, cacheKeyStats)
}
