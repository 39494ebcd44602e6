package store

import (
	"context"
	"errors"

	"localeloop/internal/models"
)

var (
	ErrNotFound = errors.New("resource not found")
	ErrConflict = errors.New("resource already exists")
)

type SortOrder string

const (
	SortNewest        SortOrder = "newest"
	SortOldest        SortOrder = "oldest"
	SortMostLiked     SortOrder = "most-liked"
	SortMostCommented SortOrder = "most-commented"
)

// ParseSortOrder 未知值回落到 newest
func ParseSortOrder(s string) SortOrder {
	switch SortOrder(s) {
	case SortOldest, SortMostLiked, SortMostCommented:
		return SortOrder(s)
	default:
		return SortNewest
	}
}

// SearchFilter 所有条件之间是 AND 关系，只匹配已发布的 Loop
type SearchFilter struct {
	Query  string
	City   string
	Tags   []string
	Sort   SortOrder
	Offset int
	Limit  int
}

type Stats struct {
	Loops    int64 `json:"loops"`
	Users    int64 `json:"users"`
	Places   int64 `json:"places"`
	Comments int64 `json:"comments"`
}

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// GetByName matches case-insensitively.
	GetByName(ctx context.Context, name string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
}

// LoopStore 读取方法返回的 Loop 都带有 User 和三个统计字段
type LoopStore interface {
	Create(ctx context.Context, loop *models.Loop) error
	GetByID(ctx context.Context, id string) (*models.Loop, error)
	GetBySlug(ctx context.Context, slug string) (*models.Loop, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	// Update writes the mutable fields only; user_id never changes.
	Update(ctx context.Context, loop *models.Loop) error
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, filter SearchFilter) ([]models.Loop, int64, error)
	ListByUser(ctx context.Context, userID string, publishedOnly bool) ([]models.Loop, error)
	Featured(ctx context.Context, limit int) ([]models.Loop, error)
	Popular(ctx context.Context, limit int) ([]models.Loop, error)
	SetFeatured(ctx context.Context, id string, featured bool) error
	Cities(ctx context.Context) ([]string, error)
	Tags(ctx context.Context) ([]string, error)
	Stats(ctx context.Context) (Stats, error)
}

type PlaceStore interface {
	CreateBatch(ctx context.Context, places []models.Place) error
	// ListByLoop returns places ordered by their position.
	ListByLoop(ctx context.Context, loopID string) ([]models.Place, error)
	DeleteByLoop(ctx context.Context, loopID string) error
	SetOrder(ctx context.Context, placeID string, order int) error
}

type CommentStore interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id string) (*models.Comment, error)
	// ListByLoop returns newest first with author and like count.
	ListByLoop(ctx context.Context, loopID string, offset, limit int) ([]models.Comment, int64, error)
	Delete(ctx context.Context, id string) error
}

type LikeStore interface {
	Exists(ctx context.Context, userID, loopID string) (bool, error)
	// Create returns ErrConflict when the pair already exists.
	Create(ctx context.Context, userID, loopID string) error
	Delete(ctx context.Context, userID, loopID string) error
	Count(ctx context.Context, loopID string) (int64, error)
}

type CommentLikeStore interface {
	Exists(ctx context.Context, userID, commentID string) (bool, error)
	Create(ctx context.Context, userID, commentID string) error
	Delete(ctx context.Context, userID, commentID string) error
	Count(ctx context.Context, commentID string) (int64, error)
	LikedBy(ctx context.Context, userID string, commentIDs []string) (map[string]bool, error)
}

// Transactor runs fn against a Storage bound to a single transaction.
// Returning an error from fn rolls everything back.
type Transactor interface {
	WithTx(ctx context.Context, fn func(Storage) error) error
}

type Storage struct {
	Users        UserStore
	Loops        LoopStore
	Places       PlaceStore
	Comments     CommentStore
	Likes        LikeStore
	CommentLikes CommentLikeStore
	Transactor
}
