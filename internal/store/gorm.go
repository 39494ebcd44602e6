package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"localeloop/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NewStorage returns the PostgreSQL-backed gateway.
func NewStorage(db *gorm.DB) Storage {
	return Storage{
		Users:        &userStore{db: db},
		Loops:        &loopStore{db: db},
		Places:       &placeStore{db: db},
		Comments:     &commentStore{db: db},
		Likes:        &likeStore{db: db},
		CommentLikes: &commentLikeStore{db: db},
		Transactor:   &gormTransactor{db: db},
	}
}

type gormTransactor struct {
	db *gorm.DB
}

func (t *gormTransactor) WithTx(ctx context.Context, fn func(Storage) error) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStorage(tx))
	})
}

// translate 把 gorm / pgx 的错误转换成 ErrNotFound / ErrConflict
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrConflict
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return ErrConflict
		case "23503": // foreign_key_violation
			return ErrNotFound
		}
	}
	return fmt.Errorf("store: %w", err)
}

// ---- users ----

type userStore struct {
	db *gorm.DB
}

func (s *userStore) Create(ctx context.Context, user *models.User) error {
	return translate(s.db.WithContext(ctx).Create(user).Error)
}

func (s *userStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *userStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("lower(email) = lower(?)", email).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *userStore) GetByName(ctx context.Context, name string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("lower(name) = lower(?)", name).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *userStore) Update(ctx context.Context, user *models.User) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"name":      user.Name,
		"image":     user.Image,
		"google_id": user.GoogleID,
		"password":  user.Password,
	})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ---- loops ----

const loopColumns = `loops.*,
	(SELECT COUNT(*) FROM likes WHERE likes.loop_id = loops.id) AS like_count,
	(SELECT COUNT(*) FROM comments WHERE comments.loop_id = loops.id) AS comment_count,
	(SELECT COUNT(*) FROM places WHERE places.loop_id = loops.id) AS place_count`

type loopStore struct {
	db *gorm.DB
}

func (s *loopStore) withCounts(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Model(&models.Loop{}).Select(loopColumns).Preload("User")
}

func (s *loopStore) Create(ctx context.Context, loop *models.Loop) error {
	return translate(s.db.WithContext(ctx).Omit(clause.Associations).Create(loop).Error)
}

func (s *loopStore) GetByID(ctx context.Context, id string) (*models.Loop, error) {
	var loop models.Loop
	if err := s.withCounts(ctx).Where("loops.id = ?", id).First(&loop).Error; err != nil {
		return nil, translate(err)
	}
	return &loop, nil
}

func (s *loopStore) GetBySlug(ctx context.Context, slug string) (*models.Loop, error) {
	var loop models.Loop
	if err := s.withCounts(ctx).Where("loops.slug = ?", slug).First(&loop).Error; err != nil {
		return nil, translate(err)
	}
	return &loop, nil
}

func (s *loopStore) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Loop{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
		return false, translate(err)
	}
	return count > 0, nil
}

func (s *loopStore) Update(ctx context.Context, loop *models.Loop) error {
	tags := loop.Tags
	if tags == nil {
		tags = pq.StringArray{}
	}
	res := s.db.WithContext(ctx).Model(&models.Loop{}).Where("id = ?", loop.ID).Updates(map[string]interface{}{
		"title":       loop.Title,
		"slug":        loop.Slug,
		"description": loop.Description,
		"city":        loop.City,
		"cover_image": loop.CoverImage,
		"tags":        tags,
		"published":   loop.Published,
	})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *loopStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Loop{})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern 转义 LIKE 通配符，按字面子串匹配
func containsPattern(q string) string {
	return "%" + likeEscaper.Replace(q) + "%"
}

func (s *loopStore) Search(ctx context.Context, f SearchFilter) ([]models.Loop, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Loop{}).Where("loops.published = ?", true)

	if f.Query != "" {
		pattern := containsPattern(f.Query)
		q = q.Where(`(loops.title ILIKE ? ESCAPE '\' OR loops.description ILIKE ? ESCAPE '\' OR loops.city ILIKE ? ESCAPE '\'
			OR EXISTS (SELECT 1 FROM unnest(loops.tags) AS t WHERE lower(t) = lower(?)))`,
			pattern, pattern, pattern, f.Query)
	}
	if f.City != "" {
		q = q.Where("lower(loops.city) = lower(?)", f.City)
	}
	if len(f.Tags) > 0 {
		q = q.Where("loops.tags && ?", pq.Array(f.Tags))
	}

	// 共享条件，Count 和 Find 各自从这里开始
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	var loops []models.Loop
	err := q.Select(loopColumns).
		Preload("User").
		Order(sortClause(f.Sort)).
		Offset(f.Offset).
		Limit(f.Limit).
		Find(&loops).Error
	if err != nil {
		return nil, 0, translate(err)
	}
	return loops, total, nil
}

func sortClause(order SortOrder) string {
	switch order {
	case SortOldest:
		return "loops.created_at ASC"
	case SortMostLiked:
		return "like_count DESC, loops.created_at DESC"
	case SortMostCommented:
		return "comment_count DESC, loops.created_at DESC"
	default:
		return "loops.created_at DESC"
	}
}

func (s *loopStore) ListByUser(ctx context.Context, userID string, publishedOnly bool) ([]models.Loop, error) {
	q := s.withCounts(ctx).Where("loops.user_id = ?", userID)
	if publishedOnly {
		q = q.Where("loops.published = ?", true)
	}
	var loops []models.Loop
	if err := q.Order("loops.updated_at DESC").Find(&loops).Error; err != nil {
		return nil, translate(err)
	}
	return loops, nil
}

func (s *loopStore) Featured(ctx context.Context, limit int) ([]models.Loop, error) {
	var loops []models.Loop
	err := s.withCounts(ctx).
		Where("loops.published = ? AND loops.featured = ?", true, true).
		Order("loops.created_at DESC").
		Limit(limit).
		Find(&loops).Error
	return loops, translate(err)
}

func (s *loopStore) Popular(ctx context.Context, limit int) ([]models.Loop, error) {
	var loops []models.Loop
	err := s.withCounts(ctx).
		Where("loops.published = ?", true).
		Order("like_count DESC, loops.created_at DESC").
		Limit(limit).
		Find(&loops).Error
	return loops, translate(err)
}

func (s *loopStore) SetFeatured(ctx context.Context, id string, featured bool) error {
	res := s.db.WithContext(ctx).Model(&models.Loop{}).Where("id = ?", id).Update("featured", featured)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *loopStore) Cities(ctx context.Context) ([]string, error) {
	var cities []string
	err := s.db.WithContext(ctx).Model(&models.Loop{}).
		Where("published = ?", true).
		Distinct().
		Order("city ASC").
		Pluck("city", &cities).Error
	return cities, translate(err)
}

func (s *loopStore) Tags(ctx context.Context) ([]string, error) {
	var tags []string
	err := s.db.WithContext(ctx).
		Raw("SELECT DISTINCT t FROM loops, unnest(loops.tags) AS t WHERE loops.published = ? ORDER BY t ASC", true).
		Scan(&tags).Error
	return tags, translate(err)
}

func (s *loopStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	db := s.db.WithContext(ctx)
	if err := db.Model(&models.Loop{}).Where("published = ?", true).Count(&st.Loops).Error; err != nil {
		return st, translate(err)
	}
	if err := db.Model(&models.User{}).Count(&st.Users).Error; err != nil {
		return st, translate(err)
	}
	if err := db.Model(&models.Place{}).Count(&st.Places).Error; err != nil {
		return st, translate(err)
	}
	if err := db.Model(&models.Comment{}).Count(&st.Comments).Error; err != nil {
		return st, translate(err)
	}
	return st, nil
}

// ---- places ----

type placeStore struct {
	db *gorm.DB
}

func (s *placeStore) CreateBatch(ctx context.Context, places []models.Place) error {
	if len(places) == 0 {
		return nil
	}
	return translate(s.db.WithContext(ctx).Omit(clause.Associations).Create(&places).Error)
}

func (s *placeStore) ListByLoop(ctx context.Context, loopID string) ([]models.Place, error) {
	var places []models.Place
	err := s.db.WithContext(ctx).Where("loop_id = ?", loopID).Order(`"order" ASC`).Find(&places).Error
	return places, translate(err)
}

func (s *placeStore) DeleteByLoop(ctx context.Context, loopID string) error {
	return translate(s.db.WithContext(ctx).Where("loop_id = ?", loopID).Delete(&models.Place{}).Error)
}

func (s *placeStore) SetOrder(ctx context.Context, placeID string, order int) error {
	res := s.db.WithContext(ctx).Model(&models.Place{}).Where("id = ?", placeID).Update("order", order)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ---- comments ----

type commentStore struct {
	db *gorm.DB
}

func (s *commentStore) Create(ctx context.Context, comment *models.Comment) error {
	return translate(s.db.WithContext(ctx).Omit(clause.Associations).Create(comment).Error)
}

func (s *commentStore) GetByID(ctx context.Context, id string) (*models.Comment, error) {
	var comment models.Comment
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&comment).Error; err != nil {
		return nil, translate(err)
	}
	return &comment, nil
}

func (s *commentStore) ListByLoop(ctx context.Context, loopID string, offset, limit int) ([]models.Comment, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Comment{}).Where("comments.loop_id = ?", loopID).Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	var comments []models.Comment
	err := q.Select(`comments.*,
		(SELECT COUNT(*) FROM comment_likes WHERE comment_likes.comment_id = comments.id) AS like_count`).
		Preload("User").
		Order("comments.created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&comments).Error
	if err != nil {
		return nil, 0, translate(err)
	}
	return comments, total, nil
}

func (s *commentStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Comment{})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ---- likes ----

type likeStore struct {
	db *gorm.DB
}

func (s *likeStore) Exists(ctx context.Context, userID, loopID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Like{}).
		Where("user_id = ? AND loop_id = ?", userID, loopID).
		Count(&count).Error
	return count > 0, translate(err)
}

func (s *likeStore) Create(ctx context.Context, userID, loopID string) error {
	return translate(s.db.WithContext(ctx).Create(&models.Like{UserID: userID, LoopID: loopID}).Error)
}

func (s *likeStore) Delete(ctx context.Context, userID, loopID string) error {
	return translate(s.db.WithContext(ctx).
		Where("user_id = ? AND loop_id = ?", userID, loopID).
		Delete(&models.Like{}).Error)
}

func (s *likeStore) Count(ctx context.Context, loopID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Like{}).Where("loop_id = ?", loopID).Count(&count).Error
	return count, translate(err)
}

type commentLikeStore struct {
	db *gorm.DB
}

func (s *commentLikeStore) Exists(ctx context.Context, userID, commentID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.CommentLike{}).
		Where("user_id = ? AND comment_id = ?", userID, commentID).
		Count(&count).Error
	return count > 0, translate(err)
}

func (s *commentLikeStore) Create(ctx context.Context, userID, commentID string) error {
	return translate(s.db.WithContext(ctx).Create(&models.CommentLike{UserID: userID, CommentID: commentID}).Error)
}

func (s *commentLikeStore) Delete(ctx context.Context, userID, commentID string) error {
	return translate(s.db.WithContext(ctx).
		Where("user_id = ? AND comment_id = ?", userID, commentID).
		Delete(&models.CommentLike{}).Error)
}

func (s *commentLikeStore) Count(ctx context.Context, commentID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.CommentLike{}).Where("comment_id = ?", commentID).Count(&count).Error
	return count, translate(err)
}

func (s *commentLikeStore) LikedBy(ctx context.Context, userID string, commentIDs []string) (map[string]bool, error) {
	liked := make(map[string]bool, len(commentIDs))
	if userID == "" || len(commentIDs) == 0 {
		return liked, nil
	}
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.CommentLike{}).
		Where("user_id = ? AND comment_id IN ?", userID, commentIDs).
		Pluck("comment_id", &ids).Error
	if err != nil {
		return nil, translate(err)
	}
	for _, id := range ids {
		liked[id] = true
	}
	return liked, nil
}
