// Package memstore is an in-memory store.Storage used by service and handler
// tests. It enforces the same unique constraints and cascades as the
// PostgreSQL schema.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"localeloop/internal/models"
	"localeloop/internal/store"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type pair struct {
	userID  string
	otherID string
}

type state struct {
	users        map[string]models.User
	loops        map[string]models.Loop
	places       map[string]models.Place
	comments     map[string]models.Comment
	likes        map[pair]struct{}
	commentLikes map[pair]struct{}
	last         time.Time
}

func newState() *state {
	return &state{
		users:        map[string]models.User{},
		loops:        map[string]models.Loop{},
		places:       map[string]models.Place{},
		comments:     map[string]models.Comment{},
		likes:        map[pair]struct{}{},
		commentLikes: map[pair]struct{}{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.loops {
		v.Tags = append(pq.StringArray{}, v.Tags...)
		c.loops[k] = v
	}
	for k, v := range s.places {
		c.places[k] = v
	}
	for k, v := range s.comments {
		c.comments[k] = v
	}
	for k := range s.likes {
		c.likes[k] = struct{}{}
	}
	for k := range s.commentLikes {
		c.commentLikes[k] = struct{}{}
	}
	c.last = s.last
	return c
}

// now 保证时间戳严格递增，排序结果稳定
func (s *state) now() time.Time {
	t := time.Now()
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

// DB holds the shared state behind a mutex.
type DB struct {
	mu     sync.Mutex
	st     *state
	faults map[string]error
}

func New() *DB {
	return &DB{st: newState(), faults: map[string]error{}}
}

// FailNext makes the next call of op (e.g. "places.create") return err.
func (d *DB) FailNext(op string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.faults[op] = err
}

// Storage returns a gateway bound to the shared state.
func (d *DB) Storage() store.Storage {
	return newStorage(&binding{db: d})
}

// binding 决定一次调用操作的是共享状态还是事务中的副本
type binding struct {
	db *DB
	tx *state
}

func (b *binding) do(op string, fn func(st *state) error) error {
	if b.tx != nil {
		if err := b.db.takeFault(op); err != nil {
			return err
		}
		return fn(b.tx)
	}
	b.db.mu.Lock()
	defer b.db.mu.Unlock()
	if err := b.db.takeFault(op); err != nil {
		return err
	}
	return fn(b.db.st)
}

// takeFault must be called with mu held or from inside a transaction.
func (d *DB) takeFault(op string) error {
	err, ok := d.faults[op]
	if !ok {
		return nil
	}
	delete(d.faults, op)
	return err
}

func (b *binding) WithTx(ctx context.Context, fn func(store.Storage) error) error {
	if b.tx != nil {
		return fn(newStorage(b))
	}
	b.db.mu.Lock()
	defer b.db.mu.Unlock()

	work := b.db.st.clone()
	if err := fn(newStorage(&binding{db: b.db, tx: work})); err != nil {
		return err
	}
	b.db.st = work
	return nil
}

func newStorage(b *binding) store.Storage {
	return store.Storage{
		Users:        &userStore{b},
		Loops:        &loopStore{b},
		Places:       &placeStore{b},
		Comments:     &commentStore{b},
		Likes:        &likeStore{b},
		CommentLikes: &commentLikeStore{b},
		Transactor:   b,
	}
}

// ---- users ----

type userStore struct{ b *binding }

func (s *userStore) Create(ctx context.Context, user *models.User) error {
	return s.b.do("users.create", func(st *state) error {
		for _, u := range st.users {
			if strings.EqualFold(u.Email, user.Email) {
				return store.ErrConflict
			}
		}
		if user.ID == "" {
			user.ID = uuid.NewString()
		}
		if user.Role == "" {
			user.Role = models.RoleUser
		}
		user.CreatedAt = st.now()
		user.UpdatedAt = user.CreatedAt
		st.users[user.ID] = *user
		return nil
	})
}

func (s *userStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	var out *models.User
	err := s.b.do("users.get", func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return store.ErrNotFound
		}
		out = &u
		return nil
	})
	return out, err
}

func (s *userStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.find(func(u models.User) bool { return strings.EqualFold(u.Email, email) })
}

func (s *userStore) GetByName(ctx context.Context, name string) (*models.User, error) {
	return s.find(func(u models.User) bool { return strings.EqualFold(u.Name, name) })
}

func (s *userStore) find(match func(models.User) bool) (*models.User, error) {
	var out *models.User
	err := s.b.do("users.get", func(st *state) error {
		for _, u := range st.users {
			if match(u) {
				u := u
				out = &u
				return nil
			}
		}
		return store.ErrNotFound
	})
	return out, err
}

func (s *userStore) Update(ctx context.Context, user *models.User) error {
	return s.b.do("users.update", func(st *state) error {
		u, ok := st.users[user.ID]
		if !ok {
			return store.ErrNotFound
		}
		u.Name = user.Name
		u.Image = user.Image
		u.GoogleID = user.GoogleID
		u.Password = user.Password
		u.UpdatedAt = st.now()
		st.users[u.ID] = u
		return nil
	})
}

// ---- loops ----

type loopStore struct{ b *binding }

// project 填充作者和统计字段，返回副本
func project(st *state, l models.Loop) models.Loop {
	l.Tags = append(pq.StringArray{}, l.Tags...)
	if u, ok := st.users[l.UserID]; ok {
		l.User = &u
	}
	l.Places = nil
	l.LikeCount, l.CommentCount, l.PlaceCount = 0, 0, 0
	for p := range st.likes {
		if p.otherID == l.ID {
			l.LikeCount++
		}
	}
	for _, c := range st.comments {
		if c.LoopID == l.ID {
			l.CommentCount++
		}
	}
	for _, p := range st.places {
		if p.LoopID == l.ID {
			l.PlaceCount++
		}
	}
	return l
}

func (s *loopStore) Create(ctx context.Context, loop *models.Loop) error {
	return s.b.do("loops.create", func(st *state) error {
		if _, ok := st.users[loop.UserID]; !ok {
			return store.ErrNotFound
		}
		for _, l := range st.loops {
			if l.Slug == loop.Slug {
				return store.ErrConflict
			}
		}
		if loop.ID == "" {
			loop.ID = uuid.NewString()
		}
		if loop.Tags == nil {
			loop.Tags = pq.StringArray{}
		}
		loop.CreatedAt = st.now()
		loop.UpdatedAt = loop.CreatedAt
		row := *loop
		row.User, row.Places = nil, nil
		row.Tags = append(pq.StringArray{}, loop.Tags...)
		st.loops[row.ID] = row
		return nil
	})
}

func (s *loopStore) GetByID(ctx context.Context, id string) (*models.Loop, error) {
	var out *models.Loop
	err := s.b.do("loops.get", func(st *state) error {
		l, ok := st.loops[id]
		if !ok {
			return store.ErrNotFound
		}
		p := project(st, l)
		out = &p
		return nil
	})
	return out, err
}

func (s *loopStore) GetBySlug(ctx context.Context, slug string) (*models.Loop, error) {
	var out *models.Loop
	err := s.b.do("loops.get", func(st *state) error {
		for _, l := range st.loops {
			if l.Slug == slug {
				p := project(st, l)
				out = &p
				return nil
			}
		}
		return store.ErrNotFound
	})
	return out, err
}

func (s *loopStore) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := s.b.do("loops.slug", func(st *state) error {
		for _, l := range st.loops {
			if l.Slug == slug {
				exists = true
				break
			}
		}
		return nil
	})
	return exists, err
}

func (s *loopStore) Update(ctx context.Context, loop *models.Loop) error {
	return s.b.do("loops.update", func(st *state) error {
		l, ok := st.loops[loop.ID]
		if !ok {
			return store.ErrNotFound
		}
		for id, other := range st.loops {
			if id != loop.ID && other.Slug == loop.Slug {
				return store.ErrConflict
			}
		}
		l.Title = loop.Title
		l.Slug = loop.Slug
		l.Description = loop.Description
		l.City = loop.City
		l.CoverImage = loop.CoverImage
		l.Tags = append(pq.StringArray{}, loop.Tags...)
		l.Published = loop.Published
		l.UpdatedAt = st.now()
		st.loops[l.ID] = l
		return nil
	})
}

func (s *loopStore) Delete(ctx context.Context, id string) error {
	return s.b.do("loops.delete", func(st *state) error {
		if _, ok := st.loops[id]; !ok {
			return store.ErrNotFound
		}
		delete(st.loops, id)
		for pid, p := range st.places {
			if p.LoopID == id {
				delete(st.places, pid)
			}
		}
		for cid, c := range st.comments {
			if c.LoopID == id {
				deleteComment(st, cid)
			}
		}
		for k := range st.likes {
			if k.otherID == id {
				delete(st.likes, k)
			}
		}
		return nil
	})
}

func deleteComment(st *state, id string) {
	delete(st.comments, id)
	for k := range st.commentLikes {
		if k.otherID == id {
			delete(st.commentLikes, k)
		}
	}
}

func (s *loopStore) Search(ctx context.Context, f store.SearchFilter) ([]models.Loop, int64, error) {
	var (
		out   []models.Loop
		total int64
	)
	err := s.b.do("loops.search", func(st *state) error {
		var matched []models.Loop
		for _, l := range st.loops {
			if l.Published && matches(l, f) {
				matched = append(matched, project(st, l))
			}
		}
		sortLoops(matched, f.Sort)
		total = int64(len(matched))
		out = window(matched, f.Offset, f.Limit)
		return nil
	})
	return out, total, err
}

func matches(l models.Loop, f store.SearchFilter) bool {
	if f.Query != "" {
		q := strings.ToLower(f.Query)
		hit := strings.Contains(strings.ToLower(l.Title), q) ||
			strings.Contains(strings.ToLower(l.Description), q) ||
			strings.Contains(strings.ToLower(l.City), q)
		for _, t := range l.Tags {
			if strings.EqualFold(t, f.Query) {
				hit = true
			}
		}
		if !hit {
			return false
		}
	}
	if f.City != "" && !strings.EqualFold(l.City, f.City) {
		return false
	}
	if len(f.Tags) > 0 {
		overlap := false
		for _, want := range f.Tags {
			for _, t := range l.Tags {
				if t == want {
					overlap = true
				}
			}
		}
		if !overlap {
			return false
		}
	}
	return true
}

func sortLoops(loops []models.Loop, order store.SortOrder) {
	newest := func(i, j int) bool { return loops[i].CreatedAt.After(loops[j].CreatedAt) }
	sort.SliceStable(loops, func(i, j int) bool {
		switch order {
		case store.SortOldest:
			return loops[i].CreatedAt.Before(loops[j].CreatedAt)
		case store.SortMostLiked:
			if loops[i].LikeCount != loops[j].LikeCount {
				return loops[i].LikeCount > loops[j].LikeCount
			}
		case store.SortMostCommented:
			if loops[i].CommentCount != loops[j].CommentCount {
				return loops[i].CommentCount > loops[j].CommentCount
			}
		}
		return newest(i, j)
	})
}

func window[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

func (s *loopStore) ListByUser(ctx context.Context, userID string, publishedOnly bool) ([]models.Loop, error) {
	var out []models.Loop
	err := s.b.do("loops.list", func(st *state) error {
		for _, l := range st.loops {
			if l.UserID != userID || (publishedOnly && !l.Published) {
				continue
			}
			out = append(out, project(st, l))
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
		return nil
	})
	return out, err
}

func (s *loopStore) Featured(ctx context.Context, limit int) ([]models.Loop, error) {
	var out []models.Loop
	err := s.b.do("loops.list", func(st *state) error {
		for _, l := range st.loops {
			if l.Published && l.Featured {
				out = append(out, project(st, l))
			}
		}
		sortLoops(out, store.SortNewest)
		out = window(out, 0, limit)
		return nil
	})
	return out, err
}

func (s *loopStore) Popular(ctx context.Context, limit int) ([]models.Loop, error) {
	var out []models.Loop
	err := s.b.do("loops.list", func(st *state) error {
		for _, l := range st.loops {
			if l.Published {
				out = append(out, project(st, l))
			}
		}
		sortLoops(out, store.SortMostLiked)
		out = window(out, 0, limit)
		return nil
	})
	return out, err
}

func (s *loopStore) SetFeatured(ctx context.Context, id string, featured bool) error {
	return s.b.do("loops.update", func(st *state) error {
		l, ok := st.loops[id]
		if !ok {
			return store.ErrNotFound
		}
		l.Featured = featured
		st.loops[id] = l
		return nil
	})
}

func (s *loopStore) Cities(ctx context.Context) ([]string, error) {
	return s.distinct(func(l models.Loop) []string { return []string{l.City} })
}

func (s *loopStore) Tags(ctx context.Context) ([]string, error) {
	return s.distinct(func(l models.Loop) []string { return l.Tags })
}

func (s *loopStore) distinct(values func(models.Loop) []string) ([]string, error) {
	var out []string
	err := s.b.do("loops.distinct", func(st *state) error {
		seen := map[string]bool{}
		for _, l := range st.loops {
			if !l.Published {
				continue
			}
			for _, v := range values(l) {
				if !seen[v] {
					seen[v] = true
					out = append(out, v)
				}
			}
		}
		sort.Strings(out)
		return nil
	})
	return out, err
}

func (s *loopStore) Stats(ctx context.Context) (store.Stats, error) {
	var st store.Stats
	err := s.b.do("loops.stats", func(db *state) error {
		for _, l := range db.loops {
			if l.Published {
				st.Loops++
			}
		}
		st.Users = int64(len(db.users))
		st.Places = int64(len(db.places))
		st.Comments = int64(len(db.comments))
		return nil
	})
	return st, err
}

// ---- places ----

type placeStore struct{ b *binding }

func (s *placeStore) CreateBatch(ctx context.Context, places []models.Place) error {
	return s.b.do("places.create", func(st *state) error {
		for i := range places {
			if _, ok := st.loops[places[i].LoopID]; !ok {
				return store.ErrNotFound
			}
		}
		for i := range places {
			if places[i].ID == "" {
				places[i].ID = uuid.NewString()
			}
			st.places[places[i].ID] = places[i]
		}
		return nil
	})
}

func (s *placeStore) ListByLoop(ctx context.Context, loopID string) ([]models.Place, error) {
	var out []models.Place
	err := s.b.do("places.list", func(st *state) error {
		for _, p := range st.places {
			if p.LoopID == loopID {
				out = append(out, p)
			}
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
		return nil
	})
	return out, err
}

func (s *placeStore) DeleteByLoop(ctx context.Context, loopID string) error {
	return s.b.do("places.delete", func(st *state) error {
		for id, p := range st.places {
			if p.LoopID == loopID {
				delete(st.places, id)
			}
		}
		return nil
	})
}

func (s *placeStore) SetOrder(ctx context.Context, placeID string, order int) error {
	return s.b.do("places.update", func(st *state) error {
		p, ok := st.places[placeID]
		if !ok {
			return store.ErrNotFound
		}
		p.Order = order
		st.places[placeID] = p
		return nil
	})
}

// ---- comments ----

type commentStore struct{ b *binding }

func (s *commentStore) Create(ctx context.Context, comment *models.Comment) error {
	return s.b.do("comments.create", func(st *state) error {
		if _, ok := st.loops[comment.LoopID]; !ok {
			return store.ErrNotFound
		}
		if _, ok := st.users[comment.UserID]; !ok {
			return store.ErrNotFound
		}
		if comment.ID == "" {
			comment.ID = uuid.NewString()
		}
		comment.CreatedAt = st.now()
		comment.UpdatedAt = comment.CreatedAt
		row := *comment
		row.User, row.Loop = nil, nil
		st.comments[row.ID] = row
		return nil
	})
}

func (s *commentStore) GetByID(ctx context.Context, id string) (*models.Comment, error) {
	var out *models.Comment
	err := s.b.do("comments.get", func(st *state) error {
		c, ok := st.comments[id]
		if !ok {
			return store.ErrNotFound
		}
		out = &c
		return nil
	})
	return out, err
}

func (s *commentStore) ListByLoop(ctx context.Context, loopID string, offset, limit int) ([]models.Comment, int64, error) {
	var (
		out   []models.Comment
		total int64
	)
	err := s.b.do("comments.list", func(st *state) error {
		var all []models.Comment
		for _, c := range st.comments {
			if c.LoopID != loopID {
				continue
			}
			if u, ok := st.users[c.UserID]; ok {
				c.User = &u
			}
			for k := range st.commentLikes {
				if k.otherID == c.ID {
					c.LikeCount++
				}
			}
			all = append(all, c)
		}
		sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
		total = int64(len(all))
		out = window(all, offset, limit)
		return nil
	})
	return out, total, err
}

func (s *commentStore) Delete(ctx context.Context, id string) error {
	return s.b.do("comments.delete", func(st *state) error {
		if _, ok := st.comments[id]; !ok {
			return store.ErrNotFound
		}
		deleteComment(st, id)
		return nil
	})
}

// ---- likes ----

type likeStore struct{ b *binding }

func (s *likeStore) Exists(ctx context.Context, userID, loopID string) (bool, error) {
	var ok bool
	err := s.b.do("likes.exists", func(st *state) error {
		_, ok = st.likes[pair{userID, loopID}]
		return nil
	})
	return ok, err
}

func (s *likeStore) Create(ctx context.Context, userID, loopID string) error {
	return s.b.do("likes.create", func(st *state) error {
		if _, ok := st.loops[loopID]; !ok {
			return store.ErrNotFound
		}
		k := pair{userID, loopID}
		if _, ok := st.likes[k]; ok {
			return store.ErrConflict
		}
		st.likes[k] = struct{}{}
		return nil
	})
}

func (s *likeStore) Delete(ctx context.Context, userID, loopID string) error {
	return s.b.do("likes.delete", func(st *state) error {
		delete(st.likes, pair{userID, loopID})
		return nil
	})
}

func (s *likeStore) Count(ctx context.Context, loopID string) (int64, error) {
	var n int64
	err := s.b.do("likes.count", func(st *state) error {
		for k := range st.likes {
			if k.otherID == loopID {
				n++
			}
		}
		return nil
	})
	return n, err
}

type commentLikeStore struct{ b *binding }

func (s *commentLikeStore) Exists(ctx context.Context, userID, commentID string) (bool, error) {
	var ok bool
	err := s.b.do("comment_likes.exists", func(st *state) error {
		_, ok = st.commentLikes[pair{userID, commentID}]
		return nil
	})
	return ok, err
}

func (s *commentLikeStore) Create(ctx context.Context, userID, commentID string) error {
	return s.b.do("comment_likes.create", func(st *state) error {
		if _, ok := st.comments[commentID]; !ok {
			return store.ErrNotFound
		}
		k := pair{userID, commentID}
		if _, ok := st.commentLikes[k]; ok {
			return store.ErrConflict
		}
		st.commentLikes[k] = struct{}{}
		return nil
	})
}

func (s *commentLikeStore) Delete(ctx context.Context, userID, commentID string) error {
	return s.b.do("comment_likes.delete", func(st *state) error {
		delete(st.commentLikes, pair{userID, commentID})
		return nil
	})
}

func (s *commentLikeStore) Count(ctx context.Context, commentID string) (int64, error) {
	var n int64
	err := s.b.do("comment_likes.count", func(st *state) error {
		for k := range st.commentLikes {
			if k.otherID == commentID {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (s *commentLikeStore) LikedBy(ctx context.Context, userID string, commentIDs []string) (map[string]bool, error) {
	liked := make(map[string]bool, len(commentIDs))
	err := s.b.do("comment_likes.exists", func(st *state) error {
		for _, id := range commentIDs {
			if _, ok := st.commentLikes[pair{userID, id}]; ok {
				liked[id] = true
			}
		}
		return nil
	})
	return liked, err
}
