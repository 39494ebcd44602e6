package services

import (
	"context"
	"errors"
	"strings"

	"localeloop/internal/apperr"
	"localeloop/internal/auth"
	"localeloop/internal/models"
	"localeloop/internal/store"
	"localeloop/internal/validation"

	"go.uber.org/zap"
)

type UserService struct {
	store store.Storage
	log   *zap.SugaredLogger
}

func NewUserService(s store.Storage, log *zap.SugaredLogger) *UserService {
	return &UserService{store: s, log: log}
}

// GoogleProfile Google 返回的用户信息里我们关心的部分
type GoogleProfile struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	Picture       string `json:"picture"`
}

type ProfileTotals struct {
	Loops    int   `json:"loops"`
	Likes    int64 `json:"likes"`
	Comments int64 `json:"comments"`
}

type Profile struct {
	User   *models.User  `json:"user"`
	Loops  []models.Loop `json:"loops"`
	Totals ProfileTotals `json:"totals"`
}

var errInvalidCredentials = apperr.New(apperr.AuthenticationRequired, "Invalid email or password")

func (s *UserService) Register(ctx context.Context, in validation.RegisterInput) (*models.User, error) {
	if err := validation.Register(&in); err != nil {
		return nil, err
	}

	_, err := s.store.Users.GetByEmail(ctx, in.Email)
	if err == nil {
		return nil, apperr.ConflictWith("User with this email already exists")
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, storeErr(err, "User not found")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "Something went wrong", err)
	}

	user := models.User{
		Name:     in.Name,
		Email:    strings.ToLower(in.Email),
		Password: hash,
	}
	if err := s.store.Users.Create(ctx, &user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, apperr.ConflictWith("User with this email already exists")
		}
		return nil, storeErr(err, "User not found")
	}
	s.log.Infow("user registered", "user_id", user.ID)
	return &user, nil
}

// Authenticate 邮箱或密码错误都返回同一个提示
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.store.Users.GetByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, store.ErrNotFound) {
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, storeErr(err, "User not found")
	}
	if !auth.CheckPasswordHash(password, user.Password) {
		return nil, errInvalidCredentials
	}
	return user, nil
}

// UpsertOAuthUser 通过 Google 邮箱查找用户，不存在则自动注册（无密码）
func (s *UserService) UpsertOAuthUser(ctx context.Context, p GoogleProfile) (*models.User, error) {
	if !p.VerifiedEmail {
		return nil, apperr.New(apperr.AuthenticationRequired, "Google email is not verified")
	}

	user, err := s.store.Users.GetByEmail(ctx, p.Email)
	switch {
	case err == nil:
		// 老用户，补上 GoogleID 和头像
		if user.GoogleID == p.ID && (user.Image != "" || p.Picture == "") {
			return user, nil
		}
		user.GoogleID = p.ID
		if user.Image == "" {
			user.Image = p.Picture
		}
		if err := s.store.Users.Update(ctx, user); err != nil {
			return nil, storeErr(err, "User not found")
		}
		return user, nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, storeErr(err, "User not found")
	}

	name := p.Name
	if name == "" {
		name = p.GivenName
	}
	if name == "" {
		name = strings.Split(p.Email, "@")[0]
	}
	user = &models.User{
		Name:     name,
		Email:    strings.ToLower(p.Email),
		Image:    p.Picture,
		GoogleID: p.ID,
	}
	if err := s.store.Users.Create(ctx, user); err != nil {
		return nil, storeErr(err, "User not found")
	}
	s.log.Infow("user registered via google", "user_id", user.ID)
	return user, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.store.Users.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "User not found")
	}
	return user, nil
}

// Profile 公开主页只展示已发布的 Loop
func (s *UserService) Profile(ctx context.Context, name string) (*Profile, error) {
	user, err := s.store.Users.GetByName(ctx, name)
	if err != nil {
		return nil, storeErr(err, "User not found")
	}
	loops, err := s.store.Loops.ListByUser(ctx, user.ID, true)
	if err != nil {
		return nil, storeErr(err, "User not found")
	}

	p := &Profile{User: user, Loops: nonNilLoops(loops)}
	for _, l := range loops {
		p.Totals.Loops++
		p.Totals.Likes += l.LikeCount
		p.Totals.Comments += l.CommentCount
	}
	return p, nil
}
