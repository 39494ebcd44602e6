package auth

import (
	"localeloop/internal/apperr"
	"localeloop/internal/models"

	"golang.org/x/crypto/bcrypt"
)

// Identity is the authenticated caller. The zero value is an anonymous caller.
type Identity struct {
	UserID string
	Role   string
}

func Anonymous() Identity { return Identity{} }

func FromUser(u *models.User) Identity {
	if u == nil {
		return Identity{}
	}
	return Identity{UserID: u.ID, Role: u.Role}
}

func (i Identity) Authenticated() bool { return i.UserID != "" }

func (i Identity) IsAdmin() bool { return i.Role == models.RoleAdmin }

func RequireSession(id Identity) (Identity, error) {
	if !id.Authenticated() {
		return id, apperr.AuthRequired()
	}
	return id, nil
}

// RequireOwner fails with Unauthorized unless caller owns the resource.
func RequireOwner(ownerID string, caller Identity) error {
	if !caller.Authenticated() || ownerID != caller.UserID {
		return apperr.Forbidden()
	}
	return nil
}

func RequireAdmin(caller Identity) error {
	if _, err := RequireSession(caller); err != nil {
		return err
	}
	if !caller.IsAdmin() {
		return apperr.Forbidden()
	}
	return nil
}

const bcryptCost = 12

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
