package services

import (
	"errors"

	"localeloop/internal/apperr"
	"localeloop/internal/store"
)

// storeErr 把存储层错误转换成 apperr，已经是 apperr 的原样返回
func storeErr(err error, notFound string) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFoundError(notFound)
	case errors.Is(err, store.ErrConflict):
		return apperr.Wrap(apperr.Conflict, "This change conflicts with a concurrent update, please try again", err)
	default:
		return apperr.Unavailable(err)
	}
}
