package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/ogurasousui/codex-library-loans/internal/core/book"
	"github.com/ogurasousui/codex-library-loans/internal/core/loan"
	"github.com/ogurasousui/codex-library-loans/internal/core/user"
)

const (
	msgInternalError = "internal server error"

	logMsgUnhandledError = "unhandled error in http handler"
	logAttrError         = "error"
)

func toHTTPStatus(err error) (int, string) {
	switch {
	case errors.Is(err, errInvalidBody),
		errors.Is(err, loan.ErrInvalidID),
		errors.Is(err, loan.ErrInvalidBookID),
		errors.Is(err, loan.ErrInvalidUserID),
		errors.Is(err, loan.ErrLoanLimitExceeded),
		errors.Is(err, loan.ErrUserValidation),
		errors.Is(err, user.ErrInvalidID),
		errors.Is(err, user.ErrInvalidCategory),
		errors.Is(err, user.ErrInvalidPageSize),
		errors.Is(err, user.ErrInvalidPageToken),
		errors.Is(err, book.ErrInvalidISBN),
		errors.Is(err, book.ErrInvalidName),
		errors.Is(err, book.ErrInvalidPageSize),
		errors.Is(err, book.ErrInvalidPageToken):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, user.ErrUserNotFound),
		errors.Is(err, loan.ErrLoanNotFound),
		errors.Is(err, loan.ErrBookNotFound),
		errors.Is(err, book.ErrBookNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, user.ErrUserAlreadyExists), errors.Is(err, book.ErrBookAlreadyExists):
		return http.StatusConflict, err.Error()
	case errors.Is(err, loan.ErrStorage):
		return http.StatusInternalServerError, loan.ErrStorage.Error()
	default:
		return http.StatusInternalServerError, msgInternalError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, msg := toHTTPStatus(err)
	if status == http.StatusInternalServerError && !errors.Is(err, loan.ErrStorage) {
		logger.ErrorContext(r.Context(), logMsgUnhandledError, logAttrPath, r.URL.Path, logAttrError, err.Error())
	}
	writeJSON(w, status, errorResponse{Error: msg})
}
