package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ogurasousui/codex-library-loans/internal/core/book"
	"github.com/ogurasousui/codex-library-loans/internal/core/loan"
	"github.com/ogurasousui/codex-library-loans/internal/core/user"
)

const (
	logMsgRequestCompleted = "http request completed"
	logAttrMethod          = "method"
	logAttrPath            = "path"
	logAttrStatus          = "status"
	logAttrDurationMS      = "duration_ms"
	logAttrRequestID       = "request_id"
)

// Pinger はデータベースの疎通確認を行います。
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services は HTTP ハンドラーが利用するユースケースの集合です。
type Services struct {
	Loans loan.UseCase
	Users user.UseCase
	Books book.UseCase
}

// NewRouter は REST API のルーティングを構築します。
func NewRouter(services Services, pinger Pinger, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", newHealthHandler(pinger).ServeHTTP)

	loans := &LoanHandler{svc: services.Loans, logger: logger}
	r.Route("/loans", func(r chi.Router) {
		r.Post("/", loans.Create)
		r.Get("/", loans.List)
		r.Get("/{id}", loans.Get)
	})

	users := &UserHandler{svc: services.Users, logger: logger}
	r.Route("/users", func(r chi.Router) {
		r.Post("/", users.Create)
		r.Get("/", users.List)
		r.Get("/{id}", users.Get)
	})

	books := &BookHandler{svc: services.Books, logger: logger}
	r.Route("/books", func(r chi.Router) {
		r.Post("/", books.Register)
		r.Get("/", books.List)
		r.Get("/{isbn}", books.Get)
	})

	return r
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.InfoContext(r.Context(), logMsgRequestCompleted,
				logAttrMethod, r.Method,
				logAttrPath, r.URL.Path,
				logAttrStatus, ww.Status(),
				logAttrDurationMS, time.Since(start).Milliseconds(),
				logAttrRequestID, middleware.GetReqID(r.Context()),
			)
		})
	}
}
