package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ogurasousui/codex-library-loans/internal/core/book"
)

// BookHandler は蔵書 API の HTTP 実装です。
type BookHandler struct {
	svc    book.UseCase
	logger *slog.Logger
}

type registerBookRequest struct {
	ISBN string `json:"isbn"`
	Name string `json:"name"`
}

type bookResponse struct {
	ISBN      string    `json:"isbn"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type listBooksResponse struct {
	Books         []bookResponse `json:"books"`
	NextPageToken string         `json:"nextPageToken,omitempty"`
}

// Register は蔵書を登録します。
func (h *BookHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerBookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	created, err := h.svc.RegisterBook(r.Context(), book.RegisterBookInput{ISBN: req.ISBN, Name: req.Name})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toBookResponse(created))
}

// Get は ISBN で蔵書を返します。
func (h *BookHandler) Get(w http.ResponseWriter, r *http.Request) {
	found, err := h.svc.GetBook(r.Context(), book.GetBookInput{ISBN: chi.URLParam(r, "isbn")})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toBookResponse(found))
}

// List は蔵書を書名順に返します。
func (h *BookHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	pageSize, err := parsePageSize(query.Get("pageSize"))
	if err != nil {
		writeError(w, r, h.logger, book.ErrInvalidPageSize)
		return
	}

	result, err := h.svc.ListBooks(r.Context(), book.ListBooksInput{PageSize: pageSize, PageToken: query.Get("pageToken")})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	resp := listBooksResponse{Books: make([]bookResponse, 0, len(result.Books)), NextPageToken: result.NextPageToken}
	for _, b := range result.Books {
		resp.Books = append(resp.Books, toBookResponse(b))
	}
	writeJSON(w, http.StatusOK, resp)
}

func toBookResponse(b *book.Book) bookResponse {
	return bookResponse{
		ISBN:      b.ISBN,
		Name:      b.Name,
		CreatedAt: b.CreatedAt,
	}
}
