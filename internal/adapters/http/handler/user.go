package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ogurasousui/codex-library-loans/internal/core/user"
)

// UserHandler は利用者 API の HTTP 実装です。
type UserHandler struct {
	svc    user.UseCase
	logger *slog.Logger
}

type createUserRequest struct {
	ID       string `json:"id"`
	Category string `json:"category"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"createdAt"`
}

type listUsersResponse struct {
	Users         []userResponse `json:"users"`
	NextPageToken string         `json:"nextPageToken,omitempty"`
}

// Create は利用者を登録します。
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	category, err := user.ParseCategory(req.Category)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	created, err := h.svc.CreateUser(r.Context(), user.CreateUserInput{ID: req.ID, Category: category})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(created))
}

// Get は ID で利用者を返します。
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	found, err := h.svc.GetUser(r.Context(), user.GetUserInput{ID: chi.URLParam(r, "id")})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(found))
}

// List は利用者を ID 順に返します。
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	pageSize, err := parsePageSize(query.Get("pageSize"))
	if err != nil {
		writeError(w, r, h.logger, user.ErrInvalidPageSize)
		return
	}

	in := user.ListUsersInput{PageSize: pageSize, PageToken: query.Get("pageToken")}
	if raw := strings.TrimSpace(query.Get("category")); raw != "" {
		category, err := user.ParseCategory(raw)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		in.Category = &category
	}

	result, err := h.svc.ListUsers(r.Context(), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	resp := listUsersResponse{Users: make([]userResponse, 0, len(result.Users)), NextPageToken: result.NextPageToken}
	for _, u := range result.Users {
		resp.Users = append(resp.Users, toUserResponse(u))
	}
	writeJSON(w, http.StatusOK, resp)
}

func toUserResponse(u *user.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Category:  u.Category.String(),
		CreatedAt: u.CreatedAt,
	}
}

func parsePageSize(raw string) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
