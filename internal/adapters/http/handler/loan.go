package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ogurasousui/codex-library-loans/internal/core/loan"
)

// LoanHandler は貸出 API の HTTP 実装です。
type LoanHandler struct {
	svc    loan.UseCase
	logger *slog.Logger
}

type createLoanRequest struct {
	BookID string `json:"bookId"`
	UserID string `json:"userId"`
}

type loanResponse struct {
	ID           string    `json:"id"`
	BookID       string    `json:"bookId"`
	UserID       string    `json:"userId"`
	LoanDate     time.Time `json:"loanDate"`
	DueDate      string    `json:"dueDate"`
	BookName     string    `json:"bookName"`
	UserCategory string    `json:"userCategory,omitempty"`
}

// Create は貸出を作成します。
func (h *LoanHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createLoanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	created, err := h.svc.CreateLoan(r.Context(), loan.CreateLoanInput{BookID: req.BookID, UserID: req.UserID})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toLoanResponse(created))
}

// List は全貸出を新しい順に返します。
func (h *LoanHandler) List(w http.ResponseWriter, r *http.Request) {
	loans, err := h.svc.ListLoans(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	resp := make([]loanResponse, 0, len(loans))
	for _, l := range loans {
		resp = append(resp, toLoanResponse(l))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get は ID で貸出を返します。
func (h *LoanHandler) Get(w http.ResponseWriter, r *http.Request) {
	found, err := h.svc.GetLoan(r.Context(), loan.GetLoanInput{ID: chi.URLParam(r, "id")})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toLoanResponse(found))
}

func toLoanResponse(l *loan.Loan) loanResponse {
	resp := loanResponse{
		ID:       l.ID,
		BookID:   l.BookID,
		UserID:   l.UserID,
		LoanDate: l.LoanDate,
		DueDate:  l.DueDate.Format(time.DateOnly),
		BookName: l.BookName,
	}
	if l.UserCategory.IsValid() {
		resp.UserCategory = l.UserCategory.String()
	}
	return resp
}
