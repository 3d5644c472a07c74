// Package http exposes the ledger over a JSON HTTP API.
package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sort"
	"time"

	apperrors "github.com/louisbranch/coffers/internal/platform/errors"

	"github.com/louisbranch/coffers/internal/ledger/app"
	"github.com/louisbranch/coffers/internal/ledger/projection"
	"github.com/louisbranch/coffers/internal/ledger/storage"
)

// Handler serves the ledger API.
type Handler struct {
	service *app.Service
	mux     *http.ServeMux
}

// NewHandler builds the route table over an app service.
func NewHandler(service *app.Service) *Handler {
	h := &Handler{
		service: service,
		mux:     http.NewServeMux(),
	}
	h.mux.HandleFunc("GET /healthz", h.health)
	h.mux.HandleFunc("POST /v1/accounts", h.openAccount)
	h.mux.HandleFunc("GET /v1/accounts", h.listAccounts)
	h.mux.HandleFunc("GET /v1/accounts/{id}", h.getAccount)
	h.mux.HandleFunc("GET /v1/accounts/{id}/events", h.listEvents)
	h.mux.HandleFunc("POST /v1/accounts/{id}/deposits", h.deposit)
	h.mux.HandleFunc("POST /v1/accounts/{id}/withdrawals", h.withdraw)
	h.mux.HandleFunc("POST /v1/accounts/{id}/close", h.closeAccount)
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

type accountResponse struct {
	AccountID    string    `json:"account_id"`
	Version      uint64    `json:"version"`
	HolderName   string    `json:"holder_name"`
	Balance      int64     `json:"balance"`
	Currency     string    `json:"currency"`
	Closed       bool      `json:"closed"`
	LastActivity time.Time `json:"last_activity"`
}

type eventResponse struct {
	ID        string          `json:"id"`
	AccountID string          `json:"account_id"`
	Seq       uint64          `json:"seq"`
	Timestamp time.Time       `json:"timestamp"`
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

type commandResponse struct {
	AccountID string          `json:"account_id"`
	Version   uint64          `json:"version"`
	Balance   int64           `json:"balance"`
	Currency  string          `json:"currency"`
	Closed    bool            `json:"closed"`
	Events    []eventResponse `json:"events"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type openAccountRequest struct {
	HolderName string `json:"holder_name"`
	Currency   string `json:"currency"`
}

func (h *Handler) openAccount(w http.ResponseWriter, r *http.Request) {
	var req openAccountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := h.service.OpenAccount(r.Context(), req.HolderName, req.Currency)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCommandResponse(result))
}

type movementRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func (h *Handler) deposit(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := h.service.Deposit(r.Context(), r.PathValue("id"), req.Amount, req.Currency)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCommandResponse(result))
}

func (h *Handler) withdraw(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := h.service.Withdraw(r.Context(), r.PathValue("id"), req.Amount, req.Currency)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCommandResponse(result))
}

type closeAccountRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) closeAccount(w http.ResponseWriter, r *http.Request) {
	var req closeAccountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := h.service.CloseAccount(r.Context(), r.PathValue("id"), req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCommandResponse(result))
}

func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Account(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(view))
}

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.Accounts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	sort.Slice(views, func(i, j int) bool {
		return views[i].AccountID < views[j].AccountID
	})
	out := make([]accountResponse, 0, len(views))
	for _, view := range views {
		out = append(out, toAccountResponse(view))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	accountID := r.PathValue("id")
	history, err := h.service.Events(r.Context(), accountID)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(history) == 0 {
		writeError(w, storage.ErrNotFound)
		return
	}
	out := make([]eventResponse, 0, len(history))
	for _, evt := range history {
		out = append(out, eventResponse{
			ID:        evt.ID,
			AccountID: evt.AccountID,
			Seq:       evt.Seq,
			Timestamp: evt.Timestamp,
			Type:      string(evt.Type),
			RequestID: evt.RequestID,
			Payload:   json.RawMessage(evt.PayloadJSON),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func toAccountResponse(view projection.View) accountResponse {
	return accountResponse{
		AccountID:    view.AccountID,
		Version:      view.Version,
		HolderName:   view.HolderName,
		Balance:      view.Balance,
		Currency:     view.Currency,
		Closed:       view.Closed,
		LastActivity: view.LastActivity,
	}
}

func toCommandResponse(result app.Result) commandResponse {
	out := commandResponse{
		AccountID: result.AccountID,
		Version:   result.State.Version,
		Balance:   result.State.Balance,
		Currency:  result.State.Currency,
		Closed:    result.State.Closed,
	}
	for _, evt := range result.Events {
		out.Events = append(out.Events, eventResponse{
			ID:        evt.ID,
			AccountID: evt.AccountID,
			Seq:       evt.Seq,
			Timestamp: evt.Timestamp,
			Type:      string(evt.Type),
			RequestID: evt.RequestID,
			Payload:   json.RawMessage(evt.PayloadJSON),
		})
	}
	return out
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodeCommandPayloadInvalid, "decode request body", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		appErr = apperrors.Wrap(apperrors.CodeInternal, "internal error", err)
	}
	status := appErr.Code.HTTPStatus()
	message := appErr.Message
	if status == http.StatusInternalServerError {
		log.Printf("internal error: %v", err)
		message = "internal error"
	}
	writeJSON(w, status, errorResponse{Error: errorBody{
		Code:     string(appErr.Code),
		Message:  message,
		Metadata: appErr.Metadata,
	}})
}
