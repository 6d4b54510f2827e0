package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"quizroom-service/internal/app"
	"quizroom-service/internal/auth"
	"quizroom-service/internal/domain"
)

// BankRepository supplies pre-authored question sets for room creation.
type BankRepository interface {
	GetBank(ctx context.Context, bankID string) ([]domain.Question, error)
}

// RoomsHandler creates rooms over plain HTTP; everything after creation
// flows over the websocket.
type RoomsHandler struct {
	hub   *app.Hub
	banks BankRepository
	auth  auth.Authenticator
}

func NewRoomsHandler(hub *app.Hub, banks BankRepository, authenticator auth.Authenticator) *RoomsHandler {
	return &RoomsHandler{hub: hub, banks: banks, auth: authenticator}
}

type createRoomRequest struct {
	Name      string            `json:"name"`
	Mode      domain.RoomMode   `json:"mode"`
	BankID    string            `json:"bankId"`
	Questions []domain.Question `json:"questions"`
}

type createRoomResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

func (h *RoomsHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	principal, err := h.auth.Authenticate(token)
	if err != nil || !principal.Privileged {
		http.Error(w, "admin token required", http.StatusUnauthorized)
		return
	}

	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.Mode == "" {
		req.Mode = domain.ModeFullText
	}

	questions := req.Questions
	if len(questions) == 0 && req.BankID != "" {
		questions, err = h.banks.GetBank(r.Context(), req.BankID)
		if errors.Is(err, domain.ErrBankNotFound) {
			http.Error(w, "question bank not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "question bank unavailable", http.StatusBadGateway)
			return
		}
	}
	if len(questions) == 0 {
		http.Error(w, "no questions", http.StatusBadRequest)
		return
	}

	// The creator's reference is dropped right away; the room lives in
	// the store and clients attach over the websocket.
	_, room, release := h.hub.CreateRoom(r.Context(), req.Name, questions, req.Mode)
	release()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(createRoomResponse{ID: room.ID, Name: room.Name, Code: room.Code})
}
