package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"quizroom-service/internal/app"
	"quizroom-service/internal/auth"
	"quizroom-service/internal/domain"
)

// WSHandler is the live surface of a room: every connected client holds
// one websocket over which it receives the room projection and the
// leaderboard on each change, and sends its role's operations back.
type WSHandler struct {
	hub      *app.Hub
	auth     auth.Authenticator
	upgrader websocket.Upgrader
}

func NewWSHandler(hub *app.Hub, authenticator auth.Authenticator) *WSHandler {
	return &WSHandler{
		hub:  hub,
		auth: authenticator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type openPayload struct {
	Index    *int `json:"index"`
	Duration *int `json:"duration"`
}

type answerPayload struct {
	QuestionID     int     `json:"questionId"`
	SelectedOption int     `json:"selectedOption"`
	TimeTaken      float64 `json:"timeTaken"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and runs one client's session. Students
// join with ?code=&role=student&name=; the admin connects with
// ?code=&role=admin&token= carrying the privileged claim.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	role := r.URL.Query().Get("role")
	name := r.URL.Query().Get("name")
	token := r.URL.Query().Get("token")
	if code == "" || (role != "admin" && role != "student") || (role == "student" && name == "") {
		http.Error(w, "missing code, role, or name", http.StatusBadRequest)
		return
	}

	privileged := false
	if role == "admin" {
		principal, err := h.auth.Authenticate(token)
		if err != nil || !principal.Privileged {
			http.Error(w, "admin token required", http.StatusUnauthorized)
			return
		}
		privileged = true
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	svc, release, err := h.hub.Attach(r.Context(), code)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: "room not found"}})
		return
	}
	defer release()

	var student domain.Student
	if role == "student" {
		student, err = svc.Join(r.Context(), name, code)
		if err != nil {
			_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: "room not found"}})
			return
		}
	}

	updates, cancel := svc.Subscribe()
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	// The join acknowledgment goes out before update forwarding starts so
	// the client always sees it first.
	if role == "student" {
		send <- outboundMessage[any]{Type: "joined", Payload: student}
	}

	go func() {
		defer close(updatesDone)
		for {
			select {
			case room, ok := <-updates:
				if !ok {
					return
				}
				view := viewOf(room, privileged)
				lb := domain.Leaderboard(room)
				select {
				case send <- outboundMessage[any]{Type: "room", Payload: view}:
				case <-closeSignals:
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "leaderboard", Payload: lb}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.dispatch(r.Context(), svc, send, inbound, privileged, student)
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *WSHandler) dispatch(ctx context.Context, svc *app.RoomService, send chan outboundMessage[any], inbound inboundMessage, privileged bool, student domain.Student) {
	switch inbound.Type {
	case "answer":
		if student.ID == "" {
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "students only"}}
			return
		}
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}
			return
		}
		// Phase gating happens in the core; a rejected answer is simply
		// absent from the next leaderboard.
		svc.SubmitAnswer(ctx, student.ID, payload.QuestionID, payload.SelectedOption, payload.TimeTaken)
	case "start", "open", "close", "reveal", "advance", "end":
		if !privileged {
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "admin only"}}
			return
		}
		switch inbound.Type {
		case "start":
			svc.Start(ctx)
		case "open":
			var payload openPayload
			if len(inbound.Payload) > 0 {
				if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
					send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid open payload"}}
					return
				}
			}
			svc.OpenQuestion(ctx, payload.Index, payload.Duration)
		case "close":
			svc.CloseQuestion(ctx)
		case "reveal":
			svc.RevealAnswers(ctx)
		case "advance":
			svc.Advance(ctx)
		case "end":
			svc.EndQuiz(ctx)
		}
	default:
		send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
	}
}
