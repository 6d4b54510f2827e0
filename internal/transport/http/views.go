package http

import (
	"time"

	"quizroom-service/internal/domain"
)

// roomView is the projection pushed over the websocket. Students never
// see the correct option before the reveal, and in option-only mode the
// question text stays on the shared screen.
type roomView struct {
	ID                   string            `json:"id"`
	Name                 string            `json:"name"`
	Code                 string            `json:"code"`
	Mode                 domain.RoomMode   `json:"mode"`
	Status               domain.RoomStatus `json:"status"`
	CurrentQuestionIndex int               `json:"currentQuestionIndex"`
	TotalQuestions       int               `json:"totalQuestions"`
	CurrentQuestion      *questionView     `json:"currentQuestion,omitempty"`
	Students             []domain.Student  `json:"students"`
	AcceptingAnswers     bool              `json:"acceptingAnswers"`
	AnswersRevealed      bool              `json:"answersRevealed"`
	QuestionStartTime    *int64            `json:"questionStartTime"`
	QuestionTimer        *int              `json:"questionTimer"`
	Remaining            int               `json:"remaining"`
}

type questionView struct {
	ID            int             `json:"id"`
	Text          string          `json:"text"`
	Options       []domain.Option `json:"options"`
	CorrectOption int             `json:"correctOption"` // -1 while hidden
	TimeLimit     int             `json:"timeLimit"`
}

func viewOf(room domain.Room, privileged bool) roomView {
	view := roomView{
		ID:                   room.ID,
		Name:                 room.Name,
		Code:                 room.Code,
		Mode:                 room.Mode,
		Status:               room.Status,
		CurrentQuestionIndex: room.CurrentQuestionIndex,
		TotalQuestions:       len(room.Questions),
		Students:             room.Students,
		AcceptingAnswers:     room.AcceptingAnswers,
		AnswersRevealed:      room.AnswersRevealed,
		QuestionStartTime:    room.QuestionStartTime,
		QuestionTimer:        room.QuestionTimer,
		Remaining:            room.Remaining(time.Now().UnixMilli()),
	}
	if room.Status == domain.StatusWaiting {
		return view
	}
	q := room.CurrentQuestion()
	if q == nil {
		return view
	}
	qv := questionView{
		ID:            q.ID,
		Text:          q.Text,
		Options:       q.Options,
		CorrectOption: q.CorrectOption,
		TimeLimit:     q.TimeLimit,
	}
	revealed := room.AnswersRevealed || room.Status == domain.StatusEnded
	if !privileged && !revealed {
		qv.CorrectOption = -1
	}
	if !privileged && room.Mode == domain.ModeOptionOnly {
		qv.Text = ""
	}
	view.CurrentQuestion = &qv
	return view
}
