package domain

// RoomStatus is the coarse lifecycle of a room.
type RoomStatus string

const (
	StatusWaiting RoomStatus = "waiting"
	StatusActive  RoomStatus = "active"
	StatusEnded   RoomStatus = "ended"
)

// RoomMode selects how questions are presented to students.
type RoomMode string

const (
	// ModeOptionOnly shows only the A-D option labels on student screens;
	// the question text lives on the shared screen.
	ModeOptionOnly RoomMode = "option-only"
	// ModeFullText mirrors the full question text to every student.
	ModeFullText RoomMode = "full-text"
)

// TimedOutOption is the sentinel recorded when a student's local
// countdown expires without a selection. It never scores as correct.
const TimedOutOption = -1

// PointsPerCorrect is the flat score awarded per correct response.
const PointsPerCorrect = 10

// Option represents a possible answer for a question, labeled A-D by position.
type Option struct {
	Text string `json:"text"`
}

// Question is immutable per-room content. ID correlates responses to
// questions and is not necessarily the question's array index.
type Question struct {
	ID            int      `json:"id"`
	Text          string   `json:"text"`
	Options       []Option `json:"options"`
	CorrectOption int      `json:"correctOption"`
	TimeLimit     int      `json:"timeLimit"` // seconds, default duration when opened
}

// Student is a participant identity scoped to one room. Created at join
// time, never mutated or removed.
type Student struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Response is one submission event, immutable once recorded.
type Response struct {
	StudentID      string  `json:"studentId"`
	QuestionID     int     `json:"questionId"`
	SelectedOption int     `json:"selectedOption"` // 0-3, or TimedOutOption
	TimeTaken      float64 `json:"timeTaken"`      // seconds between open and submit
	IsCorrect      bool    `json:"isCorrect"`
}

// Room is the root aggregate, one per quiz session. The phase fields
// (Status through QuestionTimer) are written only by the admin; students
// append to Students and Responses.
type Room struct {
	ID                   string     `json:"id"`
	Name                 string     `json:"name"`
	Code                 string     `json:"code"`
	Mode                 RoomMode   `json:"mode"`
	Questions            []Question `json:"questions"`
	Status               RoomStatus `json:"status"`
	CurrentQuestionIndex int        `json:"currentQuestionIndex"`
	Students             []Student  `json:"students"`
	Responses            []Response `json:"responses"`
	AcceptingAnswers     bool       `json:"acceptingAnswers"`
	AnswersRevealed      bool       `json:"answersRevealed"`
	QuestionStartTime    *int64     `json:"questionStartTime"` // epoch millis, nil while unopened
	QuestionTimer        *int       `json:"questionTimer"`     // effective seconds, nil while unopened
}

// CurrentQuestion returns the question the index points at, or nil when
// the index is out of range (waiting rooms, tampered indices).
func (r *Room) CurrentQuestion() *Question {
	if r.CurrentQuestionIndex < 0 || r.CurrentQuestionIndex >= len(r.Questions) {
		return nil
	}
	return &r.Questions[r.CurrentQuestionIndex]
}

// QuestionByID finds a question by its correlation id.
func (r *Room) QuestionByID(id int) *Question {
	for i := range r.Questions {
		if r.Questions[i].ID == id {
			return &r.Questions[i]
		}
	}
	return nil
}

// StudentByName finds a student by exact, case-sensitive name match.
func (r *Room) StudentByName(name string) *Student {
	for i := range r.Students {
		if r.Students[i].Name == name {
			return &r.Students[i]
		}
	}
	return nil
}

// Remaining derives the shared countdown, in whole seconds, from the
// question's open timestamp. Every client computes this from the same
// stored epoch, so displays converge without a central timer task.
// Returns 0 once expired and 0 when no question is open.
func (r *Room) Remaining(nowMillis int64) int {
	if r.QuestionStartTime == nil || r.QuestionTimer == nil {
		return 0
	}
	elapsed := (nowMillis - *r.QuestionStartTime) / 1000
	left := int64(*r.QuestionTimer) - elapsed
	if left < 0 {
		return 0
	}
	return int(left)
}
