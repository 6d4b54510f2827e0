package domain

// FieldPatch names the room fields a transition changed, keyed by their
// wire names, so the repository can persist a partial update instead of
// rewriting the whole document. A nil patch means the transition did not
// apply (wrong phase, or nothing to change).
type FieldPatch map[string]any

// Start moves a lobby room into the quiz. Valid only from waiting.
func Start(r Room) (Room, FieldPatch) {
	if r.Status != StatusWaiting {
		return r, nil
	}
	r.Status = StatusActive
	r.CurrentQuestionIndex = 0
	return r, FieldPatch{
		"status":               StatusActive,
		"currentQuestionIndex": 0,
	}
}

// OpenQuestion opens the question at index (current index when nil) for
// submissions, stamping the shared countdown epoch. Re-opening an
// already-open question just restarts the timer. duration overrides the
// question's default time limit when non-nil.
func OpenQuestion(r Room, index *int, duration *int, nowMillis int64) (Room, FieldPatch) {
	if r.Status != StatusActive {
		return r, nil
	}
	if index != nil {
		r.CurrentQuestionIndex = *index
	}
	timer := 0
	if q := r.CurrentQuestion(); q != nil {
		timer = q.TimeLimit
	}
	if duration != nil {
		timer = *duration
	}
	start := nowMillis
	r.AcceptingAnswers = true
	r.AnswersRevealed = false
	r.QuestionStartTime = &start
	r.QuestionTimer = &timer
	return r, FieldPatch{
		"currentQuestionIndex": r.CurrentQuestionIndex,
		"acceptingAnswers":     true,
		"answersRevealed":      false,
		"questionStartTime":    start,
		"questionTimer":        timer,
	}
}

// CloseQuestion stops accepting submissions, leaving the reveal flag and
// index untouched.
func CloseQuestion(r Room) (Room, FieldPatch) {
	if r.Status != StatusActive {
		return r, nil
	}
	r.AcceptingAnswers = false
	return r, FieldPatch{"acceptingAnswers": false}
}

// RevealAnswers shows the correct answer and blocks submissions.
// Revealing twice is a no-op.
func RevealAnswers(r Room) (Room, FieldPatch) {
	if r.Status != StatusActive {
		return r, nil
	}
	if r.AnswersRevealed && !r.AcceptingAnswers {
		return r, nil
	}
	r.AnswersRevealed = true
	r.AcceptingAnswers = false
	return r, FieldPatch{
		"answersRevealed":  true,
		"acceptingAnswers": false,
	}
}

// Advance moves to the next question as a fresh unopened one, or ends
// the quiz when the current question was the last. The index never
// increments past the last question.
func Advance(r Room) (Room, FieldPatch) {
	if r.Status != StatusActive {
		return r, nil
	}
	if r.CurrentQuestionIndex >= len(r.Questions)-1 {
		r.Status = StatusEnded
		r.AcceptingAnswers = false
		return r, FieldPatch{
			"status":           StatusEnded,
			"acceptingAnswers": false,
		}
	}
	r.CurrentQuestionIndex++
	r.AcceptingAnswers = false
	r.AnswersRevealed = false
	r.QuestionStartTime = nil
	r.QuestionTimer = nil
	return r, FieldPatch{
		"currentQuestionIndex": r.CurrentQuestionIndex,
		"acceptingAnswers":     false,
		"answersRevealed":      false,
		"questionStartTime":    nil,
		"questionTimer":        nil,
	}
}

// EndQuiz forces the terminal state from anywhere. Irreversible.
func EndQuiz(r Room) (Room, FieldPatch) {
	if r.Status == StatusEnded {
		return r, nil
	}
	r.Status = StatusEnded
	r.AcceptingAnswers = false
	return r, FieldPatch{
		"status":           StatusEnded,
		"acceptingAnswers": false,
	}
}
