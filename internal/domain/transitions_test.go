package domain

import "testing"

func activeRoom(questions int) Room {
	qs := make([]Question, questions)
	for i := range qs {
		qs[i] = Question{
			ID:            i + 1,
			Text:          "q",
			Options:       []Option{{Text: "a"}, {Text: "b"}, {Text: "c"}, {Text: "d"}},
			CorrectOption: 0,
			TimeLimit:     30,
		}
	}
	return Room{
		ID:        "room-1",
		Code:      "AB12CD",
		Status:    StatusActive,
		Questions: qs,
	}
}

func TestStartOnlyFromWaiting(t *testing.T) {
	room := activeRoom(2)
	room.Status = StatusWaiting
	room.CurrentQuestionIndex = 1

	next, patch := Start(room)
	if patch == nil {
		t.Fatalf("expected start to apply from waiting")
	}
	if next.Status != StatusActive || next.CurrentQuestionIndex != 0 {
		t.Fatalf("expected active at index 0, got %s/%d", next.Status, next.CurrentQuestionIndex)
	}

	if _, patch := Start(next); patch != nil {
		t.Fatalf("expected start from active to no-op")
	}
}

func TestOpenQuestionStampsTimer(t *testing.T) {
	room := activeRoom(2)

	next, patch := OpenQuestion(room, nil, nil, 1700000000000)
	if patch == nil {
		t.Fatalf("expected open to apply")
	}
	if !next.AcceptingAnswers || next.AnswersRevealed {
		t.Fatalf("expected open phase, got accepting=%v revealed=%v", next.AcceptingAnswers, next.AnswersRevealed)
	}
	if next.QuestionStartTime == nil || *next.QuestionStartTime != 1700000000000 {
		t.Fatalf("expected start time stamped, got %v", next.QuestionStartTime)
	}
	if next.QuestionTimer == nil || *next.QuestionTimer != 30 {
		t.Fatalf("expected default time limit 30, got %v", next.QuestionTimer)
	}

	// Duration override and explicit index.
	idx, dur := 1, 45
	next, patch = OpenQuestion(next, &idx, &dur, 1700000005000)
	if patch == nil || next.CurrentQuestionIndex != 1 || *next.QuestionTimer != 45 {
		t.Fatalf("expected index 1 with 45s override, got %d/%v", next.CurrentQuestionIndex, next.QuestionTimer)
	}
}

func TestReopenRestartsTimer(t *testing.T) {
	room := activeRoom(1)
	room, _ = OpenQuestion(room, nil, nil, 1000)
	room, patch := OpenQuestion(room, nil, nil, 9000)
	if patch == nil {
		t.Fatalf("expected re-open to apply")
	}
	if *room.QuestionStartTime != 9000 {
		t.Fatalf("expected restarted timer epoch, got %d", *room.QuestionStartTime)
	}
}

func TestRevealIdempotent(t *testing.T) {
	room := activeRoom(1)
	room, _ = OpenQuestion(room, nil, nil, 1000)

	room, patch := RevealAnswers(room)
	if patch == nil {
		t.Fatalf("expected reveal to apply")
	}
	if !room.AnswersRevealed || room.AcceptingAnswers {
		t.Fatalf("expected revealed and not accepting, got revealed=%v accepting=%v", room.AnswersRevealed, room.AcceptingAnswers)
	}

	room, patch = RevealAnswers(room)
	if patch != nil {
		t.Fatalf("expected second reveal to no-op")
	}
	if !room.AnswersRevealed || room.AcceptingAnswers {
		t.Fatalf("reveal flags changed on second call")
	}
}

func TestCloseLeavesRevealUntouched(t *testing.T) {
	room := activeRoom(1)
	room, _ = OpenQuestion(room, nil, nil, 1000)
	room, patch := CloseQuestion(room)
	if patch == nil || room.AcceptingAnswers {
		t.Fatalf("expected closed question")
	}
	if room.AnswersRevealed {
		t.Fatalf("close must not reveal")
	}
	if room.CurrentQuestionIndex != 0 {
		t.Fatalf("close must not move the index")
	}
}

func TestAdvanceResetsQuestionState(t *testing.T) {
	room := activeRoom(3)
	room, _ = OpenQuestion(room, nil, nil, 1000)
	room, _ = RevealAnswers(room)

	room, patch := Advance(room)
	if patch == nil {
		t.Fatalf("expected advance to apply")
	}
	if room.CurrentQuestionIndex != 1 {
		t.Fatalf("expected index 1, got %d", room.CurrentQuestionIndex)
	}
	if room.AcceptingAnswers || room.AnswersRevealed || room.QuestionStartTime != nil || room.QuestionTimer != nil {
		t.Fatalf("expected fresh unopened question, got %+v", room)
	}
}

func TestAdvancePastLastEndsQuiz(t *testing.T) {
	room := activeRoom(3)
	room.CurrentQuestionIndex = 2

	room, patch := Advance(room)
	if patch == nil {
		t.Fatalf("expected advance to apply")
	}
	if room.Status != StatusEnded {
		t.Fatalf("expected ended, got %s", room.Status)
	}
	if room.CurrentQuestionIndex != 2 {
		t.Fatalf("index must not increment past the last question, got %d", room.CurrentQuestionIndex)
	}
}

func TestAdvanceWhileOpenStopsSubmissions(t *testing.T) {
	room := activeRoom(1)
	room, _ = OpenQuestion(room, nil, nil, 1000)

	room, patch := Advance(room)
	if patch == nil {
		t.Fatalf("expected advance to apply")
	}
	if room.Status != StatusEnded {
		t.Fatalf("expected ended, got %s", room.Status)
	}
	if room.AcceptingAnswers {
		t.Fatalf("an ended room must not accept answers")
	}
	if patch["acceptingAnswers"] != false {
		t.Fatalf("expected the patch to close submissions, got %v", patch)
	}
}

func TestEndQuizFromAnyState(t *testing.T) {
	room := activeRoom(2)
	room.Status = StatusWaiting
	room, patch := EndQuiz(room)
	if patch == nil || room.Status != StatusEnded {
		t.Fatalf("expected ended from waiting")
	}
	if _, patch := EndQuiz(room); patch != nil {
		t.Fatalf("expected end to no-op once ended")
	}
}

func TestRemainingCountdown(t *testing.T) {
	room := activeRoom(1)
	room, _ = OpenQuestion(room, nil, nil, 10_000)
	if got := room.Remaining(15_000); got != 25 {
		t.Fatalf("expected 25s remaining, got %d", got)
	}
	if got := room.Remaining(50_000); got != 0 {
		t.Fatalf("expected expired countdown to clamp at 0, got %d", got)
	}
	unopened := activeRoom(1)
	if got := unopened.Remaining(15_000); got != 0 {
		t.Fatalf("expected 0 for unopened question, got %d", got)
	}
}
