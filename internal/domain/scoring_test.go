package domain

import "testing"

func scoredRoom() Room {
	room := activeRoom(2)
	room.Students = []Student{
		{ID: "s-a", Name: "Ava"},
		{ID: "s-b", Name: "Ben"},
	}
	room.Responses = []Response{
		{StudentID: "s-a", QuestionID: 1, SelectedOption: 0, TimeTaken: 8.0, IsCorrect: true},
		{StudentID: "s-a", QuestionID: 2, SelectedOption: 3, TimeTaken: 7.0, IsCorrect: false},
		{StudentID: "s-b", QuestionID: 1, SelectedOption: 0, TimeTaken: 4.5, IsCorrect: true},
		{StudentID: "s-b", QuestionID: 2, SelectedOption: TimedOutOption, TimeTaken: 5.0, IsCorrect: false},
	}
	return room
}

func TestScoreOf(t *testing.T) {
	room := scoredRoom()
	if got := ScoreOf(room, "s-a"); got != 10 {
		t.Fatalf("expected 10 for one correct answer, got %d", got)
	}
	if got := ScoreOf(room, "s-unknown"); got != 0 {
		t.Fatalf("expected 0 for no answers, got %d", got)
	}
}

func TestTotalTime(t *testing.T) {
	room := scoredRoom()
	if got := TotalTime(room, "s-a"); got != 15.0 {
		t.Fatalf("expected 15.0, got %v", got)
	}
}

func TestLeaderboardTiebreakByTime(t *testing.T) {
	room := scoredRoom()
	// Both students have 10 points; Ben answered faster overall.
	lb := Leaderboard(room)
	if len(lb) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(lb))
	}
	if lb[0].StudentID != "s-b" {
		t.Fatalf("expected faster student to win the tie, got %+v", lb[0])
	}
}

func TestLeaderboardScoreDominatesTime(t *testing.T) {
	room := scoredRoom()
	room.Students = append(room.Students, Student{ID: "s-c", Name: "Cy"})
	room.Responses = append(room.Responses,
		Response{StudentID: "s-c", QuestionID: 1, SelectedOption: 0, TimeTaken: 29.0, IsCorrect: true},
		Response{StudentID: "s-c", QuestionID: 2, SelectedOption: 0, TimeTaken: 29.0, IsCorrect: true},
	)
	lb := Leaderboard(room)
	if lb[0].StudentID != "s-c" || lb[0].Score != 20 {
		t.Fatalf("expected higher score first regardless of time, got %+v", lb[0])
	}
}

func TestResponsesOfKeepsLogOrder(t *testing.T) {
	room := scoredRoom()
	got := ResponsesOf(room, "s-b")
	if len(got) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(got))
	}
	if got[0].QuestionID != 1 || got[1].QuestionID != 2 {
		t.Fatalf("expected log order, got %+v", got)
	}
	if got[1].SelectedOption != TimedOutOption || got[1].IsCorrect {
		t.Fatalf("timeout sentinel must never be correct, got %+v", got[1])
	}
}
