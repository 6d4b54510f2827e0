package domain

import "sort"

// LeaderboardEntry pairs a student with their derived score and total
// answer time.
type LeaderboardEntry struct {
	StudentID string  `json:"studentId"`
	Name      string  `json:"name"`
	Score     int     `json:"score"`
	TotalTime float64 `json:"totalTime"`
}

// ScoreOf recomputes a student's score from the full response log:
// a flat PointsPerCorrect per correct response, no partial credit and no
// time bonus.
func ScoreOf(r Room, studentID string) int {
	score := 0
	for _, resp := range r.Responses {
		if resp.StudentID == studentID && resp.IsCorrect {
			score += PointsPerCorrect
		}
	}
	return score
}

// TotalTime sums the seconds a student spent across all their responses.
func TotalTime(r Room, studentID string) float64 {
	var total float64
	for _, resp := range r.Responses {
		if resp.StudentID == studentID {
			total += resp.TimeTaken
		}
	}
	return total
}

// ResponsesOf returns a student's responses in log order, for the
// per-student question breakdown.
func ResponsesOf(r Room, studentID string) []Response {
	var out []Response
	for _, resp := range r.Responses {
		if resp.StudentID == studentID {
			out = append(out, resp)
		}
	}
	return out
}

// Leaderboard ranks every student by score descending, breaking ties by
// total time ascending so the faster student places higher. It is
// recomputed from the full log on every call; both collections stay
// classroom-sized so the quadratic walk is fine.
func Leaderboard(r Room) []LeaderboardEntry {
	entries := make([]LeaderboardEntry, 0, len(r.Students))
	for _, s := range r.Students {
		entries = append(entries, LeaderboardEntry{
			StudentID: s.ID,
			Name:      s.Name,
			Score:     ScoreOf(r, s.ID),
			TotalTime: TotalTime(r, s.ID),
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].TotalTime < entries[j].TotalTime
	})
	return entries
}
