package app

import (
	"sort"

	"trivia-room-service/internal/domain"
)

const (
	// BasePoints is awarded for any correct answer inside the window.
	BasePoints = 1000
	// TimeDivisor converts remaining milliseconds into bonus points.
	TimeDivisor = 100
)

// Score returns the points for one answer. Incorrect answers score zero; a correct
// answer scores BasePoints plus one point per TimeDivisor ms left in the window.
func Score(timeLimitSeconds int, elapsedMillis int64, correct bool) int {
	if !correct {
		return 0
	}
	if elapsedMillis < 0 {
		elapsedMillis = 0
	}
	remaining := int64(timeLimitSeconds)*1000 - elapsedMillis
	if remaining < 0 {
		remaining = 0
	}
	return BasePoints + int(remaining/TimeDivisor)
}

// Rank orders players by points descending; ties keep join order.
func Rank(players []domain.Player) []domain.LeaderboardEntry {
	entries := make([]domain.LeaderboardEntry, 0, len(players))
	for _, p := range players {
		entries = append(entries, domain.LeaderboardEntry{ID: p.ID, Username: p.Username, Points: p.Points})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Points > entries[j].Points
	})
	return entries
}

// Responses counts submissions per answer option.
func Responses(answers []domain.AnswerSubmission, options int) map[int]int {
	out := make(map[int]int, options)
	for i := 0; i < options; i++ {
		out[i] = 0
	}
	for _, a := range answers {
		if a.SelectedIndex >= 0 && a.SelectedIndex < options {
			out[a.SelectedIndex]++
		}
	}
	return out
}

// applyScores credits every pending correct answer once.
func applyScores(room *domain.Room) map[string]int {
	awarded := make(map[string]int, len(room.Answers))
	q, ok := room.Question()
	if !ok {
		return awarded
	}
	for _, a := range room.Answers {
		player, ok := room.Player(a.PlayerID)
		if !ok {
			continue
		}
		points := Score(q.Time, a.ElapsedMillis, a.SelectedIndex == q.Solution)
		player.Points += points
		awarded[a.PlayerID] = points
	}
	return awarded
}
