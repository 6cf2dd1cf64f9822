package app

import (
	"time"

	"trivia-room-service/internal/domain"
)

// Rules are the deployment knobs of the state machine.
type Rules struct {
	QuestionCooldown   time.Duration
	ResultsAutoAdvance time.Duration
	FinishedRoomTTL    time.Duration
	MinPlayers         int
}

// TimerKind identifies what a scheduled timer advances.
type TimerKind int

const (
	TimerCooldown TimerKind = iota + 1
	TimerAnswerWindow
	TimerResults
	TimerCleanup
)

func (k TimerKind) String() string {
	switch k {
	case TimerCooldown:
		return "cooldown"
	case TimerAnswerWindow:
		return "answer-window"
	case TimerResults:
		return "results"
	case TimerCleanup:
		return "cleanup"
	}
	return "unknown"
}

// TimerRequest asks the engine to schedule a timer for the new round.
type TimerRequest struct {
	Kind  TimerKind
	Round uint64
	After time.Duration
}

// Input drives a transition.
type Input interface {
	input()
}

type (
	// Start leaves the lobby.
	Start struct{}
	// Skip ends the question early.
	Skip struct{}
	// ShowLeaderboard moves from results to the leaderboard.
	ShowLeaderboard struct{}
	// Next advances to the following question or finishes.
	Next struct{}
	// Answer is a player's submission.
	Answer struct {
		PlayerID string
		Index    int
	}
	// Recount re-evaluates the early advance condition after the player set changed.
	Recount struct{}
	// Tick is a timer expiry.
	Tick struct {
		Kind  TimerKind
		Round uint64
	}
)

func (Start) input()           {}
func (Skip) input()            {}
func (ShowLeaderboard) input() {}
func (Next) input()            {}
func (Answer) input()          {}
func (Recount) input()         {}
func (Tick) input()            {}

// Outcome is the result of a transition. Room is only meaningful when Changed.
type Outcome struct {
	Room     domain.Room
	Changed  bool
	Messages []Message
	Timer    *TimerRequest
	// Closed marks a finished room that should be removed.
	Closed bool
}

// Transition computes the next room state. It never mutates its argument and
// leaves the room untouched for inputs that are illegal in the current state.
func Transition(room domain.Room, in Input, now time.Time, rules Rules) Outcome {
	r := room.Clone()
	out := Outcome{Room: r}

	switch in := in.(type) {
	case Start:
		if r.Status != domain.StatusRoomOpen || len(r.Players) < rules.MinPlayers || len(r.Questions) == 0 {
			return out
		}
		beginQuestion(&out, 0, rules)
	case Skip:
		if r.Status != domain.StatusQuestionDisplay && r.Status != domain.StatusAnswerCollection {
			return out
		}
		reveal(&out, rules)
	case ShowLeaderboard:
		switch r.Status {
		case domain.StatusResultsReveal:
			showLeaderboard(&out)
		case domain.StatusLeaderboard:
			// Redundant notification only; nothing is recomputed.
			out.Messages = statusMessages(out.Room)
		}
	case Next:
		if r.Status != domain.StatusLeaderboard {
			return out
		}
		if r.CurrentQuestion+1 < len(r.Questions) {
			beginQuestion(&out, r.CurrentQuestion+1, rules)
		} else {
			finish(&out, rules)
		}
	case Answer:
		submit(&out, in, now, rules)
	case Recount:
		if r.Status == domain.StatusAnswerCollection && everyoneAnswered(&out.Room) {
			reveal(&out, rules)
		}
	case Tick:
		if in.Round != r.Round {
			return out
		}
		switch {
		case in.Kind == TimerCooldown && r.Status == domain.StatusQuestionDisplay:
			openAnswers(&out, now)
		case in.Kind == TimerAnswerWindow && r.Status == domain.StatusAnswerCollection:
			reveal(&out, rules)
		case in.Kind == TimerResults && r.Status == domain.StatusResultsReveal:
			showLeaderboard(&out)
		case in.Kind == TimerCleanup && r.Status == domain.StatusFinish:
			out.Closed = true
		}
	}
	return out
}

func beginQuestion(out *Outcome, index int, rules Rules) {
	r := &out.Room
	r.CurrentQuestion = index
	r.Status = domain.StatusQuestionDisplay
	r.Answers = nil
	r.Round++
	out.Changed = true

	q, _ := r.Question()
	cooldown := time.Duration(q.Cooldown) * time.Second
	if cooldown <= 0 {
		cooldown = rules.QuestionCooldown
		r.Questions = withCooldown(r.Questions, index, int(cooldown/time.Second))
	}
	out.Messages = append(out.Messages, statusMessages(*r)...)
	out.Timer = &TimerRequest{Kind: TimerCooldown, Round: r.Round, After: cooldown}
}

// withCooldown fills a missing display duration so clients render the real countdown.
func withCooldown(questions []domain.Question, index, seconds int) []domain.Question {
	out := append([]domain.Question(nil), questions...)
	out[index].Cooldown = seconds
	return out
}

func openAnswers(out *Outcome, now time.Time) {
	r := &out.Room
	r.Status = domain.StatusAnswerCollection
	r.RoundStartTime = now
	r.Answers = nil
	r.Round++
	out.Changed = true

	q, _ := r.Question()
	out.Messages = append(out.Messages, statusMessages(*r)...)
	out.Timer = &TimerRequest{Kind: TimerAnswerWindow, Round: r.Round, After: time.Duration(q.Time) * time.Second}
}

func submit(out *Outcome, in Answer, now time.Time, rules Rules) {
	r := &out.Room
	if r.Status != domain.StatusAnswerCollection {
		return
	}
	player, ok := r.Player(in.PlayerID)
	if !ok {
		return
	}
	if _, answered := r.Answer(in.PlayerID); answered {
		return
	}
	q, _ := r.Question()
	if in.Index < 0 || in.Index >= len(q.Answers) {
		return
	}

	r.Answers = append(r.Answers, domain.AnswerSubmission{
		PlayerID:      in.PlayerID,
		SelectedIndex: in.Index,
		ElapsedMillis: now.Sub(r.RoundStartTime).Milliseconds(),
	})
	out.Changed = true

	if player.ConnID != "" {
		out.Messages = append(out.Messages, Message{
			To:    ToClient(player.ConnID),
			Event: EventStatus,
			Payload: domain.Status{
				Name:     domain.StatusWait,
				Data:     WaitData{Text: "Waiting for the players to answer"},
				Question: r.CurrentQuestion + 1,
			},
		})
	}
	out.Messages = append(out.Messages, Message{
		To:      ToManager(r.Code),
		Event:   EventPlayerAnswer,
		Payload: AnswerCountPayload{Count: len(r.Answers), Total: len(r.Players)},
	})

	if everyoneAnswered(r) {
		reveal(out, rules)
	}
}

// everyoneAnswered is the early advance condition: every connected player has
// a pending answer. Disconnected players never hold the window open.
func everyoneAnswered(r *domain.Room) bool {
	connected := 0
	for _, p := range r.Players {
		if !p.Connected {
			continue
		}
		connected++
		if _, ok := r.Answer(p.ID); !ok {
			return false
		}
	}
	return connected > 0 || len(r.Answers) > 0
}

func reveal(out *Outcome, rules Rules) {
	r := &out.Room
	awarded := applyScores(r)
	r.Status = domain.StatusResultsReveal
	r.Round++
	out.Changed = true
	out.Timer = nil

	status := StatusOf(*r)
	out.Messages = append(out.Messages, Message{To: ToManager(r.Code), Event: EventStatus, Payload: status})

	ranked := Rank(r.Players)
	q, _ := r.Question()
	for i, entry := range ranked {
		player, _ := r.Player(entry.ID)
		if player.ConnID == "" {
			continue
		}
		answer, answered := r.Answer(entry.ID)
		result := ResultData{
			Correct:  answered && answer.SelectedIndex == q.Solution,
			Points:   awarded[entry.ID],
			MyPoints: player.Points,
			Rank:     i + 1,
		}
		switch {
		case result.Correct:
			result.Message = "Nice!"
		case answered:
			result.Message = "Too bad"
		default:
			result.Message = "No answer"
		}
		if i > 0 {
			result.AheadOfMe = ranked[i-1].Username
		}
		out.Messages = append(out.Messages, Message{
			To:      ToClient(player.ConnID),
			Event:   EventStatus,
			Payload: domain.Status{Name: domain.StatusResult, Data: result, Question: status.Question},
		})
	}

	if rules.ResultsAutoAdvance > 0 {
		out.Timer = &TimerRequest{Kind: TimerResults, Round: r.Round, After: rules.ResultsAutoAdvance}
	}
}

func showLeaderboard(out *Outcome) {
	r := &out.Room
	r.Status = domain.StatusLeaderboard
	r.Round++
	out.Changed = true
	out.Timer = nil
	out.Messages = append(out.Messages, statusMessages(*r)...)
}

func finish(out *Outcome, rules Rules) {
	r := &out.Room
	r.CurrentQuestion = len(r.Questions)
	r.Status = domain.StatusFinish
	r.Answers = nil
	r.Round++
	out.Changed = true
	out.Messages = append(out.Messages, statusMessages(*r)...)
	if rules.FinishedRoomTTL > 0 {
		out.Timer = &TimerRequest{Kind: TimerCleanup, Round: r.Round, After: rules.FinishedRoomTTL}
	}
}

// statusMessages addresses the status broadcast to both players and manager.
func statusMessages(r domain.Room) []Message {
	status := StatusOf(r)
	return []Message{
		{To: ToRoom(r.Code), Event: EventStatus, Payload: status},
		{To: ToManager(r.Code), Event: EventStatus, Payload: status},
	}
}
