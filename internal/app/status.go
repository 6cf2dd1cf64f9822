package app

import "trivia-room-service/internal/domain"

const podiumSize = 3

type RoomOpenData struct {
	Text       string                `json:"text"`
	InviteCode string                `json:"inviteCode"`
	Players    []domain.PlayerPublic `json:"players"`
}

type QuestionData struct {
	Question string `json:"question"`
	Image    string `json:"image,omitempty"`
	Cooldown int    `json:"cooldown"`
}

type AnswersData struct {
	Question    string   `json:"question"`
	Image       string   `json:"image,omitempty"`
	Answers     []string `json:"answers"`
	Time        int      `json:"time"`
	TotalPlayer int      `json:"totalPlayer"`
}

type ResponsesData struct {
	Question  string      `json:"question"`
	Image     string      `json:"image,omitempty"`
	Answers   []string    `json:"answers"`
	Responses map[int]int `json:"responses"`
	Correct   int         `json:"correct"`
}

type LeaderboardData struct {
	Leaderboard []domain.LeaderboardEntry `json:"leaderboard"`
}

type FinishData struct {
	Subject     string                    `json:"subject"`
	Top         []domain.LeaderboardEntry `json:"top"`
	Leaderboard []domain.LeaderboardEntry `json:"leaderboard"`
}

type WaitData struct {
	Text string `json:"text"`
}

// ResultData is the per-player outcome of one question.
type ResultData struct {
	Correct   bool   `json:"correct"`
	Message   string `json:"message"`
	Points    int    `json:"points"`
	MyPoints  int    `json:"myPoints"`
	Rank      int    `json:"rank"`
	AheadOfMe string `json:"aheadOfMe,omitempty"`
}

// StatusOf renders the canonical status broadcast for the room's current state.
func StatusOf(room domain.Room) domain.Status {
	number := room.CurrentQuestion + 1
	if number > len(room.Questions) {
		number = len(room.Questions)
	}
	status := domain.Status{Name: room.Status, Question: number}
	q, _ := room.Question()

	switch room.Status {
	case domain.StatusRoomOpen:
		players := make([]domain.PlayerPublic, 0, len(room.Players))
		for _, p := range room.Players {
			players = append(players, p.Public())
		}
		status.Data = RoomOpenData{Text: "Waiting for the players", InviteCode: room.Code, Players: players}
	case domain.StatusQuestionDisplay:
		status.Data = QuestionData{Question: q.Text, Image: q.Image, Cooldown: q.Cooldown}
	case domain.StatusAnswerCollection:
		status.Data = AnswersData{
			Question:    q.Text,
			Image:       q.Image,
			Answers:     q.Answers,
			Time:        q.Time,
			TotalPlayer: len(room.Players),
		}
	case domain.StatusResultsReveal:
		status.Data = ResponsesData{
			Question:  q.Text,
			Image:     q.Image,
			Answers:   q.Answers,
			Responses: Responses(room.Answers, len(q.Answers)),
			Correct:   q.Solution,
		}
	case domain.StatusLeaderboard:
		status.Data = LeaderboardData{Leaderboard: Rank(room.Players)}
	case domain.StatusFinish:
		ranked := Rank(room.Players)
		top := ranked
		if len(top) > podiumSize {
			top = top[:podiumSize]
		}
		status.Data = FinishData{Subject: room.Subject, Top: top, Leaderboard: ranked}
	}
	return status
}
