package domain

import "time"

// StatusName identifies the state a room is in. Values are the names clients render.
type StatusName string

const (
	StatusRoomOpen         StatusName = "SHOW_ROOM"
	StatusQuestionDisplay  StatusName = "SHOW_QUESTION"
	StatusAnswerCollection StatusName = "SELECT_ANSWER"
	StatusResultsReveal    StatusName = "SHOW_RESPONSES"
	StatusLeaderboard      StatusName = "SHOW_LEADERBOARD"
	StatusFinish           StatusName = "FINISH"

	// Player-only views, never stored on a room.
	StatusWait   StatusName = "WAIT"
	StatusResult StatusName = "SHOW_RESULT"
)

// Player represents one participant of a room.
type Player struct {
	ID        string    `json:"id"`
	ConnID    string    `json:"connId"`
	Username  string    `json:"username"`
	Points    int       `json:"points"`
	Connected bool      `json:"connected"`
	JoinedAt  time.Time `json:"joinedAt"`
}

// PlayerPublic is the client-visible view of a player.
type PlayerPublic struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Points   int    `json:"points"`
}

func (p Player) Public() PlayerPublic {
	return PlayerPublic{ID: p.ID, Username: p.Username, Points: p.Points}
}

// Question is an immutable multiple choice question.
type Question struct {
	Text     string   `json:"question" yaml:"question"`
	Image    string   `json:"image,omitempty" yaml:"image,omitempty"`
	Answers  []string `json:"answers" yaml:"answers"`
	Solution int      `json:"solution" yaml:"solution"`
	Time     int      `json:"time" yaml:"time"`         // answer window, seconds
	Cooldown int      `json:"cooldown" yaml:"cooldown"` // display duration before answers open, seconds
}

// QuestionSet is a named, ordered collection of questions.
type QuestionSet struct {
	ID        string     `json:"id" yaml:"id"`
	Subject   string     `json:"subject" yaml:"subject"`
	Questions []Question `json:"questions" yaml:"questions"`
}

// AnswerSubmission is a player's answer for the current question.
type AnswerSubmission struct {
	PlayerID      string `json:"playerId"`
	SelectedIndex int    `json:"selectedIndex"`
	ElapsedMillis int64  `json:"elapsedMillis"`
}

// Room is the aggregate root of one game session. Round increments on every timed
// transition so that timers can detect they are stale.
type Room struct {
	Code            string             `json:"code"`
	ManagerConnID   string             `json:"managerConnId,omitempty"`
	ManagerToken    string             `json:"managerToken"`
	Subject         string             `json:"subject"`
	Players         []Player           `json:"players"`
	Questions       []Question         `json:"questions"`
	CurrentQuestion int                `json:"currentQuestion"`
	RoundStartTime  time.Time          `json:"roundStartTime"`
	Answers         []AnswerSubmission `json:"answers"`
	Status          StatusName         `json:"status"`
	Round           uint64             `json:"round"`
	CreatedAt       time.Time          `json:"createdAt"`
}

// Started reports whether the room left the lobby.
func (r *Room) Started() bool {
	return r.Status != StatusRoomOpen
}

// Question returns the active question, if any.
func (r *Room) Question() (Question, bool) {
	if r.CurrentQuestion < 0 || r.CurrentQuestion >= len(r.Questions) {
		return Question{}, false
	}
	return r.Questions[r.CurrentQuestion], true
}

// Player looks up a player by id.
func (r *Room) Player(id string) (*Player, bool) {
	for i := range r.Players {
		if r.Players[i].ID == id {
			return &r.Players[i], true
		}
	}
	return nil, false
}

// PlayerByUsername looks up a player by exact username.
func (r *Room) PlayerByUsername(username string) (*Player, bool) {
	for i := range r.Players {
		if r.Players[i].Username == username {
			return &r.Players[i], true
		}
	}
	return nil, false
}

// Answer returns the submission of a player for the current question.
func (r *Room) Answer(playerID string) (AnswerSubmission, bool) {
	for _, a := range r.Answers {
		if a.PlayerID == playerID {
			return a, true
		}
	}
	return AnswerSubmission{}, false
}

// ConnectedPlayers counts players with a live connection.
func (r *Room) ConnectedPlayers() int {
	n := 0
	for _, p := range r.Players {
		if p.Connected {
			n++
		}
	}
	return n
}

// Clone returns a deep copy; questions are shared since they never change.
func (r Room) Clone() Room {
	out := r
	out.Players = append([]Player(nil), r.Players...)
	out.Answers = append([]AnswerSubmission(nil), r.Answers...)
	return out
}

// LeaderboardEntry is a ranked view of a player.
type LeaderboardEntry struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Points   int    `json:"points"`
}

// Status is the canonical state broadcast.
type Status struct {
	Name     StatusName `json:"name"`
	Data     any        `json:"data"`
	Question int        `json:"question"`
}

// RoomSummary is an operator-facing snapshot of a live room.
type RoomSummary struct {
	Code      string     `json:"code"`
	Status    StatusName `json:"status"`
	Players   int        `json:"players"`
	Question  int        `json:"question"`
	Total     int        `json:"total"`
	Manager   bool       `json:"managerConnected"`
	CreatedAt time.Time  `json:"createdAt"`
}
