package app

// Command is an inbound client request or an internal engine event. The set is
// closed; the engine switches over every variant.
type Command interface {
	command()
}

// CheckRoom asks whether a room code is joinable.
type CheckRoom struct {
	Conn string
	Code string
}

// Join adds the caller to a room as a player.
type Join struct {
	Conn     string
	Username string
	Code     string
}

// CreateRoom opens a room managed by the caller.
type CreateRoom struct {
	Conn     string
	Password string
}

// ReconnectManager rebinds a manager connection using the token issued at creation.
type ReconnectManager struct {
	Conn  string
	Code  string
	Token string
}

// StartGame, AbortQuestion, ShowLeaderboardCmd and NextQuestion are manager
// commands addressed to the caller's room.
type (
	StartGame struct {
		Conn string
		Code string
	}
	AbortQuestion struct {
		Conn string
		Code string
	}
	ShowLeaderboardCmd struct {
		Conn string
		Code string
	}
	NextQuestion struct {
		Conn string
		Code string
	}
)

// KickPlayer removes a player from the caller's room.
type KickPlayer struct {
	Conn     string
	PlayerID string
}

// SubmitAnswer records an answer for the player bound to Conn.
type SubmitAnswer struct {
	Conn        string
	AnswerIndex int
}

// Disconnect reports that a connection went away.
type Disconnect struct {
	Conn string
}

type timerFired struct {
	Code  string
	Kind  TimerKind
	Round uint64
}

type graceExpired struct {
	Code string
	Seq  uint64
}

func (CheckRoom) command()          {}
func (Join) command()               {}
func (CreateRoom) command()         {}
func (ReconnectManager) command()   {}
func (StartGame) command()          {}
func (AbortQuestion) command()      {}
func (ShowLeaderboardCmd) command() {}
func (NextQuestion) command()       {}
func (KickPlayer) command()         {}
func (SubmitAnswer) command()       {}
func (Disconnect) command()         {}
func (timerFired) command()         {}
func (graceExpired) command()       {}
