package protocol

// Type identifies a message on the wire
type Type string

// Client to server
const (
	TypeRegister Type = "register"
	TypeLogin    Type = "login"
	TypeLogout   Type = "logout"
	TypeFindGame Type = "find_game"
	TypeMove     Type = "move"
)

// Server to client
const (
	TypeRegisterSuccess      Type = "register_success"
	TypeRegisterFailed       Type = "register_failed"
	TypeLoginSuccess         Type = "login_success"
	TypeLoginFailed          Type = "login_failed"
	TypeLogoutSuccess        Type = "logout_success"
	TypeGameStart            Type = "game_start"
	TypeUpdate               Type = "update"
	TypeGameEnd              Type = "game_end"
	TypeOpponentDisconnected Type = "opponent_disconnected"
	TypeServerShutdown       Type = "server_shutdown"
	TypeError                Type = "error"
)

// Message is anything that can be sent over the wire
type Message interface {
	MessageType() Type
}

// Request is the closed set of messages a client may send
type Request interface {
	Message
	isRequest()
}

// Authenticated is implemented by requests carrying a username and token
type Authenticated interface {
	Request
	Credentials() Auth
}

// Auth identifies an authenticated caller
type Auth struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

func (a Auth) Credentials() Auth { return a }

// Requests

type Register struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type Login struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type Logout struct {
	Auth
}

type FindGame struct {
	Auth
}

type Move struct {
	Auth
	GameID int64  `json:"game_id"`
	Move   string `json:"move"`
}

func (Register) MessageType() Type { return TypeRegister }
func (Login) MessageType() Type    { return TypeLogin }
func (Logout) MessageType() Type   { return TypeLogout }
func (FindGame) MessageType() Type { return TypeFindGame }
func (Move) MessageType() Type     { return TypeMove }

func (Register) isRequest() {}
func (Login) isRequest()    {}
func (Logout) isRequest()   {}
func (FindGame) isRequest() {}
func (Move) isRequest()     {}

// Replies and notifications

type RegisterSuccess struct{}

type RegisterFailed struct {
	Reason string `json:"reason"`
}

type LoginSuccess struct {
	Username string `json:"username"`
	Token    string `json:"token"`
	Elo      int    `json:"elo"`
}

type LoginFailed struct {
	Reason string `json:"reason"`
}

type LogoutSuccess struct{}

// GameStart tells a player their colour and the starting position
type GameStart struct {
	Color  string `json:"color"`
	GameID int64  `json:"game_id"`
	Board  string `json:"board"`
}

// Update carries an accepted move to both players
type Update struct {
	GameID int64  `json:"game_id"`
	Move   string `json:"move"`
}

// GameEnd reports the result and the recipient's own new rating
type GameEnd struct {
	GameID int64  `json:"game_id"`
	Winner string `json:"winner"`
	Elo    int    `json:"elo"`
}

type OpponentDisconnected struct {
	GameID int64 `json:"game_id"`
}

type ServerShutdown struct{}

type Error struct {
	Reason string `json:"reason"`
}

func (RegisterSuccess) MessageType() Type      { return TypeRegisterSuccess }
func (RegisterFailed) MessageType() Type       { return TypeRegisterFailed }
func (LoginSuccess) MessageType() Type         { return TypeLoginSuccess }
func (LoginFailed) MessageType() Type          { return TypeLoginFailed }
func (LogoutSuccess) MessageType() Type        { return TypeLogoutSuccess }
func (GameStart) MessageType() Type            { return TypeGameStart }
func (Update) MessageType() Type               { return TypeUpdate }
func (GameEnd) MessageType() Type              { return TypeGameEnd }
func (OpponentDisconnected) MessageType() Type { return TypeOpponentDisconnected }
func (ServerShutdown) MessageType() Type       { return TypeServerShutdown }
func (Error) MessageType() Type                { return TypeError }
