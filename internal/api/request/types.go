package request

import "encoding/json"

// Inbound websocket message types
const (
	TypeJoinGame   = "join_game"
	TypeJoinTeam   = "join_team"
	TypeLeaveGame  = "leave_game"
	TypeSubmitWord = "submit_word"
	TypeGetState   = "get_state"
)

// Message is an inbound websocket frame. Data is decoded according to Type.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// JoinGameRequest registers a display name for the connection
type JoinGameRequest struct {
	Name string `json:"name"`
}

// JoinTeamRequest moves a player to a team, or to the spectators with team "spectator"
type JoinTeamRequest struct {
	Name string `json:"name"`
	Team string `json:"team"`
}

// LeaveGameRequest removes a player
type LeaveGameRequest struct {
	Name string `json:"name"`
	Team string `json:"team,omitempty"`
}

// SubmitWordRequest plays a word for the player's team
type SubmitWordRequest struct {
	Player string `json:"player"`
	Team   string `json:"team"`
	Word   string `json:"word"`
}

// Encode builds an outbound frame of this shape, used by clients
func Encode(msgType string, data any) ([]byte, error) {
	msg := Message{Type: msgType}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		msg.Data = raw
	}
	return json.Marshal(msg)
}
