package model

// Team is one side of the match. Members are in turn order (join order).
type Team struct {
	Name       string
	Members    []PlayerID
	Lives      int
	Eliminated bool
}

// Alive reports whether the team still takes turns
func (t *Team) Alive() bool {
	return !t.Eliminated
}

// HasMember reports whether the player is on this team
func (t *Team) HasMember(id PlayerID) bool {
	return t.indexOf(id) >= 0
}

func (t *Team) indexOf(id PlayerID) int {
	for i, m := range t.Members {
		if m == id {
			return i
		}
	}
	return -1
}

// RemoveMember drops the player from the member list, keeping the order of the rest.
// Returns false if the player was not a member.
func (t *Team) RemoveMember(id PlayerID) bool {
	i := t.indexOf(id)
	if i < 0 {
		return false
	}
	t.Members = append(t.Members[:i:i], t.Members[i+1:]...)
	return true
}

// TeamView is the wire form of a team. Members are display names.
type TeamView struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
	Lives   int      `json:"lives"`
	Alive   bool     `json:"alive"`
}
