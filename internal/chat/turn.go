// Package chat implements the earnings-call chat thread: the persisted
// per-(user, chat) turn history and the accumulator that drives one
// user-message/model-response cycle over it.
package chat

import "fmt"

// Role identifies who produced a turn. Only the three values below are
// valid; anything else is rejected at construction time.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Turn is one role-tagged message contribution. Turns are immutable once
// appended to a thread.
type Turn struct {
	Role    Role   `bson:"role" json:"role"`
	Content string `bson:"content" json:"content"`
}

// NewTurn rejects invalid roles instead of letting a bad tag reach the store.
func NewTurn(role Role, content string) (Turn, error) {
	if !role.Valid() {
		return Turn{}, fmt.Errorf("invalid role %q", role)
	}
	return Turn{Role: role, Content: content}, nil
}
