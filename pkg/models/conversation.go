package models

import "time"

// Role of a conversation participant
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationTurn is one entry of a session's append-only history
type ConversationTurn struct {
	CreatedAt    time.Time `json:"created_at"`
	Role         Role      `json:"role"`
	Content      string    `json:"content"`
	CitedSources []string  `json:"cited_sources,omitempty"` // assistant turns only
}
