package models

import "time"

// ClientStatus is the engagement classification of a client.
// Transitions are forward-only; StatusRejected is terminal.
type ClientStatus string

const (
	StatusNew        ClientStatus = "new"
	StatusContacted  ClientStatus = "contacted"
	StatusEngaged    ClientStatus = "engaged"
	StatusInterested ClientStatus = "interested"
	StatusRejected   ClientStatus = "rejected"
)

// Direction marks who authored a message.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Client represents one end user on one platform. The pair
// (Platform, PlatformID) is unique.
type Client struct {
	ID           int64        `json:"id"`
	Platform     string       `json:"platform"`
	PlatformID   string       `json:"platform_id"`
	Username     string       `json:"username"`
	FirstName    string       `json:"first_name"`
	LastName     string       `json:"last_name"`
	Status       ClientStatus `json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
	LastActivity time.Time    `json:"last_activity"`
}

// Message is a single sent or received message, owned by its client.
type Message struct {
	ID                string    `json:"id"`
	ClientID          int64     `json:"client_id"`
	Direction         Direction `json:"direction"`
	Content           string    `json:"content"`
	PlatformMessageID string    `json:"platform_message_id,omitempty"`
	ThreadID          string    `json:"thread_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// Account activity action types.
const (
	ActionMessageSent = "message_sent"
	ActionLogin       = "login"
)

// AccountActivity is an append-only sample of a rate-relevant action
// performed by a platform account. Used to rebuild rate counters after
// a restart.
type AccountActivity struct {
	ID          int64     `json:"id"`
	Platform    string    `json:"platform"`
	AccountName string    `json:"account_name"`
	ActionType  string    `json:"action_type"`
	Details     string    `json:"details,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// UserProfile holds the display-name fields a transport can resolve
// for a platform user.
type UserProfile struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Generator roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ContextTurn is one role-tagged entry supplied to the response generator.
type ContextTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ContextFromMessages maps stored messages (oldest-first) into
// generator turns: inbound becomes a user turn, outbound an assistant turn.
func ContextFromMessages(messages []*Message) []ContextTurn {
	turns := make([]ContextTurn, 0, len(messages))
	for _, msg := range messages {
		role := RoleUser
		if msg.Direction == DirectionOutbound {
			role = RoleAssistant
		}
		turns = append(turns, ContextTurn{Role: role, Content: msg.Content})
	}
	return turns
}
