package types

import (
	"time"
)

// Identity is the authenticated local user, resolved once at session
// creation and immutable for the session lifetime.
type Identity struct {
	Id          string `json:"_id"`
	Username    string `json:"username"`
	DisplayName string `json:"fullname,omitempty"`
	Email       string `json:"email,omitempty"`
}

// PresenceEntry is one peer currently holding an open channel.
type PresenceEntry struct {
	UserId   string `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

type MessageStatus string

const (
	StatusSent      MessageStatus = "Sent"
	StatusDelivered MessageStatus = "Delivered"
	StatusRead      MessageStatus = "Read"
)

// Rank orders statuses for the forward-only transition check. Unknown
// statuses rank below Sent.
func (s MessageStatus) Rank() int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	default:
		return 0
	}
}

func (s MessageStatus) Valid() bool {
	return s.Rank() > 0
}

// Message is one chat message. Id is assigned by the remote service once
// the message is accepted; it is empty on the payload of a local send.
type Message struct {
	Id      string        `json:"_id,omitempty"`
	From    string        `json:"from"`
	To      string        `json:"to"`
	Content string        `json:"content"`
	Status  MessageStatus `json:"status,omitempty"`
	ReadAt  *time.Time    `json:"readAt,omitempty"`
}

// Touches reports whether the message belongs to the conversation with
// peerId, as sender or recipient.
func (m Message) Touches(peerId string) bool {
	return m.From == peerId || m.To == peerId
}
