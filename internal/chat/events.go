package chat

import (
	"encoding/json"
	"time"

	"github.com/npezzotti/go-chatclient/internal/types"
)

// Event names exchanged over the channel.
const (
	EventJoin           = "join"
	EventSendMessage    = "sendMessage"
	EventMessageRead    = "message-read"
	EventOnlineUsers    = "onlineUsers"
	EventReceiveMessage = "receiveMessage"
	EventMessageSent    = "messageSent"
	EventStatusUpdate   = "message-status-update"
)

// Envelope is the JSON frame carried on the channel in both directions.
// Id is a client-assigned correlation id on outbound frames.
type Envelope struct {
	Id    string          `json:"id,omitempty"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type JoinPayload struct {
	UserId   string `json:"userId"`
	Username string `json:"username"`
}

type SendMessagePayload struct {
	Content string `json:"content"`
	To      string `json:"to"`
	From    string `json:"from"`
}

type MessageReadPayload struct {
	MessageId string `json:"messageId"`
	ReaderId  string `json:"readerId"`
}

type StatusUpdatePayload struct {
	MessageId string              `json:"messageId"`
	Status    types.MessageStatus `json:"status"`
	ReadAt    *time.Time          `json:"readAt,omitempty"`
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
