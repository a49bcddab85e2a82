package chat

import (
	"log"
	"sync"
	"time"

	"github.com/npezzotti/go-chatclient/internal/types"
	"github.com/samber/lo"
)

// MessageStore is the ordered, deduplicated log of messages across all
// conversations in a session. It is append-only except for targeted status
// mutation; every consumer projects from it rather than holding a copy.
type MessageStore struct {
	log      *log.Logger
	msgsLock sync.RWMutex
	msgs     []types.Message
}

func NewMessageStore(logger *log.Logger) *MessageStore {
	return &MessageStore{
		log: logger,
	}
}

// AppendIncoming appends a live-received message to the end of the log.
func (ms *MessageStore) AppendIncoming(msg types.Message) {
	ms.msgsLock.Lock()
	defer ms.msgsLock.Unlock()

	ms.msgs = append(ms.msgs, msg)
}

// AppendSentConfirmation appends the remote acknowledgment of a local send.
// The confirmation is the sole record of the send; there is no optimistic
// local echo to reconcile against.
func (ms *MessageStore) AppendSentConfirmation(msg types.Message) {
	ms.msgsLock.Lock()
	defer ms.msgsLock.Unlock()

	ms.msgs = append(ms.msgs, msg)
}

// ApplyStatusUpdate mutates the status and readAt of the message with the
// given id in place, preserving its position. Status only moves forward
// (Sent → Delivered → Read); backward or repeated transitions are ignored.
// An unknown id is a no-op since updates may race a history replacement.
func (ms *MessageStore) ApplyStatusUpdate(messageId string, status types.MessageStatus, readAt *time.Time) bool {
	if !status.Valid() {
		ms.log.Printf("ignoring status update with unknown status %q", status)
		return false
	}

	ms.msgsLock.Lock()
	defer ms.msgsLock.Unlock()

	for i := range ms.msgs {
		if ms.msgs[i].Id != messageId {
			continue
		}

		if status.Rank() <= ms.msgs[i].Status.Rank() {
			return false
		}

		ms.msgs[i].Status = status
		if status == types.StatusRead {
			if readAt != nil {
				ms.msgs[i].ReadAt = readAt
			} else {
				now := Now()
				ms.msgs[i].ReadAt = &now
			}
		}
		return true
	}

	return false
}

// ReplaceConversation discards only the messages belonging to the
// conversation with peerId and splices in the provided ordered sequence.
// Other conversations keep their messages and relative order.
func (ms *MessageStore) ReplaceConversation(peerId string, msgs []types.Message) {
	ms.msgsLock.Lock()
	defer ms.msgsLock.Unlock()

	others := lo.Filter(ms.msgs, func(m types.Message, _ int) bool {
		return !m.Touches(peerId)
	})
	ms.msgs = append(others, msgs...)
}

// Conversation returns the ordered subsequence of messages in which peerId
// participates, as sender or recipient.
func (ms *MessageStore) Conversation(peerId string) []types.Message {
	ms.msgsLock.RLock()
	defer ms.msgsLock.RUnlock()

	return lo.Filter(ms.msgs, func(m types.Message, _ int) bool {
		return m.Touches(peerId)
	})
}

// All returns a copy of the full log across conversations.
func (ms *MessageStore) All() []types.Message {
	ms.msgsLock.RLock()
	defer ms.msgsLock.RUnlock()

	out := make([]types.Message, len(ms.msgs))
	copy(out, ms.msgs)
	return out
}

func (ms *MessageStore) Len() int {
	ms.msgsLock.RLock()
	defer ms.msgsLock.RUnlock()

	return len(ms.msgs)
}
