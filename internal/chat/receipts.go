package chat

import (
	"log"
	"sync"

	"github.com/npezzotti/go-chatclient/internal/types"
)

// ReadReceiptCoordinator emits read acknowledgments for messages of the
// active conversation as they become visible. Emits are fire-and-forget:
// the store's status only changes when the corresponding
// message-status-update event comes back over the channel.
type ReadReceiptCoordinator struct {
	localId      string
	emitter      Emitter
	log          *log.Logger
	inflightLock sync.Mutex
	inflight     map[string]struct{}
}

func NewReadReceiptCoordinator(localId string, emitter Emitter, logger *log.Logger) *ReadReceiptCoordinator {
	return &ReadReceiptCoordinator{
		localId:  localId,
		emitter:  emitter,
		log:      logger,
		inflight: make(map[string]struct{}),
	}
}

// MaybeMarkRead requests a read receipt for msg. Own messages, already-read
// messages, unacknowledged messages without an id, and messages with a
// receipt already in flight are skipped, so repeat calls emit at most once.
// Returns whether an acknowledgment was emitted.
func (rc *ReadReceiptCoordinator) MaybeMarkRead(msg types.Message) bool {
	if msg.Id == "" || msg.From == rc.localId || msg.Status == types.StatusRead {
		return false
	}

	rc.inflightLock.Lock()
	if _, ok := rc.inflight[msg.Id]; ok {
		rc.inflightLock.Unlock()
		return false
	}
	rc.inflight[msg.Id] = struct{}{}
	rc.inflightLock.Unlock()

	if err := rc.emitter.Emit(EventMessageRead, MessageReadPayload{
		MessageId: msg.Id,
		ReaderId:  rc.localId,
	}); err != nil {
		rc.log.Printf("emit read receipt for %q: %v", msg.Id, err)
	}

	return true
}

// Acknowledged clears the in-flight marker once a status update for the
// message arrives over the channel.
func (rc *ReadReceiptCoordinator) Acknowledged(messageId string) {
	rc.inflightLock.Lock()
	defer rc.inflightLock.Unlock()

	delete(rc.inflight, messageId)
}
