package chat

import (
	"sync"

	"github.com/npezzotti/go-chatclient/internal/types"
)

// ConversationSelector tracks which peer is the active conversation target.
// At most one peer is active; selecting a new peer never alters stored
// messages. Each selection bumps an epoch used to discard history results
// that resolve after the selection they were issued for is superseded.
type ConversationSelector struct {
	selLock sync.RWMutex
	active  *types.PresenceEntry
	epoch   int
}

func NewConversationSelector() *ConversationSelector {
	return &ConversationSelector{}
}

// Select makes peer the active conversation and returns the new selection
// epoch.
func (cs *ConversationSelector) Select(peer types.PresenceEntry) int {
	cs.selLock.Lock()
	defer cs.selLock.Unlock()

	cs.active = &peer
	cs.epoch++
	return cs.epoch
}

// Active returns the currently selected peer, if any.
func (cs *ConversationSelector) Active() (types.PresenceEntry, bool) {
	cs.selLock.RLock()
	defer cs.selLock.RUnlock()

	if cs.active == nil {
		return types.PresenceEntry{}, false
	}
	return *cs.active, true
}

// Current reports whether epoch is still the live selection epoch.
func (cs *ConversationSelector) Current(epoch int) bool {
	cs.selLock.RLock()
	defer cs.selLock.RUnlock()

	return cs.epoch == epoch
}
