package chat

import (
	"log"
	"sync"

	"github.com/npezzotti/go-chatclient/internal/types"
	"github.com/samber/lo"
)

// PresenceTracker maintains the roster of other online identities. Each
// roster update from the channel carries the complete set and replaces the
// previous one wholesale; entries are kept in payload order.
type PresenceTracker struct {
	localId    string
	log        *log.Logger
	rosterLock sync.RWMutex
	roster     []types.PresenceEntry
}

func NewPresenceTracker(localId string, logger *log.Logger) *PresenceTracker {
	return &PresenceTracker{
		localId: localId,
		log:     logger,
	}
}

// Update replaces the roster with entries, dropping the local identity and
// any entry without a username.
func (pt *PresenceTracker) Update(entries []types.PresenceEntry) {
	filtered := lo.Filter(entries, func(e types.PresenceEntry, _ int) bool {
		return e.UserId != pt.localId && e.Username != ""
	})

	pt.rosterLock.Lock()
	pt.roster = filtered
	pt.rosterLock.Unlock()

	pt.log.Printf("roster updated, %d peer(s) online", len(filtered))
}

// Roster returns a copy of the current roster in arrival order.
func (pt *PresenceTracker) Roster() []types.PresenceEntry {
	pt.rosterLock.RLock()
	defer pt.rosterLock.RUnlock()

	out := make([]types.PresenceEntry, len(pt.roster))
	copy(out, pt.roster)
	return out
}

// Lookup finds a roster entry by user id.
func (pt *PresenceTracker) Lookup(userId string) (types.PresenceEntry, bool) {
	pt.rosterLock.RLock()
	defer pt.rosterLock.RUnlock()

	return lo.Find(pt.roster, func(e types.PresenceEntry) bool {
		return e.UserId == userId
	})
}
