package chat

import (
	"testing"

	"github.com/npezzotti/go-chatclient/internal/testutil"
	"github.com/npezzotti/go-chatclient/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestPresenceTracker_Update(t *testing.T) {
	t.Run("filters local identity", func(t *testing.T) {
		pt := NewPresenceTracker("u1", testutil.TestLogger(t))

		pt.Update([]types.PresenceEntry{
			{UserId: "u1", Username: "alice"},
			{UserId: "u2", Username: "bob"},
		})

		roster := pt.Roster()
		assert.Len(t, roster, 1, "expected only the peer in the roster")
		assert.Equal(t, "u2", roster[0].UserId, "expected the local identity to be filtered out")
	})

	t.Run("filters empty usernames", func(t *testing.T) {
		pt := NewPresenceTracker("u1", testutil.TestLogger(t))

		pt.Update([]types.PresenceEntry{
			{UserId: "u2", Username: ""},
			{UserId: "u3", Username: "carol"},
		})

		roster := pt.Roster()
		assert.Len(t, roster, 1, "expected entry without username to be dropped")
		assert.Equal(t, "u3", roster[0].UserId, "expected the named peer to remain")
	})

	t.Run("replaces wholesale in payload order", func(t *testing.T) {
		pt := NewPresenceTracker("u1", testutil.TestLogger(t))

		pt.Update([]types.PresenceEntry{
			{UserId: "u2", Username: "bob"},
			{UserId: "u3", Username: "carol"},
		})
		pt.Update([]types.PresenceEntry{
			{UserId: "u4", Username: "dave"},
			{UserId: "u3", Username: "carol"},
		})

		roster := pt.Roster()
		assert.Len(t, roster, 2, "expected roster to be fully replaced, not merged")
		assert.Equal(t, "u4", roster[0].UserId, "expected payload order to be preserved")
		assert.Equal(t, "u3", roster[1].UserId, "expected payload order to be preserved")
	})

	t.Run("empty update clears roster", func(t *testing.T) {
		pt := NewPresenceTracker("u1", testutil.TestLogger(t))

		pt.Update([]types.PresenceEntry{{UserId: "u2", Username: "bob"}})
		pt.Update(nil)

		assert.Empty(t, pt.Roster(), "expected roster to be cleared by an empty update")
	})
}

func TestPresenceTracker_Lookup(t *testing.T) {
	pt := NewPresenceTracker("u1", testutil.TestLogger(t))
	pt.Update([]types.PresenceEntry{
		{UserId: "u2", Username: "bob", Email: "bob@example.com"},
	})

	entry, ok := pt.Lookup("u2")
	assert.True(t, ok, "expected to find u2 in the roster")
	assert.Equal(t, "bob", entry.Username, "expected the matching entry")

	_, ok = pt.Lookup("u9")
	assert.False(t, ok, "expected lookup of unknown id to fail")
}
