package chat

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/npezzotti/go-chatclient/internal/testutil"
	"github.com/npezzotti/go-chatclient/internal/types"
	"github.com/stretchr/testify/assert"
)

type recordedEmit struct {
	event string
	data  any
}

type fakeEmitter struct {
	mu      sync.Mutex
	emitted []recordedEmit
	err     error
}

func (f *fakeEmitter) Emit(event string, data any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.emitted = append(f.emitted, recordedEmit{event: event, data: data})
	return f.err
}

func (f *fakeEmitter) emits() []recordedEmit {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]recordedEmit, len(f.emitted))
	copy(out, f.emitted)
	return out
}

func TestMaybeMarkRead(t *testing.T) {
	msg := types.Message{Id: "m1", From: "u2", To: "u1", Content: "hello", Status: types.StatusDelivered}

	t.Run("emits read acknowledgment", func(t *testing.T) {
		emitter := &fakeEmitter{}
		rc := NewReadReceiptCoordinator("u1", emitter, testutil.TestLogger(t))

		assert.True(t, rc.MaybeMarkRead(msg), "expected acknowledgment to be emitted")

		emits := emitter.emits()
		assert.Len(t, emits, 1, "expected exactly one emit")
		assert.Equal(t, EventMessageRead, emits[0].event, "expected a message-read event")
		assert.Equal(t, MessageReadPayload{MessageId: "m1", ReaderId: "u1"}, emits[0].data,
			"expected payload to carry message id and reader id")
	})

	t.Run("idempotent while in flight", func(t *testing.T) {
		emitter := &fakeEmitter{}
		rc := NewReadReceiptCoordinator("u1", emitter, testutil.TestLogger(t))

		assert.True(t, rc.MaybeMarkRead(msg), "expected first call to emit")
		assert.False(t, rc.MaybeMarkRead(msg), "expected repeat call to be skipped")
		assert.Len(t, emitter.emits(), 1, "expected at most one outbound acknowledgment")
	})

	t.Run("skips own messages", func(t *testing.T) {
		emitter := &fakeEmitter{}
		rc := NewReadReceiptCoordinator("u1", emitter, testutil.TestLogger(t))

		own := types.Message{Id: "m2", From: "u1", To: "u2", Content: "hi", Status: types.StatusDelivered}
		assert.False(t, rc.MaybeMarkRead(own), "expected own message to be skipped")
		assert.Empty(t, emitter.emits(), "expected no emits for own messages")
	})

	t.Run("skips already read messages", func(t *testing.T) {
		emitter := &fakeEmitter{}
		rc := NewReadReceiptCoordinator("u1", emitter, testutil.TestLogger(t))

		readAt := Now()
		read := types.Message{Id: "m3", From: "u2", To: "u1", Content: "hi", Status: types.StatusRead, ReadAt: &readAt}
		assert.False(t, rc.MaybeMarkRead(read), "expected already-read message to be skipped")
		assert.Empty(t, emitter.emits(), "expected no emits for read messages")
	})

	t.Run("skips messages without an id", func(t *testing.T) {
		emitter := &fakeEmitter{}
		rc := NewReadReceiptCoordinator("u1", emitter, testutil.TestLogger(t))

		unacked := types.Message{From: "u2", To: "u1", Content: "hi", Status: types.StatusSent}
		assert.False(t, rc.MaybeMarkRead(unacked), "expected message without id to be skipped")
	})

	t.Run("emit failure is absorbed", func(t *testing.T) {
		emitter := &fakeEmitter{err: NewConnectionError("send queue full", nil)}
		rc := NewReadReceiptCoordinator("u1", emitter, testutil.TestLogger(t))

		assert.True(t, rc.MaybeMarkRead(msg), "expected the attempt to be made despite the error")
		assert.False(t, rc.MaybeMarkRead(msg), "expected no retry after a failed emit")
	})
}

func TestAcknowledged(t *testing.T) {
	emitter := &fakeEmitter{}
	rc := NewReadReceiptCoordinator("u1", emitter, testutil.TestLogger(t))

	msg := types.Message{Id: "m1", From: "u2", To: "u1", Content: "hello", Status: types.StatusDelivered}
	assert.True(t, rc.MaybeMarkRead(msg), "expected first call to emit")

	// Once the status update round-trips, the message is Read and stays
	// skipped even though the in-flight marker is gone.
	rc.Acknowledged("m1")
	readAt := Now()
	msg.Status = types.StatusRead
	msg.ReadAt = &readAt
	assert.False(t, rc.MaybeMarkRead(msg), "expected read message to be skipped after acknowledgment")
}

func Test_messageReadPayloadShape(t *testing.T) {
	raw, err := json.Marshal(MessageReadPayload{MessageId: "m1", ReaderId: "u1"})
	assert.NoError(t, err, "expected payload to serialize")
	assert.JSONEq(t, `{"messageId":"m1","readerId":"u1"}`, string(raw), "expected wire field names")
}
