package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/npezzotti/go-chatclient/internal/auth"
	"github.com/npezzotti/go-chatclient/internal/config"
	"github.com/npezzotti/go-chatclient/internal/stats"
	"github.com/npezzotti/go-chatclient/internal/types"
)

const (
	statEventsReceived   = "EventsReceived"
	statEventsDropped    = "EventsDropped"
	statMessagesReceived = "MessagesReceived"
	statMessagesSent     = "MessagesSent"
	statReadReceiptsSent = "ReadReceiptsSent"
	statHistoryLoads     = "HistoryLoads"
	statHistoryErrors    = "HistoryErrors"
)

// SessionContext holds the authenticated identity and its opaque bearer
// token. It is constructed once and passed into every component; nothing
// does ambient credential lookups.
type SessionContext struct {
	Identity types.Identity
	Token    string
}

// HistoryFetcher loads past messages for a conversation pair from the
// external history store.
type HistoryFetcher interface {
	Load(ctx context.Context, localId, peerId string) ([]types.Message, error)
}

type historyResult struct {
	epoch    int
	peerId   string
	messages []types.Message
	err      error
}

// Session ties one identity's channel, roster, message log, selection and
// read-receipt state together. All event handling runs to completion on a
// single dispatch goroutine, so handlers never observe each other half
// applied; public accessors read through guarded snapshots.
type Session struct {
	id       string
	sctx     SessionContext
	cfg      *config.Config
	log      *log.Logger
	stats    stats.StatsProvider
	history  HistoryFetcher
	conn     Transport
	presence *PresenceTracker
	store    *MessageStore
	receipts *ReadReceiptCoordinator
	selector *ConversationSelector

	selectChan  chan types.PresenceEntry
	sendChan    chan string
	visibleChan chan types.Message
	historyChan chan historyResult
	updates     chan struct{}
	fetchLock   sync.Mutex
	cancelFetch context.CancelFunc
	stop        chan struct{}
	done        chan struct{}
	closeOnce   sync.Once
}

func NewSession(sctx SessionContext, cfg *config.Config, history HistoryFetcher, sp stats.StatsProvider, logger *log.Logger) (*Session, error) {
	if sctx.Identity.Id == "" || sctx.Token == "" {
		return nil, auth.ErrNoSession
	}

	s := &Session{
		id:          uuid.NewString(),
		sctx:        sctx,
		cfg:         cfg,
		log:         logger,
		stats:       sp,
		history:     history,
		presence:    NewPresenceTracker(sctx.Identity.Id, logger),
		store:       NewMessageStore(logger),
		selector:    NewConversationSelector(),
		selectChan:  make(chan types.PresenceEntry),
		sendChan:    make(chan string),
		visibleChan: make(chan types.Message),
		historyChan: make(chan historyResult, 1),
		updates:     make(chan struct{}, 1),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}

	for _, name := range []string{
		statEventsReceived,
		statEventsDropped,
		statMessagesReceived,
		statMessagesSent,
		statReadReceiptsSent,
		statHistoryLoads,
		statHistoryErrors,
	} {
		sp.RegisterMetric(name)
	}

	return s, nil
}

// Open dials the channel, announces presence and starts the dispatch loop.
// Fails with a ConnectionError if the transport cannot be established.
func (s *Session) Open() error {
	conn, err := Dial(s.cfg.ServerURL, s.sctx.Token, s.sctx.Identity, s.log)
	if err != nil {
		return err
	}

	s.conn = conn
	s.receipts = NewReadReceiptCoordinator(s.sctx.Identity.Id, conn, s.log)
	s.log.Printf("session %s open for %q", s.id, s.sctx.Identity.Username)

	go s.run()
	return nil
}

func (s *Session) run() {
	// Whether the loop exits through Close or because the transport
	// dropped, the session is over: wake every blocked caller and let
	// consumers of Updates and Done tear down.
	defer func() {
		close(s.updates)
		close(s.done)
	}()

	for {
		select {
		case env, ok := <-s.conn.Events():
			if !ok {
				s.log.Println("channel closed, session loop exiting")
				return
			}
			s.handleEvent(env)
		case peer := <-s.selectChan:
			s.handleSelect(peer)
		case content := <-s.sendChan:
			s.handleSend(content)
		case msg := <-s.visibleChan:
			if s.receipts.MaybeMarkRead(msg) {
				s.stats.Incr(statReadReceiptsSent)
			}
		case res := <-s.historyChan:
			s.handleHistory(res)
		case <-s.stop:
			return
		}
	}
}

func (s *Session) handleEvent(env *Envelope) {
	s.stats.Incr(statEventsReceived)

	switch env.Event {
	case EventOnlineUsers:
		var entries []types.PresenceEntry
		if err := json.Unmarshal(env.Data, &entries); err != nil {
			s.dropEvent(env.Event, err)
			return
		}
		s.presence.Update(entries)
	case EventReceiveMessage:
		msg, err := decodeMessage(env.Data)
		if err != nil {
			s.dropEvent(env.Event, err)
			return
		}
		s.store.AppendIncoming(msg)
		s.stats.Incr(statMessagesReceived)
	case EventMessageSent:
		msg, err := decodeMessage(env.Data)
		if err != nil {
			s.dropEvent(env.Event, err)
			return
		}
		s.store.AppendSentConfirmation(msg)
		s.stats.Incr(statMessagesSent)
	case EventStatusUpdate:
		var upd StatusUpdatePayload
		if err := json.Unmarshal(env.Data, &upd); err != nil {
			s.dropEvent(env.Event, err)
			return
		}
		if upd.MessageId == "" || !upd.Status.Valid() {
			s.dropEvent(env.Event, errors.New("missing required fields"))
			return
		}
		s.store.ApplyStatusUpdate(upd.MessageId, upd.Status, upd.ReadAt)
		s.receipts.Acknowledged(upd.MessageId)
	default:
		s.dropEvent(env.Event, errors.New("unknown event"))
		return
	}

	s.signalUpdate()
}

func decodeMessage(data json.RawMessage) (types.Message, error) {
	var msg types.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return types.Message{}, err
	}
	if msg.From == "" || msg.To == "" {
		return types.Message{}, errors.New("missing from or to")
	}

	return msg, nil
}

func (s *Session) dropEvent(event string, err error) {
	s.stats.Incr(statEventsDropped)
	s.log.Println("dropping event:", NewMalformedEventError(event, err))
}

func (s *Session) handleSelect(peer types.PresenceEntry) {
	epoch := s.selector.Select(peer)
	s.log.Printf("selected peer %q", peer.Username)

	s.fetchLock.Lock()
	if s.cancelFetch != nil {
		s.cancelFetch()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelFetch = cancel
	s.fetchLock.Unlock()

	go func() {
		msgs, err := s.history.Load(ctx, s.sctx.Identity.Id, peer.UserId)
		select {
		case s.historyChan <- historyResult{epoch: epoch, peerId: peer.UserId, messages: msgs, err: err}:
		case <-s.stop:
		case <-s.done:
		}
	}()

	s.signalUpdate()
}

func (s *Session) handleHistory(res historyResult) {
	if res.err != nil {
		// A fetch canceled by a newer selection is not a failure.
		if errors.Is(res.err, context.Canceled) {
			s.log.Printf("history load for peer %q canceled", res.peerId)
			return
		}

		s.stats.Incr(statHistoryErrors)
		s.log.Printf("history load for peer %q failed, keeping current messages: %v", res.peerId, res.err)
		return
	}

	if !s.selector.Current(res.epoch) {
		s.log.Printf("discarding stale history result for peer %q", res.peerId)
		return
	}

	s.store.ReplaceConversation(res.peerId, res.messages)
	s.stats.Incr(statHistoryLoads)
	s.signalUpdate()
}

func (s *Session) handleSend(content string) {
	peer, ok := s.selector.Active()
	if !ok {
		s.log.Println("no active conversation, dropping send")
		return
	}

	if err := s.conn.Emit(EventSendMessage, SendMessagePayload{
		Content: content,
		To:      peer.UserId,
		From:    s.sctx.Identity.Id,
	}); err != nil {
		s.log.Println("send message:", err)
	}
}

// Select makes peer the active conversation and loads its history.
func (s *Session) Select(peer types.PresenceEntry) {
	select {
	case s.selectChan <- peer:
	case <-s.stop:
	case <-s.done:
	}
}

// Send delivers content to the active peer. Blank messages are ignored.
func (s *Session) Send(content string) {
	if strings.TrimSpace(content) == "" {
		return
	}

	select {
	case s.sendChan <- content:
	case <-s.stop:
	case <-s.done:
	}
}

// MarkVisible signals that msg has been displayed to the local user,
// letting the read-receipt coordinator decide whether to acknowledge it.
func (s *Session) MarkVisible(msg types.Message) {
	select {
	case s.visibleChan <- msg:
	case <-s.stop:
	case <-s.done:
	}
}

func (s *Session) Identity() types.Identity {
	return s.sctx.Identity
}

func (s *Session) Roster() []types.PresenceEntry {
	return s.presence.Roster()
}

func (s *Session) FindPeer(userId string) (types.PresenceEntry, bool) {
	return s.presence.Lookup(userId)
}

func (s *Session) ActivePeer() (types.PresenceEntry, bool) {
	return s.selector.Active()
}

func (s *Session) Conversation(peerId string) []types.Message {
	return s.store.Conversation(peerId)
}

// ActiveConversation projects the message log onto the active peer, in
// log order. Nil when no conversation is selected.
func (s *Session) ActiveConversation() []types.Message {
	peer, ok := s.selector.Active()
	if !ok {
		return nil
	}

	return s.store.Conversation(peer.UserId)
}

// Updates is a coalescing signal fired after every applied state change,
// for consumers that re-render on change. Closed when the session ends.
func (s *Session) Updates() <-chan struct{} {
	return s.updates
}

// Done is closed when the dispatch loop exits, whether through Close or
// because the transport dropped mid-session. Connection loss is fatal to
// the session; the owner is expected to tear the view down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) signalUpdate() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}

// Close tears down the channel and stops the dispatch loop, waiting for it
// to exit. No callbacks fire after Close returns. Idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.fetchLock.Lock()
		if s.cancelFetch != nil {
			s.cancelFetch()
		}
		s.fetchLock.Unlock()

		close(s.stop)
		if s.conn == nil {
			return
		}

		s.conn.Close()
		<-s.done
		s.log.Printf("session %s closed", s.id)
	})
}
