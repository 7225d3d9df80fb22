package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/weiawesome/chat-relay/internal/audit"
	"github.com/weiawesome/chat-relay/internal/domain"
	"github.com/weiawesome/chat-relay/internal/store"
	"github.com/weiawesome/chat-relay/pkg/log"
	"github.com/weiawesome/chat-relay/pkg/pubsub"
	"golang.org/x/sync/singleflight"
)

// Options tunes a RoomEngine. Zero values fall back to sane defaults.
type Options struct {
	Policy            domain.CounterPolicy
	ChangeRoomRetries int
	OpTimeout         time.Duration
	Events            pubsub.Publisher
	Now               func() time.Time
}

type roomEngine struct {
	messages store.MessageStore
	members  store.MembershipStore
	counter  store.CounterStore
	gateway  Gateway
	events   pubsub.Publisher

	policy    domain.CounterPolicy
	retries   int
	opTimeout time.Duration
	now       func() time.Time

	sf singleflight.Group
	// generations counts appends per room so coalesced reads never span a write.
	generations sync.Map // room -> *atomic.Uint64
}

func NewRoomEngine(
	messages store.MessageStore,
	members store.MembershipStore,
	counter store.CounterStore,
	gateway Gateway,
	opts Options,
) RoomEngine {
	e := &roomEngine{
		messages:  messages,
		members:   members,
		counter:   counter,
		gateway:   gateway,
		events:    opts.Events,
		policy:    opts.Policy,
		retries:   opts.ChangeRoomRetries,
		opTimeout: opts.OpTimeout,
		now:       opts.Now,
	}
	if e.events == nil {
		e.events = pubsub.Discard{}
	}
	if e.policy == "" {
		e.policy = domain.PolicyPerMembership
	}
	if e.retries < 0 {
		e.retries = 0
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

func (e *roomEngine) JoinRoom(ctx context.Context, sessionID, room string) (bool, error) {
	if err := validate(sessionID, room); err != nil {
		return false, err
	}
	ctx, cancel := e.bound(ctx)
	defer cancel()

	added, err := e.join(ctx, sessionID, room, true)
	if err != nil {
		return false, err
	}
	if added {
		audit.Log(ctx, audit.ActionJoinRoom, sessionID, room, "session joined room")
	}
	return added, nil
}

func (e *roomEngine) LeaveRoom(ctx context.Context, sessionID, room string) (bool, error) {
	if err := validate(sessionID, room); err != nil {
		return false, err
	}
	ctx, cancel := e.bound(ctx)
	defer cancel()

	removed, err := e.leave(ctx, sessionID, room, true)
	if err != nil {
		return false, err
	}
	if removed {
		audit.Log(ctx, audit.ActionLeaveRoom, sessionID, room, "session left room")
	}
	return removed, nil
}

// ChangeRoom leaves oldRoom and then joins newRoom. The two steps are not
// atomic; if the join keeps failing after the leave went through, the session
// is left in neither room and a reconciliation entry is logged.
func (e *roomEngine) ChangeRoom(ctx context.Context, sessionID, oldRoom, newRoom string) error {
	if err := validate(sessionID, oldRoom); err != nil {
		return err
	}
	if newRoom == "" {
		return fmt.Errorf("%w: new room is empty", domain.ErrInvalidArgument)
	}
	ctx, cancel := e.bound(ctx)
	defer cancel()

	if _, err := e.leave(ctx, sessionID, oldRoom, false); err != nil {
		return err
	}

	// Once the insert lands, later attempts only retry what admit still owes.
	var (
		change   store.MembershipChange
		inserted bool
		err      error
	)
	for attempt := 0; attempt <= e.retries; attempt++ {
		if !inserted {
			if change, err = e.members.Add(ctx, newRoom, sessionID); err == nil {
				inserted = true
			}
		}
		if inserted {
			if err = e.admit(ctx, sessionID, newRoom, change, false); err == nil {
				break
			}
		}
		l := log.Ctx(ctx)
		l.Warn().Err(err).
			Str(log.FieldSessionID, sessionID).
			Str(log.FieldRoom, newRoom).
			Int("attempt", attempt+1).
			Msg("change room: join failed")
	}
	if err != nil {
		audit.LogWithDetail(ctx, audit.ActionReconcile, sessionID, newRoom,
			"left "+oldRoom, "session left its room but could not join the new one")
		return err
	}

	e.deliver(ctx, sessionID, domain.NewRoomChangedEvent(newRoom))
	audit.LogWithDetail(ctx, audit.ActionChangeRoom, sessionID, newRoom, "from "+oldRoom, "session changed room")
	return nil
}

func (e *roomEngine) SendMessage(ctx context.Context, sessionID, username, room, text string) (*domain.ChatMessage, error) {
	if room == "" {
		return nil, fmt.Errorf("%w: room is empty", domain.ErrInvalidArgument)
	}
	ctx, cancel := e.bound(ctx)
	defer cancel()

	msg := domain.NewChatMessage(username, text, room, e.now())
	err := e.messages.Append(ctx, room, msg)
	// A failed append may still have been written.
	e.generation(room).Add(1)
	if err != nil {
		return nil, err
	}

	members, err := e.members.Members(ctx, room)
	if err != nil {
		return nil, err
	}
	delivered := e.gateway.DeliverToRoom(room, members, domain.NewMessageEvent(msg))

	l := log.Ctx(ctx)
	l.Debug().
		Str(log.FieldRoom, room).
		Str(log.FieldUsername, username).
		Int(log.FieldCount, delivered).
		Msg("message broadcast")

	e.publish(ctx, domain.EventReceiveMessage, room, msg)
	audit.Log(ctx, audit.ActionSendMessage, sessionID, room, "message sent")
	return msg, nil
}

func (e *roomEngine) GetLastN(ctx context.Context, room string, n int) ([]domain.ChatMessage, error) {
	if room == "" {
		return nil, fmt.Errorf("%w: room is empty", domain.ErrInvalidArgument)
	}
	if n <= 0 {
		return []domain.ChatMessage{}, nil
	}
	key := fmt.Sprintf("last:%d:%d:%s", n, e.generation(room).Load(), room)
	return e.history(ctx, key, func(ctx context.Context) ([]domain.ChatMessage, error) {
		return e.messages.RangeFromEnd(ctx, room, n)
	})
}

func (e *roomEngine) GetFullHistory(ctx context.Context, room string) ([]domain.ChatMessage, error) {
	if room == "" {
		return nil, fmt.Errorf("%w: room is empty", domain.ErrInvalidArgument)
	}
	key := fmt.Sprintf("all:%d:%s", e.generation(room).Load(), room)
	return e.history(ctx, key, func(ctx context.Context) ([]domain.ChatMessage, error) {
		return e.messages.RangeAll(ctx, room)
	})
}

// history coalesces identical concurrent reads. The shared fetch does not
// inherit any caller's cancellation; each caller stops waiting on its own
// context and gets its own copy of the result.
func (e *roomEngine) history(
	ctx context.Context,
	key string,
	fetch func(context.Context) ([]domain.ChatMessage, error),
) ([]domain.ChatMessage, error) {
	ctx, cancel := e.bound(ctx)
	defer cancel()

	ch := e.sf.DoChan(key, func() (interface{}, error) {
		shared, cancel := e.bound(context.WithoutCancel(ctx))
		defer cancel()
		return fetch(shared)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("read %s: %w: %w", key, domain.ErrStoreUnavailable, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		messages, ok := res.Val.([]domain.ChatMessage)
		if !ok {
			return nil, fmt.Errorf("unexpected result type from singleflight")
		}
		return slices.Clone(messages), nil
	}
}

func (e *roomEngine) generation(room string) *atomic.Uint64 {
	if g, ok := e.generations.Load(room); ok {
		return g.(*atomic.Uint64)
	}
	g, _ := e.generations.LoadOrStore(room, new(atomic.Uint64))
	return g.(*atomic.Uint64)
}

func (e *roomEngine) GetLoginCount(ctx context.Context) (int64, error) {
	ctx, cancel := e.bound(ctx)
	defer cancel()
	return e.counter.Get(ctx)
}

func (e *roomEngine) Members(ctx context.Context, room string) ([]string, error) {
	if room == "" {
		return nil, fmt.Errorf("%w: room is empty", domain.ErrInvalidArgument)
	}
	ctx, cancel := e.bound(ctx)
	defer cancel()
	return e.members.Members(ctx, room)
}

func (e *roomEngine) Disconnect(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("%w: session is empty", domain.ErrInvalidArgument)
	}
	ctx, cancel := e.bound(ctx)
	defer cancel()

	rooms, err := e.members.RoomsOf(ctx, sessionID)
	if err != nil {
		return err
	}

	var errs []error
	for _, room := range rooms {
		if _, err := e.leave(ctx, sessionID, room, false); err != nil {
			errs = append(errs, err)
		}
	}
	audit.LogWithDetail(ctx, audit.ActionDisconnect, sessionID, "",
		strconv.Itoa(len(rooms))+" rooms", "session disconnected")
	return errors.Join(errs...)
}

// join adds the session and moves the counter per policy. notify controls
// whether the caller gets a joined event.
func (e *roomEngine) join(ctx context.Context, sessionID, room string, notify bool) (bool, error) {
	change, err := e.members.Add(ctx, room, sessionID)
	if err != nil {
		return false, err
	}
	return change.Changed, e.admit(ctx, sessionID, room, change, notify)
}

// admit settles a membership insert: counter, ack and event stream. It does
// nothing when the session was already a member.
func (e *roomEngine) admit(ctx context.Context, sessionID, room string, change store.MembershipChange, notify bool) error {
	if !change.Changed {
		return nil
	}

	if e.countsJoin(change) {
		n, err := e.counter.Incr(ctx)
		if err != nil {
			return err
		}
		e.logCount(ctx, n)
	}

	if notify {
		e.deliver(ctx, sessionID, domain.NewJoinedEvent(room, sessionID))
	}
	e.publish(ctx, domain.EventJoined, room, map[string]string{"session_id": sessionID})
	return nil
}

func (e *roomEngine) leave(ctx context.Context, sessionID, room string, notify bool) (bool, error) {
	change, err := e.members.Remove(ctx, room, sessionID)
	if err != nil {
		return false, err
	}

	if e.countsLeave(change) {
		n, err := e.counter.DecrFloor(ctx)
		if err != nil {
			return change.Changed, err
		}
		e.logCount(ctx, n)
	}

	if !change.Changed {
		return false, nil
	}
	if notify {
		e.deliver(ctx, sessionID, domain.NewLeftEvent(room, sessionID))
	}
	e.publish(ctx, domain.EventLeft, room, map[string]string{"session_id": sessionID})
	return true, nil
}

func (e *roomEngine) countsJoin(change store.MembershipChange) bool {
	if e.policy == domain.PolicyPerSession {
		return change.SessionRooms == 1
	}
	return true
}

func (e *roomEngine) countsLeave(change store.MembershipChange) bool {
	switch e.policy {
	case domain.PolicyLegacy:
		return true
	case domain.PolicyPerSession:
		return change.Changed && change.SessionRooms == 0
	default:
		return change.Changed
	}
}

func (e *roomEngine) deliver(ctx context.Context, sessionID string, event *domain.Event) {
	err := e.gateway.Deliver(sessionID, event)
	if err == nil {
		return
	}
	l := log.Ctx(ctx)
	if errors.Is(err, domain.ErrSessionNotConnected) {
		l.Debug().Str(log.FieldSessionID, sessionID).Str("event", event.Type).Msg("session not connected locally")
		return
	}
	l.Warn().Err(err).Str(log.FieldSessionID, sessionID).Str("event", event.Type).Msg("failed to deliver event")
}

func (e *roomEngine) publish(ctx context.Context, eventType, room string, payload interface{}) {
	ev, err := pubsub.NewEvent(eventType, room, payload)
	if err == nil {
		err = e.events.Publish(ctx, pubsub.RoomChannel(room), ev)
	}
	if err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldRoom, room).Str("event", eventType).Msg("failed to publish event")
	}
}

func (e *roomEngine) logCount(ctx context.Context, n int64) {
	l := log.Ctx(ctx)
	l.Debug().Int64(log.FieldCount, n).Msg("login counter changed")
}

func (e *roomEngine) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.opTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.opTimeout)
}

func validate(sessionID, room string) error {
	if sessionID == "" {
		return fmt.Errorf("%w: session is empty", domain.ErrInvalidArgument)
	}
	if room == "" {
		return fmt.Errorf("%w: room is empty", domain.ErrInvalidArgument)
	}
	return nil
}
