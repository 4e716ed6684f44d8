// Package arena coordinates two-player chess rooms: matchmaking, turn
// arbitration, ordered broadcasts and the reset lifecycle.
package arena

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/rules"
	"github.com/park285/cheese-arena/pkg/arenaproto"
)

var (
	ErrStopped        = errors.New("coordinator stopped")
	ErrUnknownEvent   = errors.New("unknown event type")
	ErrMalformedEvent = errors.New("malformed event")
	ErrDuplicateRoom  = errors.New("room already registered")
	ErrEnginePanic    = errors.New("rules engine panic")
)

// Sink delivers outbound events to one connection. Send must not block.
type Sink interface {
	Send(evt arenaproto.Event) error
}

// Recorder receives every finished game.
type Recorder interface {
	Record(ctx context.Context, rec arenaproto.GameRecord) error
}

// Texts renders human-readable messages by key.
type Texts interface {
	Render(key string, data any) (string, error)
}

// Options configures a Coordinator. Zero values fall back to defaults.
type Options struct {
	ResetDelay    time.Duration
	RoomLimit     int
	QueueSize     int
	RecordTimeout time.Duration
	Engines       rules.Factory
	Scheduler     Scheduler
	Recorder      Recorder
	Texts         Texts
	Logger        *zap.Logger
	Clock         func() time.Time
}

const (
	defaultResetDelay    = 5 * time.Second
	defaultQueueSize     = 256
	defaultRecordTimeout = 5 * time.Second
)

func (o Options) withDefaults() Options {
	if o.ResetDelay <= 0 {
		o.ResetDelay = defaultResetDelay
	}
	if o.QueueSize <= 0 {
		o.QueueSize = defaultQueueSize
	}
	if o.RecordTimeout <= 0 {
		o.RecordTimeout = defaultRecordTimeout
	}
	if o.Engines == nil {
		o.Engines = rules.New
	}
	if o.Scheduler == nil {
		o.Scheduler = TimerScheduler{}
	}
	if o.Logger == nil {
		o.Logger = obslog.L()
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}

// Coordinator owns every room and connection. All state changes happen on
// the goroutine running Run, one queued event at a time.
type Coordinator struct {
	opts     Options
	log      *zap.Logger
	registry *Registry
	conns    map[string]*Connection
	events   chan func()
	done     chan struct{}
	validate *validator.Validate
}

func NewCoordinator(opts Options) *Coordinator {
	opts = opts.withDefaults()
	return &Coordinator{
		opts:     opts,
		log:      opts.Logger,
		registry: NewRegistry(),
		conns:    make(map[string]*Connection),
		events:   make(chan func(), opts.QueueSize),
		done:     make(chan struct{}),
		validate: newMoveValidator(),
	}
}

// Registry exposes the room registry for read-only inspection.
func (c *Coordinator) Registry() *Registry { return c.registry }

// Run processes events until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) error {
	defer close(c.done)
	c.log.Info("arena_start",
		zap.Duration("reset_delay", c.opts.ResetDelay),
		zap.Int("room_limit", c.opts.RoomLimit),
	)
	for {
		select {
		case <-ctx.Done():
			c.log.Info("arena_stop", zap.Int("rooms", c.registry.Len()), zap.Int("connections", len(c.conns)))
			return ctx.Err()
		case fn := <-c.events:
			fn()
		}
	}
}

func (c *Coordinator) enqueue(ctx context.Context, fn func()) error {
	select {
	case <-c.done:
		return ErrStopped
	default:
	}
	select {
	case c.events <- fn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrStopped
	}
}

// Connect registers sink as a new participant and queues matchmaking.
// The returned id identifies the connection in later calls.
func (c *Coordinator) Connect(ctx context.Context, sink Sink) (string, error) {
	conn := &Connection{ID: uuid.NewString(), Seat: SeatUnassigned, sink: sink}
	if err := c.enqueue(ctx, func() { c.handleConnect(conn) }); err != nil {
		return "", err
	}
	return conn.ID, nil
}

// Disconnect is terminal for the connection.
func (c *Coordinator) Disconnect(ctx context.Context, connID string) error {
	return c.enqueue(ctx, func() { c.handleDisconnect(connID) })
}

func (c *Coordinator) SubmitMove(ctx context.Context, connID string, mv arenaproto.Move) error {
	return c.enqueue(ctx, func() { c.submit(connID, mv) })
}

func (c *Coordinator) Restart(ctx context.Context, connID string) error {
	return c.enqueue(ctx, func() { c.handleRestart(connID) })
}

// Dispatch routes a decoded inbound frame.
func (c *Coordinator) Dispatch(ctx context.Context, connID string, evt arenaproto.Event) error {
	switch evt.Type {
	case arenaproto.TypeMove:
		var mv arenaproto.Move
		if err := evt.Decode(&mv); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		return c.SubmitMove(ctx, connID, mv)
	case arenaproto.TypeRestartGame:
		return c.Restart(ctx, connID)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, evt.Type)
	}
}

// Rooms returns a snapshot of every room, taken on the coordinator loop.
func (c *Coordinator) Rooms(ctx context.Context) ([]arenaproto.RoomSnapshot, error) {
	reply := make(chan []arenaproto.RoomSnapshot, 1)
	err := c.enqueue(ctx, func() {
		rooms := c.registry.List()
		out := make([]arenaproto.RoomSnapshot, 0, len(rooms))
		for _, room := range rooms {
			out = append(out, room.snapshot())
		}
		reply <- out
	})
	if err != nil {
		return nil, err
	}
	select {
	case out := <-reply:
		return out, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrStopped
	}
}

func (c *Coordinator) handleConnect(conn *Connection) {
	c.conns[conn.ID] = conn
	seat := c.assign(conn)
	c.log.Debug("conn_open", zap.String("conn_id", conn.ID), zap.String("seat", string(seat)), zap.String("room_id", conn.RoomID))
}

func (c *Coordinator) handleDisconnect(connID string) {
	conn, ok := c.conns[connID]
	if !ok {
		return
	}
	delete(c.conns, connID)
	c.log.Debug("conn_close", zap.String("conn_id", connID), zap.String("room_id", conn.RoomID))
	if conn.RoomID == "" {
		return
	}
	room, ok := c.registry.Get(conn.RoomID)
	if !ok {
		return
	}
	switch seat := room.SeatOf(connID); seat {
	case SeatSpectator:
		room.removeSpectator(connID)
	case SeatWhite, SeatBlack:
		c.teardown(room, seat)
	}
}

// teardown destroys room after a seated player left. Survivors are detached.
func (c *Coordinator) teardown(room *Room, leaver Seat) {
	c.registry.Remove(room.ID)
	room.generation++
	reason := c.text("room.closed", map[string]any{"Seat": string(leaver)}, "Your opponent disconnected.")
	closed := c.outbound(arenaproto.TypeRoomClosed, arenaproto.RoomClosed{Reason: reason})
	for _, id := range room.Members() {
		conn, ok := c.conns[id]
		if !ok {
			continue
		}
		c.send(conn, closed)
		conn.RoomID = ""
		conn.Seat = SeatUnassigned
	}
	c.log.Info("room_teardown",
		zap.String("room_id", room.ID),
		zap.String("leaver", string(leaver)),
		zap.String("status", string(room.Status)),
		zap.Int("spectators", len(room.Spectators)),
	)
}

func (c *Coordinator) handleRestart(connID string) {
	conn, ok := c.conns[connID]
	if !ok {
		return
	}
	room, ok := c.registry.Get(conn.RoomID)
	if !ok {
		return
	}
	seat := room.SeatOf(connID)
	if seat != SeatWhite && seat != SeatBlack {
		c.log.Debug("restart_ignored", zap.String("conn_id", connID), zap.String("seat", string(seat)))
		return
	}
	c.resetRoom(room, "restart")
}

func (c *Coordinator) send(conn *Connection, evt arenaproto.Event) {
	if conn.sink == nil {
		return
	}
	if err := conn.sink.Send(evt); err != nil {
		c.log.Debug("send_failed", zap.String("conn_id", conn.ID), zap.String("type", evt.Type), zap.Error(err))
	}
}

// broadcast delivers evt to every member of room in seat order.
func (c *Coordinator) broadcast(room *Room, evt arenaproto.Event) {
	for _, id := range room.Members() {
		if conn, ok := c.conns[id]; ok {
			c.send(conn, evt)
		}
	}
}

func (c *Coordinator) outbound(typ string, payload any) arenaproto.Event {
	evt, err := arenaproto.NewEvent(typ, payload)
	if err != nil {
		c.log.Error("event_encode_failed", zap.String("type", typ), zap.Error(err))
		return arenaproto.Event{Type: typ}
	}
	return evt
}

func (c *Coordinator) text(key string, data any, fallback string) string {
	if c.opts.Texts == nil {
		return fallback
	}
	out, err := c.opts.Texts.Render(key, data)
	if err != nil {
		c.log.Warn("text_render_failed", zap.String("key", key), zap.Error(err))
		return fallback
	}
	return out
}
