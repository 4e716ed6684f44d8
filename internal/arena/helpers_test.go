package arena

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/park285/cheese-arena/internal/msgcat"
	"github.com/park285/cheese-arena/internal/rules"
	"github.com/park285/cheese-arena/pkg/arenaproto"
)

type recordingSink struct {
	mu     sync.Mutex
	events []arenaproto.Event
}

func (s *recordingSink) Send(evt arenaproto.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	return nil
}

func (s *recordingSink) all() []arenaproto.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]arenaproto.Event(nil), s.events...)
}

func (s *recordingSink) types() []string {
	evts := s.all()
	out := make([]string, 0, len(evts))
	for _, e := range evts {
		out = append(out, e.Type)
	}
	return out
}

// drain returns the event types received since the last drain.
func (s *recordingSink) drain() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Type)
	}
	s.events = nil
	return out
}

func (s *recordingSink) last(typ string) (arenaproto.Event, bool) {
	evts := s.all()
	for i := len(evts) - 1; i >= 0; i-- {
		if evts[i].Type == typ {
			return evts[i], true
		}
	}
	return arenaproto.Event{}, false
}

type manualScheduler struct {
	mu      sync.Mutex
	pending []func()
	delays  []time.Duration
}

func (m *manualScheduler) AfterFunc(d time.Duration, f func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, f)
	m.delays = append(m.delays, d)
}

func (m *manualScheduler) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// fireAll runs every armed timer callback.
func (m *manualScheduler) fireAll() {
	m.mu.Lock()
	fns := m.pending
	m.pending = nil
	m.mu.Unlock()
	for _, f := range fns {
		f()
	}
}

type memRecorder struct {
	mu   sync.Mutex
	recs []arenaproto.GameRecord
	got  chan struct{}
}

func newMemRecorder() *memRecorder { return &memRecorder{got: make(chan struct{}, 16)} }

func (r *memRecorder) Record(_ context.Context, rec arenaproto.GameRecord) error {
	r.mu.Lock()
	r.recs = append(r.recs, rec)
	r.mu.Unlock()
	r.got <- struct{}{}
	return nil
}

type harness struct {
	t     *testing.T
	c     *Coordinator
	sched *manualScheduler
	rec   *memRecorder
	ctx   context.Context
}

func newHarness(t *testing.T, mutate ...func(*Options)) *harness {
	t.Helper()
	cat, err := msgcat.New("")
	require.NoError(t, err)
	h := &harness{t: t, sched: &manualScheduler{}, rec: newMemRecorder()}
	opts := Options{
		ResetDelay: 5 * time.Second,
		Scheduler:  h.sched,
		Recorder:   h.rec,
		Texts:      cat,
	}
	for _, fn := range mutate {
		fn(&opts)
	}
	h.c = NewCoordinator(opts)
	ctx, cancel := context.WithCancel(context.Background())
	h.ctx = ctx
	done := make(chan struct{})
	go func() {
		_ = h.c.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

// sync blocks until every previously queued event has been handled.
func (h *harness) sync() []arenaproto.RoomSnapshot {
	h.t.Helper()
	rooms, err := h.c.Rooms(h.ctx)
	require.NoError(h.t, err)
	return rooms
}

func (h *harness) connect() (string, *recordingSink) {
	h.t.Helper()
	sink := &recordingSink{}
	id, err := h.c.Connect(h.ctx, sink)
	require.NoError(h.t, err)
	h.sync()
	return id, sink
}

func (h *harness) move(id, uci string) {
	h.t.Helper()
	mv := arenaproto.Move{From: uci[0:2], To: uci[2:4]}
	if len(uci) > 4 {
		mv.Promotion = uci[4:]
	}
	require.NoError(h.t, h.c.SubmitMove(h.ctx, id, mv))
	h.sync()
}

func (h *harness) room(id string) *Room {
	h.t.Helper()
	h.sync()
	room, ok := h.c.Registry().Get(id)
	require.True(h.t, ok, "room %s", id)
	return room
}

// pair connects white and black and clears their inboxes.
func (h *harness) pair() (white string, ws *recordingSink, black string, bs *recordingSink) {
	h.t.Helper()
	white, ws = h.connect()
	black, bs = h.connect()
	ws.drain()
	bs.drain()
	return white, ws, black, bs
}

// scriptedEngine replays canned results and can be told to panic.
type scriptedEngine struct {
	rules.Engine
	panicOnApply bool
	legalMoves   int
}

func (s *scriptedEngine) Apply(spec rules.MoveSpec) (rules.MoveResult, error) {
	if s.panicOnApply {
		panic("engine exploded")
	}
	return s.Engine.Apply(spec)
}

func (s *scriptedEngine) LegalMoveCount() int {
	if s.legalMoves >= 0 {
		return s.legalMoves
	}
	return s.Engine.LegalMoveCount()
}

// fromPosition builds engines that start from fen instead of the initial position.
func fromPosition(t *testing.T, fen string) rules.Factory {
	t.Helper()
	require.NoError(t, rules.New().LoadPosition(fen))
	return func() rules.Engine {
		e := rules.New()
		_ = e.LoadPosition(fen)
		return e
	}
}
