package arena

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/rules"
	"github.com/park285/cheese-arena/pkg/arenaproto"
)

func TestPairingAssignsWhiteThenBlack(t *testing.T) {
	h := newHarness(t)

	_, ws := h.connect()
	require.Equal(t, []string{
		arenaproto.TypePlayerRole,
		arenaproto.TypeWaiting,
		arenaproto.TypeBoardState,
	}, ws.drain())
	role, _ := ws.last(arenaproto.TypePlayerRole)
	require.Equal(t, "w", role.Text())

	_, bs := h.connect()
	require.Equal(t, []string{
		arenaproto.TypePlayerRole,
		arenaproto.TypeBoardState,
		arenaproto.TypeMessage,
	}, bs.types())
	role, _ = bs.last(arenaproto.TypePlayerRole)
	require.Equal(t, "b", role.Text())
	board, _ := bs.last(arenaproto.TypeBoardState)
	require.Equal(t, rules.StartFEN, board.Text())

	require.Equal(t, []string{arenaproto.TypeBoardState, arenaproto.TypeMessage}, ws.drain())

	rooms := h.sync()
	require.Len(t, rooms, 1)
	require.Equal(t, string(StatusActive), rooms[0].Status)
}

func TestQuietOpeningBroadcastsBoardOnly(t *testing.T) {
	h := newHarness(t)
	white, ws, black, bs := h.pair()

	h.move(white, "e2e4")
	h.move(black, "e7e5")
	h.move(white, "g1f3")

	for _, sink := range []*recordingSink{ws, bs} {
		evts := sink.all()
		require.Len(t, evts, 3)
		seen := map[string]bool{}
		for _, e := range evts {
			require.Equal(t, arenaproto.TypeBoardState, e.Type)
			require.False(t, seen[e.Text()], "position repeated")
			seen[e.Text()] = true
		}
	}
}

func TestCheckmateEndsGameAndResetsAfterDelay(t *testing.T) {
	h := newHarness(t)
	white, ws, black, bs := h.pair()

	h.move(white, "f2f3")
	h.move(black, "e7e5")
	h.move(white, "g2g4")
	ws.drain()
	bs.drain()
	h.move(black, "d8h4")

	require.Equal(t, []string{arenaproto.TypeBoardState, arenaproto.TypeGameOver}, ws.drain())
	over, ok := bs.last(arenaproto.TypeGameOver)
	require.True(t, ok)
	var payload arenaproto.GameOver
	require.NoError(t, over.Decode(&payload))
	require.Equal(t, arenaproto.GameOver{Winner: "Black", Reason: "Checkmate"}, payload)
	bs.drain()

	room := h.c.registry.List()[0]
	require.Equal(t, StatusOver, h.room(room.ID).Status)
	require.Equal(t, 1, h.sched.count())
	require.Equal(t, []time.Duration{5 * time.Second}, h.sched.delays)

	// nothing is accepted while Over
	h.move(white, "a2a3")
	require.Empty(t, ws.drain())
	require.Empty(t, bs.drain())

	h.sched.fireAll()
	h.sync()
	require.Equal(t, []string{
		arenaproto.TypeBoardState,
		arenaproto.TypeClearCheck,
		arenaproto.TypeMessage,
	}, ws.drain())
	board, _ := bs.last(arenaproto.TypeBoardState)
	require.Equal(t, rules.StartFEN, board.Text())
	require.Equal(t, StatusActive, h.room(room.ID).Status)
	require.Nil(t, h.room(room.ID).Result)

	h.move(white, "e2e4")
	require.Equal(t, []string{arenaproto.TypeBoardState}, ws.drain())
}

func TestFinishedGameIsRecorded(t *testing.T) {
	h := newHarness(t)
	white, _, black, _ := h.pair()
	for i, mv := range []string{"f2f3", "e7e5", "g2g4", "d8h4"} {
		if i%2 == 0 {
			h.move(white, mv)
		} else {
			h.move(black, mv)
		}
	}

	select {
	case <-h.rec.got:
	case <-time.After(2 * time.Second):
		t.Fatal("record not delivered")
	}
	h.rec.mu.Lock()
	defer h.rec.mu.Unlock()
	require.Len(t, h.rec.recs, 1)
	rec := h.rec.recs[0]
	require.Equal(t, white, rec.WhiteID)
	require.Equal(t, black, rec.BlackID)
	require.Equal(t, "Black", rec.Winner)
	require.Equal(t, "Checkmate", rec.Reason)
	require.Equal(t, []string{"f2f3", "e7e5", "g2g4", "d8h4"}, rec.MovesUCI)
	require.Len(t, rec.MovesSAN, 4)
	require.NotEmpty(t, rec.GameID)
}

func TestStalemateEndsGameAsDraw(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.Engines = fromPosition(t, "k1K5/8/8/8/8/8/8/1Q6 w - - 0 1")
	})
	white, ws, _, bs := h.pair()

	h.move(white, "b1b6")
	want := []string{arenaproto.TypeBoardState, arenaproto.TypeGameOver}
	require.Equal(t, want, ws.types())
	require.Equal(t, want, bs.types())

	over, _ := bs.last(arenaproto.TypeGameOver)
	var payload arenaproto.GameOver
	require.NoError(t, over.Decode(&payload))
	require.Equal(t, arenaproto.GameOver{Winner: "Draw", Reason: "Stalemate"}, payload)

	rooms := h.sync()
	require.Equal(t, string(StatusOver), rooms[0].Status)
	require.Equal(t, 1, h.sched.count())
}

func TestDrawByCaptureAnnouncesCaptureFirst(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	t.Cleanup(obslog.Replace(zap.New(core)))

	h := newHarness(t, func(o *Options) {
		o.Engines = fromPosition(t, "k7/8/8/8/8/8/6r1/7K w - - 0 1")
	})
	white, ws, _, bs := h.pair()

	h.move(white, "h1g2")
	require.Equal(t, []string{
		arenaproto.TypeBoardState,
		arenaproto.TypePieceCaptured,
		arenaproto.TypeGameOver,
	}, bs.types())
	require.Equal(t, bs.types(), ws.types())

	captured, _ := ws.last(arenaproto.TypePieceCaptured)
	var cp arenaproto.PieceCaptured
	require.NoError(t, captured.Decode(&cp))
	require.Equal(t, arenaproto.PieceCaptured{CapturedBy: "w", CapturedOf: "black", CapturedType: "r"}, cp)

	over, _ := ws.last(arenaproto.TypeGameOver)
	var payload arenaproto.GameOver
	require.NoError(t, over.Decode(&payload))
	require.Equal(t, arenaproto.GameOver{Winner: "Draw", Reason: "Draw"}, payload)

	rooms := h.sync()
	require.Equal(t, string(StatusOver), rooms[0].Status)
	require.Equal(t, 1, h.sched.count())

	entries := logs.FilterMessage("game_over").All()
	require.Len(t, entries, 1)
	require.Equal(t, "Draw", entries[0].ContextMap()["reason"])
	require.Equal(t, "Draw", entries[0].ContextMap()["winner"])
}

func TestOutOfTurnMoveIsSilentlyDropped(t *testing.T) {
	h := newHarness(t)
	_, ws, black, bs := h.pair()

	h.move(black, "e7e5")

	require.Empty(t, ws.all())
	require.Empty(t, bs.all())
	rooms := h.sync()
	require.Equal(t, rules.StartFEN, rooms[0].FEN)
	require.Equal(t, "w", rooms[0].Turn)
}

func TestSeatedDisconnectTearsRoomDown(t *testing.T) {
	h := newHarness(t)
	white, ws, black, bs := h.pair()
	h.move(white, "e2e4")
	bs.drain()

	require.NoError(t, h.c.Disconnect(h.ctx, white))
	h.sync()

	require.Equal(t, []string{arenaproto.TypeRoomClosed}, bs.drain())
	require.Zero(t, h.c.registry.Len())

	h.move(black, "e7e5")
	require.Empty(t, bs.all())
	require.Equal(t, []string{arenaproto.TypeBoardState}, ws.drain())
}

func TestRoomClosedCarriesReason(t *testing.T) {
	h := newHarness(t)
	white, _, _, bs := h.pair()
	require.NoError(t, h.c.Disconnect(h.ctx, white))
	h.sync()

	evts := bs.all()
	require.Len(t, evts, 1)
	var payload arenaproto.RoomClosed
	require.NoError(t, evts[0].Decode(&payload))
	require.Contains(t, payload.Reason, "white")
}

func TestIllegalMoveNotifiesOnlyRequester(t *testing.T) {
	h := newHarness(t)
	white, ws, _, bs := h.pair()

	h.move(white, "e2e5")

	require.Equal(t, []string{arenaproto.TypeInvalidMove}, ws.types())
	evt, _ := ws.last(arenaproto.TypeInvalidMove)
	var echoed arenaproto.Move
	require.NoError(t, evt.Decode(&echoed))
	require.Equal(t, arenaproto.Move{From: "e2", To: "e5"}, echoed)
	require.Empty(t, bs.all())
	require.Equal(t, rules.StartFEN, h.sync()[0].FEN)
}

func TestMalformedMovesAreDropped(t *testing.T) {
	h := newHarness(t)
	white, ws, _, bs := h.pair()

	for _, mv := range []arenaproto.Move{
		{From: "e2", To: "e2"},
		{From: "z9", To: "e4"},
		{From: "e2", To: ""},
		{From: "e7", To: "e8", Promotion: "k"},
	} {
		require.NoError(t, h.c.SubmitMove(h.ctx, white, mv))
	}
	h.sync()
	require.Empty(t, ws.all())
	require.Empty(t, bs.all())
}

func TestUppercaseSquaresAreAccepted(t *testing.T) {
	h := newHarness(t)
	white, ws, _, _ := h.pair()
	require.NoError(t, h.c.SubmitMove(h.ctx, white, arenaproto.Move{From: "E2", To: "E4"}))
	h.sync()
	require.Equal(t, []string{arenaproto.TypeBoardState}, ws.types())
}

func TestCheckThenClearCheckOrdering(t *testing.T) {
	h := newHarness(t)
	white, ws, black, bs := h.pair()

	h.move(white, "e2e4")
	h.move(black, "f7f5")
	ws.drain()
	bs.drain()

	h.move(white, "d1h5")
	require.Equal(t, []string{arenaproto.TypeBoardState, arenaproto.TypeCheck}, bs.drain())
	chk, _ := ws.last(arenaproto.TypeCheck)
	var payload arenaproto.Check
	require.NoError(t, chk.Decode(&payload))
	require.Equal(t, "b", payload.ColorInCheck)
	ws.drain()

	h.move(black, "g7g6")
	require.Equal(t, []string{arenaproto.TypeBoardState, arenaproto.TypeClearCheck}, ws.drain())
	bs.drain()

	// Qxg6+ captures and checks again, hxg6 captures the queen and clears it
	h.move(white, "h5g6")
	require.Equal(t, []string{
		arenaproto.TypeBoardState,
		arenaproto.TypePieceCaptured,
		arenaproto.TypeCheck,
	}, ws.drain())

	h.move(black, "h7g6")
	require.Equal(t, []string{
		arenaproto.TypeBoardState,
		arenaproto.TypePieceCaptured,
		arenaproto.TypeClearCheck,
	}, ws.drain())
	capt, _ := bs.last(arenaproto.TypePieceCaptured)
	var pc arenaproto.PieceCaptured
	require.NoError(t, capt.Decode(&pc))
	require.Equal(t, arenaproto.PieceCaptured{CapturedBy: "b", CapturedOf: "white", CapturedType: "q"}, pc)
}

func TestClearCheckNotSentWithoutPriorCheck(t *testing.T) {
	h := newHarness(t)
	white, ws, black, _ := h.pair()
	h.move(white, "e2e4")
	h.move(black, "d7d5")
	h.move(white, "e4d5")

	require.Equal(t, []string{
		arenaproto.TypeBoardState,
		arenaproto.TypeBoardState,
		arenaproto.TypeBoardState,
		arenaproto.TypePieceCaptured,
	}, ws.types())
	capt, _ := ws.last(arenaproto.TypePieceCaptured)
	var pc arenaproto.PieceCaptured
	require.NoError(t, capt.Decode(&pc))
	require.Equal(t, arenaproto.PieceCaptured{CapturedBy: "w", CapturedOf: "black", CapturedType: "p"}, pc)
}

func TestSpectatorsWatchButCannotAct(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.RoomLimit = 1 })
	white, ws, black, _ := h.pair()

	spec, ss := h.connect()
	require.Equal(t, []string{
		arenaproto.TypeSpectatorRole,
		arenaproto.TypeBoardState,
		arenaproto.TypeMessage,
	}, ss.drain())

	h.move(white, "e2e4")
	require.Equal(t, []string{arenaproto.TypeBoardState}, ss.drain())

	// black to move, spectator may not move nor restart
	h.move(spec, "e7e5")
	require.NoError(t, h.c.Restart(h.ctx, spec))
	h.sync()
	require.Empty(t, ss.drain())
	rooms := h.sync()
	require.Equal(t, "b", rooms[0].Turn)
	require.Equal(t, 1, rooms[0].Spectators)

	require.NoError(t, h.c.Disconnect(h.ctx, spec))
	rooms = h.sync()
	require.Len(t, rooms, 1)
	require.Zero(t, rooms[0].Spectators)
	require.Equal(t, string(StatusActive), rooms[0].Status)

	h.move(black, "e7e5")
	require.Equal(t, []string{arenaproto.TypeBoardState, arenaproto.TypeBoardState}, ws.drain())
}

func TestSpectatorsReceiveTeardown(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.RoomLimit = 1 })
	_, _, black, _ := h.pair()
	_, ss := h.connect()
	ss.drain()

	require.NoError(t, h.c.Disconnect(h.ctx, black))
	h.sync()
	require.Equal(t, []string{arenaproto.TypeRoomClosed}, ss.drain())
	require.Zero(t, h.c.registry.Len())
}

func TestWaitingRoomIsFilledBeforeLimitApplies(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.RoomLimit = 1 })
	_, _ = h.connect()
	_, bs := h.connect()
	role, _ := bs.last(arenaproto.TypePlayerRole)
	require.Equal(t, "b", role.Text())
}

func TestUnlimitedRoomsPairInArrivalOrder(t *testing.T) {
	h := newHarness(t)
	h.pair()
	_, third := h.connect()
	_, fourth := h.connect()

	role, _ := third.last(arenaproto.TypePlayerRole)
	require.Equal(t, "w", role.Text())
	role, _ = fourth.last(arenaproto.TypePlayerRole)
	require.Equal(t, "b", role.Text())

	rooms := h.sync()
	require.Len(t, rooms, 2)
	for _, r := range rooms {
		require.Equal(t, string(StatusActive), r.Status)
	}
}

func TestRestartResetsBoardForBothPlayers(t *testing.T) {
	h := newHarness(t)
	white, ws, black, bs := h.pair()
	h.move(white, "e2e4")
	ws.drain()
	bs.drain()

	require.NoError(t, h.c.Restart(h.ctx, black))
	h.sync()
	want := []string{arenaproto.TypeBoardState, arenaproto.TypeClearCheck, arenaproto.TypeMessage}
	require.Equal(t, want, ws.drain())
	require.Equal(t, want, bs.drain())

	rooms := h.sync()
	require.Equal(t, rules.StartFEN, rooms[0].FEN)
	require.Equal(t, string(StatusActive), rooms[0].Status)
}

func TestRestartInWaitingRoomStaysWaiting(t *testing.T) {
	h := newHarness(t)
	white, ws := h.connect()
	ws.drain()

	require.NoError(t, h.c.Restart(h.ctx, white))
	rooms := h.sync()
	require.Equal(t, string(StatusWaiting), rooms[0].Status)
	require.Equal(t, []string{arenaproto.TypeBoardState, arenaproto.TypeClearCheck, arenaproto.TypeMessage}, ws.drain())

	_, bs := h.connect()
	role, _ := bs.last(arenaproto.TypePlayerRole)
	require.Equal(t, "b", role.Text())
}

func TestStaleTimerAfterManualRestartIsNoop(t *testing.T) {
	h := newHarness(t)
	white, ws, black, _ := h.pair()
	for i, mv := range []string{"f2f3", "e7e5", "g2g4", "d8h4"} {
		if i%2 == 0 {
			h.move(white, mv)
		} else {
			h.move(black, mv)
		}
	}
	require.Equal(t, 1, h.sched.count())

	require.NoError(t, h.c.Restart(h.ctx, white))
	h.move(white, "e2e4")
	ws.drain()

	h.sched.fireAll()
	rooms := h.sync()
	require.Empty(t, ws.drain())
	require.Equal(t, "b", rooms[0].Turn)
	require.Equal(t, 1, rooms[0].Moves)
}

func TestTimerAfterTeardownIsNoop(t *testing.T) {
	h := newHarness(t)
	white, ws, black, _ := h.pair()
	for i, mv := range []string{"f2f3", "e7e5", "g2g4", "d8h4"} {
		if i%2 == 0 {
			h.move(white, mv)
		} else {
			h.move(black, mv)
		}
	}
	require.NoError(t, h.c.Disconnect(h.ctx, black))
	h.sync()
	ws.drain()

	h.sched.fireAll()
	h.sync()
	require.Empty(t, ws.drain())
	require.Zero(t, h.c.registry.Len())
}

func TestEnginePanicBecomesInvalidMove(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.Engines = func() rules.Engine {
			return &scriptedEngine{Engine: rules.New(), panicOnApply: true, legalMoves: -1}
		}
	})
	white, ws, _, bs := h.pair()

	h.move(white, "e2e4")
	require.Equal(t, []string{arenaproto.TypeInvalidMove}, ws.drain())
	require.Empty(t, bs.all())

	rooms := h.sync()
	require.Equal(t, string(StatusActive), rooms[0].Status)
}

func TestNoMovesSignalTrailsBroadcast(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.Engines = func() rules.Engine {
			return &scriptedEngine{Engine: rules.New(), legalMoves: 0}
		}
	})
	white, ws, _, _ := h.pair()

	h.move(white, "e2e4")
	require.Equal(t, []string{arenaproto.TypeBoardState, arenaproto.TypeNoMoves}, ws.types())
	evt, _ := ws.last(arenaproto.TypeNoMoves)
	var payload arenaproto.NoMoves
	require.NoError(t, evt.Decode(&payload))
	require.Equal(t, "b", payload.SideToMove)
}

func TestDispatchRoutesInboundFrames(t *testing.T) {
	h := newHarness(t)
	white, ws, _, _ := h.pair()

	evt, err := arenaproto.NewEvent(arenaproto.TypeMove, arenaproto.Move{From: "d2", To: "d4"})
	require.NoError(t, err)
	require.NoError(t, h.c.Dispatch(h.ctx, white, evt))
	h.sync()
	require.Equal(t, []string{arenaproto.TypeBoardState}, ws.drain())

	err = h.c.Dispatch(h.ctx, white, arenaproto.Event{Type: "resign"})
	require.ErrorIs(t, err, ErrUnknownEvent)

	err = h.c.Dispatch(h.ctx, white, arenaproto.Event{Type: arenaproto.TypeMove, Payload: []byte(`"e2e4"`)})
	require.ErrorIs(t, err, ErrMalformedEvent)

	require.NoError(t, h.c.Dispatch(h.ctx, white, arenaproto.Event{Type: arenaproto.TypeRestartGame}))
	h.sync()
	require.Equal(t, []string{arenaproto.TypeBoardState, arenaproto.TypeClearCheck, arenaproto.TypeMessage}, ws.drain())
}

func TestStoppedCoordinatorRejectsEvents(t *testing.T) {
	c := NewCoordinator(Options{Scheduler: &manualScheduler{}})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	_, err := c.Connect(context.Background(), &recordingSink{})
	require.ErrorIs(t, err, ErrStopped)
}
