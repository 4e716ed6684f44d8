// Package gateway bridges websocket connections to the arena coordinator.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/park285/cheese-arena/internal/arena"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/pkg/arenaproto"
)

// Coordinator is the part of the arena the gateway talks to.
type Coordinator interface {
	Connect(ctx context.Context, sink arena.Sink) (string, error)
	Dispatch(ctx context.Context, connID string, evt arenaproto.Event) error
	Disconnect(ctx context.Context, connID string) error
}

type Options struct {
	EgressBuffer   int
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	ReadLimit      int64
	AllowedOrigins []string
	Logger         *zap.Logger
}

type Gateway struct {
	coord Coordinator
	opts  Options
	log   *zap.Logger
}

func New(coord Coordinator, opts Options) *Gateway {
	if opts.EgressBuffer <= 0 {
		opts.EgressBuffer = 64
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = 4096
	}
	if opts.Logger == nil {
		opts.Logger = obslog.L()
	}
	return &Gateway{coord: coord, opts: opts, log: opts.Logger}
}

// ServeHTTP upgrades the request and serves the session until either side hangs up.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  g.opts.AllowedOrigins,
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		g.log.Warn("ws_accept_failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}
	conn.SetReadLimit(g.opts.ReadLimit)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	l := newLink(conn, g.opts.EgressBuffer, cancel, g.log)

	id, err := g.coord.Connect(ctx, l)
	if err != nil {
		g.log.Warn("ws_connect_rejected", zap.Error(err))
		_ = conn.Close(websocket.StatusTryAgainLater, "arena unavailable")
		return
	}
	log := g.log.With(zap.String("conn_id", id))
	log.Debug("ws_open", zap.String("remote", r.RemoteAddr))

	go l.writeLoop(ctx, g.opts.WriteTimeout)
	go l.pingLoop(ctx, g.opts.PingInterval)

	g.readLoop(ctx, conn, id, log)

	l.close(nil)
	dctx, dcancel := context.WithTimeout(context.Background(), time.Second)
	if err := g.coord.Disconnect(dctx, id); err != nil {
		log.Debug("ws_disconnect_not_queued", zap.Error(err))
	}
	dcancel()

	if errors.Is(l.err(), ErrEgressFull) {
		_ = conn.Close(websocket.StatusPolicyViolation, "slow consumer")
	} else {
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}
	log.Debug("ws_close")
}

// readLoop feeds inbound frames to the coordinator. Undecodable frames are
// dropped; the loop ends when the socket or the context closes.
func (g *Gateway) readLoop(ctx context.Context, conn *websocket.Conn, id string, log *zap.Logger) {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				log.Debug("ws_peer_closed")
			default:
				if ctx.Err() == nil {
					log.Debug("ws_read_failed", zap.Error(err))
				}
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		var evt arenaproto.Event
		if err := json.Unmarshal(data, &evt); err != nil {
			log.Debug("ws_frame_dropped", zap.Error(err))
			continue
		}
		err = g.coord.Dispatch(ctx, id, evt)
		switch {
		case err == nil:
		case errors.Is(err, arena.ErrUnknownEvent), errors.Is(err, arena.ErrMalformedEvent):
			log.Debug("ws_event_dropped", zap.String("type", evt.Type), zap.Error(err))
		default:
			log.Debug("ws_dispatch_failed", zap.Error(err))
			return
		}
	}
}
