package gateway

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-arena/pkg/arenaproto"
)

var (
	ErrLinkClosed = errors.New("link closed")
	ErrEgressFull = errors.New("egress queue full")
)

// link is the outbound half of one websocket. Send only enqueues; a single
// writer goroutine owns conn writes. A full queue closes the link.
type link struct {
	conn   *websocket.Conn
	egress chan arenaproto.Event
	cancel context.CancelFunc
	log    *zap.Logger

	mu     sync.Mutex
	closed bool
	cause  error
}

func newLink(conn *websocket.Conn, buffer int, cancel context.CancelFunc, log *zap.Logger) *link {
	return &link{
		conn:   conn,
		egress: make(chan arenaproto.Event, buffer),
		cancel: cancel,
		log:    log,
	}
}

func (l *link) Send(evt arenaproto.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrLinkClosed
	}
	select {
	case l.egress <- evt:
		return nil
	default:
		l.closeLocked(ErrEgressFull)
		return ErrEgressFull
	}
}

func (l *link) close(cause error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closeLocked(cause)
}

func (l *link) closeLocked(cause error) {
	if l.closed {
		return
	}
	l.closed = true
	l.cause = cause
	l.cancel()
}

func (l *link) err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cause
}

func (l *link) writeLoop(ctx context.Context, timeout time.Duration) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-l.egress:
			wctx, cancel := context.WithTimeout(ctx, timeout)
			err := wsjson.Write(wctx, l.conn, evt)
			cancel()
			if err != nil {
				l.log.Debug("ws_write_failed", zap.String("type", evt.Type), zap.Error(err))
				l.close(err)
				return
			}
		}
	}
}

// pingLoop closes the link after two consecutive ping failures.
func (l *link) pingLoop(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, interval/2)
			err := l.conn.Ping(pctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= 2 {
				l.log.Debug("ws_ping_failed", zap.Error(err))
				l.close(err)
				return
			}
		}
	}
}
