package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-arena/internal/probe"
	"github.com/park285/cheese-arena/pkg/arenaproto"
)

func main() {
	baseURL := flag.String("base", envOr("ARENA_BASE_URL", "http://localhost:3000"), "arena HTTP base URL")
	retries := flag.Int("retries", 3, "attempts per HTTP call on 5xx or network errors")
	observe := flag.Duration("observe", 3*time.Second, "how long to watch the session after the first board")
	flag.Parse()

	client := probe.NewClient(*baseURL,
		probe.WithTimeout(5*time.Second),
		probe.WithRetry(*retries),
		probe.WithHeaderProvider(func() map[string]string {
			return map[string]string{"User-Agent": "arenacheck"}
		}),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h, err := client.Health(ctx)
	if err != nil {
		log.Fatalf("/healthz error: %v", err)
	}
	log.Printf("/healthz ok: status=%s rooms=%d", h.Status, h.Rooms)

	if rooms, err := client.Rooms(ctx); err != nil {
		log.Printf("/rooms error: %v", err)
	} else {
		for _, r := range rooms {
			log.Printf("room %s: %s turn=%s spectators=%d moves=%d", r.ID, r.Status, r.Turn, r.Spectators, r.Moves)
		}
	}

	if recs, err := client.Results(ctx, 3); err != nil {
		log.Printf("/results unavailable: %v", err)
	} else {
		for _, r := range recs {
			log.Printf("result %s: %s (%s) in %d moves", r.GameID, r.Winner, r.Reason, len(r.MovesSAN))
		}
	}

	wsURL := "ws" + strings.TrimPrefix(strings.TrimRight(*baseURL, "/"), "http") + "/ws"
	cctx, ccancel := context.WithTimeout(context.Background(), 10*time.Second+*observe)
	defer ccancel()
	conn, _, err := websocket.Dial(cctx, wsURL, nil)
	if err != nil {
		log.Fatalf("ws dial %s: %v", wsURL, err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "probe done")

	if !watch(cctx, conn, true) {
		return
	}
	octx, ocancel := context.WithTimeout(cctx, *observe)
	defer ocancel()
	watch(octx, conn, false)
}

// watch prints events until ctx ends or, when untilBoard is set, the first
// boardState arrives. It reports whether that board was seen.
func watch(ctx context.Context, conn *websocket.Conn, untilBoard bool) bool {
	for {
		var evt arenaproto.Event
		if err := wsjson.Read(ctx, conn, &evt); err != nil {
			if untilBoard {
				log.Printf("ws read: %v", err)
			}
			return false
		}
		switch evt.Type {
		case arenaproto.TypePlayerRole:
			fmt.Printf("role: player %s\n", evt.Text())
		case arenaproto.TypeSpectatorRole:
			fmt.Println("role: spectator")
		case arenaproto.TypeBoardState:
			fmt.Printf("board: %s\n", evt.Text())
			if untilBoard {
				return true
			}
		default:
			fmt.Printf("%s %s\n", evt.Type, string(evt.Payload))
		}
	}
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
