// WebSocket streaming endpoint.
//
// DESIGN: /tts/ws carries the same pipeline as POST /tts over one
// long-lived connection. Each text message is a synthesis request body; the
// reply is a sequence of binary messages (audio chunks as the backend
// produces them) followed by one text message:
//
//	{"event":"done","request_id":"...","bytes":12345}
//
// or, when the request cannot be served, {"event":"error","error":"..."}.
// The connection stays open for further requests until either side closes.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog/log"

	"github.com/tavernvoice/tts-adapter/internal/hooks"
	"github.com/tavernvoice/tts-adapter/internal/monitoring"
)

// wsEvent is the text message closing each request on the socket.
type wsEvent struct {
	Event     string `json:"event"`
	RequestID string `json:"request_id,omitempty"`
	Bytes     int64  `json:"bytes,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (g *Gateway) handleTTSWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Same policy as CORS: the front-end lives on another origin.
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(MaxRequestBodySize)

	ctx := r.Context()
	connID := monitoring.RequestIDFromContext(ctx)

	for seq := 1; ; seq++ {
		typ, body, err := conn.Read(ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && !errors.Is(err, context.Canceled) {
				log.Debug().Err(err).Str("request_id", connID).Msg("websocket read ended")
			}
			return
		}
		if typ != websocket.MessageText {
			_ = conn.Close(websocket.StatusUnsupportedData, "requests must be text messages")
			return
		}

		reqCtx := monitoring.WithRequestIDContext(ctx, fmt.Sprintf("%s-%d", connID, seq))
		if err := g.serveWebSocketRequest(reqCtx, conn, r, body); err != nil {
			log.Debug().Err(err).Str("request_id", connID).Msg("websocket write failed")
			return
		}
	}
}

// serveWebSocketRequest runs one synthesis and writes its frames. Only
// errors writing to the socket are returned; synthesis failures are
// reported to the client as an error event.
func (g *Gateway) serveWebSocketRequest(ctx context.Context, conn *websocket.Conn, r *http.Request, body []byte) error {
	s := g.newSynthesis(r.WithContext(ctx), monitoring.RouteWebSocket)

	fail := func(err error) error {
		g.finish(s, 0, 0, err)
		return wsjson.Write(ctx, conn, wsEvent{Event: "error", RequestID: s.requestID, Error: err.Error()})
	}

	if err := g.decode(body, s); err != nil {
		return fail(err)
	}
	err := g.runRequestHooks(ctx, hooks.TTSRequest, s, hooks.Context{
		hooks.KeyTargetLang: s.targetLang,
		hooks.KeyRequestID:  s.requestID,
	})
	if err != nil {
		return fail(errors.New("request processing failed"))
	}

	stream, err := g.openStream(ctx, s)
	if err != nil {
		return fail(errors.New("response processing failed"))
	}
	defer stream.Close()

	var written int64
	for {
		chunk, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			g.finish(s, written, 0, err)
			return wsjson.Write(ctx, conn, wsEvent{Event: "error", RequestID: s.requestID, Error: err.Error()})
		}
		if len(chunk) == 0 {
			continue
		}
		writeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err = conn.Write(writeCtx, websocket.MessageBinary, chunk)
		cancel()
		if err != nil {
			g.finish(s, written, 0, err)
			return err
		}
		written += int64(len(chunk))
	}

	g.finish(s, written, 0, nil)
	return wsjson.Write(ctx, conn, wsEvent{Event: "done", RequestID: s.requestID, Bytes: written})
}
