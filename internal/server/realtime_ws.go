package server

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/perkhub/internal/auth"
	"github.com/smallbiznis/perkhub/internal/realtime"
	"go.uber.org/zap"
)

const (
	wsPingInterval      = 30 * time.Second
	wsAuthTimeout       = 10 * time.Second
	wsWriteTimeout      = 5 * time.Second
	wsEventAuthenticate = "authenticate"
	wsEventReady        = "authenticated"
)

var errSocketAuth = errors.New("socket_authentication_failed")

// socketMessage is the client to server frame. Only authenticate is understood.
type socketMessage struct {
	Event string `json:"event"`
	Token string `json:"token"`
}

type socketReady struct {
	Event  string `json:"event"`
	UserID string `json:"user_id"`
}

// RealtimeWebSocket joins the caller to their own room. The token may come from the
// Authorization header, the token query parameter, or a first authenticate frame.
func (s *Server) RealtimeWebSocket(c *gin.Context) {
	if s.hub == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	raw := auth.BearerToken(c.GetHeader("Authorization"))
	if raw == "" {
		raw = strings.TrimSpace(c.Query(queryTokenParam))
	}

	conn, err := websocket.Accept(upgradeWriter{c.Writer}, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.log.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	principal, err := s.authenticateSocket(ctx, conn, raw)
	if err != nil {
		_ = conn.Close(websocket.StatusPolicyViolation, "authentication failed")
		return
	}
	userID := principal.UserID.String()

	sub, err := s.hub.Subscribe(userID)
	if err != nil {
		_ = conn.Close(websocket.StatusInternalError, "unavailable")
		return
	}
	defer sub.Close()

	if err := writeSocketJSON(ctx, conn, socketReady{Event: wsEventReady, UserID: userID}); err != nil {
		return
	}

	go func() {
		defer cancel()
		readSocket(ctx, conn)
	}()
	writeSocketEvents(ctx, conn, sub)
}

// upgradeWriter lets the websocket handshake run on a gin writer. gin refuses to
// hijack once the header is written, but the 101 must reach the connection first,
// so the status is committed through gin and the hijack goes to the net/http writer.
type upgradeWriter struct {
	gin.ResponseWriter
}

func (w upgradeWriter) WriteHeader(code int) {
	w.ResponseWriter.WriteHeader(code)
	w.ResponseWriter.WriteHeaderNow()
}

func (w upgradeWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	raw, ok := w.ResponseWriter.(interface{ Unwrap() http.ResponseWriter })
	if !ok {
		return w.ResponseWriter.Hijack()
	}
	return http.NewResponseController(raw.Unwrap()).Hijack()
}

func (s *Server) authenticateSocket(ctx context.Context, conn *websocket.Conn, raw string) (auth.Principal, error) {
	if s.tokens == nil {
		return auth.Principal{}, errSocketAuth
	}
	if raw == "" {
		authCtx, cancel := context.WithTimeout(ctx, wsAuthTimeout)
		defer cancel()

		var msg socketMessage
		if err := wsjson.Read(authCtx, conn, &msg); err != nil {
			return auth.Principal{}, err
		}
		if msg.Event != wsEventAuthenticate {
			return auth.Principal{}, errSocketAuth
		}
		raw = strings.TrimSpace(msg.Token)
	}

	principal, err := s.tokens.Verify(raw)
	if err != nil {
		s.log.Info("websocket authentication failed", zap.Error(err))
		return auth.Principal{}, err
	}
	return principal, nil
}

// readSocket discards client frames until the connection closes.
func readSocket(ctx context.Context, conn *websocket.Conn) {
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}

func writeSocketEvents(ctx context.Context, conn *websocket.Conn, sub *realtime.Subscription) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-sub.Events():
			if err := writeSocketJSON(ctx, conn, event); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.Ping(ctx); err != nil {
				return
			}
		}
	}
}

func writeSocketJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return wsjson.Write(writeCtx, conn, v)
}
