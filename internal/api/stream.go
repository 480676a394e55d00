package api

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/smazurov/phonecam/internal/session"
)

const closeWriteTimeout = time.Second

func (s *Server) registerStreamRoutes() {
	s.mux.HandleFunc("GET "+s.options.StreamPath, s.handleStream)
	if s.options.StreamPath != "/" {
		s.mux.HandleFunc("GET /", s.serveStatic)
	}
}

// handleStream upgrades to a websocket and runs a session on it until the
// client goes away or the server shuts down.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		s.serveStatic(w, r)
		return
	}
	if s.options.Controller == nil {
		http.Error(w, "streaming is not configured", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error
		s.logger.Warn("Websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(s.options.MaxMessageBytes)

	stop := context.AfterFunc(s.sessionCtx, func() {
		writeClose(conn, websocket.CloseGoingAway, "server shutting down")
		conn.Close()
	})
	defer stop()

	// Oversized messages end the session; the connection has already
	// sent CloseMessageTooBig by the time ReadMessage reports it.
	s.options.Controller.Serve(s.sessionCtx, r.RemoteAddr, &wsReader{conn: conn})
}

func writeClose(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteTimeout))
}

// serveStatic serves the phone's capture page for plain GETs.
func (s *Server) serveStatic(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		http.NotFound(w, r)
		return
	}
	if s.static != nil {
		s.static.ServeHTTP(w, r)
		return
	}
	if r.URL.Path == s.options.StreamPath {
		w.Header().Set("Upgrade", "websocket")
		http.Error(w, "websocket upgrade required", http.StatusUpgradeRequired)
		return
	}
	http.NotFound(w, r)
}

// wsReader adapts a websocket connection to session.MessageReader.
type wsReader struct {
	conn *websocket.Conn
}

func (r *wsReader) ReadMessage(ctx context.Context) (session.Message, error) {
	mt, data, err := r.conn.ReadMessage()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return session.Message{}, ctxErr
		}
		if websocket.IsCloseError(err,
			websocket.CloseNormalClosure,
			websocket.CloseGoingAway,
			websocket.CloseNoStatusReceived) {
			return session.Message{}, io.EOF
		}
		return session.Message{}, err
	}

	if mt == websocket.BinaryMessage {
		return session.Message{Type: session.MessageBinary, Data: data}, nil
	}
	return session.Message{Type: session.MessageText, Data: data}, nil
}
