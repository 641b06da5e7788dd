package socket

import (
	"log/slog"
	"net/http"

	"github.com/gdugdh24/mpit2026-matchqueue/internal/domain"
	socketio "github.com/googollee/go-socket.io"
	"github.com/googollee/go-socket.io/engineio"
	"github.com/googollee/go-socket.io/engineio/transport"
	"github.com/googollee/go-socket.io/engineio/transport/polling"
	"github.com/googollee/go-socket.io/engineio/transport/websocket"
	"github.com/samber/lo"
)

const namespace = "/"

// Client to server event names.
const (
	EventStartMatching  = "start-matching"
	EventForceLeaveChat = "force-leave-chat"
	EventReadMessages   = "read-messages"
)

type Server struct {
	io  *socketio.Server
	log *slog.Logger
}

func NewServer(h *Handler, allowedOrigins []string, log *slog.Logger) *Server {
	checkOrigin := originChecker(allowedOrigins)
	io := socketio.NewServer(&engineio.Options{
		Transports: []transport.Transport{
			&polling.Transport{CheckOrigin: checkOrigin},
			&websocket.Transport{CheckOrigin: checkOrigin},
		},
	})

	io.OnConnect(namespace, func(c socketio.Conn) error {
		return h.OnConnect(c)
	})
	io.OnEvent(namespace, EventStartMatching, func(c socketio.Conn) {
		h.OnStartMatching(c)
	})
	io.OnEvent(namespace, domain.EventChatMessage, func(c socketio.Conn, req ChatMessageRequest) {
		h.OnChatMessage(c, req)
	})
	io.OnEvent(namespace, EventForceLeaveChat, func(c socketio.Conn, req MatchRequest) {
		h.OnForceLeaveChat(c, req)
	})
	io.OnEvent(namespace, domain.EventTyping, func(c socketio.Conn, req TypingRequest) {
		h.OnTyping(c, req)
	})
	io.OnEvent(namespace, EventReadMessages, func(c socketio.Conn, req MatchRequest) {
		h.OnReadMessages(c, req)
	})
	io.OnError(namespace, func(c socketio.Conn, err error) {
		h.OnError(c, err)
	})
	io.OnDisconnect(namespace, func(c socketio.Conn, reason string) {
		h.OnDisconnect(c, reason)
	})

	return &Server{io: io, log: log}
}

// Serve runs the socket.io event loop until Close.
func (s *Server) Serve() {
	if err := s.io.Serve(); err != nil {
		s.log.Error("Socket server stopped", "error", err)
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.io.ServeHTTP(w, r)
}

func (s *Server) Close() error {
	return s.io.Close()
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 || lo.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || lo.Contains(allowed, origin)
	}
}
