package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	"cardroom-server/internal/protocol"
)

func (s *Server) RegisterRoutes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.corsMiddleware)
	r.Get("/health", s.healthHandler)
	r.Get("/websocket", s.websocketHandler)
	return r
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type healthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
	Connections   int    `json:"connections"`
	OpenLobbies   int    `json:"openLobbies"`
	PlayingGames  int    `json:"playingGames"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	connections, open, playing := s.registry.Counts()
	resp := healthResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		Connections:   connections,
		OpenLobbies:   open,
		PlayingGames:  playing,
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Infow("failed to write health response", "err", err)
	}
}

// websocketHandler owns one connection's read loop: accept, register,
// then decode and dispatch frames until the transport ends.
func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	sock, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.cfg.OriginPatterns,
	})
	if err != nil {
		s.logger.Infow("websocket accept failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	conn := s.registry.AddConnection(&wsWire{sock: sock})
	s.logger.Infow("new connection", "connection", conn.id, "remote", r.RemoteAddr)

	defer func() {
		s.registry.ConnectionClosed(conn)
		s.limiter.Forget(conn.id)
		s.logger.Infow("connection closed", "connection", conn.id)
	}()

	ctx := r.Context()
	for {
		msgType, data, err := sock.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				s.logger.Debugw("read ended", "connection", conn.id, "err", err)
			}
			return
		}
		if msgType != websocket.MessageText {
			s.logger.Infow("non-text frame ignored", "connection", conn.id)
			continue
		}

		if !s.limiter.Allow(conn.id) {
			conn.send(errorMessage("RATE_LIMITED: too many messages, slow down"))
			continue
		}

		msg, err := protocol.DecodeClient(data)
		if err != nil {
			// Decode failures drop the message, never the connection.
			s.logger.Infow("undecodable message dropped", "connection", conn.id, "err", err)
			conn.send(errorMessage(err.Error()))
			continue
		}

		s.registry.HandleMessage(conn, msg)
	}
}
