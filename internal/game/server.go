package game

import (
	"log/slog"
	"net/http"
	"time"

	"example.com/guessroom/internal/auth"
)

type Config struct {
	SendBuffer   int     // outbound frames buffered per connection
	MsgRate      float64 // inbound messages per second per connection
	MsgBurst     int
	PingInterval time.Duration // 0 => 25s
	ReadLimit    int64         // max inbound frame size in bytes
}

func (c Config) withDefaults() Config {
	if c.SendBuffer <= 0 {
		c.SendBuffer = 64
	}
	if c.MsgRate <= 0 {
		c.MsgRate = 20
	}
	if c.MsgBurst <= 0 {
		c.MsgBurst = 40
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 25 * time.Second
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = 64 << 10
	}
	return c
}

// TicketVerifier checks the ticket a client presents when opening /ws.
type TicketVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

type Server struct {
	cfg     Config
	rooms   *Registry
	tickets TicketVerifier
	log     *slog.Logger
}

func NewServer(cfg Config, rooms *Registry, tickets TicketVerifier, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		cfg:     cfg.withDefaults(),
		rooms:   rooms,
		tickets: tickets,
		log:     log,
	}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWS)
}
