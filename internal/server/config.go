package server

import (
	"os"
	"strconv"
	"strings"

	_ "github.com/joho/godotenv/autoload"
)

const (
	defaultPort       = 8080
	defaultMinPlayers = 2
)

// Config carries the process tunables, sourced from the environment (a
// .env file is honored in development via godotenv).
type Config struct {
	// Port the HTTP/WebSocket listener binds to.
	Port int

	// MinPlayers is the headcount floor for the ready-check quorum.
	MinPlayers int

	// OriginPatterns restricts WebSocket origins; empty means
	// same-origin only.
	OriginPatterns []string
}

func LoadConfig() Config {
	cfg := Config{
		Port:       defaultPort,
		MinPlayers: defaultMinPlayers,
	}
	if v, err := strconv.Atoi(os.Getenv("PORT")); err == nil && v > 0 {
		cfg.Port = v
	}
	if v, err := strconv.Atoi(os.Getenv("MIN_PLAYERS")); err == nil && v >= 2 {
		cfg.MinPlayers = v
	}
	if origins := os.Getenv("WS_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.OriginPatterns = append(cfg.OriginPatterns, o)
			}
		}
	}
	return cfg
}
