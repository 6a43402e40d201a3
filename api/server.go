package api

import (
	"net/http"
	"os"
	"time"

	"github.com/angelmondragon/purchase-configurator/pkg/config"
)

const (
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 120 * time.Second
)

// NewServer returns the HTTP server that cmd/api runs. PORT from the platform wins over
// the configured port.
func NewServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + Port(cfg),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}
}

func Port(cfg *config.Config) string {
	if port := os.Getenv("PORT"); port != "" {
		return port
	}
	if cfg == nil || cfg.App.Port == "" {
		return "8080"
	}
	return cfg.App.Port
}
