package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/miroirapp/miroir/internal/config"
)

// StartHTTPServer boots the gateway and mounts all provided registrars.
// Blocks until the listener fails.
func StartHTTPServer(cfg *config.Config, registrars ...Registrar) error {
	mux := http.NewServeMux()
	for _, r := range registrars {
		r.Register(mux)
	}

	addr := fmt.Sprintf("%s:%s", cfg.HTTP.Host, cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return srv.ListenAndServe()
}
