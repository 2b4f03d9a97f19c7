// Package server builds the http.Server for the API router.
package server

import (
	"net/http"
	"time"

	"github.com/wb-go/wbf/ginext"

	"github.com/aliskhannn/pix-erase/internal/config"
)

// New creates an http.Server for the router with timeouts taken from the
// configuration. Unset timeouts fall back to conservative defaults.
func New(cfg config.Server, router *ginext.Engine) *http.Server {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 5 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 120 * time.Second
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = 5 * time.Second
	}

	return &http.Server{
		Addr:              cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
