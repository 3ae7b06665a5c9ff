package app

import (
	"github.com/mbolis/surveyer/config"
	"github.com/mbolis/surveyer/database"
	"github.com/mbolis/surveyer/httpx"
	"github.com/mbolis/surveyer/session"
)

type App struct {
	config.Config
	Storage  database.Storage
	Sessions *session.Registry
}

// New builds the session registry: each client gets its own gateway, and so
// its own cookie jar, towards cfg.APIUrl.
func New(cfg config.Config, storage database.Storage) App {
	newGateway := func() session.Gateway {
		return httpx.NewGateway(httpx.GatewayConfig{
			BaseURL: cfg.APIUrl,
			Timeout: cfg.Timeout,
		})
	}
	return App{
		Config:   cfg,
		Storage:  storage,
		Sessions: session.NewRegistry(storage, newGateway, cfg.MaxSessions, cfg.SessionTTL),
	}
}
