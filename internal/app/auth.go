package app

import (
	"context"

	"api-gateway/internal/auth"
	"api-gateway/internal/common/logging"
)

func (app *App) initializeAuth() error {
	cfg := app.Config
	manager, err := auth.NewManager(auth.Config{
		Secret:     []byte(cfg.JWTSecret),
		Issuer:     cfg.JWTIssuer,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	}, app.Storage,
		auth.WithRecorder(app.Monitor),
		auth.WithLogger(logging.Component("auth")),
	)
	if err != nil {
		return err
	}
	app.Auth = manager

	return app.bootstrapAdmin()
}

// bootstrapAdmin makes sure an admin client exists so a fresh deployment
// can register its first API clients.
func (app *App) bootstrapAdmin() error {
	cfg := app.Config
	if cfg.BootstrapClientID == "" {
		return nil
	}

	created, err := app.Auth.EnsureClient(context.Background(), auth.ClientSpec{
		ID:     cfg.BootstrapClientID,
		Name:   "bootstrap admin",
		Scopes: []string{auth.ScopeAdmin},
		Tier:   cfg.RateLimitDefaultTier,
		Secret: cfg.BootstrapClientSecret,
	})
	if err != nil {
		return err
	}
	if created {
		app.Logger.Info("Bootstrap admin client created", logging.Field{Key: "client_id", Value: cfg.BootstrapClientID})
	}
	return nil
}
