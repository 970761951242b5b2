package main

import (
	"context"
	"net/url"

	"github.com/rs/zerolog"

	"hopwatch/internal/browser"
	"hopwatch/internal/config"
	"hopwatch/internal/notify"
	"hopwatch/internal/portal"
	"hopwatch/internal/store"
)

// buildSession wires the portal session to the headless-browser sign-in
// collaborator. The first configured card doubles as the validity probe.
func buildSession(cfg *config.Config) *portal.Session {
	login := &browser.Login{
		EntryURL:   cfg.LoginURL,
		PortalHost: portalHost(cfg.PortalBaseURL),
	}
	return portal.NewSession(portal.SessionConfig{
		BaseURL:        cfg.PortalBaseURL,
		Username:       cfg.Username,
		Password:       cfg.Password,
		ProbeCardID:    cfg.Cards[0].ID,
		MaxRetries:     cfg.MaxRetries,
		RequestTimeout: cfg.RequestTimeout,
		Login:          login,
	})
}

// buildNotifier returns the Slack notifier when both token and channel are
// configured, otherwise the disabled one.
func buildNotifier(cfg *config.Config, log zerolog.Logger) notify.Notifier {
	if cfg.SlackToken == "" || cfg.SlackChannel == "" {
		log.Info().Msg("notifications disabled (missing token or channel)")
		return notify.Nop{}
	}
	log.Info().Str("channel", cfg.SlackChannel).Msg("slack notifier initialized")
	return notify.NewSlack(cfg.SlackToken, cfg.SlackChannel, log)
}

func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(cfg.DatabaseFile, cfg.SchemaFile)
	if err != nil {
		return nil, err
	}
	if err := st.EnsureSchema(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

func portalHost(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		return u.Host
	}
	return raw
}
