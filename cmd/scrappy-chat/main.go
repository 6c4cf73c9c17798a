package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/emilabos/scrappy-chat/internal/ads"
	"github.com/emilabos/scrappy-chat/internal/config"
	"github.com/emilabos/scrappy-chat/internal/conn"
	"github.com/emilabos/scrappy-chat/internal/history"
	"github.com/emilabos/scrappy-chat/internal/interstitial"
	"github.com/emilabos/scrappy-chat/internal/log"
	"github.com/emilabos/scrappy-chat/internal/session"
	"github.com/emilabos/scrappy-chat/internal/store"
	"github.com/emilabos/scrappy-chat/internal/tui"
)

func main() {
	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// The TUI owns the terminal, so logs go to the configured file.
	log.Init(cfg.Log)
	logger := log.L()

	st, err := newStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mgr := conn.NewManager(conn.Config{
		WSURL:         cfg.Relay.WSURL,
		MaxAttempts:   cfg.Reconnect.MaxAttempts,
		RetryInterval: cfg.Reconnect.Interval,
		WebSocket:     cfg.WebSocket,
	})
	defer mgr.Close()

	loader := history.NewLoader(cfg.Relay.HTTPURL)

	catalog := ads.NewCatalog(cfg.Relay.HTTPURL)
	if err := catalog.Refresh(ctx); err != nil {
		// Pick retries the fetch while the catalog is empty, so a relay
		// that comes up later still serves assets.
		logger.Warn().Err(err).Msg("failed to load ad catalog")
	}

	var ctrl *session.Controller
	gate := interstitial.NewGate(st, catalog, cfg.Interstitial.IdleAfter, func() {
		if ctrl != nil {
			ctrl.Wake()
		}
	})
	ctrl = session.NewController(mgr, loader, gate, st)

	ctrl.Start(ctx)
	go ctrl.Run(ctx)

	p := tea.NewProgram(tui.New(ctrl), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		logger.Error().Err(err).Msg("tui terminated")
		os.Exit(1)
	}
}

func newStore(cfg *config.ClientConfig) (store.Store, error) {
	switch cfg.Store.Backend {
	case "redis":
		return store.NewRedisStore(cfg.Store.Redis)
	default:
		return store.NewFileStore(cfg.Store.Path)
	}
}
