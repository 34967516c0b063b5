package queueaccess

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"recast/internal/api"
	"recast/internal/config"
	"recast/internal/queue"
)

const probeTimeout = 2 * time.Second

// Session represents a queue access handle and its cleanup function.
type Session struct {
	Access Access
	// ViaDaemon reports whether operations go through a running daemon.
	ViaDaemon bool
	close     func() error
}

// Close releases resources associated with the session.
func (s Session) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// Open connects to the daemon API when a daemon responds on the configured
// bind address and falls back to opening the queue database directly.
func Open(ctx context.Context, cfg *config.Config) (Session, error) {
	if cfg == nil {
		return Session{}, errors.New("configuration is required")
	}

	if bind := strings.TrimSpace(cfg.Paths.APIBind); bind != "" {
		client := api.NewClient(bind)
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		_, err := client.Status(probeCtx)
		cancel()
		if err == nil {
			return Session{Access: NewAPIAccess(client), ViaDaemon: true}, nil
		}
	}

	store, err := queue.Open(cfg)
	if err != nil {
		return Session{}, fmt.Errorf("open queue store: %w", err)
	}
	return Session{Access: NewStoreAccess(store), close: store.Close}, nil
}
