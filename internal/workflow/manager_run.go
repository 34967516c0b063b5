package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"recast/internal/logging"
)

// Start begins background processing. It returns immediately; processing
// runs until Stop or until ctx is cancelled.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if m.handler == nil {
		m.mu.Unlock()
		return errors.New("conversion stage not configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.quit = make(chan struct{})
	m.running = true
	m.wg.Add(1)
	quit := m.quit
	m.mu.Unlock()

	go m.run(runCtx, quit)
	return nil
}

// Stop terminates background processing. The in-flight job is given the
// grace period to finish before its context is cancelled; either way Stop
// returns only after the loop has exited.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel := m.cancel
	quit := m.quit
	m.cancel = nil
	m.quit = nil
	m.mu.Unlock()

	close(quit)
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(m.stopGrace):
		m.log().Warn("conversion still running after grace period; cancelling",
			logging.Duration("grace", m.stopGrace))
		cancel()
		<-done
	}
	cancel()
}

func (m *Manager) run(ctx context.Context, quit <-chan struct{}) {
	defer m.wg.Done()
	logger := m.log()

	for {
		select {
		case <-ctx.Done():
			return
		case <-quit:
			return
		default:
		}

		if m.Paused() {
			m.waitForJobOrShutdown(ctx, quit)
			continue
		}

		job, err := m.store.ClaimNextPending(ctx)
		if err != nil {
			m.handleClaimError(ctx, quit, logger, err)
			continue
		}
		if job == nil {
			m.waitForJobOrShutdown(ctx, quit)
			continue
		}

		m.onJobStarted(ctx)
		if err := m.processJob(ctx, logger, job); err != nil && errors.Is(err, context.Canceled) {
			return
		}
	}
}

func (m *Manager) handleClaimError(ctx context.Context, quit <-chan struct{}, logger *slog.Logger, err error) {
	m.setLastError(err)
	logger.Error("failed to claim next queue job",
		logging.Error(err),
		logging.String(logging.FieldEventType, "queue_claim_failed"),
		logging.String(logging.FieldErrorHint, "check queue database access"),
	)
	select {
	case <-ctx.Done():
	case <-quit:
	case <-time.After(m.retryInterval):
	}
}

func (m *Manager) waitForJobOrShutdown(ctx context.Context, quit <-chan struct{}) {
	select {
	case <-ctx.Done():
	case <-quit:
	case <-time.After(m.pollInterval):
	}
}
