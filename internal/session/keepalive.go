package session

import (
	"context"
	"fmt"
	"time"
)

// keepalive probes the link while connected. A failed presence probe is
// confirmed with a server round trip before the link is declared lost.
func (m *Manager) keepalive(ctx context.Context, gen uint64, t Transport) {
	defer m.wg.Done()
	if m.cfg.KeepaliveInterval <= 0 || t == nil {
		return
	}

	ticker := time.NewTicker(m.cfg.KeepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if err := m.probe(ctx, t); err != nil {
			if ctx.Err() != nil {
				return
			}
			m.log.Warn().Err(err).Msg("keepalive failed, treating connection as lost")
			m.handleClose(gen, CloseReason{Code: CloseKeepaliveFailed, Err: err})
			return
		}
		m.log.Debug().Msg("💓 keepalive ok")
	}
}

func (m *Manager) probe(ctx context.Context, t Transport) error {
	pctx, cancel := m.probeContext(ctx)
	err := t.SendPresence(pctx, "", PresenceAvailable)
	cancel()
	if err == nil {
		return nil
	}
	m.log.Debug().Err(err).Msg("presence probe failed, confirming")

	cctx, cancel := m.probeContext(ctx)
	defer cancel()
	if cerr := t.Probe(cctx); cerr != nil {
		return fmt.Errorf("presence: %v, confirm: %w", err, cerr)
	}
	return nil
}

func (m *Manager) probeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.cfg.ProbeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.cfg.ProbeTimeout)
}
