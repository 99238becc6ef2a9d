package widget

import (
	"context"
	"time"
)

// poller re-fetches the conversation on a fixed cadence while the widget is
// active, so messages inserted out-of-band by a human operator surface
// without server push. It holds no state of its own; every result goes
// through the engine's apply-only-if-longer reconciliation.
type poller struct {
	engine *Engine
	done   chan struct{}
}

func newPoller(e *Engine) *poller {
	p := &poller{
		engine: e,
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *poller) run() {
	e := p.engine
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
		}

		e.mu.Lock()
		if e.phase != PhaseActive {
			e.mu.Unlock()
			continue
		}
		agentID := e.agentID
		visitorID := e.visitorID
		e.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), e.pollInterval*2)
		history, err := e.backend.FetchHistory(ctx, agentID, visitorID)
		cancel()
		if err != nil {
			// Best effort; the next tick tries again.
			e.logger.Debug("widget poll failed", "agentId", agentID, "error", err)
			continue
		}

		e.applyHistory(history)
	}
}

func (p *poller) stop() {
	select {
	case <-p.done:
	default:
		close(p.done)
	}
}
