// Package poller implements the consumer side of the polling gateway:
// state polls at a fixed short interval, tick driving at a cadence
// that tightens while a round is live, and heartbeats on their own
// slower clock. On transport failure it reports disconnected rather
// than deriving outcomes locally; the server is the only engine.
package poller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"skyduel/internal/game"
)

type Config struct {
	BaseURL   string
	Game      game.GameType
	SessionID string

	StateInterval     time.Duration // default 500ms
	FastTickInterval  time.Duration // default 150ms, while live
	SlowTickInterval  time.Duration // default 1s, otherwise
	HeartbeatInterval time.Duration // default 3s

	HTTPClient *http.Client
}

func (c *Config) applyDefaults() {
	if c.StateInterval <= 0 {
		c.StateInterval = 500 * time.Millisecond
	}
	if c.FastTickInterval <= 0 {
		c.FastTickInterval = 150 * time.Millisecond
	}
	if c.SlowTickInterval <= 0 {
		c.SlowTickInterval = time.Second
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 3 * time.Second
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 5 * time.Second}
	}
}

type Poller struct {
	cfg Config

	// OnState receives every snapshot. OnDisconnect fires when the
	// gateway becomes unreachable; OnState resumes once it recovers.
	OnState      func(game.Snapshot)
	OnDisconnect func(error)

	live bool
}

func New(cfg Config) *Poller {
	cfg.applyDefaults()
	return &Poller{cfg: cfg}
}

// Run polls until the context is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	stateTicker := time.NewTicker(p.cfg.StateInterval)
	defer stateTicker.Stop()
	heartbeatTicker := time.NewTicker(p.cfg.HeartbeatInterval)
	defer heartbeatTicker.Stop()
	tickTimer := time.NewTimer(p.tickInterval())
	defer tickTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-stateTicker.C:
			snap, err := p.fetchState(ctx)
			if err != nil {
				if p.OnDisconnect != nil {
					p.OnDisconnect(err)
				}
				continue
			}
			p.live = snap.Phase == game.PhaseRunning || snap.Phase == game.PhaseRevealing
			if p.OnState != nil {
				p.OnState(snap)
			}

		case <-tickTimer.C:
			p.postTick(ctx)
			tickTimer.Reset(p.tickInterval())

		case <-heartbeatTicker.C:
			p.postHeartbeat(ctx)
		}
	}
}

func (p *Poller) tickInterval() time.Duration {
	if p.live {
		return p.cfg.FastTickInterval
	}
	return p.cfg.SlowTickInterval
}

func (p *Poller) fetchState(ctx context.Context) (game.Snapshot, error) {
	var snap game.Snapshot

	u := fmt.Sprintf("%s/api/v1/game/state?game=%s&session=%s",
		p.cfg.BaseURL, url.QueryEscape(string(p.cfg.Game)), url.QueryEscape(p.cfg.SessionID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return snap, err
	}
	resp, err := p.cfg.HTTPClient.Do(req)
	if err != nil {
		return snap, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return snap, fmt.Errorf("state poll: unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return snap, err
	}
	return snap, nil
}

func (p *Poller) postTick(ctx context.Context) {
	body, _ := json.Marshal(map[string]interface{}{"game": p.cfg.Game})
	p.post(ctx, "/api/v1/game/tick", body)
}

func (p *Poller) postHeartbeat(ctx context.Context) {
	body, _ := json.Marshal(map[string]interface{}{"session_id": p.cfg.SessionID})
	p.post(ctx, "/api/v1/game/heartbeat", body)
}

func (p *Poller) post(ctx context.Context, path string, body []byte) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.cfg.HTTPClient.Do(req)
	if err != nil {
		// Tick driving is redundant across pollers; a miss is harmless.
		return
	}
	resp.Body.Close()
}
