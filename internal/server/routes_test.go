package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"

	"skyduel/internal/game"
)

// stubWallet backs handler tests without redis.
type stubWallet struct {
	balances map[string]float64
}

func (w *stubWallet) Reserve(_ context.Context, userID string, amount float64) error {
	if w.balances[userID] < amount {
		return game.ErrInsufficientFunds
	}
	w.balances[userID] -= amount
	return nil
}

func (w *stubWallet) Credit(_ context.Context, userID string, amount float64) error {
	w.balances[userID] += amount
	return nil
}

func (w *stubWallet) DisplayName(_ context.Context, userID string) string {
	return userID
}

func newTestServer(t *testing.T) (*FiberServer, *game.MemoryPatternStore) {
	t.Helper()

	cfg := game.DefaultConfig()
	pattern := game.NewMemoryPatternStore()
	w := &stubWallet{balances: map[string]float64{"u1": 1000, "u2": 1000}}

	coords := make(map[game.GameType]*game.Coordinator, 2)
	for i, gt := range []game.GameType{game.GameTypeAviator, game.GameTypeDragonTiger} {
		coord, err := game.NewCoordinator(cfg, gt, rand.New(rand.NewSource(int64(i+1))), game.CoordinatorDeps{
			Wallet:   w,
			Identity: w,
			Pattern:  pattern,
		})
		if err != nil {
			t.Fatalf("NewCoordinator(%s) error = %v", gt, err)
		}
		coords[gt] = coord
	}

	s := &FiberServer{
		App:      fiber.New(),
		pattern:  pattern,
		sessions: game.NewSessionTracker(cfg.SessionTTL),
		hub:      game.NewHub(),
		coords:   coords,
	}

	api := s.App.Group("/api/v1")
	api.Get("/game/state", s.getStateHandler)
	api.Post("/game/tick", s.tickHandler)
	api.Post("/game/heartbeat", s.heartbeatHandler)
	api.Post("/game/bet", s.placeBetHandler)
	api.Post("/game/cashout", s.cashoutHandler)
	api.Post("/game/cancel", s.cancelBetHandler)
	admin := s.App.Group("/admin")
	admin.Post("/pattern", s.appendPatternHandler)
	admin.Delete("/pattern", s.clearPatternHandler)

	return s, pattern
}

func doJSON(t *testing.T, app *fiber.App, method, path string, payload interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, path, body)
	if err != nil {
		t.Fatalf("could not create request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("could not perform request: %v", err)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("could not read response body: %v", err)
	}
	var result map[string]interface{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &result); err != nil {
			t.Fatalf("could not unmarshal response %q: %v", raw, err)
		}
	}
	return resp, result
}

func TestGetStateHandler(t *testing.T) {
	s, _ := newTestServer(t)

	t.Run("returns the current snapshot", func(t *testing.T) {
		resp, result := doJSON(t, s.App, "GET", "/api/v1/game/state?game=aviator&session=s1", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %v, want OK", resp.Status)
		}
		if result["phase"] != string(game.PhaseBetting) {
			t.Errorf("phase = %v, want betting", result["phase"])
		}
		if result["round_number"] != float64(1) {
			t.Errorf("round_number = %v, want 1", result["round_number"])
		}
		if result["active_players"] != float64(1) {
			t.Errorf("active_players = %v, want the polling session counted", result["active_players"])
		}
	})

	t.Run("unknown game rejected", func(t *testing.T) {
		resp, result := doJSON(t, s.App, "GET", "/api/v1/game/state?game=roulette", nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %v, want BadRequest", resp.Status)
		}
		if result["error_code"] != "UnknownGame" {
			t.Errorf("error_code = %v, want UnknownGame", result["error_code"])
		}
	})
}

func TestTickHandler(t *testing.T) {
	s, _ := newTestServer(t)

	resp, result := doJSON(t, s.App, "POST", "/api/v1/game/tick", fiber.Map{"game": "aviator"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %v, want OK", resp.Status)
	}
	// Well before the betting deadline a tick changes nothing.
	if result["phase"] != string(game.PhaseBetting) {
		t.Errorf("phase = %v, want betting", result["phase"])
	}
}

func TestHeartbeatHandler(t *testing.T) {
	s, _ := newTestServer(t)

	t.Run("requires session_id", func(t *testing.T) {
		resp, _ := doJSON(t, s.App, "POST", "/api/v1/game/heartbeat", fiber.Map{})
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %v, want BadRequest", resp.Status)
		}
	})

	t.Run("counts the session", func(t *testing.T) {
		resp, result := doJSON(t, s.App, "POST", "/api/v1/game/heartbeat", fiber.Map{"session_id": "s1"})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %v, want OK", resp.Status)
		}
		if result["active_players"] != float64(1) {
			t.Errorf("active_players = %v, want 1", result["active_players"])
		}
	})
}

func TestBetHandlers(t *testing.T) {
	s, _ := newTestServer(t)

	var betID string

	t.Run("place", func(t *testing.T) {
		resp, result := doJSON(t, s.App, "POST", "/api/v1/game/bet", fiber.Map{
			"game": "aviator", "user_id": "u1", "stake": 100,
		})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %v, want OK: %v", resp.Status, result)
		}
		bet := result["bet"].(map[string]interface{})
		betID = bet["bet_id"].(string)
		if bet["state"] != string(game.BetOpen) {
			t.Errorf("state = %v, want open", bet["state"])
		}
		state := result["state"].(map[string]interface{})
		if bets := state["open_bets"].([]interface{}); len(bets) != 1 {
			t.Errorf("snapshot open_bets = %d, want 1", len(bets))
		}
	})

	t.Run("duplicate rejected with conflict", func(t *testing.T) {
		resp, result := doJSON(t, s.App, "POST", "/api/v1/game/bet", fiber.Map{
			"game": "aviator", "user_id": "u1", "stake": 100,
		})
		if resp.StatusCode != http.StatusConflict {
			t.Fatalf("status = %v, want Conflict", resp.Status)
		}
		if result["error_code"] != "DuplicateBet" {
			t.Errorf("error_code = %v, want DuplicateBet", result["error_code"])
		}
	})

	t.Run("insufficient funds", func(t *testing.T) {
		resp, result := doJSON(t, s.App, "POST", "/api/v1/game/bet", fiber.Map{
			"game": "aviator", "user_id": "u2", "stake": 5000,
		})
		if resp.StatusCode != http.StatusPaymentRequired {
			t.Fatalf("status = %v, want PaymentRequired", resp.Status)
		}
		if result["error_code"] != "InsufficientFunds" {
			t.Errorf("error_code = %v, want InsufficientFunds", result["error_code"])
		}
	})

	t.Run("cashout while betting rejected", func(t *testing.T) {
		resp, result := doJSON(t, s.App, "POST", "/api/v1/game/cashout", fiber.Map{
			"game": "aviator", "user_id": "u1", "bet_id": betID,
		})
		if resp.StatusCode != http.StatusConflict {
			t.Fatalf("status = %v, want Conflict", resp.Status)
		}
		if result["error_code"] != "InvalidPhase" {
			t.Errorf("error_code = %v, want InvalidPhase", result["error_code"])
		}
	})

	t.Run("cancel refunds", func(t *testing.T) {
		resp, result := doJSON(t, s.App, "POST", "/api/v1/game/cancel", fiber.Map{
			"game": "aviator", "user_id": "u1", "bet_id": betID,
		})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %v, want OK: %v", resp.Status, result)
		}
		bet := result["bet"].(map[string]interface{})
		if bet["state"] != string(game.BetCancelled) {
			t.Errorf("state = %v, want cancelled", bet["state"])
		}
	})

	t.Run("cancel unknown bet", func(t *testing.T) {
		resp, result := doJSON(t, s.App, "POST", "/api/v1/game/cancel", fiber.Map{
			"game": "aviator", "user_id": "u1", "bet_id": "missing",
		})
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("status = %v, want NotFound", resp.Status)
		}
		if result["error_code"] != "NotFound" {
			t.Errorf("error_code = %v, want NotFound", result["error_code"])
		}
	})
}

func TestPatternHandlers(t *testing.T) {
	s, pattern := newTestServer(t)
	ctx := context.Background()

	t.Run("append queues forced outcomes", func(t *testing.T) {
		resp, result := doJSON(t, s.App, "POST", "/admin/pattern", fiber.Map{
			"game": "aviator", "values": []string{"2.50", "10.00"},
		})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %v, want OK", resp.Status)
		}
		if result["queued"] != float64(2) {
			t.Errorf("queued = %v, want 2", result["queued"])
		}
		if val, ok, _ := pattern.PeekNext(ctx, game.GameTypeAviator); !ok || val != "2.50" {
			t.Errorf("PeekNext() = %q, %v; want 2.50 at the front", val, ok)
		}
	})

	t.Run("clear drops the queue", func(t *testing.T) {
		resp, _ := doJSON(t, s.App, "DELETE", "/admin/pattern?game=aviator", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %v, want OK", resp.Status)
		}
		if _, ok, _ := pattern.PeekNext(ctx, game.GameTypeAviator); ok {
			t.Error("pattern entry survived clear")
		}
	})

	t.Run("empty values rejected", func(t *testing.T) {
		resp, _ := doJSON(t, s.App, "POST", "/admin/pattern", fiber.Map{"game": "aviator"})
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %v, want BadRequest", resp.Status)
		}
	})
}
