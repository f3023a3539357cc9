package server

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"skyduel/internal/game"
)

// errorCode maps engine errors to the wire taxonomy. Every engine
// error is a rejected command, never a server fault.
func errorCode(err error) (int, string) {
	switch {
	case errors.Is(err, game.ErrInvalidPhase):
		return fiber.StatusConflict, "InvalidPhase"
	case errors.Is(err, game.ErrInsufficientFunds):
		return fiber.StatusPaymentRequired, "InsufficientFunds"
	case errors.Is(err, game.ErrWalletUnavailable):
		return fiber.StatusServiceUnavailable, "WalletUnavailable"
	case errors.Is(err, game.ErrDuplicateBet):
		return fiber.StatusConflict, "DuplicateBet"
	case errors.Is(err, game.ErrAlreadySettled):
		return fiber.StatusConflict, "AlreadySettled"
	case errors.Is(err, game.ErrNotFound):
		return fiber.StatusNotFound, "NotFound"
	case errors.Is(err, game.ErrInvalidStake), errors.Is(err, game.ErrInvalidSide),
		errors.Is(err, game.ErrInvalidCashout):
		return fiber.StatusBadRequest, "InvalidRequest"
	case errors.Is(err, game.ErrHalted):
		return fiber.StatusServiceUnavailable, "Halted"
	}
	return fiber.StatusInternalServerError, "Internal"
}

func rejectError(c *fiber.Ctx, err error) error {
	status, code := errorCode(err)
	return c.Status(status).JSON(fiber.Map{
		"success":    false,
		"error_code": code,
		"message":    err.Error(),
	})
}

func (s *FiberServer) requireCoordinator(c *fiber.Ctx, gt game.GameType) (*game.Coordinator, error) {
	coord, ok := s.coordinator(gt)
	if !ok {
		return nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success":    false,
			"error_code": "UnknownGame",
			"message":    "unknown game type",
		})
	}
	return coord, nil
}

// Polling gateway handlers

func (s *FiberServer) getStateHandler(c *fiber.Ctx) error {
	gt := game.GameType(c.Query("game"))
	coord, err := s.requireCoordinator(c, gt)
	if coord == nil {
		return err
	}

	snap := coord.Snapshot()
	snap.ActivePlayers = s.sessions.Touch(c.Query("session"), time.Now())
	return c.JSON(snap)
}

func (s *FiberServer) tickHandler(c *fiber.Ctx) error {
	var req struct {
		Game game.GameType `json:"game"`
	}
	if err := c.BodyParser(&req); err != nil {
		req.Game = game.GameType(c.Query("game"))
	}
	if req.Game == "" {
		req.Game = game.GameType(c.Query("game"))
	}

	coord, err := s.requireCoordinator(c, req.Game)
	if coord == nil {
		return err
	}

	// Any poller may drive; an early call is a no-op.
	if err := coord.Tick(c.Context(), time.Now()); err != nil {
		return rejectError(c, err)
	}
	return c.JSON(coord.Snapshot())
}

func (s *FiberServer) heartbeatHandler(c *fiber.Ctx) error {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.SessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success":    false,
			"error_code": "InvalidRequest",
			"message":    "session_id is required",
		})
	}

	count := s.sessions.Heartbeat(req.SessionID, time.Now())
	return c.JSON(fiber.Map{
		"success":        true,
		"active_players": count,
	})
}

// Bet lifecycle handlers. Each success embeds a fresh snapshot so the
// caller observes its own command without waiting for the next poll.

func (s *FiberServer) placeBetHandler(c *fiber.Ctx) error {
	var req struct {
		Game        game.GameType `json:"game"`
		UserID      string        `json:"user_id"`
		Side        game.Side     `json:"side,omitempty"`
		Stake       float64       `json:"stake"`
		AutoCashout float64       `json:"auto_cashout,omitempty"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success":    false,
			"error_code": "InvalidRequest",
			"message":    "invalid request body",
		})
	}
	if req.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success":    false,
			"error_code": "InvalidRequest",
			"message":    "user_id is required",
		})
	}

	coord, err := s.requireCoordinator(c, req.Game)
	if coord == nil {
		return err
	}

	bet, err := coord.PlaceBet(c.Context(), req.UserID, req.Side, req.Stake, req.AutoCashout)
	if err != nil {
		return rejectError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"bet":     bet,
		"state":   coord.Snapshot(),
	})
}

func (s *FiberServer) cashoutHandler(c *fiber.Ctx) error {
	coord, req, err := s.parseBetRef(c)
	if coord == nil {
		return err
	}

	bet, err := coord.CashOut(c.Context(), req.UserID, req.BetID)
	if err != nil {
		return rejectError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"bet":     bet,
		"state":   coord.Snapshot(),
	})
}

func (s *FiberServer) cancelBetHandler(c *fiber.Ctx) error {
	coord, req, err := s.parseBetRef(c)
	if coord == nil {
		return err
	}

	bet, err := coord.CancelBet(c.Context(), req.UserID, req.BetID)
	if err != nil {
		return rejectError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"bet":     bet,
		"state":   coord.Snapshot(),
	})
}

type betRef struct {
	Game   game.GameType `json:"game"`
	UserID string        `json:"user_id"`
	BetID  string        `json:"bet_id"`
}

func (s *FiberServer) parseBetRef(c *fiber.Ctx) (*game.Coordinator, betRef, error) {
	var req betRef
	if err := c.BodyParser(&req); err != nil || req.UserID == "" || req.BetID == "" {
		return nil, req, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success":    false,
			"error_code": "InvalidRequest",
			"message":    "user_id and bet_id are required",
		})
	}
	coord, err := s.requireCoordinator(c, req.Game)
	return coord, req, err
}

// Wallet admin handlers

func (s *FiberServer) getUserBalanceHandler(c *fiber.Ctx) error {
	userID := c.Params("userId")
	balance, err := s.wallet.Balance(c.Context(), userID)
	if err != nil {
		return rejectError(c, game.ErrWalletUnavailable)
	}
	return c.JSON(fiber.Map{
		"user_id": userID,
		"balance": balance,
	})
}

func (s *FiberServer) setUserBalanceHandler(c *fiber.Ctx) error {
	userID := c.Params("userId")

	var body struct {
		Balance float64 `json:"balance"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := s.wallet.SetBalance(c.Context(), userID, body.Balance); err != nil {
		return rejectError(c, game.ErrWalletUnavailable)
	}
	return c.JSON(fiber.Map{
		"user_id": userID,
		"balance": body.Balance,
	})
}

// Operator pattern handlers

func (s *FiberServer) appendPatternHandler(c *fiber.Ctx) error {
	var req struct {
		Game   game.GameType `json:"game"`
		Values []string      `json:"values"`
	}
	if err := c.BodyParser(&req); err != nil || len(req.Values) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success":    false,
			"error_code": "InvalidRequest",
			"message":    "values are required",
		})
	}
	if coord, err := s.requireCoordinator(c, req.Game); coord == nil {
		return err
	}

	if err := s.pattern.Append(c.Context(), req.Game, req.Values); err != nil {
		return rejectError(c, err)
	}
	log.Printf("[ADMIN] queued %d forced outcomes for %s", len(req.Values), req.Game)
	return c.JSON(fiber.Map{"success": true, "queued": len(req.Values)})
}

func (s *FiberServer) clearPatternHandler(c *fiber.Ctx) error {
	gt := game.GameType(c.Query("game"))
	if coord, err := s.requireCoordinator(c, gt); coord == nil {
		return err
	}

	if err := s.pattern.Clear(c.Context(), gt); err != nil {
		return rejectError(c, err)
	}
	log.Printf("[ADMIN] cleared forced outcomes for %s", gt)
	return c.JSON(fiber.Map{"success": true})
}

func jsonMessage(msgType string, data interface{}) ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"type": msgType,
		"data": data,
	})
}

// Live feed handler. Read-only: commands stay on the REST surface so
// every mutation flows through the same gateway path.
func (s *FiberServer) gameWebSocketHandler(conn *websocket.Conn) {
	sessionID := conn.Query("session", "anonymous")
	gt := game.GameType(conn.Query("game"))

	log.Printf("[WS] New connection from session: %s", sessionID)
	s.hub.RegisterClient(conn, sessionID, gt)

	if coord, ok := s.coordinator(gt); ok {
		initial, _ := jsonMessage("initial_state", coord.Snapshot())
		conn.WriteMessage(websocket.TextMessage, initial)
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			log.Printf("[WS] Read error for session %s: %v", sessionID, err)
			s.hub.UnregisterClient(conn)
			break
		}
		s.sessions.Touch(sessionID, time.Now())
	}
}
