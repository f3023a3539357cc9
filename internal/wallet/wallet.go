// Package wallet adapts redis balances to the engine's wallet and
// identity collaborator interfaces. Debits are all-or-nothing: a
// balance that would go negative is rolled back immediately.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"skyduel/internal/game"
)

const (
	redisKeyBalancePrefix = "wallet:balance:"
	redisKeyNamePrefix    = "wallet:name:"
)

type RedisWallet struct {
	client *redis.Client
}

func New(client *redis.Client) *RedisWallet {
	return &RedisWallet{client: client}
}

// Reserve debits amount from the user's balance or fails without side
// effects. Transport failures and timeouts surface as plain errors so
// the ledger can classify them as wallet-unavailable.
func (w *RedisWallet) Reserve(ctx context.Context, userID string, amount float64) error {
	key := redisKeyBalancePrefix + userID

	balance, err := w.client.Get(ctx, key).Float64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return game.ErrInsufficientFunds
		}
		return fmt.Errorf("wallet read: %w", err)
	}
	if balance < amount {
		return game.ErrInsufficientFunds
	}

	newBalance, err := w.client.IncrByFloat(ctx, key, -amount).Result()
	if err != nil {
		return fmt.Errorf("wallet debit: %w", err)
	}
	if newBalance < 0 {
		// Raced another debit past zero. Roll back.
		if rbErr := w.client.IncrByFloat(ctx, key, amount).Err(); rbErr != nil {
			log.Printf("[WALLET] rollback failed for %s: %v", userID, rbErr)
		}
		return game.ErrInsufficientFunds
	}
	return nil
}

func (w *RedisWallet) Credit(ctx context.Context, userID string, amount float64) error {
	key := redisKeyBalancePrefix + userID
	if err := w.client.IncrByFloat(ctx, key, amount).Err(); err != nil {
		return fmt.Errorf("wallet credit: %w", err)
	}
	return nil
}

func (w *RedisWallet) Balance(ctx context.Context, userID string) (float64, error) {
	balance, err := w.client.Get(ctx, redisKeyBalancePrefix+userID).Float64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return balance, err
}

func (w *RedisWallet) SetBalance(ctx context.Context, userID string, balance float64) error {
	return w.client.Set(ctx, redisKeyBalancePrefix+userID, balance, 0).Err()
}

// DisplayName resolves the stored name, falling back to a shortened
// participant id when none is set.
func (w *RedisWallet) DisplayName(ctx context.Context, userID string) string {
	name, err := w.client.Get(ctx, redisKeyNamePrefix+userID).Result()
	if err == nil && name != "" {
		return name
	}
	if len(userID) > 8 {
		return "player-" + userID[:8]
	}
	return "player-" + userID
}

func (w *RedisWallet) SetDisplayName(ctx context.Context, userID, name string) error {
	return w.client.Set(ctx, redisKeyNamePrefix+userID, name, 0).Err()
}
