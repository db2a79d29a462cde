package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/99minutos/escrow-service/internal/core/domain"
)

const (
	balancesKey  = keyPrefix + "ledger:balances"  // hash identity -> received amount
	transfersKey = keyPrefix + "ledger:transfers" // list of transferRecord JSON
)

type transferRecord struct {
	To     domain.Identity `json:"to"`
	Amount domain.Amount   `json:"amount"`
	At     time.Time       `json:"at"`
}

// Ledger is a settlement stand-in that credits recipients in a Redis hash and
// appends every transfer to a log, both in one MULTI/EXEC.
type Ledger struct {
	client *redis.Client
}

func NewLedger(client *redis.Client) *Ledger {
	return &Ledger{client: client}
}

func (l *Ledger) Transfer(ctx context.Context, to domain.Identity, amount domain.Amount) error {
	if amount <= 0 {
		return fmt.Errorf("transfer to %s: non-positive amount %d", to, amount)
	}
	rec, err := json.Marshal(transferRecord{To: to, Amount: amount, At: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("transfer to %s: %w", to, err)
	}

	_, err = l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, balancesKey, string(to), int64(amount))
		pipe.RPush(ctx, transfersKey, rec)
		return nil
	})
	if err != nil {
		return fmt.Errorf("transfer to %s: %w", to, err)
	}
	return nil
}

// Balance returns the total credited to id.
func (l *Ledger) Balance(ctx context.Context, id domain.Identity) (domain.Amount, error) {
	n, err := l.client.HGet(ctx, balancesKey, string(id)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("balance of %s: %w", id, err)
	}
	return domain.Amount(n), nil
}

// TransferCount returns the length of the transfer log.
func (l *Ledger) TransferCount(ctx context.Context) (int64, error) {
	return l.client.LLen(ctx, transfersKey).Result()
}
