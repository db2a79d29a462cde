package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/99minutos/escrow-service/internal/core/domain"
)

// Transfer is one payout recorded by Ledger.
type Transfer struct {
	To     domain.Identity
	Amount domain.Amount
}

// Ledger credits balances in memory and keeps every transfer it accepted.
// Setting Fail makes subsequent transfers error, for exercising the
// resolved-but-unpaid path.
type Ledger struct {
	mu        sync.Mutex
	balances  map[domain.Identity]domain.Amount
	transfers []Transfer
	fail      error
}

func NewLedger() *Ledger {
	return &Ledger{balances: make(map[domain.Identity]domain.Amount)}
}

func (l *Ledger) Transfer(_ context.Context, to domain.Identity, amount domain.Amount) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail != nil {
		return l.fail
	}
	if amount <= 0 {
		return fmt.Errorf("transfer to %s: non-positive amount %d", to, amount)
	}
	l.balances[to] += amount
	l.transfers = append(l.transfers, Transfer{To: to, Amount: amount})
	return nil
}

// Fail makes every later Transfer return err. Pass nil to recover.
func (l *Ledger) Fail(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fail = err
}

// Balance returns what id has received so far.
func (l *Ledger) Balance(id domain.Identity) domain.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[id]
}

// Transfers returns a copy of the accepted transfers in order.
func (l *Ledger) Transfers() []Transfer {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Transfer(nil), l.transfers...)
}
