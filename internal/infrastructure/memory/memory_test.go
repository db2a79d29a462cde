package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/99minutos/escrow-service/internal/core/domain"
	"github.com/99minutos/escrow-service/internal/core/ports"
	"github.com/99minutos/escrow-service/internal/infrastructure/storetest"
)

func TestProjectStore(t *testing.T) {
	storetest.RunProjectStore(t, func(t *testing.T) ports.ProjectStore {
		return NewProjectStore()
	})
}

func TestLedger_TransferCreditsRecipient(t *testing.T) {
	l := NewLedger()

	if err := l.Transfer(context.Background(), "f", 100); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if err := l.Transfer(context.Background(), "f", 20); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	if got := l.Balance("f"); got != 120 {
		t.Errorf("balance: want 120, got %d", got)
	}
	if n := len(l.Transfers()); n != 2 {
		t.Errorf("expected 2 recorded transfers, got %d", n)
	}
}

func TestLedger_RejectsNonPositive(t *testing.T) {
	l := NewLedger()
	if err := l.Transfer(context.Background(), "f", 0); err == nil {
		t.Fatal("expected error for zero amount")
	}
}

func TestLedger_Fail(t *testing.T) {
	l := NewLedger()
	boom := errors.New("rail down")
	l.Fail(boom)

	if err := l.Transfer(context.Background(), "f", 5); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	if l.Balance("f") != 0 {
		t.Error("failed transfer must not credit")
	}

	l.Fail(nil)
	if err := l.Transfer(context.Background(), "f", 5); err != nil {
		t.Fatalf("transfer after recovery: %v", err)
	}
}

func TestIdempotencyStore(t *testing.T) {
	s := NewIdempotencyStore()
	ctx := context.Background()

	if _, found, _ := s.Lookup(ctx, "k"); found {
		t.Fatal("unknown key must not be found")
	}
	if ok, _ := s.Remember(ctx, "k", 7); !ok {
		t.Fatal("first remember must succeed")
	}
	if ok, _ := s.Remember(ctx, "k", 8); ok {
		t.Fatal("second remember must report the key as taken")
	}
	id, found, _ := s.Lookup(ctx, "k")
	if !found || id != 7 {
		t.Fatalf("lookup: want 7, got %d (found=%v)", id, found)
	}
}

func TestEventLog_ListByProjectKeepsOrder(t *testing.T) {
	l := NewEventLog()
	ctx := context.Background()

	_ = l.Handle(ctx, domain.Event{ID: "a", ProjectID: 1, Type: domain.EventProjectCreated})
	_ = l.Handle(ctx, domain.Event{ID: "b", ProjectID: 2, Type: domain.EventProjectCreated})
	_ = l.Handle(ctx, domain.Event{ID: "c", ProjectID: 1, Type: domain.EventProjectFunded})

	events, err := l.ListByProject(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 2 || events[0].ID != "a" || events[1].ID != "c" {
		t.Fatalf("unexpected events: %+v", events)
	}

	empty, _ := l.ListByProject(ctx, 3)
	if empty == nil || len(empty) != 0 {
		t.Errorf("unknown project must yield an empty, non-nil slice")
	}
}

func TestAuthRepository(t *testing.T) {
	r := NewAuthRepository()
	ctx := context.Background()

	created, err := r.Create(ctx, &domain.User{Email: "a@example.com", Identity: "acct-a"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Error("expected an assigned id")
	}
	if _, err := r.Create(ctx, &domain.User{Email: "a@example.com"}); !errors.Is(err, domain.ErrUserExists) {
		t.Errorf("expected ErrUserExists, got %v", err)
	}

	if _, err := r.Create(ctx, &domain.User{Email: "b@example.com", Identity: "acct-a"}); !errors.Is(err, domain.ErrUserExists) {
		t.Errorf("a taken identity must be refused, got %v", err)
	}
	if _, err := r.FindByEmail(ctx, "b@example.com"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("refused account must not be stored, got %v", err)
	}

	found, err := r.FindByEmail(ctx, "a@example.com")
	if err != nil || found.Identity != "acct-a" {
		t.Errorf("find: err=%v user=%+v", err, found)
	}
	if _, err := r.FindByEmail(ctx, "nobody@example.com"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}
