package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/99minutos/escrow-service/internal/core/domain"
	"github.com/99minutos/escrow-service/internal/core/ports"
)

const tracerName = "github.com/99minutos/escrow-service/internal/core/service"

// EscrowService is the escrow engine. It owns the transition rules and
// serializes every mutating operation per project id.
type EscrowService struct {
	store     ports.ProjectStore
	ledger    ports.Ledger
	publisher ports.EventPublisher
	events    ports.EventLog
	idem      ports.IdempotencyStore
	locks     *keyedMutex
	now       func() time.Time
	tracer    trace.Tracer
	logger    zerolog.Logger
}

// Option customises an EscrowService.
type Option func(*EscrowService)

// WithClock overrides the time source used for deadlines and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *EscrowService) { s.now = now }
}

// WithEventLog enables the audit trail lookup in Events.
func WithEventLog(log ports.EventLog) Option {
	return func(s *EscrowService) { s.events = log }
}

// WithIdempotencyStore enables Idempotency-Key replay on CreateAndFund.
func WithIdempotencyStore(idem ports.IdempotencyStore) Option {
	return func(s *EscrowService) { s.idem = idem }
}

func NewEscrowService(store ports.ProjectStore, ledger ports.Ledger, publisher ports.EventPublisher, logger zerolog.Logger, opts ...Option) *EscrowService {
	s := &EscrowService{
		store:     store,
		ledger:    ledger,
		publisher: publisher,
		locks:     newKeyedMutex(),
		now:       func() time.Time { return time.Now().UTC() },
		tracer:    otel.Tracer(tracerName),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateAndFund validates the request, allocates a fresh id and stores the
// project as funded. A repeated Idempotency-Key from the same caller returns
// the project created the first time.
func (s *EscrowService) CreateAndFund(ctx context.Context, in ports.CreateProjectInput) (_ *ports.CreateProjectResult, err error) {
	ctx, span := s.tracer.Start(ctx, "EscrowService.CreateAndFund")
	defer func() { endSpan(span, err) }()

	if err := s.validateCreate(in); err != nil {
		return nil, err
	}
	ctx = detach(ctx)

	if in.IdempotencyKey != "" && s.idem != nil {
		key := idempotencyKey(string(in.Caller), in.IdempotencyKey)
		unlock := s.locks.Lock("idem:" + key)
		defer unlock()

		id, found, lookupErr := s.idem.Lookup(ctx, key)
		if lookupErr != nil {
			s.logger.Warn().Err(lookupErr).Str("idempotency_key", in.IdempotencyKey).Msg("idempotency lookup failed, creating anyway")
		} else if found {
			existing, getErr := s.store.Get(ctx, id)
			if getErr != nil {
				return nil, fmt.Errorf("create and fund: replay: %w", getErr)
			}
			s.logger.Info().Str("idempotency_key", in.IdempotencyKey).Uint64("project_id", id).Msg("idempotent replay")
			return &ports.CreateProjectResult{Project: toView(existing), AlreadyExisted: true}, nil
		}
	}

	id, err := s.store.Allocate(ctx)
	if err != nil {
		return nil, fmt.Errorf("create and fund: allocate id: %w", err)
	}
	span.SetAttributes(attribute.Int64("project.id", int64(id)))

	now := s.now()
	p := &domain.Project{
		ID:             id,
		Client:         in.Caller,
		Freelancer:     in.Freelancer,
		Amount:         in.Value,
		Status:         domain.StatusFunded,
		Details:        in.Details,
		Deadline:       in.Deadline.UTC(),
		IdempotencyKey: in.IdempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.Put(ctx, p); err != nil {
		s.logger.Error().Err(err).Uint64("project_id", id).Msg("failed to store project")
		return nil, fmt.Errorf("create and fund: %w", err)
	}

	if in.IdempotencyKey != "" && s.idem != nil {
		key := idempotencyKey(string(in.Caller), in.IdempotencyKey)
		if _, remErr := s.idem.Remember(ctx, key, id); remErr != nil {
			s.logger.Warn().Err(remErr).Str("idempotency_key", in.IdempotencyKey).Msg("failed to record idempotency key")
		}
	}

	s.emit(ctx, p, domain.EventProjectCreated, in.Caller, 0, "")
	s.emit(ctx, p, domain.EventProjectFunded, in.Caller, p.Amount, "")

	s.logger.Info().
		Uint64("project_id", id).
		Str("client", string(p.Client)).
		Str("freelancer", string(p.Freelancer)).
		Int64("amount", int64(p.Amount)).
		Msg("project funded")

	return &ports.CreateProjectResult{Project: toView(p)}, nil
}

func (s *EscrowService) validateCreate(in ports.CreateProjectInput) error {
	switch {
	case in.Caller.IsZero():
		return fmt.Errorf("create and fund: %w: missing caller identity", domain.ErrInvalidArgument)
	case in.Freelancer.IsZero():
		return fmt.Errorf("create and fund: %w: missing freelancer identity", domain.ErrInvalidArgument)
	case in.Freelancer == in.Caller:
		return fmt.Errorf("create and fund: %w: freelancer must differ from client", domain.ErrInvalidArgument)
	case in.Value <= 0:
		return fmt.Errorf("create and fund: %w: value must be positive", domain.ErrInvalidArgument)
	case !in.Deadline.After(s.now()):
		return fmt.Errorf("create and fund: %w: deadline must be in the future", domain.ErrInvalidArgument)
	}
	return nil
}

// MarkComplete is called by the freelancer to declare the work done. It must
// happen at or before the deadline.
func (s *EscrowService) MarkComplete(ctx context.Context, id uint64, caller domain.Identity) (_ *ports.ProjectView, err error) {
	ctx, span := s.startSpan(ctx, "EscrowService.MarkComplete", id)
	defer func() { endSpan(span, err) }()

	unlock := s.locks.Lock(projectKey(id))
	defer unlock()
	ctx = detach(ctx)

	p, err := s.load(ctx, "mark complete", id)
	if err != nil {
		return nil, err
	}
	if caller != p.Freelancer {
		return nil, fmt.Errorf("mark complete: %w: only the freelancer may complete project %d", domain.ErrUnauthorized, id)
	}
	if p.Status != domain.StatusFunded {
		return nil, fmt.Errorf("mark complete: %w (project %d is %s)", domain.ErrInvalidState, id, p.Status)
	}
	if s.now().After(p.Deadline) {
		return nil, fmt.Errorf("mark complete: %w (deadline was %s)", domain.ErrDeadlinePassed, p.Deadline.Format(time.RFC3339))
	}

	p.FreelancerCompleted = true
	p.Status = domain.StatusCompleted
	if err := s.commit(ctx, "mark complete", p); err != nil {
		return nil, err
	}

	s.emit(ctx, p, domain.EventProjectCompleted, caller, 0, "")
	s.logger.Info().Uint64("project_id", id).Msg("project completed")
	return toView(p), nil
}

// ApproveAndRelease is called by the client to pay the freelancer for
// completed work.
func (s *EscrowService) ApproveAndRelease(ctx context.Context, id uint64, caller domain.Identity) (_ *ports.ProjectView, err error) {
	ctx, span := s.startSpan(ctx, "EscrowService.ApproveAndRelease", id)
	defer func() { endSpan(span, err) }()

	unlock := s.locks.Lock(projectKey(id))
	defer unlock()
	ctx = detach(ctx)

	p, err := s.load(ctx, "approve and release", id)
	if err != nil {
		return nil, err
	}
	if caller != p.Client {
		return nil, fmt.Errorf("approve and release: %w: only the client may approve project %d", domain.ErrUnauthorized, id)
	}
	if p.Status != domain.StatusCompleted || !p.FreelancerCompleted {
		return nil, fmt.Errorf("approve and release: %w (project %d is %s)", domain.ErrInvalidState, id, p.Status)
	}

	p.ClientApproved = true
	payout, err := s.settle(ctx, "approve and release", p, p.Freelancer)
	if err != nil {
		return nil, err
	}

	s.emit(ctx, p, domain.EventFundsReleased, caller, payout, p.Freelancer)
	s.logger.Info().Uint64("project_id", id).Int64("amount", int64(payout)).Msg("funds released")
	return toView(p), nil
}

// RaiseDispute lets either party freeze a funded or completed project until
// the client resolves it.
func (s *EscrowService) RaiseDispute(ctx context.Context, id uint64, caller domain.Identity) (_ *ports.ProjectView, err error) {
	ctx, span := s.startSpan(ctx, "EscrowService.RaiseDispute", id)
	defer func() { endSpan(span, err) }()

	unlock := s.locks.Lock(projectKey(id))
	defer unlock()
	ctx = detach(ctx)

	p, err := s.load(ctx, "raise dispute", id)
	if err != nil {
		return nil, err
	}
	if !p.IsParty(caller) {
		return nil, fmt.Errorf("raise dispute: %w: caller is not a party to project %d", domain.ErrUnauthorized, id)
	}
	if !p.Status.CanTransitionTo(domain.StatusDisputed) {
		return nil, fmt.Errorf("raise dispute: %w (project %d is %s)", domain.ErrInvalidState, id, p.Status)
	}

	p.Status = domain.StatusDisputed
	if err := s.commit(ctx, "raise dispute", p); err != nil {
		return nil, err
	}

	s.emit(ctx, p, domain.EventProjectDisputed, caller, 0, "")
	s.logger.Info().Uint64("project_id", id).Str("raised_by", string(caller)).Msg("project disputed")
	return toView(p), nil
}

// ResolveDispute is called by the client, acting as arbiter, to pay out a
// disputed project to the freelancer or back to itself.
func (s *EscrowService) ResolveDispute(ctx context.Context, id uint64, favorFreelancer bool, caller domain.Identity) (_ *ports.ProjectView, err error) {
	ctx, span := s.startSpan(ctx, "EscrowService.ResolveDispute", id)
	span.SetAttributes(attribute.Bool("dispute.favor_freelancer", favorFreelancer))
	defer func() { endSpan(span, err) }()

	unlock := s.locks.Lock(projectKey(id))
	defer unlock()
	ctx = detach(ctx)

	p, err := s.load(ctx, "resolve dispute", id)
	if err != nil {
		return nil, err
	}
	if caller != p.Client {
		return nil, fmt.Errorf("resolve dispute: %w: only the client may resolve project %d", domain.ErrUnauthorized, id)
	}
	if p.Status != domain.StatusDisputed {
		return nil, fmt.Errorf("resolve dispute: %w (project %d is %s)", domain.ErrInvalidState, id, p.Status)
	}

	winner := p.Client
	if favorFreelancer {
		winner = p.Freelancer
	}
	payout, err := s.settle(ctx, "resolve dispute", p, winner)
	if err != nil {
		return nil, err
	}

	s.emit(ctx, p, domain.EventDisputeResolved, caller, payout, winner)
	s.logger.Info().Uint64("project_id", id).Str("winner", string(winner)).Int64("amount", int64(payout)).Msg("dispute resolved")
	return toView(p), nil
}

// GetDetails returns the current view of a project.
func (s *EscrowService) GetDetails(ctx context.Context, id uint64) (*ports.ProjectView, error) {
	p, err := s.load(ctx, "get details", id)
	if err != nil {
		return nil, err
	}
	return toView(p), nil
}

// GetBalance returns the total value still held in escrow.
func (s *EscrowService) GetBalance(ctx context.Context) (domain.Amount, error) {
	held, err := s.store.HeldBalance(ctx)
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return held, nil
}

// Events returns the audit trail of a project, oldest first.
func (s *EscrowService) Events(ctx context.Context, id uint64) ([]domain.Event, error) {
	if _, err := s.load(ctx, "list events", id); err != nil {
		return nil, err
	}
	if s.events == nil {
		return []domain.Event{}, nil
	}
	events, err := s.events.ListByProject(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// detach keeps ctx values and spans but drops cancellation. Once an operation
// starts writing, caller hang-ups must not stop it between the store commit
// and the ledger transfer or event emission.
func detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

func (s *EscrowService) load(ctx context.Context, op string, id uint64) (*domain.Project, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

func (s *EscrowService) commit(ctx context.Context, op string, p *domain.Project) error {
	p.UpdatedAt = s.now()
	if err := s.store.Put(ctx, p); err != nil {
		s.logger.Error().Err(err).Uint64("project_id", p.ID).Str("op", op).Msg("failed to store project")
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// settle resolves p in favour of winner. The zeroed amount and resolved
// status are stored before the ledger is called; a failed transfer leaves the
// project resolved and is reported as ErrTransferFailed.
func (s *EscrowService) settle(ctx context.Context, op string, p *domain.Project, winner domain.Identity) (domain.Amount, error) {
	payout := p.Amount
	p.Status = domain.StatusResolved
	p.Amount = 0
	p.Winner = winner
	if err := s.commit(ctx, op, p); err != nil {
		return 0, err
	}

	if err := s.ledger.Transfer(ctx, winner, payout); err != nil {
		s.logger.Error().
			Err(err).
			Uint64("project_id", p.ID).
			Str("to", string(winner)).
			Int64("amount", int64(payout)).
			Msg("payout transfer failed after project was resolved")
		return 0, fmt.Errorf("%s: %w: %w", op, domain.ErrTransferFailed, err)
	}
	return payout, nil
}

func (s *EscrowService) emit(ctx context.Context, p *domain.Project, typ domain.EventType, actor domain.Identity, amount domain.Amount, winner domain.Identity) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(ctx, domain.Event{
		ID:         uuid.NewString(),
		ProjectID:  p.ID,
		Type:       typ,
		Actor:      actor,
		Amount:     amount,
		Winner:     winner,
		OccurredAt: s.now(),
	})
}

func (s *EscrowService) startSpan(ctx context.Context, name string, id uint64) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attribute.Int64("project.id", int64(id))))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func toView(p *domain.Project) *ports.ProjectView {
	return &ports.ProjectView{
		ID:                  p.ID,
		Client:              p.Client,
		Freelancer:          p.Freelancer,
		Amount:              p.Amount,
		Status:              p.Status,
		Details:             p.Details,
		Deadline:            p.Deadline,
		ClientApproved:      p.ClientApproved,
		FreelancerCompleted: p.FreelancerCompleted,
		Winner:              p.Winner,
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
	}
}
