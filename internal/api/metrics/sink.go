package metrics

import (
	"context"

	"github.com/99minutos/escrow-service/internal/core/domain"
)

// Sink turns delivered project events into Prometheus samples.
type Sink struct{}

func NewSink() *Sink { return &Sink{} }

func (s *Sink) Name() string { return "prometheus" }

func (s *Sink) Handle(_ context.Context, e domain.Event) error {
	EventsTotal.WithLabelValues(string(e.Type)).Inc()

	switch e.Type {
	case domain.EventFundsReleased:
		FundsReleasedTotal.WithLabelValues("approval").Add(float64(e.Amount))
	case domain.EventDisputeResolved:
		FundsReleasedTotal.WithLabelValues("dispute").Add(float64(e.Amount))
	}
	return nil
}
