package handler

import (
	"github.com/99minutos/escrow-service/internal/core/domain"
	"github.com/99minutos/escrow-service/internal/core/ports"
)

func toProjectResponse(v *ports.ProjectView) projectResponse {
	return projectResponse{
		ID:                  v.ID,
		Client:              string(v.Client),
		Freelancer:          string(v.Freelancer),
		Amount:              int64(v.Amount),
		Status:              string(v.Status),
		Details:             v.Details,
		Deadline:            v.Deadline,
		ClientApproved:      v.ClientApproved,
		FreelancerCompleted: v.FreelancerCompleted,
		Winner:              string(v.Winner),
		CreatedAt:           v.CreatedAt,
		UpdatedAt:           v.UpdatedAt,
	}
}

func toEventResponses(events []domain.Event) []eventResponse {
	out := make([]eventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, eventResponse{
			ID:         e.ID,
			ProjectID:  e.ProjectID,
			Type:       string(e.Type),
			Actor:      string(e.Actor),
			Amount:     int64(e.Amount),
			Winner:     string(e.Winner),
			OccurredAt: e.OccurredAt,
		})
	}
	return out
}
