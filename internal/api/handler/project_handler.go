package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/escrow-service/internal/api/metrics"
	"github.com/99minutos/escrow-service/internal/core/domain"
	"github.com/99minutos/escrow-service/internal/core/ports"
)

// HeaderIdempotencyKey lets clients retry project creation safely.
const HeaderIdempotencyKey = "Idempotency-Key"

// ProjectHandler exposes the escrow operations over HTTP. Errors are
// returned to Echo so the central error handler renders them.
type ProjectHandler struct {
	service ports.EscrowService
}

func NewProjectHandler(service ports.EscrowService) *ProjectHandler {
	return &ProjectHandler{service: service}
}

// Create locks value into a new project funded by the caller.
//
// @Summary      Create and fund a project
// @Tags         projects
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        Idempotency-Key  header    string                false  "Retry key scoped to the caller"
// @Param        body             body      createProjectRequest  true   "Project terms"
// @Success      201              {object}  projectResponse
// @Success      200              {object}  projectResponse  "Replayed from Idempotency-Key"
// @Failure      400              {object}  errorBody
// @Failure      401              {object}  errorBody
// @Router       /v1/projects [post]
func (h *ProjectHandler) Create(c echo.Context) (err error) {
	defer func(start time.Time) { metrics.ObserveOperation("create", start, err) }(time.Now())

	caller, err := callerIdentity(c)
	if err != nil {
		return err
	}

	var req createProjectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	res, err := h.service.CreateAndFund(c.Request().Context(), ports.CreateProjectInput{
		Caller:         caller,
		Freelancer:     domain.Identity(req.Freelancer),
		Details:        req.Details,
		Deadline:       req.Deadline,
		Value:          domain.Amount(req.Value),
		IdempotencyKey: c.Request().Header.Get(HeaderIdempotencyKey),
	})
	if err != nil {
		return err
	}

	status := http.StatusCreated
	if res.AlreadyExisted {
		metrics.IdempotentReplaysTotal.Inc()
		status = http.StatusOK
	}
	return c.JSON(status, toProjectResponse(res.Project))
}

// Complete records the freelancer's completion claim.
//
// @Summary      Mark a project complete
// @Tags         projects
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Project ID"
// @Success      200  {object}  projectResponse
// @Failure      403  {object}  errorBody
// @Failure      404  {object}  errorBody
// @Failure      409  {object}  errorBody
// @Failure      422  {object}  errorBody
// @Router       /v1/projects/{id}/complete [post]
func (h *ProjectHandler) Complete(c echo.Context) (err error) {
	defer func(start time.Time) { metrics.ObserveOperation("complete", start, err) }(time.Now())
	return h.transition(c, h.service.MarkComplete)
}

// Approve has the client approve the work and pays the freelancer.
//
// @Summary      Approve and release funds
// @Tags         projects
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Project ID"
// @Success      200  {object}  projectResponse
// @Failure      403  {object}  errorBody
// @Failure      404  {object}  errorBody
// @Failure      409  {object}  errorBody
// @Failure      422  {object}  errorBody
// @Failure      502  {object}  errorBody
// @Router       /v1/projects/{id}/approve [post]
func (h *ProjectHandler) Approve(c echo.Context) (err error) {
	defer func(start time.Time) { metrics.ObserveOperation("approve", start, err) }(time.Now())
	return h.transition(c, h.service.ApproveAndRelease)
}

// Dispute moves a funded or completed project into dispute.
//
// @Summary      Raise a dispute
// @Tags         projects
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Project ID"
// @Success      200  {object}  projectResponse
// @Failure      403  {object}  errorBody
// @Failure      404  {object}  errorBody
// @Failure      409  {object}  errorBody
// @Router       /v1/projects/{id}/dispute [post]
func (h *ProjectHandler) Dispute(c echo.Context) (err error) {
	defer func(start time.Time) { metrics.ObserveOperation("dispute", start, err) }(time.Now())
	return h.transition(c, h.service.RaiseDispute)
}

// Resolve settles a dispute in favour of one party.
//
// @Summary      Resolve a dispute
// @Tags         projects
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int                    true  "Project ID"
// @Param        body  body      resolveDisputeRequest  true  "Ruling"
// @Success      200   {object}  projectResponse
// @Failure      400   {object}  errorBody
// @Failure      403   {object}  errorBody
// @Failure      404   {object}  errorBody
// @Failure      409   {object}  errorBody
// @Failure      502   {object}  errorBody
// @Router       /v1/projects/{id}/resolve [post]
func (h *ProjectHandler) Resolve(c echo.Context) (err error) {
	defer func(start time.Time) { metrics.ObserveOperation("resolve", start, err) }(time.Now())

	caller, err := callerIdentity(c)
	if err != nil {
		return err
	}
	id, err := projectID(c)
	if err != nil {
		return err
	}

	var req resolveDisputeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	view, err := h.service.ResolveDispute(c.Request().Context(), id, *req.FavorFreelancer, caller)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toProjectResponse(view))
}

// Get returns a project snapshot. Any authenticated caller may read it.
//
// @Summary      Get project details
// @Tags         projects
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Project ID"
// @Success      200  {object}  projectResponse
// @Failure      404  {object}  errorBody
// @Router       /v1/projects/{id} [get]
func (h *ProjectHandler) Get(c echo.Context) (err error) {
	defer func(start time.Time) { metrics.ObserveOperation("get", start, err) }(time.Now())

	id, err := projectID(c)
	if err != nil {
		return err
	}
	view, err := h.service.GetDetails(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toProjectResponse(view))
}

// Events returns the audit trail of a project.
//
// @Summary      List project events
// @Tags         operator
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Project ID"
// @Success      200  {object}  eventListResponse
// @Failure      403  {object}  errorBody
// @Failure      404  {object}  errorBody
// @Router       /v1/projects/{id}/events [get]
func (h *ProjectHandler) Events(c echo.Context) (err error) {
	defer func(start time.Time) { metrics.ObserveOperation("events", start, err) }(time.Now())

	id, err := projectID(c)
	if err != nil {
		return err
	}
	events, err := h.service.Events(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, eventListResponse{ProjectID: id, Events: toEventResponses(events)})
}

// Balance reports the total value currently held in escrow.
//
// @Summary      Held balance
// @Tags         operator
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  balanceResponse
// @Failure      403  {object}  errorBody
// @Router       /v1/balance [get]
func (h *ProjectHandler) Balance(c echo.Context) (err error) {
	defer func(start time.Time) { metrics.ObserveOperation("balance", start, err) }(time.Now())

	held, err := h.service.GetBalance(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, balanceResponse{Held: int64(held)})
}

type transitionFunc func(ctx context.Context, id uint64, caller domain.Identity) (*ports.ProjectView, error)

// transition runs a caller-gated operation that takes no request body.
func (h *ProjectHandler) transition(c echo.Context, op transitionFunc) error {
	caller, err := callerIdentity(c)
	if err != nil {
		return err
	}
	id, err := projectID(c)
	if err != nil {
		return err
	}

	view, err := op(c.Request().Context(), id, caller)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toProjectResponse(view))
}
