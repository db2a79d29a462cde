package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99minutos/escrow-service/internal/core/domain"
	"github.com/99minutos/escrow-service/internal/core/service"
	"github.com/99minutos/escrow-service/internal/infrastructure/memory"
)

// logPublisher appends straight to the event log, standing in for the
// dispatcher.
type logPublisher struct{ log *memory.EventLog }

func (p logPublisher) Publish(ctx context.Context, e domain.Event) { _ = p.log.Append(ctx, e) }

type projectFixture struct {
	e       *echo.Echo
	handler *ProjectHandler
	ledger  *memory.Ledger
	now     time.Time
}

func newProjectFixture(t *testing.T) *projectFixture {
	t.Helper()
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	events := memory.NewEventLog()
	ledger := memory.NewLedger()
	svc := service.NewEscrowService(
		memory.NewProjectStore(), ledger, logPublisher{log: events}, zerolog.Nop(),
		service.WithClock(func() time.Time { return now }),
		service.WithEventLog(events),
		service.WithIdempotencyStore(memory.NewIdempotencyStore()),
	)

	e := echo.New()
	e.Validator = NewValidator()
	return &projectFixture{e: e, handler: NewProjectHandler(svc), ledger: ledger, now: now}
}

func (f *projectFixture) request(method, path, body, caller string, id *uint64) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	c := f.e.NewContext(req, rec)
	if caller != "" {
		c.Set("identity", caller)
	}
	if id != nil {
		c.SetParamNames("id")
		c.SetParamValues(strconv.FormatUint(*id, 10))
	}
	return c, rec
}

func (f *projectFixture) create(t *testing.T, value int64) projectResponse {
	t.Helper()
	body := `{"freelancer":"freelancer-f","details":"landing page","deadline":"` +
		f.now.Add(48*time.Hour).Format(time.RFC3339) + `","value":` + strconv.FormatInt(value, 10) + `}`
	c, rec := f.request(http.MethodPost, "/v1/projects", body, "client-c", nil)
	require.NoError(t, f.handler.Create(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp projectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestProjectHandler_Create(t *testing.T) {
	f := newProjectFixture(t)
	resp := f.create(t, 500)

	assert.Equal(t, uint64(0), resp.ID)
	assert.Equal(t, "client-c", resp.Client)
	assert.Equal(t, "freelancer-f", resp.Freelancer)
	assert.Equal(t, int64(500), resp.Amount)
	assert.Equal(t, string(domain.StatusFunded), resp.Status)
}

func TestProjectHandler_Create_IdempotentReplay(t *testing.T) {
	f := newProjectFixture(t)
	body := `{"freelancer":"freelancer-f","deadline":"` + f.now.Add(time.Hour).Format(time.RFC3339) + `","value":10}`

	send := func() (int, projectResponse) {
		c, rec := f.request(http.MethodPost, "/v1/projects", body, "client-c", nil)
		c.Request().Header.Set(HeaderIdempotencyKey, "retry-1")
		require.NoError(t, f.handler.Create(c))
		var resp projectResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return rec.Code, resp
	}

	code, first := send()
	assert.Equal(t, http.StatusCreated, code)
	code, second := send()
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, first.ID, second.ID)
}

func TestProjectHandler_Create_ValidationErrors(t *testing.T) {
	f := newProjectFixture(t)
	deadline := f.now.Add(time.Hour).Format(time.RFC3339)

	cases := []struct {
		name string
		body string
	}{
		{"missing freelancer", `{"deadline":"` + deadline + `","value":10}`},
		{"blank freelancer", `{"freelancer":"  ","deadline":"` + deadline + `","value":10}`},
		{"zero value", `{"freelancer":"f","deadline":"` + deadline + `","value":0}`},
		{"missing deadline", `{"freelancer":"f","value":10}`},
		{"malformed", `{"freelancer":`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := f.request(http.MethodPost, "/v1/projects", tc.body, "client-c", nil)
			err := f.handler.Create(c)

			var he *echo.HTTPError
			require.True(t, errors.As(err, &he), "expected HTTPError, got %v", err)
			assert.Equal(t, http.StatusBadRequest, he.Code)
		})
	}
}

func TestProjectHandler_Create_EngineRejectsSelfDealing(t *testing.T) {
	f := newProjectFixture(t)
	body := `{"freelancer":"client-c","deadline":"` + f.now.Add(time.Hour).Format(time.RFC3339) + `","value":10}`

	c, _ := f.request(http.MethodPost, "/v1/projects", body, "client-c", nil)
	assert.ErrorIs(t, f.handler.Create(c), domain.ErrInvalidArgument)
}

func TestProjectHandler_MissingIdentity(t *testing.T) {
	f := newProjectFixture(t)
	c, _ := f.request(http.MethodPost, "/v1/projects", `{}`, "", nil)

	var he *echo.HTTPError
	require.True(t, errors.As(f.handler.Create(c), &he))
	assert.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestProjectHandler_HappyPathRelease(t *testing.T) {
	f := newProjectFixture(t)
	id := f.create(t, 300).ID

	c, rec := f.request(http.MethodPost, "/", "", "freelancer-f", &id)
	require.NoError(t, f.handler.Complete(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	c, rec = f.request(http.MethodPost, "/", "", "client-c", &id)
	require.NoError(t, f.handler.Approve(c))
	var resp projectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(domain.StatusResolved), resp.Status)
	assert.Equal(t, int64(0), resp.Amount)
	assert.Equal(t, "freelancer-f", resp.Winner)
	assert.Equal(t, domain.Amount(300), f.ledger.Balance("freelancer-f"))

	c, rec = f.request(http.MethodGet, "/", "", "", nil)
	require.NoError(t, f.handler.Balance(c))
	var bal balanceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bal))
	assert.Equal(t, int64(0), bal.Held)
}

func TestProjectHandler_WrongCallerIsUnauthorized(t *testing.T) {
	f := newProjectFixture(t)
	id := f.create(t, 300).ID

	c, _ := f.request(http.MethodPost, "/", "", "client-c", &id)
	assert.ErrorIs(t, f.handler.Complete(c), domain.ErrUnauthorized)
}

func TestProjectHandler_DisputeAndResolve(t *testing.T) {
	f := newProjectFixture(t)
	id := f.create(t, 120).ID

	c, _ := f.request(http.MethodPost, "/", "", "freelancer-f", &id)
	require.NoError(t, f.handler.Dispute(c))

	c, _ = f.request(http.MethodPost, "/", `{}`, "client-c", &id)
	var he *echo.HTTPError
	require.True(t, errors.As(f.handler.Resolve(c), &he), "favor_freelancer is required")
	assert.Equal(t, http.StatusBadRequest, he.Code)

	c, rec := f.request(http.MethodPost, "/", `{"favor_freelancer":false}`, "client-c", &id)
	require.NoError(t, f.handler.Resolve(c))
	var resp projectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "client-c", resp.Winner)
	assert.Equal(t, domain.Amount(120), f.ledger.Balance("client-c"))

	c, rec = f.request(http.MethodGet, "/", "", "", &id)
	require.NoError(t, f.handler.Events(c))
	var list eventListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	types := make([]string, 0, len(list.Events))
	for _, e := range list.Events {
		types = append(types, e.Type)
	}
	assert.Equal(t, []string{
		string(domain.EventProjectCreated),
		string(domain.EventProjectFunded),
		string(domain.EventProjectDisputed),
		string(domain.EventDisputeResolved),
	}, types)
}

func TestProjectHandler_GetUnknownAndBadID(t *testing.T) {
	f := newProjectFixture(t)

	missing := uint64(42)
	c, _ := f.request(http.MethodGet, "/", "", "", &missing)
	assert.ErrorIs(t, f.handler.Get(c), domain.ErrProjectNotFound)

	c, _ = f.request(http.MethodGet, "/", "", "", nil)
	c.SetParamNames("id")
	c.SetParamValues("-1")
	var he *echo.HTTPError
	require.True(t, errors.As(f.handler.Get(c), &he))
	assert.Equal(t, http.StatusBadRequest, he.Code)
}

func TestProjectHandler_TransferFailure(t *testing.T) {
	f := newProjectFixture(t)
	id := f.create(t, 50).ID
	f.ledger.Fail(errors.New("ledger offline"))

	c, _ := f.request(http.MethodPost, "/", "", "freelancer-f", &id)
	require.NoError(t, f.handler.Complete(c))

	c, _ = f.request(http.MethodPost, "/", "", "client-c", &id)
	assert.ErrorIs(t, f.handler.Approve(c), domain.ErrTransferFailed)

	c, rec := f.request(http.MethodGet, "/", "", "", &id)
	require.NoError(t, f.handler.Get(c))
	var resp projectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(domain.StatusResolved), resp.Status)
}
