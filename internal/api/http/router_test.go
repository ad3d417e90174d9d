package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-lifecycle/internal/api/dto"
	"github.com/spec-kit/ticket-lifecycle/internal/api/http/handlers"
	"github.com/spec-kit/ticket-lifecycle/internal/domain"
	"github.com/spec-kit/ticket-lifecycle/internal/observability"
	"github.com/spec-kit/ticket-lifecycle/internal/repository"
	"github.com/spec-kit/ticket-lifecycle/internal/service"
)

type errorBody struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func newTestApp(t *testing.T, repo repository.TicketRepository, clock func() time.Time) *fiber.App {
	t.Helper()

	metrics := observability.NewMetrics()
	svc := service.NewTicketService(service.TicketDependencies{
		TicketRepo: repo,
		Metrics:    metrics,
		Clock:      clock,
	})
	checks := map[string]handlers.DependencyCheck{
		"store": func(context.Context) error { return nil },
	}
	return NewApp(ServerConfig{
		AppName:        "test",
		Logger:         zap.NewNop(),
		Metrics:        metrics,
		RequestTimeout: 5 * time.Second,
		Routes: RouteConfig{
			Health:  handlers.NewHealthHandler("test", "v0", checks, metrics),
			Tickets: handlers.NewTicketsHandler(svc, handlers.NewRequestValidator()),
		},
	})
}

func do(t *testing.T, app *fiber.App, method, path string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(data, &out), string(data))
	return out
}

func TestTicketRoutes_Lifecycle(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, repository.NewMemoryTicketRepository(), nil)

	status, data := do(t, app, http.MethodPost, "/api/tickets", map[string]string{"topic": "printer", "text": "jammed"})
	require.Equal(t, http.StatusCreated, status, string(data))
	created := decode[dto.TicketResponse](t, data)
	assert.Equal(t, domain.TicketStatusNew, created.Status)
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)
	assert.NotContains(t, string(data), "solution")
	assert.NotContains(t, string(data), "cancellationReason")

	status, data = do(t, app, http.MethodPut, "/api/tickets/"+created.ID+"/take-to-work", nil)
	require.Equal(t, http.StatusOK, status, string(data))
	assert.Equal(t, domain.TicketStatusInProgress, decode[dto.TicketResponse](t, data).Status)

	status, data = do(t, app, http.MethodPut, "/api/tickets/"+created.ID+"/complete", map[string]string{"solution": "cleared jam"})
	require.Equal(t, http.StatusOK, status, string(data))
	completed := decode[dto.TicketResponse](t, data)
	assert.Equal(t, domain.TicketStatusCompleted, completed.Status)
	require.NotNil(t, completed.Solution)
	assert.Equal(t, "cleared jam", *completed.Solution)

	status, data = do(t, app, http.MethodPut, "/api/tickets/"+created.ID+"/cancel", map[string]string{"cancellationReason": "n/a"})
	require.Equal(t, http.StatusOK, status, string(data))
	cancelled := decode[dto.TicketResponse](t, data)
	assert.Equal(t, domain.TicketStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancellationReason)
	assert.Equal(t, "n/a", *cancelled.CancellationReason)

	status, data = do(t, app, http.MethodGet, "/api/tickets", nil)
	require.Equal(t, http.StatusOK, status)
	list := decode[[]dto.TicketResponse](t, data)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)
}

func TestTicketRoutes_NotFound(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, repository.NewMemoryTicketRepository(), nil)

	testCases := []struct {
		name string
		path string
		body any
	}{
		{name: "take to work", path: "/api/tickets/missing/take-to-work"},
		{name: "complete", path: "/api/tickets/missing/complete", body: map[string]string{"solution": "x"}},
		{name: "cancel", path: "/api/tickets/missing/cancel", body: map[string]string{"cancellationReason": "x"}},
	}

	for _, testCase := range testCases {
		status, data := do(t, app, http.MethodPut, testCase.path, testCase.body)
		assert.Equal(t, http.StatusNotFound, status, testCase.name)
		body := decode[errorBody](t, data)
		assert.Equal(t, "NOT_FOUND", body.Error.Code, testCase.name)
		assert.Equal(t, "Ticket not found", body.Error.Message, testCase.name)
	}
}

func TestTicketRoutes_Validation(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, repository.NewMemoryTicketRepository(), nil)
	status, data := do(t, app, http.MethodPost, "/api/tickets", map[string]string{"topic": "printer", "text": "jammed"})
	require.Equal(t, http.StatusCreated, status)
	id := decode[dto.TicketResponse](t, data).ID

	testCases := []struct {
		name        string
		method      string
		path        string
		body        any
		wantDetails map[string]any
	}{
		{
			name:   "create missing both",
			method: http.MethodPost,
			path:   "/api/tickets",
			body:   map[string]string{},
			wantDetails: map[string]any{
				"topic": "Topic is required",
				"text":  "Text is required",
			},
		},
		{
			name:        "create empty topic",
			method:      http.MethodPost,
			path:        "/api/tickets",
			body:        map[string]string{"topic": "", "text": "x"},
			wantDetails: map[string]any{"topic": "Topic is required"},
		},
		{
			name:        "complete without solution",
			method:      http.MethodPut,
			path:        "/api/tickets/" + id + "/complete",
			body:        map[string]string{},
			wantDetails: map[string]any{"solution": "Solution is required"},
		},
		{
			name:        "cancel without reason",
			method:      http.MethodPut,
			path:        "/api/tickets/" + id + "/cancel",
			body:        map[string]string{"cancellationReason": ""},
			wantDetails: map[string]any{"cancellationReason": "Cancellation reason is required"},
		},
	}

	for _, testCase := range testCases {
		status, data := do(t, app, testCase.method, testCase.path, testCase.body)
		assert.Equal(t, http.StatusBadRequest, status, testCase.name)
		body := decode[errorBody](t, data)
		assert.Equal(t, "VALIDATION_FAILED", body.Error.Code, testCase.name)
		assert.Equal(t, testCase.wantDetails, body.Error.Details, testCase.name)
	}

	// Rejected requests never reach the store.
	status, data = do(t, app, http.MethodGet, "/api/tickets", nil)
	require.Equal(t, http.StatusOK, status)
	list := decode[[]dto.TicketResponse](t, data)
	require.Len(t, list, 1)
	assert.Equal(t, domain.TicketStatusNew, list[0].Status)
}

func TestTicketRoutes_MalformedJSON(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, repository.NewMemoryTicketRepository(), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/tickets", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTicketRoutes_ListDateFilter(t *testing.T) {
	t.Parallel()

	times := []time.Time{
		time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 25, 12, 0, 0, 0, time.UTC),
	}
	i := 0
	clock := func() time.Time {
		now := times[i]
		if i < len(times)-1 {
			i++
		}
		return now
	}
	app := newTestApp(t, repository.NewMemoryTicketRepository(), clock)

	for _, topic := range []string{"early", "middle", "late"} {
		status, _ := do(t, app, http.MethodPost, "/api/tickets", map[string]string{"topic": topic, "text": "x"})
		require.Equal(t, http.StatusCreated, status)
	}

	topics := func(path string) []string {
		status, data := do(t, app, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, status, string(data))
		out := []string{}
		for _, ticket := range decode[[]dto.TicketResponse](t, data) {
			out = append(out, ticket.Topic)
		}
		return out
	}

	assert.Equal(t, []string{"early", "middle", "late"}, topics("/api/tickets"))
	assert.Equal(t, []string{"middle"}, topics("/api/tickets?startDate=2024-01-10&endDate=2024-01-20"))
	assert.Equal(t, []string{"middle", "late"}, topics("/api/tickets?startDate=2024-01-10"))
	assert.Equal(t, []string{"early", "middle"}, topics("/api/tickets?endDate=2024-01-15T12:00:00Z"))
	assert.Equal(t, []string{}, topics("/api/tickets?startDate=2025-01-01"))

	status, data := do(t, app, http.MethodGet, "/api/tickets?startDate=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	body := decode[errorBody](t, data)
	assert.Contains(t, body.Error.Details, "startDate")
}

func TestTicketRoutes_CancelAllInProgress(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, repository.NewMemoryTicketRepository(), nil)
	var ids []string
	for _, topic := range []string{"a", "b", "c"} {
		status, data := do(t, app, http.MethodPost, "/api/tickets", map[string]string{"topic": topic, "text": "x"})
		require.Equal(t, http.StatusCreated, status)
		ids = append(ids, decode[dto.TicketResponse](t, data).ID)
	}
	for _, id := range ids[:2] {
		status, _ := do(t, app, http.MethodPut, "/api/tickets/"+id+"/take-to-work", nil)
		require.Equal(t, http.StatusOK, status)
	}

	status, data := do(t, app, http.MethodPost, "/api/tickets/cancel-all-in-progress", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "All in-progress tickets have been canceled", decode[dto.MessageResponse](t, data).Message)

	status, data = do(t, app, http.MethodGet, "/api/tickets", nil)
	require.Equal(t, http.StatusOK, status)
	got := map[string]domain.TicketStatus{}
	for _, ticket := range decode[[]dto.TicketResponse](t, data) {
		got[ticket.ID] = ticket.Status
	}
	assert.Equal(t, map[string]domain.TicketStatus{
		ids[0]: domain.TicketStatusCancelled,
		ids[1]: domain.TicketStatusCancelled,
		ids[2]: domain.TicketStatusNew,
	}, got)
}

type brokenRepo struct{}

var errBroken = errors.New("disk on fire")

func (brokenRepo) Insert(context.Context, *domain.Ticket) (string, error) { return "", errBroken }
func (brokenRepo) UpdateByID(context.Context, string, domain.TicketMutation) (*domain.Ticket, error) {
	return nil, errBroken
}
func (brokenRepo) UpdateManyWhere(context.Context, domain.TicketFilter, domain.TicketMutation) (int64, error) {
	return 0, errBroken
}
func (brokenRepo) FindWhere(context.Context, domain.TicketFilter) ([]domain.Ticket, error) {
	return nil, errBroken
}

func TestTicketRoutes_StorageFailure(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, brokenRepo{}, nil)

	testCases := []struct {
		method      string
		path        string
		body        any
		wantMessage string
	}{
		{http.MethodPost, "/api/tickets", map[string]string{"topic": "a", "text": "b"}, "failed to create ticket"},
		{http.MethodPut, "/api/tickets/x/take-to-work", nil, "failed to take ticket to work"},
		{http.MethodPut, "/api/tickets/x/complete", map[string]string{"solution": "s"}, "failed to complete ticket"},
		{http.MethodPut, "/api/tickets/x/cancel", map[string]string{"cancellationReason": "r"}, "failed to cancel ticket"},
		{http.MethodGet, "/api/tickets", nil, "failed to fetch tickets"},
		{http.MethodPost, "/api/tickets/cancel-all-in-progress", nil, "failed to cancel in-progress tickets"},
	}

	for _, testCase := range testCases {
		status, data := do(t, app, testCase.method, testCase.path, testCase.body)
		assert.Equal(t, http.StatusInternalServerError, status, testCase.path)
		body := decode[errorBody](t, data)
		assert.Equal(t, "INTERNAL_ERROR", body.Error.Code)
		assert.Equal(t, testCase.wantMessage, body.Error.Message)
		assert.NotContains(t, string(data), "disk on fire")
	}
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, repository.NewMemoryTicketRepository(), nil)

	status, data := do(t, app, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(data), `"alive"`)

	status, data = do(t, app, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(data), `"store":"ok"`)

	status, _ = do(t, app, http.MethodPost, "/api/tickets", map[string]string{"topic": "a", "text": "b"})
	require.Equal(t, http.StatusCreated, status)

	status, data = do(t, app, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, status)
	snap := decode[observability.MetricsSnapshot](t, data)
	created := int64(0)
	for key, count := range snap.Requests {
		if strings.HasSuffix(key, "|POST|201") {
			created += count
		}
	}
	assert.Equal(t, int64(1), created)
	assert.Equal(t, int64(1), snap.TicketOperations["create ticket|ok"])
}

func TestReadyReportsFailingDependency(t *testing.T) {
	t.Parallel()

	checks := map[string]handlers.DependencyCheck{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	}
	app := fiber.New()
	app.Get("/health/ready", handlers.NewHealthHandler("svc", "v", checks, nil).Ready)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health/ready", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestUnknownRouteUsesErrorEnvelope(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, repository.NewMemoryTicketRepository(), nil)
	status, data := do(t, app, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", decode[errorBody](t, data).Error.Code)
}

func TestTicketRoutes_IDSurvivesLaterRequests(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, repository.NewMemoryTicketRepository(), nil)
	status, data := do(t, app, http.MethodPost, "/api/tickets", map[string]string{"topic": "printer", "text": "jammed"})
	require.Equal(t, http.StatusCreated, status)
	id := decode[dto.TicketResponse](t, data).ID

	status, _ = do(t, app, http.MethodPut, "/api/tickets/"+id+"/take-to-work", nil)
	require.Equal(t, http.StatusOK, status)

	// Same length and offset as the real id, so a retained request buffer would be overwritten.
	other := "00000000-0000-0000-0000-000000000000"
	require.Len(t, other, len(id))
	status, _ = do(t, app, http.MethodPut, "/api/tickets/"+other+"/take-to-work", nil)
	require.Equal(t, http.StatusNotFound, status)

	status, data = do(t, app, http.MethodGet, "/api/tickets", nil)
	require.Equal(t, http.StatusOK, status)
	list := decode[[]dto.TicketResponse](t, data)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)
	assert.Equal(t, domain.TicketStatusInProgress, list[0].Status)

	status, data = do(t, app, http.MethodPut, "/api/tickets/"+id+"/complete", map[string]string{"solution": "cleared"})
	require.Equal(t, http.StatusOK, status, string(data))
	assert.Equal(t, domain.TicketStatusCompleted, decode[dto.TicketResponse](t, data).Status)
}
