package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/dukex/styxgo/pkg/api"
	"github.com/dukex/styxgo/pkg/backfill"
	"github.com/dukex/styxgo/pkg/eventlog"
	"github.com/dukex/styxgo/pkg/handlers"
	"github.com/dukex/styxgo/pkg/models"
	"github.com/dukex/styxgo/pkg/statemanager"
	"github.com/dukex/styxgo/pkg/workflow"
)

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()

	workflows := workflow.NewMemoryStore()
	image := "gcr.io/example/image:latest"
	require.NoError(t, workflows.Save(context.Background(), models.Workflow{
		ID:            models.WorkflowId{Component: "c", Name: "w"},
		Schedule:      models.Schedule{Kind: models.Days},
		Configuration: models.WorkflowConfiguration{DockerImage: &image},
		Enabled:       true,
	}))

	events := eventlog.NewMemoryStore()
	manager := statemanager.New(events, []handlers.Handler{})
	engine := backfill.New(backfill.NewMemoryStore(), workflows, events, manager)

	return api.New(engine, noop.NewTracerProvider().Tracer("test")).App()
}

func TestCreateBackfill_Succeeds(t *testing.T) {
	t.Parallel()
	app := setupTestApp(t)

	body, err := json.Marshal(api.BackfillInput{
		Component:   "c",
		Workflow:    "w",
		Start:       time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		End:         time.Date(2020, 1, 5, 0, 0, 0, 0, time.UTC),
		Concurrency: 2,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v3/backfills", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))

	var b models.Backfill
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&b))
	assert.Equal(t, "c", b.WorkflowId.Component)
	assert.Equal(t, 2, b.Concurrency)
}

func TestCreateBackfill_UnknownWorkflowIs404(t *testing.T) {
	t.Parallel()
	app := setupTestApp(t)

	body, err := json.Marshal(api.BackfillInput{
		Component:   "nope",
		Workflow:    "nope",
		Start:       time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		End:         time.Date(2020, 1, 5, 0, 0, 0, 0, time.UTC),
		Concurrency: 1,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v3/backfills", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateBackfill_MisalignedRangeIs400(t *testing.T) {
	t.Parallel()
	app := setupTestApp(t)

	body, err := json.Marshal(api.BackfillInput{
		Component:   "c",
		Workflow:    "w",
		Start:       time.Date(2020, 1, 1, 3, 0, 0, 0, time.UTC),
		End:         time.Date(2020, 1, 5, 0, 0, 0, 0, time.UTC),
		Concurrency: 1,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v3/backfills", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetBackfill_MissingIs404(t *testing.T) {
	t.Parallel()
	app := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v3/backfills/does-not-exist", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpdateBackfill_RejectsZeroConcurrency(t *testing.T) {
	t.Parallel()
	app := setupTestApp(t)

	createBody, err := json.Marshal(api.BackfillInput{
		Component:   "c",
		Workflow:    "w",
		Start:       time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		End:         time.Date(2020, 1, 5, 0, 0, 0, 0, time.UTC),
		Concurrency: 1,
	})
	require.NoError(t, err)

	createReq := httptest.NewRequest(http.MethodPost, "/api/v3/backfills", bytes.NewReader(createBody))
	createReq.Header.Set("Content-Type", "application/json")
	createResp, err := app.Test(createReq)
	require.NoError(t, err)
	defer createResp.Body.Close()

	var created models.Backfill
	require.NoError(t, json.NewDecoder(createResp.Body).Decode(&created))

	zero := 0
	updateBody, err := json.Marshal(api.EditableBackfillInput{Concurrency: &zero})
	require.NoError(t, err)

	updateReq := httptest.NewRequest(http.MethodPut, "/api/v3/backfills/"+created.ID, bytes.NewReader(updateBody))
	updateReq.Header.Set("Content-Type", "application/json")

	updateResp, err := app.Test(updateReq)
	require.NoError(t, err)
	defer updateResp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, updateResp.StatusCode)
}

func TestHaltBackfill_Succeeds(t *testing.T) {
	t.Parallel()
	app := setupTestApp(t)

	createBody, err := json.Marshal(api.BackfillInput{
		Component:   "c",
		Workflow:    "w",
		Start:       time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		End:         time.Date(2020, 1, 5, 0, 0, 0, 0, time.UTC),
		Concurrency: 1,
	})
	require.NoError(t, err)

	createReq := httptest.NewRequest(http.MethodPost, "/api/v3/backfills", bytes.NewReader(createBody))
	createReq.Header.Set("Content-Type", "application/json")
	createResp, err := app.Test(createReq)
	require.NoError(t, err)
	defer createResp.Body.Close()

	var created models.Backfill
	require.NoError(t, json.NewDecoder(createResp.Body).Decode(&created))

	haltReq := httptest.NewRequest(http.MethodDelete, "/api/v3/backfills/"+created.ID, nil)
	haltResp, err := app.Test(haltReq)
	require.NoError(t, err)
	defer haltResp.Body.Close()

	assert.Equal(t, http.StatusNoContent, haltResp.StatusCode)
}

func TestListBackfills_ReturnsEnvelope(t *testing.T) {
	t.Parallel()
	app := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v3/backfills", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out api.BackfillsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Empty(t, out.Backfills)
}
