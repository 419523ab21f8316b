package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	cmdhandlers "studypace/application/commands/handlers"
	qryhandlers "studypace/application/queries/handlers"
	"studypace/domain/analysis"
	domaincfg "studypace/domain/config"
	"studypace/domain/cogload"
	"studypace/domain/core/entities"
	"studypace/domain/core/valueobjects"
	"studypace/domain/memory"
	"studypace/domain/ranking"
	"studypace/domain/scheduling"
	"studypace/infrastructure/config"
	memstore "studypace/infrastructure/persistence/memory"
	"studypace/interfaces/http/rest/handlers"
	"studypace/pkg/auth"
)

type apiFixture struct {
	server   *httptest.Server
	unitRepo *memstore.UnitRepository
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	logger := zap.NewNop()
	dcfg := domaincfg.DefaultDomainConfig()
	model := memory.NewModel(dcfg)
	estimator := cogload.NewEstimator(dcfg)
	ranker := ranking.NewRanker(model)
	builder := scheduling.NewBuilder(dcfg, estimator)
	analyzer := analysis.NewAnalyzer(dcfg, model)

	entryRepo := memstore.NewEntryRepository()
	reviewRepo := memstore.NewReviewRepository()
	profileRepo := memstore.NewProfileRepository()
	unitRepo := memstore.NewUnitRepository()
	idempotency := memstore.NewIdempotencyStore()
	locker := memstore.NewLocker()
	publisher := memstore.NewPublisher()

	generate := cmdhandlers.NewGenerateScheduleOrchestrator(
		entryRepo, reviewRepo, profileRepo, unitRepo, locker, publisher,
		model, ranker, builder, estimator, dcfg, logger)
	record := cmdhandlers.NewRecordPerformanceHandler(
		entryRepo, reviewRepo, profileRepo, unitRepo, idempotency, locker, publisher,
		model, analyzer, estimator, dcfg, logger)
	adapt := cmdhandlers.NewAdaptSchedulesHandler(
		entryRepo, reviewRepo, profileRepo, unitRepo, locker, publisher, model, dcfg, logger)
	lifecycle := cmdhandlers.NewEntryLifecycleHandler(entryRepo, locker, publisher, logger)

	perfQueries := qryhandlers.NewPerformanceQueryHandler(
		reviewRepo, entryRepo, profileRepo, unitRepo, analyzer, logger)
	listQueries := qryhandlers.NewListEntriesHandler(entryRepo, logger)

	validator, err := auth.NewJWTValidator(auth.JWTConfig{
		SecretKey: "test-secret-key-must-be-long-enough",
		Issuer:    "studypace",
	})
	require.NoError(t, err)

	router := NewRouter(
		&config.Config{EnableCORS: false},
		handlers.NewScheduleHandler(generate, adapt, lifecycle, listQueries, logger),
		handlers.NewPerformanceHandler(record, perfQueries, logger),
		validator,
		auth.NewIPRateLimiter(1000),
		auth.NewUserRateLimiter(1000),
		nil,
		logger,
	)

	server := httptest.NewServer(router.Setup())
	t.Cleanup(server.Close)

	return &apiFixture{server: server, unitRepo: unitRepo}
}

func (f *apiFixture) addUnits(t *testing.T, materialID string, count int) {
	t.Helper()
	diff, err := valueobjects.NewDifficulty(0.5)
	require.NoError(t, err)
	for i := 0; i < count; i++ {
		unit, err := entities.NewMaterialUnit(
			materialID, fmt.Sprintf("Chapter %d", i+1), i, i*5000, (i+1)*5000, 1000, diff, 200)
		require.NoError(t, err)
		require.NoError(t, f.unitRepo.Save(context.Background(), unit))
	}
}

func (f *apiFixture) request(t *testing.T, method, path string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Gateway-Authorized", "true")
	req.Header.Set("X-Learner-ID", "learner-1")
	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeData(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var envelope struct {
		Success bool                   `json:"success"`
		Data    map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return envelope.Data
}

func TestAPI_GenerateAndListSchedule(t *testing.T) {
	f := newAPIFixture(t)
	f.addUnits(t, "material-1", 3)

	resp := f.request(t, http.MethodPost, "/api/v1/schedules/generate", map[string]interface{}{
		"material_id":         "material-1",
		"target_date":         time.Now().AddDate(0, 0, 14).Format(time.RFC3339),
		"daily_study_minutes": 120,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	data := decodeData(t, resp)
	entries, ok := data["entries"].([]interface{})
	require.True(t, ok)
	assert.Len(t, entries, 3)
	assert.Equal(t, true, data["target_met"])

	resp = f.request(t, http.MethodGet, "/api/v1/schedules?page=1&page_size=10", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	defer resp.Body.Close()
	var envelope struct {
		Data []map[string]interface{} `json:"data"`
		Meta struct {
			Pagination struct {
				Total int `json:"total"`
			} `json:"pagination"`
		} `json:"meta"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.Len(t, envelope.Data, 3)
	assert.Equal(t, 3, envelope.Meta.Pagination.Total)
	for _, e := range envelope.Data {
		assert.Equal(t, "scheduled", e["status"])
	}
}

func TestAPI_CompleteEntry(t *testing.T) {
	f := newAPIFixture(t)
	f.addUnits(t, "material-1", 1)

	resp := f.request(t, http.MethodPost, "/api/v1/schedules/generate", map[string]interface{}{
		"material_id":         "material-1",
		"target_date":         time.Now().AddDate(0, 0, 7).Format(time.RFC3339),
		"daily_study_minutes": 120,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	data := decodeData(t, resp)
	entries := data["entries"].([]interface{})
	entryID := entries[0].(map[string]interface{})["id"].(string)

	resp = f.request(t, http.MethodPost, "/api/v1/schedules/"+entryID+"/complete", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	completed := decodeData(t, resp)
	assert.Equal(t, "completed", completed["status"])
	assert.NotEmpty(t, completed["completed_at"])
}

func TestAPI_RescheduleEntry(t *testing.T) {
	f := newAPIFixture(t)
	f.addUnits(t, "material-1", 1)

	resp := f.request(t, http.MethodPost, "/api/v1/schedules/generate", map[string]interface{}{
		"material_id":         "material-1",
		"target_date":         time.Now().AddDate(0, 0, 7).Format(time.RFC3339),
		"daily_study_minutes": 120,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	data := decodeData(t, resp)
	entries := data["entries"].([]interface{})
	entryID := entries[0].(map[string]interface{})["id"].(string)

	newTime := time.Now().AddDate(0, 0, 3)
	resp = f.request(t, http.MethodPost, "/api/v1/schedules/"+entryID+"/reschedule", map[string]interface{}{
		"new_time": newTime.Format(time.RFC3339),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	replacement := decodeData(t, resp)
	assert.NotEqual(t, entryID, replacement["id"])
	assert.Equal(t, "scheduled", replacement["status"])
}

func TestAPI_RecordPerformanceIdempotent(t *testing.T) {
	f := newAPIFixture(t)
	f.addUnits(t, "material-1", 1)

	units, err := f.unitRepo.ListByMaterial(context.Background(), "material-1")
	require.NoError(t, err)
	body := map[string]interface{}{
		"unit_id":         units[0].ID().String(),
		"event_id":        "event-1",
		"observed_score":  0.8,
		"elapsed_minutes": 25.0,
	}

	resp := f.request(t, http.MethodPost, "/api/v1/performance/record", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	first := decodeData(t, resp)
	assert.Equal(t, false, first["already_processed"])
	assert.Greater(t, first["updated_half_life_days"].(float64), 0.0)

	// same event again returns the duplicate marker, not a second record
	resp = f.request(t, http.MethodPost, "/api/v1/performance/record", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	second := decodeData(t, resp)
	assert.Equal(t, true, second["already_processed"])
}

func TestAPI_LearningCurveAfterRecord(t *testing.T) {
	f := newAPIFixture(t)
	f.addUnits(t, "material-1", 1)

	units, err := f.unitRepo.ListByMaterial(context.Background(), "material-1")
	require.NoError(t, err)
	unitID := units[0].ID().String()

	resp := f.request(t, http.MethodPost, "/api/v1/performance/record", map[string]interface{}{
		"unit_id":         unitID,
		"event_id":        "event-1",
		"observed_score":  0.9,
		"elapsed_minutes": 20.0,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = f.request(t, http.MethodGet, "/api/v1/performance/curve?unit_id="+unitID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	curve := decodeData(t, resp)
	points := curve["points"].([]interface{})
	assert.Len(t, points, 1)

	resp = f.request(t, http.MethodGet, "/api/v1/performance/summary", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summary := decodeData(t, resp)
	assert.Equal(t, float64(1), summary["review_count"])
}

func TestAPI_Unauthorized(t *testing.T) {
	f := newAPIFixture(t)

	req, err := http.NewRequest(http.MethodGet, f.server.URL+"/api/v1/schedules", nil)
	require.NoError(t, err)
	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPI_GenerateValidation(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.request(t, http.MethodPost, "/api/v1/schedules/generate", map[string]interface{}{
		"target_date":         time.Now().AddDate(0, 0, 7).Format(time.RFC3339),
		"daily_study_minutes": 120,
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_Health(t *testing.T) {
	f := newAPIFixture(t)

	resp, err := f.server.Client().Get(f.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = f.server.Client().Get(f.server.URL + "/ready")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
