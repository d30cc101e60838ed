package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/sma-health-api/internal/dto"
	"github.com/noah-isme/sma-health-api/internal/middleware"
	"github.com/noah-isme/sma-health-api/internal/models"
	appErrors "github.com/noah-isme/sma-health-api/pkg/errors"
	"github.com/noah-isme/sma-health-api/pkg/logger"
)

type responseEnvelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *appErrors.Error       `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

type fakeCampaignSrv struct {
	campaign *models.Campaign
	list     []models.Campaign
	listHit  bool
	notify   *dto.NotifyResult
	students []dto.CampaignStudent
	export   *dto.RosterExport
	err      error

	lastCreate     dto.CreateCampaignRequest
	lastUpdate     dto.UpdateCampaignRequest
	lastTransition dto.TransitionCampaignRequest
	lastFilter     dto.CampaignFilter
	lastID         string
	lastFormat     string
}

func (f *fakeCampaignSrv) Create(_ context.Context, req dto.CreateCampaignRequest) (*models.Campaign, error) {
	f.lastCreate = req
	return f.campaign, f.err
}

func (f *fakeCampaignSrv) Get(_ context.Context, id string) (*models.Campaign, error) {
	f.lastID = id
	return f.campaign, f.err
}

func (f *fakeCampaignSrv) List(_ context.Context, filter dto.CampaignFilter) ([]models.Campaign, bool, error) {
	f.lastFilter = filter
	return f.list, f.listHit, f.err
}

func (f *fakeCampaignSrv) Update(_ context.Context, id string, req dto.UpdateCampaignRequest) (*models.Campaign, error) {
	f.lastID = id
	f.lastUpdate = req
	return f.campaign, f.err
}

func (f *fakeCampaignSrv) Transition(_ context.Context, id string, req dto.TransitionCampaignRequest) (*models.Campaign, error) {
	f.lastID = id
	f.lastTransition = req
	return f.campaign, f.err
}

func (f *fakeCampaignSrv) Delete(_ context.Context, id string) error {
	f.lastID = id
	return f.err
}

func (f *fakeCampaignSrv) NotifyParents(_ context.Context, id string) (*dto.NotifyResult, error) {
	f.lastID = id
	return f.notify, f.err
}

func (f *fakeCampaignSrv) ListStudents(_ context.Context, id string) ([]dto.CampaignStudent, error) {
	f.lastID = id
	return f.students, f.err
}

func (f *fakeCampaignSrv) ExportStudents(_ context.Context, id string, format string) (*dto.RosterExport, error) {
	f.lastID = id
	f.lastFormat = format
	return f.export, f.err
}

func campaignRouter(srv *fakeCampaignSrv) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewCampaignHandler(srv, nil)
	router := gin.New()
	router.Use(middleware.WithResponseMeta())
	router.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
		c.Next()
	})
	group := router.Group("/campaigns")
	group.POST("", h.Create)
	group.GET("", h.List)
	group.GET("/:id", h.Get)
	group.PATCH("/:id", h.Update)
	group.DELETE("/:id", h.Delete)
	group.PATCH("/:id/status", h.Transition)
	group.POST("/:id/notify-parents", h.NotifyParents)
	group.GET("/:id/students", h.Students)
	group.GET("/:id/students/export", h.ExportStudents)
	return router
}

func serve(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) responseEnvelope {
	t.Helper()
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func sampleCampaign() *models.Campaign {
	return &models.Campaign{
		ID:            "c-1",
		Name:          "Flu Shot",
		TargetGrades:  []string{"2", "10"},
		ScheduledDate: time.Date(2030, 9, 2, 0, 0, 0, 0, time.UTC),
		Deadline:      time.Date(2030, 9, 9, 0, 0, 0, 0, time.UTC),
		Status:        models.CampaignStatusActive,
		AcademicYear:  "2030-2031",
	}
}

func TestCampaignHandlerCreate(t *testing.T) {
	srv := &fakeCampaignSrv{campaign: sampleCampaign()}
	rec := serve(campaignRouter(srv), http.MethodPost, "/campaigns",
		`{"name":"Flu Shot","targetGrades":["10","2"],"scheduledDate":"2030-09-02","deadline":"2030-09-09"}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []string{"10", "2"}, srv.lastCreate.TargetGrades)

	var created models.Campaign
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &created))
	assert.Equal(t, "c-1", created.ID)
	assert.Equal(t, "2030-2031", created.AcademicYear)
}

func TestCampaignHandlerCreateRejectsMalformedJSON(t *testing.T) {
	rec := serve(campaignRouter(&fakeCampaignSrv{}), http.MethodPost, "/campaigns", `{"name":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, appErrors.ErrValidation.Code, decodeEnvelope(t, rec).Error.Code)
}

func TestCampaignHandlerMapsServiceErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{appErrors.Clone(appErrors.ErrCampaignNameTaken, "taken"), http.StatusConflict, "CAMPAIGN_NAME_TAKEN"},
		{appErrors.Invalid("deadline", "too short"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{appErrors.Clone(appErrors.ErrNotFound, "campaign not found"), http.StatusNotFound, "NOT_FOUND"},
		{appErrors.Internal(assert.AnError, "failed to create campaign"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		rec := serve(campaignRouter(&fakeCampaignSrv{err: tc.err}), http.MethodPost, "/campaigns",
			`{"name":"Flu Shot","targetGrades":["1"],"scheduledDate":"2030-09-02","deadline":"2030-09-09"}`)
		assert.Equal(t, tc.status, rec.Code)
		envelope := decodeEnvelope(t, rec)
		require.NotNil(t, envelope.Error)
		assert.Equal(t, tc.code, envelope.Error.Code)
		assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
	}
}

func TestCampaignHandlerListPassesFilterAndCacheMeta(t *testing.T) {
	srv := &fakeCampaignSrv{list: []models.Campaign{*sampleCampaign()}, listHit: true}
	rec := serve(campaignRouter(srv), http.MethodGet, "/campaigns?academicYear=2030-2031", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2030-2031", srv.lastFilter.AcademicYear)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, true, envelope.Meta["cache_hit"])
	assert.EqualValues(t, 1, envelope.Meta["count"])
}

func TestCampaignHandlerUpdateTracksPresentFields(t *testing.T) {
	srv := &fakeCampaignSrv{campaign: sampleCampaign()}
	rec := serve(campaignRouter(srv), http.MethodPatch, "/campaigns/c-1", `{"description":null,"targetGrades":["3"]}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "c-1", srv.lastID)
	assert.True(t, srv.lastUpdate.Description.Set)
	assert.True(t, srv.lastUpdate.Description.Null)
	assert.True(t, srv.lastUpdate.TargetGrades.Set)
	assert.False(t, srv.lastUpdate.Name.Set)
	assert.False(t, srv.lastUpdate.Status.Set)
}

func TestCampaignHandlerTransitionConflict(t *testing.T) {
	srv := &fakeCampaignSrv{err: appErrors.Clone(appErrors.ErrCampaignTerminal, "campaign is already finished")}
	rec := serve(campaignRouter(srv), http.MethodPatch, "/campaigns/c-1/status", `{"status":"CANCELLED"}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CANCELLED", srv.lastTransition.Status)
	assert.Equal(t, "CAMPAIGN_TERMINAL", decodeEnvelope(t, rec).Error.Code)
}

func TestCampaignHandlerDelete(t *testing.T) {
	srv := &fakeCampaignSrv{}
	rec := serve(campaignRouter(srv), http.MethodDelete, "/campaigns/c-1", "")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "c-1", srv.lastID)
}

func TestCampaignHandlerNotifyParents(t *testing.T) {
	srv := &fakeCampaignSrv{notify: &dto.NotifyResult{CampaignID: "c-1", SentCount: 2}}
	rec := serve(campaignRouter(srv), http.MethodPost, "/campaigns/c-1/notify-parents", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	var result dto.NotifyResult
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &result))
	assert.Equal(t, 2, result.SentCount)
	assert.Zero(t, result.FailedCount)
}

func TestCampaignHandlerNotifyParentsNoStudents(t *testing.T) {
	srv := &fakeCampaignSrv{err: appErrors.ErrNoMatchingStudents}
	rec := serve(campaignRouter(srv), http.MethodPost, "/campaigns/c-1/notify-parents", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NO_MATCHING_STUDENTS", decodeEnvelope(t, rec).Error.Code)
}

func TestCampaignHandlerStudents(t *testing.T) {
	srv := &fakeCampaignSrv{students: []dto.CampaignStudent{{StudentID: "s-1", FullName: "An", Grade: "2"}}}
	rec := serve(campaignRouter(srv), http.MethodGet, "/campaigns/c-1/students", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	var students []dto.CampaignStudent
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &students))
	require.Len(t, students, 1)
	assert.Equal(t, "An", students[0].FullName)
}

func TestCampaignHandlerExportStudents(t *testing.T) {
	srv := &fakeCampaignSrv{export: &dto.RosterExport{
		Filename:    "campaign-flu-shot-students.csv",
		ContentType: "text/csv; charset=utf-8",
		Content:     []byte("No,Student ID\n"),
	}}
	rec := serve(campaignRouter(srv), http.MethodGet, "/campaigns/c-1/students/export?format=csv", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "csv", srv.lastFormat)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="campaign-flu-shot-students.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "No,Student ID\n", rec.Body.String())
}

func TestCampaignHandlerLogsInternalErrorCause(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)
	srv := &fakeCampaignSrv{err: appErrors.Internal(errors.New("pq: connection refused to db-primary:5432"), "failed to load campaign")}

	router := gin.New()
	router.Use(logger.GinMiddleware(zap.New(core)))
	router.GET("/campaigns/:id", NewCampaignHandler(srv, nil).Get)

	rec := serve(router, http.MethodGet, "/campaigns/c-1", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db-primary")
	entries := logs.FilterMessage("http_request").All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].ContextMap()["errors"], "connection refused to db-primary:5432")
}
