package controllers

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"SmartHome.dashboard/clients"
	"SmartHome.dashboard/models"
	"SmartHome.dashboard/render"
	"SmartHome.dashboard/services"
	"SmartHome.dashboard/utils"
)

// refreshTimeout bounds a manual refresh. Netatmo retries alone can take minutes.
const refreshTimeout = 5 * time.Minute

// Dashboard is the part of services.Dashboard the HTTP handlers need.
type Dashboard interface {
	Snapshot() models.Snapshot
	SourceData(source string) (any, models.SourceStatus, error)
	Refresh(ctx context.Context, source string) error
	PressureHistory() []models.PressureEntry
	PVToday() []models.PVMeasurement
}

type DashboardController struct {
	dashboard Dashboard
	now       func() time.Time
	log       zerolog.Logger
}

func NewDashboardController(dashboard Dashboard, logger zerolog.Logger) *DashboardController {
	return &DashboardController{
		dashboard: dashboard,
		now:       time.Now,
		log:       logger.With().Str("component", "http").Logger(),
	}
}

func (c *DashboardController) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (c *DashboardController) GetDashboard(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, http.StatusOK, c.dashboard.Snapshot())
}

type sourceResponse struct {
	Data   any                 `json:"data"`
	Status models.SourceStatus `json:"status"`
}

func (c *DashboardController) GetSource(w http.ResponseWriter, r *http.Request) {
	source := mux.Vars(r)["source"]

	data, status, err := c.dashboard.SourceData(source)
	if err != nil {
		utils.RespondWithError(w, sourceError(source, err))
		return
	}
	if !status.HasData {
		utils.RespondWithError(w, models.NewAPIError(models.ErrorCodeNoDataAvailable, "No data available yet.", status, http.StatusServiceUnavailable))
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, sourceResponse{Data: data, Status: status})
}

func (c *DashboardController) GetPressureHistory(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, http.StatusOK, c.dashboard.PressureHistory())
}

func (c *DashboardController) GetPVToday(w http.ResponseWriter, r *http.Request) {
	measurements := c.dashboard.PVToday()
	if measurements == nil {
		measurements = []models.PVMeasurement{}
	}
	utils.RespondWithJSON(w, http.StatusOK, measurements)
}

func (c *DashboardController) GetPanel(w http.ResponseWriter, r *http.Request) {
	img := render.RenderPanel(c.dashboard.Snapshot(), c.now())

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		c.log.Error().Err(err).Msg("Encoding panel failed")
		utils.RespondWithError(w, models.NewAPIError(models.ErrorCodeRenderFailed, "Failed to render the panel.", nil, http.StatusInternalServerError))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// Refresh forces a fetch of one source and returns its status afterwards.
func (c *DashboardController) Refresh(w http.ResponseWriter, r *http.Request) {
	source := mux.Vars(r)["source"]

	ctx, cancel := context.WithTimeout(r.Context(), refreshTimeout)
	defer cancel()

	if err := c.dashboard.Refresh(ctx, source); err != nil {
		c.log.Warn().Err(err).Str("source", source).Msg("Manual refresh failed")
		utils.RespondWithError(w, sourceError(source, err))
		return
	}

	_, status, err := c.dashboard.SourceData(source)
	if err != nil {
		utils.RespondWithError(w, sourceError(source, err))
		return
	}
	c.log.Info().Str("source", source).Msg("Manual refresh done")
	utils.RespondWithJSON(w, http.StatusOK, status)
}

// sourceError maps service errors onto API errors.
func sourceError(source string, err error) models.APIError {
	details := map[string]string{"source": source}

	switch {
	case errors.Is(err, services.ErrUnknownSource):
		return models.NewAPIError(models.ErrorCodeUnknownSource, "Unknown data source.", details, http.StatusNotFound)
	case errors.Is(err, services.ErrSourceDisabled), errors.Is(err, clients.ErrNotConfigured):
		return models.NewAPIError(models.ErrorCodeSourceDisabled, "Data source is not configured.", details, http.StatusNotFound)
	case errors.Is(err, services.ErrPollInProgress):
		return models.NewAPIError(models.ErrorCodeRefreshInProgress, "A refresh is already running.", details, http.StatusConflict)
	case errors.Is(err, clients.ErrAuthorizationRequired):
		return models.NewAPIError(models.ErrorCodeAuthorizationRequired, "Netatmo needs to be authorized again.", details, http.StatusBadGateway)
	default:
		details["error"] = err.Error()
		return models.NewAPIError(models.ErrorCodeUpstreamFailed, "Fetching the data source failed.", details, http.StatusBadGateway)
	}
}
