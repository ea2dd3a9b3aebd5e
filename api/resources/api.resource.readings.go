// FilePath: api/resources/api.resource.readings.go
package resources

import (
	"encoding/json"
	"net/http"

	nuts "github.com/vaudience/go-nuts"

	"github.com/vialibre/crosshub/internal/errors"
	"github.com/vialibre/crosshub/internal/hubservice"
	"github.com/vialibre/crosshub/internal/models"
	"github.com/vialibre/crosshub/internal/pipeline"
)

// ReadingHandlers encapsulates the telemetry ingest and query handlers
type ReadingHandlers struct {
	hubservice *hubservice.HubService
	pipeline   *pipeline.Pipeline
}

// ingestResponse reports what a single reading produced downstream.
type ingestResponse struct {
	Reading    *models.Reading           `json:"reading"`
	StateEvent *models.StateEvent        `json:"state_event,omitempty"`
	Alerts     []*models.Alert           `json:"alerts,omitempty"`
	Work       []*models.MaintenanceWork `json:"maintenance_work,omitempty"`
}

// @Summary Ingest a telemetry reading
// @Description Record a reading from a crossing device and run it through
// @Description state detection, alerting and maintenance rule evaluation
// @Tags readings
// @Accept json
// @Produce json
// @Param reading body models.Reading true "Telemetry reading"
// @Success 201 {object} ingestResponse
// @Failure 400 {object} errors.APIError
// @Router /readings [post]
func (h *ReadingHandlers) IngestReading(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var reading models.Reading
	if err := json.NewDecoder(r.Body).Decode(&reading); err != nil {
		respondWithError(w, errors.NewValidationError("invalid request body", err).WithRequestID(requestID))
		return
	}
	if reading.CrossingID == "" {
		respondWithError(w, errors.NewValidationError("crossing_id is required", nil).WithRequestID(requestID))
		return
	}

	result, err := h.pipeline.ProcessReading(r.Context(), &reading)
	if err != nil {
		respondWithServiceError(w, requestID, "failed to process reading", err)
		return
	}

	respondWithJSON(w, http.StatusCreated, ingestResponse{
		Reading:    result.Reading,
		StateEvent: result.StateEvent,
		Alerts:     result.Alerts,
		Work:       result.Work,
	})
}

// @Summary List readings
// @Description Get stored readings filtered by crossing and time range
// @Tags readings
// @Produce json
// @Param crossing_id query string false "Crossing ID"
// @Param start query string false "Start time (RFC3339)"
// @Param end query string false "End time (RFC3339)"
// @Param limit query int false "Limit for pagination"
// @Success 200 {array} models.Reading
// @Router /readings [get]
func (h *ReadingHandlers) ListReadings(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var filters models.ReadingFilters
	if err := queryDecoder.Decode(&filters, r.URL.Query()); err != nil {
		respondWithError(w, errors.NewValidationError("invalid query parameters", err).WithRequestID(requestID))
		return
	}

	readings, err := h.hubservice.ListReadings(r.Context(), filters)
	if err != nil {
		respondWithServiceError(w, requestID, "failed to list readings", err)
		return
	}

	respondWithJSON(w, http.StatusOK, readings)
}
