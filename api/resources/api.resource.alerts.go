// FilePath: api/resources/api.resource.alerts.go
package resources

import (
	"net/http"

	"github.com/gorilla/mux"
	nuts "github.com/vaudience/go-nuts"

	"github.com/vialibre/crosshub/internal/errors"
	"github.com/vialibre/crosshub/internal/hubservice"
	"github.com/vialibre/crosshub/internal/models"
)

// AlertHandlers encapsulates the alert-related HTTP handlers
type AlertHandlers struct {
	hubservice *hubservice.HubService
}

// @Summary List alerts
// @Description Get alerts filtered by crossing, type, severity and open state
// @Tags alerts
// @Produce json
// @Param crossing_id query string false "Crossing ID"
// @Param type query string false "Alert type"
// @Param severity query string false "Alert severity"
// @Param open query bool false "Only unresolved alerts"
// @Success 200 {array} models.Alert
// @Router /alerts [get]
func (h *AlertHandlers) ListAlerts(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var filters models.AlertFilters
	if err := queryDecoder.Decode(&filters, r.URL.Query()); err != nil {
		respondWithError(w, errors.NewValidationError("invalid query parameters", err).WithRequestID(requestID))
		return
	}

	alerts, err := h.hubservice.ListAlerts(r.Context(), filters)
	if err != nil {
		respondWithServiceError(w, requestID, "failed to list alerts", err)
		return
	}

	respondWithJSON(w, http.StatusOK, alerts)
}

// @Summary Resolve an alert
// @Description Mark an open alert as resolved and notify subscribers
// @Tags alerts
// @Produce json
// @Param id path string true "Alert ID"
// @Success 200 {object} models.Alert
// @Failure 404 {object} errors.APIError
// @Router /alerts/{id}/resolve [post]
func (h *AlertHandlers) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]
	requestID := nuts.NID("req", 12)

	alert, err := h.hubservice.ResolveAlert(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, requestID, "failed to resolve alert", err)
		return
	}

	respondWithJSON(w, http.StatusOK, alert)
}
