// FilePath: api/resources/api.resource.crossings.go
package resources

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	nuts "github.com/vaudience/go-nuts"

	"github.com/vialibre/crosshub/internal/errors"
	"github.com/vialibre/crosshub/internal/hubservice"
	"github.com/vialibre/crosshub/internal/models"
)

// CrossingHandlers encapsulates the crossing-related HTTP handlers
type CrossingHandlers struct {
	hubservice *hubservice.HubService
}

// @Summary Create a new crossing
// @Description Register a new level crossing installation
// @Tags crossings
// @Accept json
// @Produce json
// @Param crossing body models.Crossing true "Crossing details"
// @Success 201 {object} models.Crossing
// @Failure 400 {object} errors.APIError
// @Router /crossings [post]
func (h *CrossingHandlers) CreateCrossing(w http.ResponseWriter, r *http.Request) {
	var crossing models.Crossing
	requestID := nuts.NID("req", 12)

	if err := json.NewDecoder(r.Body).Decode(&crossing); err != nil {
		respondWithError(w, errors.NewValidationError("invalid request body", err).WithRequestID(requestID))
		return
	}

	if err := h.hubservice.CreateCrossing(r.Context(), &crossing); err != nil {
		respondWithServiceError(w, requestID, "failed to create crossing", err)
		return
	}

	respondWithJSON(w, http.StatusCreated, crossing)
}

// @Summary Get a crossing by ID
// @Description Get detailed information about a specific crossing
// @Tags crossings
// @Produce json
// @Param id path string true "Crossing ID"
// @Success 200 {object} models.Crossing
// @Failure 404 {object} errors.APIError
// @Router /crossings/{id} [get]
func (h *CrossingHandlers) GetCrossing(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]
	requestID := nuts.NID("req", 12)

	crossing, err := h.hubservice.GetCrossing(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, requestID, "failed to get crossing", err)
		return
	}

	respondWithJSON(w, http.StatusOK, crossing)
}

// @Summary List crossings
// @Description Get a paginated list of crossings
// @Tags crossings
// @Produce json
// @Param offset query int false "Offset for pagination"
// @Param limit query int false "Limit for pagination"
// @Success 200 {array} models.Crossing
// @Router /crossings [get]
func (h *CrossingHandlers) ListCrossings(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)
	offset, limit := getPaginationParams(r)

	crossings, err := h.hubservice.ListCrossings(r.Context(), offset, limit)
	if err != nil {
		respondWithServiceError(w, requestID, "failed to list crossings", err)
		return
	}

	respondWithJSON(w, http.StatusOK, crossings)
}

// @Summary Update a crossing
// @Description Update an existing crossing's details
// @Tags crossings
// @Accept json
// @Produce json
// @Param id path string true "Crossing ID"
// @Param crossing body models.Crossing true "Updated crossing details"
// @Success 200 {object} models.Crossing
// @Failure 400 {object} errors.APIError
// @Failure 404 {object} errors.APIError
// @Router /crossings/{id} [put]
func (h *CrossingHandlers) UpdateCrossing(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]
	requestID := nuts.NID("req", 12)

	var crossing models.Crossing
	if err := json.NewDecoder(r.Body).Decode(&crossing); err != nil {
		respondWithError(w, errors.NewValidationError("invalid request body", err).WithRequestID(requestID))
		return
	}

	crossing.ID = id
	if err := h.hubservice.UpdateCrossing(r.Context(), &crossing); err != nil {
		respondWithServiceError(w, requestID, "failed to update crossing", err)
		return
	}

	respondWithJSON(w, http.StatusOK, crossing)
}

// @Summary Get crossing status
// @Description Get the current operational status of a crossing including
// @Description barrier state, online status and open alert count
// @Tags crossings
// @Produce json
// @Param id path string true "Crossing ID"
// @Success 200 {object} hubservice.CrossingStatus
// @Failure 404 {object} errors.APIError
// @Router /crossings/{id}/status [get]
func (h *CrossingHandlers) GetCrossingStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]
	requestID := nuts.NID("req", 12)

	status, err := h.hubservice.GetCrossingStatus(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, requestID, "failed to get crossing status", err)
		return
	}

	respondWithJSON(w, http.StatusOK, status)
}

func (h *CrossingHandlers) ListStateEvents(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]
	requestID := nuts.NID("req", 12)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	events, err := h.hubservice.ListStateEvents(r.Context(), id, limit)
	if err != nil {
		respondWithServiceError(w, requestID, "failed to list state events", err)
		return
	}

	respondWithJSON(w, http.StatusOK, events)
}
