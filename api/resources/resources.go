// FilePath: api/resources/resources.go
package resources

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/gorilla/schema"
	nuts "github.com/vaudience/go-nuts"

	"github.com/vialibre/crosshub/internal/errors"
	"github.com/vialibre/crosshub/internal/hubservice"
	"github.com/vialibre/crosshub/internal/pipeline"
)

// Resources holds all HTTP resource handlers
type Resources struct {
	Crossings   *CrossingHandlers
	Readings    *ReadingHandlers
	Alerts      *AlertHandlers
	HealthCheck func(w http.ResponseWriter, r *http.Request)
}

// NewResources creates a new Resources instance
func NewResources(svc *hubservice.HubService, pipe *pipeline.Pipeline) *Resources {
	return &Resources{
		Crossings: &CrossingHandlers{hubservice: svc},
		Readings:  &ReadingHandlers{hubservice: svc, pipeline: pipe},
		Alerts:    &AlertHandlers{hubservice: svc},
	}
}

// SetHealthCheck sets the health check handler
func (r *Resources) SetHealthCheck(h func(w http.ResponseWriter, r *http.Request)) {
	r.HealthCheck = h
}

// queryDecoder decodes filter structs from URL query parameters.
var queryDecoder = newQueryDecoder()

func newQueryDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}

// Helper functions

func getPaginationParams(r *http.Request) (offset, limit int) {
	query := r.URL.Query()
	offset, _ = strconv.Atoi(query.Get("offset"))
	limit, _ = strconv.Atoi(query.Get("limit"))

	if limit <= 0 || limit > 100 {
		limit = 50 // Default limit
	}
	if offset < 0 {
		offset = 0
	}

	return offset, limit
}

func respondWithError(w http.ResponseWriter, err *errors.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Code)
	json.NewEncoder(w).Encode(err)
	nuts.L.Errorf("[API] %s", err.Error())
}

// respondWithServiceError passes typed service errors through with their
// status code and falls back to a 500 for anything untyped.
func respondWithServiceError(w http.ResponseWriter, requestID, fallback string, err error) {
	var apiErr *errors.APIError
	if stderrors.As(err, &apiErr) {
		respondWithError(w, apiErr.WithRequestID(requestID))
		return
	}
	respondWithError(w, errors.NewInternalError(fallback, err).WithRequestID(requestID))
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
