// FilePath: api/api.router.go
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vialibre/crosshub/api/resources"
	"github.com/vialibre/crosshub/internal/broadcast"
	"github.com/vialibre/crosshub/internal/hubservice"
	"github.com/vialibre/crosshub/internal/pipeline"
)

type Router struct {
	router    *mux.Router
	resources *resources.Resources
	socket    *broadcast.Server
}

func NewRouter(svc *hubservice.HubService, pipe *pipeline.Pipeline, socket *broadcast.Server) *Router {
	r := &Router{
		router:    mux.NewRouter(),
		resources: resources.NewResources(svc, pipe),
		socket:    socket,
	}

	r.setupRoutes()
	return r
}

func (r *Router) setupRoutes() {
	// API version prefix
	v1 := r.router.PathPrefix("/v1").Subrouter()

	// Dispatched through the Resources struct so the handler can be
	// installed after route registration.
	v1.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		r.resources.HealthCheck(w, req)
	}).Methods(http.MethodGet)

	// Readings
	readings := v1.PathPrefix("/readings").Subrouter()
	readings.HandleFunc("", r.resources.Readings.IngestReading).Methods(http.MethodPost)
	readings.HandleFunc("", r.resources.Readings.ListReadings).Methods(http.MethodGet)

	// Crossings
	crossings := v1.PathPrefix("/crossings").Subrouter()
	crossings.HandleFunc("", r.resources.Crossings.ListCrossings).Methods(http.MethodGet)
	crossings.HandleFunc("", r.resources.Crossings.CreateCrossing).Methods(http.MethodPost)
	crossings.HandleFunc("/{id}", r.resources.Crossings.GetCrossing).Methods(http.MethodGet)
	crossings.HandleFunc("/{id}", r.resources.Crossings.UpdateCrossing).Methods(http.MethodPut)
	crossings.HandleFunc("/{id}/status", r.resources.Crossings.GetCrossingStatus).Methods(http.MethodGet)
	crossings.HandleFunc("/{id}/state-events", r.resources.Crossings.ListStateEvents).Methods(http.MethodGet)

	// Alerts
	alerts := v1.PathPrefix("/alerts").Subrouter()
	alerts.HandleFunc("", r.resources.Alerts.ListAlerts).Methods(http.MethodGet)
	alerts.HandleFunc("/{id}/resolve", r.resources.Alerts.ResolveAlert).Methods(http.MethodPost)

	// Websocket endpoint, auth happens in-band after the upgrade
	r.router.HandleFunc("/ws", r.socket.HandleWS)
}

// SetHealthCheck installs the health handler before routes are served.
func (r *Router) SetHealthCheck(h func(w http.ResponseWriter, req *http.Request)) {
	r.resources.SetHealthCheck(h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}
