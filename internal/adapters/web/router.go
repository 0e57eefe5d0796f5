package web

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewRouter builds the HTTP surface: the JSON control API, the websocket
// event channel and the prometheus endpoint, all behind otel middleware.
func NewRouter(s *Server) http.Handler {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/devices", s.handleListDevices).Methods(http.MethodGet)
	api.HandleFunc("/devices/{udi:.+}/networks", s.handleListNetworks).Methods(http.MethodGet)
	api.HandleFunc("/devices/{udi:.+}/activate", s.handleActivate).Methods(http.MethodPost)
	api.HandleFunc("/devices/{udi:.+}/cancel", s.handleCancel).Methods(http.MethodPost)
	api.HandleFunc("/devices/{udi:.+}/network", s.handleForceESSID).Methods(http.MethodPost)

	api.HandleFunc("/allowed", s.handleListAllowed).Methods(http.MethodGet)
	api.HandleFunc("/allowed", s.handleAddAllowed).Methods(http.MethodPost)
	api.HandleFunc("/allowed/{essid}", s.handleRemoveAllowed).Methods(http.MethodDelete)
	api.HandleFunc("/invalid/clear", s.handleClearInvalid).Methods(http.MethodPost)

	api.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)
	api.HandleFunc("/report", s.handleReport).Methods(http.MethodGet)

	r.HandleFunc("/ws", s.hub.HandleWebSocket)
	r.Handle("/metrics", promhttp.Handler())

	return otelhttp.NewHandler(r, "linkd-http")
}
