package router

import (
	"net/http"

	"mask-relay/internal/api"
	"mask-relay/internal/api/endpoints"
)

func UtilsRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		var stats endpoints.StatsSource
		if relay := s.Relay(); relay != nil {
			stats = relay
		}
		utilsEndpoints := endpoints.NewUtilsEndpoints(stats)
		mux.HandleFunc(prefix+"/health", s.MakeHTTPHandleFunc(utilsEndpoints.Health))
	}
}
