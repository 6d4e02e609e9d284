package router

import (
	"net/http"

	"mask-relay/internal/api"
	"mask-relay/internal/api/endpoints"
)

func RelayRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		var relay endpoints.Connector
		if h := s.Relay(); h != nil {
			relay = h
		}
		relayEndpoints := endpoints.NewRelayEndpoints(relay)
		mux.HandleFunc(prefix+"/ws", s.MakeHTTPHandleFunc(relayEndpoints.Websocket))
	}
}
