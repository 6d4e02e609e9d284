package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"mask-relay/internal/api/middleware"
	"mask-relay/internal/queue"
)

type apiFunc func(http.ResponseWriter, *http.Request) error

func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// MakeHTTPHandleFunc runs f on the request queue behind CORS and access
// logging. Errors returned by f become JSON error bodies.
func (s *APIServer) MakeHTTPHandleFunc(f apiFunc) http.HandlerFunc {
	corsConfig := middleware.CORSConfig{
		AllowedOrigins:   s.corsOrigins(),
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "X-Requested-With"},
		AllowCredentials: false,
	}

	baseHandler := func(w http.ResponseWriter, r *http.Request) {
		errc := make(chan error, 1)

		job := queue.Job{
			Fn: func() error {
				return f(w, r)
			},
			Errc: errc,
		}

		if err := s.requestQueueManager.EnqueueJob(job); err != nil {
			WriteJSON(w, http.StatusServiceUnavailable, ApiError{Error: "Server is shutting down"})
			return
		}

		err := <-errc
		if err != nil {
			var httpErr *HTTPError
			if errors.As(err, &httpErr) {
				log.Printf("%s %s: %v", r.Method, r.URL.Path, httpErr.ErrorLog)
				WriteJSON(w, httpErr.StatusCode, ApiError{Error: httpErr.Message})
			} else {
				log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
				WriteJSON(w, http.StatusInternalServerError, ApiError{Error: "Internal server error"})
			}
		}
	}

	middlewares := []middleware.Middleware{
		middleware.CORS(corsConfig),
		middleware.Logging(),
	}

	return middleware.Chain(baseHandler, middlewares...)
}

// corsOrigins mirrors the websocket origin policy: no list means any origin.
func (s *APIServer) corsOrigins() []string {
	if len(s.allowedOrigins) == 0 {
		return []string{"*"}
	}
	return s.allowedOrigins
}
