package api

import (
	"encoding/json"
	"net/http"

	"sheetchat/pkg/inject"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// GetRouter initialises a new http router serving rt. Extra routes, such as
// the sidebar's own endpoints, are added through mounts.
func GetRouter(rt *Router, mounts ...func(chi.Router)) http.Handler {
	r := chi.NewRouter()
	applyRoutes(r, rt)
	for _, mount := range mounts {
		mount(r)
	}
	return r
}

func applyRoutes(r chi.Router, rt *Router) chi.Router {
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		sendResponse(w, http.StatusOK, []byte(`{"ok":true}`))
	})
	r.Post("/messages", postMessage(rt))
	r.Handle("/metrics", promhttp.HandlerFor(rt.Metrics().Registry, promhttp.HandlerOpts{}))
	r.Handle("/assets/*", http.StripPrefix("/assets/", http.FileServer(http.FS(inject.Assets()))))
	return r
}

func postMessage(rt *Router) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var msg ActionMessage
		if err := json.NewDecoder(req.Body).Decode(&msg); err != nil {
			writeEnvelope(w, http.StatusBadRequest, Envelope{Error: "malformed message: " + err.Error(), Code: CodeInternal})
			return
		}
		writeEnvelope(w, http.StatusOK, rt.Dispatch(req.Context(), msg))
	}
}

func writeEnvelope(w http.ResponseWriter, status int, env Envelope) {
	body, err := json.Marshal(env)
	if err != nil {
		log.Errorf("Failed to encode envelope: %v", err)
		body, _ = json.Marshal(Envelope{Error: "could not encode result", Code: CodeInternal})
	}
	sendResponse(w, status, body)
}

func sendResponse(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
