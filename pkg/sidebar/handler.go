package sidebar

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
)

type turnResponse struct {
	TurnID   string    `json:"turnId,omitempty"`
	State    State     `json:"state,omitempty"`
	Messages []Message `json:"messages"`
	Error    string    `json:"error,omitempty"`
}

// Routes mounts the sidebar endpoints used by the bundled sidebar page.
func (c *Controller) Routes(r chi.Router) {
	r.Route("/sidebar", func(r chi.Router) {
		r.Post("/ask", c.postAsk)
		r.Post("/turns/{turnID}/insert", c.postInsert)
		r.Get("/transcript", c.getTranscript)
	})
}

func (c *Controller) postAsk(w http.ResponseWriter, req *http.Request) {
	var q Query
	if err := json.NewDecoder(req.Body).Decode(&q); err != nil {
		writeJSON(w, http.StatusBadRequest, turnResponse{Error: err.Error(), Messages: []Message{}})
		return
	}
	turn, err := c.Ask(req.Context(), q)
	if errors.Is(err, ErrEmptyQuery) {
		writeJSON(w, http.StatusBadRequest, turnResponse{Error: c.text(textEmptyQuery), Messages: c.Transcript()})
		return
	}
	// Failures are already rendered into the transcript.
	writeJSON(w, http.StatusOK, turnResponse{TurnID: turn.ID, State: turn.State(), Messages: c.Transcript()})
}

func (c *Controller) postInsert(w http.ResponseWriter, req *http.Request) {
	turn, ok := c.Turn(chi.URLParam(req, "turnID"))
	if !ok || turn.Insert() == nil {
		writeJSON(w, http.StatusNotFound, turnResponse{Error: "nothing to insert", Messages: c.Transcript()})
		return
	}
	if _, err := turn.Insert().Activate(req.Context()); err != nil {
		log.Warnf("Insert for turn %s failed: %v", turn.ID, err)
	}
	writeJSON(w, http.StatusOK, turnResponse{TurnID: turn.ID, State: turn.State(), Messages: c.Transcript()})
}

func (c *Controller) getTranscript(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, turnResponse{Messages: c.Transcript()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("Failed to encode response: %v", err)
	}
}
