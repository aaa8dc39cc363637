package proxy

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/philipexavier/proxy-rasa/internal/codec"
	"github.com/philipexavier/proxy-rasa/internal/config"
	"github.com/philipexavier/proxy-rasa/internal/pipeline"
	"github.com/philipexavier/proxy-rasa/internal/types"
)

const modelOwner = "rasa-proxy"

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	codec.WriteJSON(w, http.StatusOK, types.HealthResponse{Status: "ok", Version: config.Version})
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	codec.WriteJSON(w, http.StatusOK, types.ModelList{
		Object: "list",
		Data: []types.ModelObject{{
			ID:      s.Config.DefaultModel,
			Object:  "model",
			OwnedBy: modelOwner,
		}},
	})
}

func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.Config.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			codec.WriteError(w, http.StatusRequestEntityTooLarge, types.ErrInvalidRequest, "Request body too large")
			return
		}
		codec.WriteError(w, http.StatusBadRequest, types.ErrInvalidRequest, "Failed to read request body")
		return
	}

	s.pipeline.Execute(&pipeline.RequestContext{
		Context:     r.Context(),
		RequestID:   RequestID(r.Context()),
		Integration: integrationRequested(r),
	}, w, body)
}

// integrationRequested reports whether the caller identified itself as an
// integration consumer, via X-Copilot-Threads, X-Integration or ?copilot=.
func integrationRequested(r *http.Request) bool {
	for _, v := range []string{
		r.Header.Get("X-Copilot-Threads"),
		r.Header.Get("X-Integration"),
		r.URL.Query().Get("copilot"),
	} {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes":
			return true
		}
	}
	return false
}
