package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/soynido/rl4"
)

// httpHandler adapts rl4.Engine's Op* methods to HTTP, the same
// thin-adapter role the teacher's handler struct plays over its own
// engine.
type httpHandler struct {
	engine rl4.Engine
}

func newHTTPHandler(e rl4.Engine) *httpHandler {
	return &httpHandler{engine: e}
}

func (h *httpHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *httpHandler) handleGetEvidence(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()
	out, err := h.engine.OpGetEvidence(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"markdown": out})
}

func (h *httpHandler) handleGetTimeline(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()
	q := r.URL.Query()
	out, err := h.engine.OpGetTimeline(ctx, q.Get("from"), q.Get("to"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"markdown": out})
}

func (h *httpHandler) handleGetIntentGraph(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()
	out, err := h.engine.OpGetIntentGraph(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *httpHandler) handleSearch(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in rl4.SearchInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		var (
			out interface{}
			err error
		)
		switch kind {
		case "context":
			out, err = h.engine.OpSearchContext(ctx, in)
		case "chats":
			out, err = h.engine.OpSearchChats(ctx, in)
		case "cli":
			out, err = h.engine.OpSearchCLI(ctx, in)
		case "ask":
			out, err = h.engine.OpAsk(ctx, in)
		}
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (h *httpHandler) handleSuggestEdit(w http.ResponseWriter, r *http.Request) {
	var in rl4.SuggestEditInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	out, err := h.engine.OpSuggestEdit(ctx, in)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *httpHandler) handleApplyEdit(w http.ResponseWriter, r *http.Request) {
	var in rl4.ApplyEditInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	out, err := h.engine.OpApplyEdit(ctx, in)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *httpHandler) handleRunCommand(w http.ResponseWriter, r *http.Request) {
	var in rl4.RunCommandInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	timeout := time.Duration(in.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout+5*time.Second)
	defer cancel()
	out, err := h.engine.OpRunCommand(ctx, in)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *httpHandler) handleGuardrail(w http.ResponseWriter, r *http.Request) {
	var in rl4.GuardrailInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	out, err := h.engine.OpGuardrail(r.Context(), in)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *httpHandler) handleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	out, err := h.engine.OpListWorkspaces(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"workspaces": out})
}

func (h *httpHandler) handleSetWorkspace(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.engine.OpSetWorkspace(r.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"workspace": id})
}

func (h *httpHandler) handleRunSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()
	out, err := h.engine.OpRunSnapshot(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *httpHandler) handleFinalizeSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()
	if err := h.engine.OpFinalizeSnapshot(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "finalized"})
}
