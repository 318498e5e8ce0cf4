package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ductile-dev/ductile/internal/model"
)

// taskProgressResponse is the polling view of a task's progress log.
type taskProgressResponse struct {
	TaskID   string                `json:"task_id"`
	Status   string                `json:"status"`
	Progress []model.ProgressEntry `json:"progress"`
}

// overallStatus derives the task status from its log: the status of the last
// entry, or running while the log is still empty.
func overallStatus(entries []model.ProgressEntry) string {
	if len(entries) == 0 {
		return model.StatusRunning
	}
	return entries[len(entries)-1].Status
}

func (s *Server) handleGetTaskProgress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	entries, err := s.reporter.History(r.Context(), id)
	if err != nil {
		s.logger.Error("get task progress", "task_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get progress")
		return
	}

	// An empty log is ambiguous: the task may not exist, or may not have
	// written its first entry yet. The broker knows every dispatched task.
	if len(entries) == 0 && !s.reporter.Broker().Known(id) {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}

	if entries == nil {
		entries = []model.ProgressEntry{}
	}

	s.writeJSON(w, http.StatusOK, taskProgressResponse{
		TaskID:   id,
		Status:   overallStatus(entries),
		Progress: entries,
	})
}

// handleStreamTaskEvents streams a task's progress log over SSE. History is
// replayed first, then live entries until the task finishes.
func (s *Server) handleStreamTaskEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	entries, err := s.reporter.History(r.Context(), id)
	if err != nil {
		s.logger.Error("get task history for stream", "task_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get progress")
		return
	}
	if len(entries) == 0 && !s.reporter.Broker().Known(id) {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Subscribe before replaying history so no live entry slips between the
	// two. Replayed and live entries may overlap; clients dedupe on seq.
	ch, unsubscribe := s.reporter.Broker().Subscribe(id)
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for _, e := range entries {
		s.writeSSE(w, "progress", e)
	}
	flusher.Flush()

	// A task whose log already ended is done; no live entries will follow.
	if n := len(entries); n > 0 && model.TerminalStatus(entries[n-1].Status) {
		fmt.Fprintf(w, "event: done\ndata: {}\n\n")
		flusher.Flush()
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case e, open := <-ch:
			if !open {
				fmt.Fprintf(w, "event: done\ndata: {}\n\n")
				flusher.Flush()
				return
			}
			s.writeSSE(w, "progress", e)
			flusher.Flush()
		}
	}
}

func (s *Server) writeSSE(w http.ResponseWriter, event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("marshal sse event", "error", err)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
