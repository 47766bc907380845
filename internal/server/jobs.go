package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"transcriptcleaner/internal/app"
	"transcriptcleaner/pkg/domain"
)

type processRequest struct {
	TranscriptID       string `json:"transcriptId"`
	WordListID         string `json:"wordListId"`
	Mode               string `json:"mode"`
	CustomInstructions string `json:"customInstructions"`
	Model              string `json:"model"`
}

// handleProcess runs one correction attempt synchronously and returns the
// terminal job. Failed jobs come back 200 with status "failed" so the
// provider's error text can be inspected.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.processLimiter, "too many processing requests") {
		s.audit(r, "job.process", "rate_limited", "user_id", user.ID)
		return
	}
	var req processRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.TranscriptID) == "" {
		writeError(w, http.StatusBadRequest, "transcriptId is required")
		return
	}
	job, err := s.app.ProcessTranscript(r.Context(), user, app.ProcessParams{
		TranscriptID:       req.TranscriptID,
		WordListID:         req.WordListID,
		Mode:               domain.ProcessingMode(req.Mode),
		CustomInstructions: req.CustomInstructions,
		Model:              req.Model,
	})
	if err != nil {
		s.audit(r, "job.process", "fail", "user_id", user.ID, "reason", err.Error())
		writeAppError(w, err)
		return
	}
	s.audit(r, "job.process", "success", "user_id", user.ID, "job_id", job.ID, "status", string(job.Status))
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	jobs, err := s.app.ListJobs(user)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (s *Server) handleJobByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	path := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	id, action, _ := strings.Cut(path, "/")
	if id == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	switch {
	case action == "" && r.Method == http.MethodGet:
		job, err := s.app.GetJob(user, id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, job)
	case action == "" && r.Method == http.MethodDelete:
		if err := s.app.DeleteJob(user, id); err != nil {
			writeAppError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case action == "retry" && r.Method == http.MethodPost:
		job, err := s.app.RetryJob(r.Context(), user, id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		s.audit(r, "job.retry", "success", "user_id", user.ID, "job_id", job.ID)
		writeJSON(w, http.StatusOK, job)
	default:
		methodNotAllowed(w)
	}
}
