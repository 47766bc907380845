package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"transcriptcleaner/pkg/domain"
)

func (s *Server) handleTranscripts(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodPost:
		s.handleUploadTranscript(w, r, user)
	case http.MethodGet:
		transcripts, err := s.app.ListTranscripts(user)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"transcripts": transcripts})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleUploadTranscript(w http.ResponseWriter, r *http.Request, user domain.User) {
	if max := s.app.MaxUploadBytes(); max > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, max)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required (field: file)")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read upload")
		return
	}
	transcript, err := s.app.UploadTranscript(r.Context(), user, r.FormValue("title"), header.Filename, data)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, transcript)
}

type transcriptUpdateRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (s *Server) handleTranscriptByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	path := strings.TrimPrefix(r.URL.Path, "/api/transcripts/")
	id, action, _ := strings.Cut(path, "/")
	if id == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	switch {
	case action == "" && r.Method == http.MethodGet:
		transcript, err := s.app.GetTranscript(user, id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, transcript)
	case action == "" && r.Method == http.MethodPatch:
		var req transcriptUpdateRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 16<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		transcript, err := s.app.UpdateTranscript(user, id, req.Title, req.Content)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, transcript)
	case action == "" && r.Method == http.MethodDelete:
		if err := s.app.DeleteTranscript(r.Context(), user, id); err != nil {
			writeAppError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case action == "file" && r.Method == http.MethodGet:
		url, err := s.app.TranscriptFileURL(r.Context(), user, id, 15*time.Minute)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"url": url})
	default:
		methodNotAllowed(w)
	}
}
