package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"transcriptcleaner/pkg/domain"
)

type wordListCreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	CSVContent  string `json:"csvContent"`
}

type wordListUpdateRequest struct {
	Description string `json:"description"`
	CSVContent  string `json:"csvContent"`
}

func (s *Server) handleWordLists(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodPost:
		var req wordListCreateRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		list, err := s.app.CreateWordList(user, req.Name, req.Description, req.CSVContent)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, list)
	case http.MethodGet:
		lists, err := s.app.ListWordLists(user)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"wordLists": lists})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleWordListByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	path := strings.TrimPrefix(r.URL.Path, "/api/wordlists/")
	id, action, _ := strings.Cut(path, "/")
	if id == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	switch {
	case action == "" && r.Method == http.MethodGet:
		list, err := s.app.GetWordList(user, id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	case action == "" && r.Method == http.MethodPut:
		var req wordListUpdateRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		list, err := s.app.EditWordList(user, id, req.CSVContent, req.Description)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	case action == "" && r.Method == http.MethodDelete:
		if err := s.app.DeleteWordList(user, id); err != nil {
			writeAppError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case action == "history" && r.Method == http.MethodGet:
		history, err := s.app.WordListHistory(user, id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"versions": history})
	case action == "restore" && r.Method == http.MethodPost:
		list, err := s.app.RestoreWordListVersion(user, id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	case action == "download" && r.Method == http.MethodGet:
		list, err := s.app.DownloadWordList(user, id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", list.Name+".csv"))
		_, _ = io.WriteString(w, list.CSVContent)
	default:
		methodNotAllowed(w)
	}
}
