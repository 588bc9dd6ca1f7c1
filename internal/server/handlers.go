package server

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"ventureval/internal/extract"
)

// AnalysisHandler serves the REST surface for submitting and reading
// analyses.
type AnalysisHandler struct {
	svc *AnalysisService
}

func NewAnalysisHandler(svc *AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{svc: svc}
}

type submitBody struct {
	Source        string `json:"source"`
	Text          string `json:"text"`
	Sector        string `json:"sector"`
	NumIdeas      int    `json:"num_ideas"`
	IdeaIndex     int    `json:"idea_index"`
	ExtractedText string `json:"extracted_text"`
	ForceRefresh  bool   `json:"force_refresh"`
}

const maxUploadBytes = 32 << 20

// HandleSubmit accepts either a JSON body with the document text or a
// multipart form with a file field, which is extracted server-side.
func (h *AnalysisHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		decoded, err := h.decodeUpload(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		req = decoded
	} else {
		var body submitBody
		if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes)).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		req = SubmitRequest{
			Source:        body.Source,
			Text:          body.Text,
			Sector:        body.Sector,
			NumIdeas:      body.NumIdeas,
			IdeaIndex:     body.IdeaIndex,
			ExtractedText: body.ExtractedText,
			ForceRefresh:  body.ForceRefresh,
		}
	}

	rec, err := h.svc.Submit(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, rec)
}

func (h *AnalysisHandler) decodeUpload(r *http.Request) (SubmitRequest, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return SubmitRequest{}, err
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return SubmitRequest{}, err
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		return SubmitRequest{}, err
	}

	tmp, err := os.CreateTemp("", "upload-*"+filepath.Ext(header.Filename))
	if err != nil {
		return SubmitRequest{}, err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return SubmitRequest{}, err
	}
	tmp.Close()

	doc, err := extract.FromFile(tmp.Name())
	if err != nil {
		return SubmitRequest{}, err
	}

	req := SubmitRequest{
		Source:        header.Filename,
		Text:          doc.Text,
		Sector:        r.FormValue("sector"),
		ExtractedText: r.FormValue("extracted_text"),
		SourceContent: content,
	}
	if v, err := strconv.Atoi(r.FormValue("num_ideas")); err == nil {
		req.NumIdeas = v
	}
	if v, err := strconv.Atoi(r.FormValue("idea_index")); err == nil {
		req.IdeaIndex = v
	}
	req.ForceRefresh, _ = strconv.ParseBool(r.FormValue("force_refresh"))
	return req, nil
}

func (h *AnalysisHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"analyses": h.svc.Store.List()})
}

func (h *AnalysisHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	rec, ok := h.svc.Store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "analysis not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *AnalysisHandler) HandleCheckpointStages(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	stages, err := h.svc.CheckpointStages(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stages": stages})
}

func (h *AnalysisHandler) HandleClearCheckpoints(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if err := h.svc.ClearCheckpoints(r.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func HandleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
