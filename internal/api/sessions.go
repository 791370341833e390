package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/brokerchat/internal/chat"
)

// maxJSONBody caps request bodies for the JSON endpoints.
const maxJSONBody = 64 << 10

type modeRequest struct {
	Mode string `json:"mode"`
}

type messageRequest struct {
	Text string `json:"text"`
}

// getProfile handles GET /api/v1/profile
func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.profile)
}

// createSession handles POST /api/v1/sessions. The body is optional.
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil && err != io.EOF {
			writeDecodeError(w, err)
			return
		}
	}
	mode, err := chat.ParseMode(req.Mode)
	if err != nil {
		writeChatError(w, err)
		return
	}

	sess := s.sessions.Create(mode)
	writeJSON(w, http.StatusCreated, sess.View())
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*chat.Session, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	sess, err := s.sessions.Get(id)
	if err != nil {
		writeChatError(w, err)
		return nil, false
	}
	return sess, true
}

// getSession handles GET /api/v1/sessions/{sessionID}
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

// closeSession handles DELETE /api/v1/sessions/{sessionID}
func (s *Server) closeSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err := s.sessions.Close(id); err != nil {
		writeChatError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// setMode handles PUT /api/v1/sessions/{sessionID}/mode
func (s *Server) setMode(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req modeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if req.Mode == "" {
		writeError(w, http.StatusBadRequest, "mode is required")
		return
	}
	mode, err := chat.ParseMode(req.Mode)
	if err != nil {
		writeChatError(w, err)
		return
	}
	sess.SetMode(mode)
	writeJSON(w, http.StatusOK, map[string]string{"mode": string(mode)})
}

// submitMessage handles POST /api/v1/sessions/{sessionID}/messages and blocks
// until the reply settles.
func (s *Server) submitMessage(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req messageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	reply, err := sess.Submit(r.Context(), req.Text)
	if err != nil {
		writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

// listForms handles GET /api/v1/sessions/{sessionID}/forms
func (s *Server) listForms(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"forms": sess.Forms()})
}

// downloadForm handles GET /api/v1/sessions/{sessionID}/forms/{formID}/download
func (s *Server) downloadForm(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	formID, err := uuid.Parse(chi.URLParam(r, "formID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "form not found")
		return
	}
	form, err := sess.Form(formID)
	if err != nil {
		writeChatError(w, err)
		return
	}

	filename, body := chat.ExportForm(sess.Profile(), form)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// uploadTrainingFiles handles POST /api/v1/sessions/{sessionID}/training-files
// with one or more multipart "file" parts.
func (s *Server) uploadTrainingFiles(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if sess.Mode() != chat.ModeInternal {
		writeChatError(w, chat.ErrInternalOnly)
		return
	}

	if s.maxUpload > 0 {
		// Room for a handful of files plus multipart framing.
		r.Body = http.MaxBytesReader(w, r.Body, int64(s.maxUpload)*8+1<<20)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid multipart body: %v", err))
		return
	}
	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "no file parts")
		return
	}

	uploads := make([]chat.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("open %s: %v", fh.Filename, err))
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("read %s: %v", fh.Filename, err))
			return
		}
		uploads = append(uploads, chat.Upload{Name: fh.Filename, Data: data})
	}

	stored, err := sess.AddTrainingFiles(uploads)
	if err != nil {
		s.logger.Warn("training upload rejected", "session_id", sess.ID().String(), "files", len(uploads), "error", err)
		writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"files": stored})
}

// listTrainingFiles handles GET /api/v1/sessions/{sessionID}/training-files
func (s *Server) listTrainingFiles(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": sess.TrainingFiles()})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	return json.NewDecoder(r.Body).Decode(v)
}

func writeDecodeError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("body exceeds %d bytes", tooLarge.Limit))
		return
	}
	writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
}
