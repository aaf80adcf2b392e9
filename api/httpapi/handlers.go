package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/TsubakiDev/btr/internal/notify"
	"github.com/TsubakiDev/btr/internal/registry"
	"github.com/TsubakiDev/btr/internal/task"
	"github.com/gorilla/mux"
)

func muxVar(r *http.Request, key string) string {
	return mux.Vars(r)[key]
}

// pushConfigProvider is satisfied by the concrete manager; fakes without a
// push config fall back to a zero value (notifications disabled).
type pushConfigProvider interface {
	PushConfig() notify.Config
}

func (s *Server) pushConfig() notify.Config {
	if p, ok := s.manager.(pushConfigProvider); ok {
		return p.PushConfig()
	}
	return notify.Config{}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type apiError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg string, details string) {
	writeJSON(w, status, apiError{Error: msg, Details: details})
}

type submitGrabRequest struct {
	UID       int64        `json:"uid"`
	ProjectID string       `json:"project_id"`
	ScreenID  string       `json:"screen_id"`
	TicketID  string       `json:"ticket_id"`
	Count     int          `json:"count"`
	IDBind    int          `json:"id_bind"`
	Buyers    []task.Buyer `json:"buyers,omitempty"`
	Contact   task.Contact `json:"contact,omitempty"`
	Mode      string       `json:"mode,omitempty"`
	StartTime *time.Time   `json:"start_time,omitempty"`
	SkipWords []string     `json:"skip_words,omitempty"`
}

type submitResponse struct {
	TaskID string `json:"task_id"`
}

func (s *Server) handleSubmitGrab(w http.ResponseWriter, r *http.Request) {
	var req submitGrabRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	sess, ok := s.sessions[req.UID]
	if !ok {
		writeErr(w, http.StatusBadRequest, "validation_error", "no session for uid")
		return
	}

	mode := task.ModeDirect
	switch req.Mode {
	case "", "direct":
	case "timed":
		mode = task.ModeTimed
	case "queue":
		mode = task.ModeQueue
	default:
		writeErr(w, http.StatusBadRequest, "validation_error", "mode must be direct|timed|queue")
		return
	}

	id, err := s.manager.Submit(&task.GrabRequest{
		ProjectID: req.ProjectID,
		ScreenID:  req.ScreenID,
		TicketID:  req.TicketID,
		Count:     req.Count,
		IDBind:    task.IDBind(req.IDBind),
		Buyers:    req.Buyers,
		Contact:   req.Contact,
		Mode:      mode,
		StartTime: req.StartTime,
		Session:   sess,
		Captcha:   s.resolver,
		SkipWords: req.SkipWords,
	})
	if err != nil {
		switch {
		case errors.Is(err, task.ErrInvalidRequest):
			writeErr(w, http.StatusBadRequest, "validation_error", err.Error())
		case errors.Is(err, registry.ErrFull):
			writeErr(w, http.StatusServiceUnavailable, "registry_full", err.Error())
		default:
			writeErr(w, http.StatusInternalServerError, "internal_error", err.Error())
		}
		return
	}

	writeJSON(w, http.StatusCreated, submitResponse{TaskID: id})
}

type submitNotifyRequest struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	JumpURL string `json:"jump_url,omitempty"`
}

func (s *Server) handleSubmitNotify(w http.ResponseWriter, r *http.Request) {
	var req submitNotifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	// The request embeds a value snapshot of the current channel config.
	cfg := s.pushConfig()
	id, err := s.manager.Submit(&task.NotifyRequest{
		Title:   req.Title,
		Message: req.Message,
		JumpURL: req.JumpURL,
		Config:  cfg,
	})
	if err != nil {
		switch {
		case errors.Is(err, task.ErrInvalidRequest):
			writeErr(w, http.StatusBadRequest, "validation_error", err.Error())
		case errors.Is(err, registry.ErrFull):
			writeErr(w, http.StatusServiceUnavailable, "registry_full", err.Error())
		default:
			writeErr(w, http.StatusInternalServerError, "internal_error", err.Error())
		}
		return
	}

	// Notifications disabled: accepted as a no-op (mirrors the "push
	// disabled" semantics, not an error).
	writeJSON(w, http.StatusAccepted, submitResponse{TaskID: id})
}

type getTaskResponse struct {
	Task task.Snapshot `json:"task"`
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := muxVar(r, "id")
	snap, ok := s.manager.Status(id)
	if !ok {
		writeErr(w, http.StatusNotFound, "not_found", "task not found")
		return
	}
	writeJSON(w, http.StatusOK, getTaskResponse{Task: snap})
}

type listTasksResponse struct {
	Items []task.Snapshot `json:"items"`
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, listTasksResponse{Items: s.manager.List()})
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	id := muxVar(r, "id")
	err := s.manager.Cancel(id)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, registry.ErrNotFound):
		writeErr(w, http.StatusNotFound, "not_found", "task not found")
	case errors.Is(err, registry.ErrAlreadyTerminal):
		writeErr(w, http.StatusConflict, "already_terminal", err.Error())
	case errors.Is(err, registry.ErrTooLate):
		writeErr(w, http.StatusConflict, "too_late", err.Error())
	default:
		writeErr(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
