package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/BTreeMap/MindScreen/internal/flow"
	"github.com/BTreeMap/MindScreen/internal/models"
	"github.com/gorilla/mux"
)

// skipRequest names the question being skipped. An empty id skips the current question.
type skipRequest struct {
	QuestionID string `json:"question_id"`
}

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// sessionView renders the engine position for the client.
func sessionView(sessionID string, e *flow.Engine) models.SessionView {
	index, total := e.Progress()
	view := models.SessionView{
		SessionID: sessionID,
		State:     e.State(),
		Index:     index,
		Total:     total,
	}
	if q, ok := e.CurrentQuestion(); ok {
		view.Question = &q
	}
	return view
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(nil))
}

func (s *Server) startHandler(w http.ResponseWriter, r *http.Request) {
	var req models.StartAssessmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		slog.Warn("Server.startHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, "Server.startHandler", err)
		return
	}

	sessionID := s.newID()
	e, err := s.sessions.Start(r.Context(), sessionID, req.UserID)
	if err != nil {
		writeError(w, "Server.startHandler", err)
		return
	}
	slog.Info("Server.startHandler: session started", "sessionID", sessionID, "userID", req.UserID)
	writeJSONResponse(w, http.StatusCreated, models.Success(sessionView(sessionID, e)))
}

func (s *Server) currentHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionID"]
	e, _, err := s.sessions.Load(r.Context(), sessionID)
	if err != nil {
		writeError(w, "Server.currentHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(sessionView(sessionID, e)))
}

func (s *Server) answerHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionID"]
	var req models.AnswerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		slog.Warn("Server.answerHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, "Server.answerHandler", err)
		return
	}

	e, _, err := s.sessions.Load(r.Context(), sessionID)
	if err != nil {
		writeError(w, "Server.answerHandler", err)
		return
	}
	if err := e.SubmitAnswer(models.Question{ID: req.QuestionID}, req.Value()); err != nil {
		writeError(w, "Server.answerHandler", err)
		return
	}
	// Answering the current question moves on; revising an earlier one stays put.
	if current, ok := e.CurrentQuestion(); ok && current.ID == req.QuestionID {
		e.Advance()
	}
	if err := s.sessions.Save(r.Context(), sessionID, e); err != nil {
		writeError(w, "Server.answerHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Recorded(sessionView(sessionID, e)))
}

func (s *Server) skipHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionID"]
	var req skipRequest
	// An empty body, chunked or not, skips the current question.
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		slog.Warn("Server.skipHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	e, _, err := s.sessions.Load(r.Context(), sessionID)
	if err != nil {
		writeError(w, "Server.skipHandler", err)
		return
	}
	if req.QuestionID == "" {
		current, ok := e.CurrentQuestion()
		if !ok {
			writeError(w, "Server.skipHandler", flow.ErrRunCompleted)
			return
		}
		req.QuestionID = current.ID
	}
	if err := e.Skip(models.Question{ID: req.QuestionID}); err != nil {
		writeError(w, "Server.skipHandler", err)
		return
	}
	if err := s.sessions.Save(r.Context(), sessionID, e); err != nil {
		writeError(w, "Server.skipHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Recorded(sessionView(sessionID, e)))
}

func (s *Server) previousHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionID"]
	e, _, err := s.sessions.Load(r.Context(), sessionID)
	if err != nil {
		writeError(w, "Server.previousHandler", err)
		return
	}
	if e.Previous() {
		if err := s.sessions.Save(r.Context(), sessionID, e); err != nil {
			writeError(w, "Server.previousHandler", err)
			return
		}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(sessionView(sessionID, e)))
}

func (s *Server) completeHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionID"]
	e, userID, err := s.sessions.Load(r.Context(), sessionID)
	if err != nil {
		writeError(w, "Server.completeHandler", err)
		return
	}
	result, err := s.assessments.Complete(r.Context(), userID, e)
	if err != nil {
		writeError(w, "Server.completeHandler", err)
		return
	}
	if err := s.sessions.End(r.Context(), sessionID); err != nil {
		slog.Warn("Server.completeHandler: failed to discard session", "error", err, "sessionID", sessionID)
	}
	slog.Info("Server.completeHandler: assessment completed", "sessionID", sessionID, "assessmentID", result.ID, "risk", result.RiskLevel)
	writeJSONResponse(w, http.StatusOK, models.Completed(result))
}

func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]
	items, err := s.assessments.History(userID)
	if err != nil {
		writeError(w, "Server.historyHandler", err)
		return
	}
	if items == nil {
		items = []models.StoredAssessment{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(items))
}

var errChatUnavailable = errors.New("chat relay is not configured")

func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	if s.relay == nil {
		slog.Warn("Server.chatHandler: relay not configured")
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error(errChatUnavailable.Error()))
		return
	}
	var req models.ChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		slog.Warn("Server.chatHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	reply, err := s.relay.Reply(r.Context(), req)
	if err != nil {
		writeError(w, "Server.chatHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(reply))
}

func (s *Server) chatHistoryHandler(w http.ResponseWriter, r *http.Request) {
	if s.relay == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error(errChatUnavailable.Error()))
		return
	}
	sessions, err := s.relay.History(mux.Vars(r)["userID"])
	if err != nil {
		writeError(w, "Server.chatHistoryHandler", err)
		return
	}
	if sessions == nil {
		sessions = []models.ChatSession{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(sessions))
}
