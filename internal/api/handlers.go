package api

import (
	"encoding/json"
	"log/slog"
	"mime"
	"net/http"

	"github.com/BTreeMap/CardDesk/internal/models"
)

// maxBodyBytes caps request bodies; the longest accepted message is far smaller.
const maxBodyBytes = 64 << 10

// parseChatRequest reads the message from a form body, or from JSON when the request says so.
func parseChatRequest(w http.ResponseWriter, r *http.Request) (models.ChatRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req models.ChatRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, errInvalidJSON
		}
		return req, nil
	}
	if err := r.ParseForm(); err != nil {
		return req, errInvalidForm
	}
	req.Message = r.PostFormValue("message")
	return req, nil
}

func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	req, err := parseChatRequest(w, r)
	if err != nil {
		slog.Warn("Server.chatHandler: failed to parse request", "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.chatHandler: validation failed", "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := s.ensureSessionID(w, r)
	session := s.sessions.Get(webSessionKey(id))
	reply := s.dispatcher.HandleMessage(r.Context(), session, models.ChannelWeb, req.Message)
	writeJSONResponse(w, http.StatusOK, models.ChatResponse{Response: reply})
}

func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	turns := []models.ConversationTurn{}
	if id := sessionID(r); id != "" {
		if session, ok := s.sessions.Lookup(webSessionKey(id)); ok {
			if t := session.Turns(); t != nil {
				turns = t
			}
		}
	}
	slog.Debug("Server.historyHandler: returning turns", "count", len(turns))
	writeJSONResponse(w, http.StatusOK, models.Success(turns))
}

func (s *Server) resetHandler(w http.ResponseWriter, r *http.Request) {
	if id := sessionID(r); id != "" {
		s.sessions.Reset(webSessionKey(id))
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Session reset", nil))
}

func (s *Server) feedbackHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	var req models.FeedbackRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		slog.Warn("Server.feedbackHandler: failed to decode JSON", "error", err)
		writeError(w, http.StatusBadRequest, errInvalidJSON.Error())
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.feedbackHandler: validation failed", "error", err, "rating", req.Rating)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := s.ensureSessionID(w, r)
	if err := s.archive.AddFeedback(models.NewFeedback(webSessionKey(id), req)); err != nil {
		slog.Error("Server.feedbackHandler: failed to store feedback", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to store feedback")
		return
	}
	slog.Info("Server.feedbackHandler: feedback recorded", "rating", req.Rating)
	writeJSONResponse(w, http.StatusCreated, models.Recorded())
}

func (s *Server) listFeedbackHandler(w http.ResponseWriter, r *http.Request) {
	feedback, err := s.archive.GetFeedback()
	if err != nil {
		slog.Error("Server.listFeedbackHandler: failed to fetch feedback", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch feedback")
		return
	}
	if feedback == nil {
		feedback = []models.Feedback{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(feedback))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(nil))
}
