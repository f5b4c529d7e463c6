package api

import (
	"errors"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Yates-Labs/reviewlens/internal/export"
)

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Create()
	s.logger.Info("session created", zap.String("session_id", sess.ID.String()))
	writeJSON(w, http.StatusCreated, sessionResponse{SessionID: sess.ID.String(), CreatedAt: sess.CreatedAt})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.Delete(chi.URLParam(r, "id")) {
		s.writeError(w, http.StatusNotFound, errors.New("session not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	var req askRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	res, err := s.pipeline.Ask(r.Context(), req.Question)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	res.Record(sess.History)

	s.logger.Info("question answered",
		zap.String("session_id", sess.ID.String()),
		zap.String("outcome", string(res.Outcome)),
		zap.Int("found", res.Summary.Found))
	writeJSON(w, http.StatusOK, newAskResponse(res))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	offset, limit, err := pageParams(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{
		SessionID: sess.ID.String(),
		Total:     sess.History.Len(),
		Offset:    offset,
		Limit:     limit,
		Turns:     sess.History.Page(offset, limit),
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	format, err := export.ParseFormat(req.Format)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	matches, err := s.pipeline.Retrieve(r.Context(), req.Question, req.All)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="reviews.`+string(format)+`"`)
	w.WriteHeader(http.StatusOK)
	if err := export.ExportMatches(matches, string(format), w); err != nil {
		s.logger.Error("export write failed", zap.Error(err))
	}
}
