package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/convograph/convograph/api"
	"github.com/convograph/convograph/dialog"
	"github.com/convograph/convograph/internal/store"
)

// SessionHandler serves the dialogue endpoints. When a snapshot store
// is configured, sessions survive process restarts: every turn is
// persisted after it completes, and an unknown session id is looked up
// in the store before the engine starts a fresh one.
type SessionHandler struct {
	agent  *dialog.Agent
	store  *store.SnapshotStore
	logger *zap.Logger
}

// NewSessionHandler creates the handler. store may be nil.
func NewSessionHandler(agent *dialog.Agent, snapStore *store.SnapshotStore, logger *zap.Logger) *SessionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandler{agent: agent, store: snapStore, logger: logger}
}

// HandleConnect opens a session and returns the opening reply.
func (h *SessionHandler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	if !RequirePost(w, r) {
		return
	}
	var req api.ConnectRequest
	if !DecodeJSONBody(w, r, &req) {
		return
	}

	pack, err := h.agent.Connect(r.Context(), req.SessionID, req.Params)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	h.persist(r.Context(), pack.SessionID)
	WriteSuccess(w, api.MessageResponse{Reply: pack})
}

// HandleMessage drives one turn.
func (h *SessionHandler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	if !RequirePost(w, r) {
		return
	}
	var req api.MessageRequest
	if !DecodeJSONBody(w, r, &req) {
		return
	}
	if req.Says == "" {
		WriteErrorMessage(w, http.StatusBadRequest, "says must not be empty")
		return
	}

	h.resume(r.Context(), req.SessionID)

	pack, err := h.agent.HandleMessage(r.Context(), req.SessionID, req.Says, req.Params, req.FlowID)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	h.persist(r.Context(), pack.SessionID)
	WriteSuccess(w, api.MessageResponse{Reply: pack})
}

// HandleClose drops a session.
func (h *SessionHandler) HandleClose(w http.ResponseWriter, r *http.Request) {
	if !RequirePost(w, r) {
		return
	}
	var req api.CloseRequest
	if !DecodeJSONBody(w, r, &req) {
		return
	}
	if req.SessionID == "" {
		WriteErrorMessage(w, http.StatusBadRequest, "session_id must not be empty")
		return
	}

	h.agent.CloseSession(req.SessionID)
	if h.store != nil {
		if err := h.store.Delete(r.Context(), h.agent.RobotCode(), req.SessionID); err != nil {
			h.logger.Warn("snapshot delete failed",
				zap.String("session_id", req.SessionID), zap.Error(err))
		}
	}
	WriteSuccess(w, nil)
}

// resume rehydrates a session from the snapshot store when the engine
// does not hold it in memory. Misses and store failures are silent; the
// engine just starts over.
func (h *SessionHandler) resume(ctx context.Context, sessionID string) {
	if h.store == nil || sessionID == "" || h.agent.SnapshotSession(sessionID) != nil {
		return
	}
	snap, err := h.store.Load(ctx, h.agent.RobotCode(), sessionID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			h.logger.Warn("snapshot load failed",
				zap.String("session_id", sessionID), zap.Error(err))
		}
		return
	}
	if err := h.agent.RestoreSession(snap); err != nil {
		h.logger.Warn("snapshot restore failed",
			zap.String("session_id", sessionID), zap.Error(err))
	}
}

// persist stores the post-turn snapshot. Failures only log; the reply
// already went out and the in-memory session is intact.
func (h *SessionHandler) persist(ctx context.Context, sessionID string) {
	if h.store == nil {
		return
	}
	snap := h.agent.SnapshotSession(sessionID)
	if snap == nil {
		return
	}
	if err := h.store.Save(ctx, snap); err != nil {
		h.logger.Warn("snapshot save failed",
			zap.String("session_id", sessionID), zap.Error(err))
	}
}
