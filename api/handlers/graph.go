package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/convograph/convograph/api"
	"github.com/convograph/convograph/dialog"
)

// GraphHandler hot-swaps flow graphs on a running agent.
type GraphHandler struct {
	agent  *dialog.Agent
	logger *zap.Logger
}

// NewGraphHandler creates the handler.
func NewGraphHandler(agent *dialog.Agent, logger *zap.Logger) *GraphHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraphHandler{agent: agent, logger: logger}
}

// HandleUpdate compiles and installs a graph config. A config that
// fails its static checks is rejected and the previous version keeps
// serving. Installing a graph drops every live session.
func (h *GraphHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	if !RequirePost(w, r) {
		return
	}
	var cfg dialog.GraphConfig
	if !DecodeJSONBody(w, r, &cfg) {
		return
	}

	if err := h.agent.UpdateGraph(cfg); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	h.logger.Info("graph updated",
		zap.String("graph_id", cfg.ID), zap.String("version", cfg.Version))
	WriteSuccess(w, map[string]string{"graph_id": cfg.ID, "version": cfg.Version})
}

// HandleRemove unloads a graph. Removing drops every live session.
func (h *GraphHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	if !RequirePost(w, r) {
		return
	}
	var req api.GraphRemoveRequest
	if !DecodeJSONBody(w, r, &req) {
		return
	}
	if req.GraphID == "" {
		WriteErrorMessage(w, http.StatusBadRequest, "graph_id must not be empty")
		return
	}

	h.agent.RemoveGraph(req.GraphID)
	h.logger.Info("graph removed", zap.String("graph_id", req.GraphID))
	WriteSuccess(w, nil)
}
