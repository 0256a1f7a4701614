package dialog

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/convograph/convograph/config"
	"github.com/convograph/convograph/internal/metrics"
	"github.com/convograph/convograph/types"
)

type session struct {
	mu         sync.Mutex
	tracker    *StateTracker
	lastActive time.Time
}

// Agent hosts one robot: its compiled graph set and the live sessions
// talking to it. It is safe for concurrent use; turns within one session
// are serialized.
type Agent struct {
	robotCode string
	cfg       *config.Config
	collab    Collaborators
	logger    *zap.Logger
	metrics   *metrics.Collector

	mu         sync.RWMutex
	graphs     map[string]*Graph
	graphOrder []string
	sessions   map[string]*session
}

// NewAgent compiles the robot's graphs and returns a ready agent. A graph
// that fails its static checks is logged and skipped; the other graphs
// still serve.
func NewAgent(robotCode string, cfg *config.Config, collab Collaborators, graphCfgs []GraphConfig, logger *zap.Logger, collector *metrics.Collector) *Agent {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if collab.HTTP == nil {
		collab.HTTP = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	a := &Agent{
		robotCode: robotCode,
		cfg:       cfg,
		collab:    collab,
		logger:    logger.With(zap.String("component", "agent"), zap.String("robot", robotCode)),
		metrics:   collector,
		graphs:    make(map[string]*Graph),
		sessions:  make(map[string]*session),
	}
	for _, graphCfg := range graphCfgs {
		g, err := CompileGraph(graphCfg)
		if err != nil {
			a.metrics.CompileFailed(robotCode)
			a.logger.Error("graph failed static checks",
				zap.String("graph_id", graphCfg.ID), zap.Error(err))
			continue
		}
		a.graphs[g.ID] = g
		a.graphOrder = append(a.graphOrder, g.ID)
	}
	return a
}

// RobotCode returns the bot code this agent serves.
func (a *Agent) RobotCode() string { return a.robotCode }

func (a *Agent) graphByID(id string) *Graph {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.graphs[id]
}

func (a *Agent) orderedGraphs() []*Graph {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ordered := make([]*Graph, 0, len(a.graphOrder))
	for _, id := range a.graphOrder {
		ordered = append(ordered, a.graphs[id])
	}
	return ordered
}

// UpdateGraph compiles and installs a graph, replacing any previous version
// under the same id. Live sessions are dropped: their suspended positions
// may no longer exist in the new graph.
func (a *Agent) UpdateGraph(graphCfg GraphConfig) error {
	g, err := CompileGraph(graphCfg)
	if err != nil {
		a.metrics.CompileFailed(a.robotCode)
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.graphs[g.ID]; !exists {
		a.graphOrder = append(a.graphOrder, g.ID)
	}
	a.graphs[g.ID] = g
	a.sessions = make(map[string]*session)
	a.metrics.SessionCount(a.robotCode, 0)
	a.logger.Info("graph updated", zap.String("graph_id", g.ID), zap.String("version", g.Version))
	return nil
}

// RemoveGraph uninstalls a graph. Sessions are dropped for the same reason
// as UpdateGraph.
func (a *Agent) RemoveGraph(graphID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.graphs[graphID]; !exists {
		return
	}
	delete(a.graphs, graphID)
	for i, id := range a.graphOrder {
		if id == graphID {
			a.graphOrder = append(a.graphOrder[:i], a.graphOrder[i+1:]...)
			break
		}
	}
	a.sessions = make(map[string]*session)
	a.metrics.SessionCount(a.robotCode, 0)
}

// getSession returns the session for id, creating it if needed. Expired
// sessions are swept on the way in.
func (a *Agent) getSession(id string, params map[string]any) *session {
	now := time.Now()
	a.mu.Lock()
	for key, sess := range a.sessions {
		if now.Sub(sess.lastActive) > a.cfg.SessionTTL {
			delete(a.sessions, key)
			a.metrics.SessionEvicted(a.robotCode)
		}
	}
	sess, ok := a.sessions[id]
	count := len(a.sessions)
	a.mu.Unlock()
	if ok {
		a.metrics.SessionCount(a.robotCode, count)
		return sess
	}

	// Built outside the table lock: tracker construction reads the graph
	// table through its own read lock.
	fresh := &session{tracker: newStateTracker(a, id, params), lastActive: now}

	a.mu.Lock()
	defer a.mu.Unlock()
	if sess, ok := a.sessions[id]; ok {
		// A concurrent turn created this session first; use theirs.
		return sess
	}
	a.sessions[id] = fresh
	a.metrics.SessionCount(a.robotCode, len(a.sessions))
	return fresh
}

// Connect opens a session without an utterance, giving condition-triggered
// graphs a chance to speak first.
func (a *Agent) Connect(ctx context.Context, sessionID string, params map[string]any) (*types.ReplyPacket, error) {
	msg := a.collab.NLU.EmptyMessage("")
	return a.handle(ctx, sessionID, msg, params, "")
}

// HandleMessage runs one turn for a session. An empty sessionID starts a
// new session under a generated id; the returned packet carries it.
func (a *Agent) HandleMessage(ctx context.Context, sessionID, text string, params map[string]any, flowID string) (*types.ReplyPacket, error) {
	msg, err := a.collab.NLU.Parse(ctx, text)
	if err != nil {
		a.metrics.CollaboratorError(a.robotCode, "nlu")
		return nil, types.NewCollaboratorError("nlu interpreter", err)
	}
	return a.handle(ctx, sessionID, msg, params, flowID)
}

func (a *Agent) handle(ctx context.Context, sessionID string, msg *types.Message, params map[string]any, flowID string) (*types.ReplyPacket, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	sess := a.getSession(sessionID, params)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.lastActive = time.Now()

	t := sess.tracker
	t.updateParams(params)
	if _, err := t.handleMessage(ctx, msg, flowID); err != nil {
		a.logger.Error("turn failed",
			zap.String("session_id", sessionID), zap.String("user_says", msg.Text), zap.Error(err))
		return nil, err
	}
	return t.LatestPack(true), nil
}

// SnapshotSession freezes a live session for external storage. Returns nil
// when the session does not exist.
func (a *Agent) SnapshotSession(sessionID string) *Snapshot {
	a.mu.RLock()
	sess, ok := a.sessions[sessionID]
	a.mu.RUnlock()
	if !ok {
		return nil
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.tracker.Snapshot()
}

// RestoreSession rebuilds a session from a stored snapshot, replacing any
// live session under the same id.
func (a *Agent) RestoreSession(snap *Snapshot) error {
	t := newStateTracker(a, snap.SessionID, nil)
	if err := t.applySnapshot(snap); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sessions[snap.SessionID] = &session{tracker: t, lastActive: time.Now()}
	a.metrics.SessionCount(a.robotCode, len(a.sessions))
	return nil
}

// CloseSession drops a session explicitly.
func (a *Agent) CloseSession(sessionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.sessions, sessionID)
	a.metrics.SessionCount(a.robotCode, len(a.sessions))
}
