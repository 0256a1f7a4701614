package dialog

import (
	"fmt"

	"github.com/convograph/convograph/types"
)

// Node kind tags. The compiler is exhaustive over this set.
const (
	KindStart     = "start"
	KindUserInput = "user_input"
	KindFillSlots = "fill_slots"
	KindJudge     = "judge"
	KindRPC       = "rpc"
	KindSay       = "say"
	KindSwitch    = "switch"
	KindDynamic   = "dynamic"
)

// Node is one compiled step of a graph. Its single runtime capability is
// producing a resumable iterator over a session.
type Node interface {
	ID() string
	Name() string
	Kind() string

	call(t *StateTracker) iterator
	base() *baseNode
	validate() error
}

// baseNode carries the config and the compiled child wiring shared by all
// node kinds. Resolution priority is option > branch > intent > default.
type baseNode struct {
	cfg NodeConfig

	defaultChild Node
	intentChild  map[string]Node
	branchChild  map[string]Node
	optionChild  map[string]Node
	optionOrder  []string

	// lineID maps a child node id to the connection's line id, for traces.
	lineID          map[string]string
	defaultIntentID string
}

func newBaseNode(cfg NodeConfig) baseNode {
	return baseNode{
		cfg:         cfg,
		intentChild: make(map[string]Node),
		branchChild: make(map[string]Node),
		optionChild: make(map[string]Node),
		lineID:      make(map[string]string),
	}
}

func (n *baseNode) ID() string      { return n.cfg.ID }
func (n *baseNode) Name() string    { return n.cfg.Name }
func (n *baseNode) Kind() string    { return n.cfg.Type }
func (n *baseNode) base() *baseNode { return n }

// hasChildren reports whether any outgoing edge exists.
func (n *baseNode) hasChildren() bool {
	return n.defaultChild != nil || len(n.intentChild) > 0 ||
		len(n.branchChild) > 0 || len(n.optionChild) > 0
}

// addChild wires one outgoing connection.
func (n *baseNode) addChild(child Node, conn Connection) error {
	marked := 0
	if conn.OptionID != "" {
		marked++
	}
	if conn.BranchID != "" {
		marked++
	}
	if len(conn.IntentIDs) > 0 {
		marked++
	}
	if marked > 1 {
		return types.NewStaticCheckError("connections",
			fmt.Sprintf("connection %s may set only one of option_id, branch_id, intent_ids", conn.LineID),
			n.Name())
	}

	n.lineID[child.ID()] = conn.LineID
	switch {
	case conn.OptionID != "":
		if _, dup := n.optionChild[conn.OptionID]; !dup {
			n.optionOrder = append(n.optionOrder, conn.OptionID)
		}
		n.optionChild[conn.OptionID] = child
	case conn.BranchID != "":
		n.branchChild[conn.BranchID] = child
	case len(conn.IntentIDs) > 0:
		for _, id := range conn.IntentIDs {
			n.intentChild[id] = child
			// Intent id "0" is the configured catch-all.
			if id == "0" {
				n.defaultChild = child
			}
		}
	default:
		n.defaultChild = child
	}

	if conn.IsDefault {
		n.defaultChild = child
		if len(conn.IntentIDs) > 0 {
			n.defaultIntentID = conn.IntentIDs[0]
		}
	}
	return nil
}

// connTrace is the trace record for following an edge to child.
func (n *baseNode) connTrace(child Node, connType string) types.TraceRecord {
	return types.TraceRecord{
		"type":             "conn",
		"conn_type":        connType,
		"line_id":          n.lineID[child.ID()],
		"source_node_name": n.Name(),
		"target_node_name": child.Name(),
	}
}

// validateBase checks the fields every node needs.
func (n *baseNode) validateBase() error {
	if n.cfg.ID == "" {
		return types.NewStaticCheckError("node_id", "node is missing the required node_id field", n.Name())
	}
	if n.cfg.Name == "" {
		return types.NewStaticCheckError("node_name", "node is missing the required node_name field", n.cfg.ID)
	}
	return nil
}

// checkBranches validates branch condition groups shared by Judge and
// RobotSay nodes.
func (n *baseNode) checkBranches(requireID bool) error {
	for _, branch := range n.cfg.Branches {
		if requireID && branch.ID == "" {
			return types.NewStaticCheckError("branches",
				"every branch needs a branch_id field", n.Name())
		}
		for _, group := range branch.Conditions {
			for _, cond := range group {
				if err := checkCondition(n.Name(), cond); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
