package dialog

import (
	"fmt"

	"github.com/convograph/convograph/types"
)

// Graph is one compiled dialogue flow: nodes wired by connections,
// reachable from exactly one start node.
type Graph struct {
	ID      string
	Name    string
	Version string

	Start *startNode
	Nodes map[string]Node

	GlobalSlots  map[string]string
	GlobalParams map[string]any
}

// CompileGraph builds and statically checks a graph. Any configuration
// error aborts compilation of this graph only.
func CompileGraph(cfg GraphConfig) (*Graph, error) {
	if cfg.ID == "" {
		return nil, types.NewStaticCheckError("graph_id", "graph needs a graph_id field", cfg.Name)
	}
	if len(cfg.Nodes) == 0 {
		return nil, types.NewStaticCheckError("nodes", "graph has no nodes", cfg.Name)
	}

	g := &Graph{
		ID:           cfg.ID,
		Name:         cfg.Name,
		Version:      cfg.Version,
		Nodes:        make(map[string]Node, len(cfg.Nodes)),
		GlobalSlots:  cfg.GlobalSlots,
		GlobalParams: cfg.GlobalParams,
	}

	for _, nodeCfg := range cfg.Nodes {
		node, err := buildNode(nodeCfg)
		if err != nil {
			return nil, err
		}
		if err := node.validate(); err != nil {
			return nil, err
		}
		if _, dup := g.Nodes[node.ID()]; dup {
			return nil, types.NewStaticCheckError("node_id",
				fmt.Sprintf("duplicate node id %s", node.ID()), node.Name())
		}
		g.Nodes[node.ID()] = node
		if start, ok := node.(*startNode); ok {
			if g.Start != nil {
				return nil, types.NewStaticCheckError("nodes",
					"graph has more than one start node", node.Name())
			}
			g.Start = start
		}
	}
	if g.Start == nil {
		return nil, types.NewStaticCheckError("nodes", "graph has no start node", cfg.Name)
	}

	for _, conn := range cfg.Connections {
		source, ok := g.Nodes[conn.SourceID]
		if !ok {
			return nil, types.NewStaticCheckError("connections",
				fmt.Sprintf("connection %s references unknown source node %s", conn.LineID, conn.SourceID), cfg.Name)
		}
		target, ok := g.Nodes[conn.TargetID]
		if !ok {
			return nil, types.NewStaticCheckError("connections",
				fmt.Sprintf("connection %s references unknown target node %s", conn.LineID, conn.TargetID), cfg.Name)
		}
		// The start node is the graph's logical root; only a plain default
		// edge may loop back into it.
		if target.ID() == g.Start.ID() && (conn.BranchID != "" || len(conn.IntentIDs) > 0 || conn.OptionID != "") {
			return nil, types.NewStaticCheckError("connections",
				fmt.Sprintf("connection %s targets the start node with a non-default edge", conn.LineID), cfg.Name)
		}
		if err := source.base().addChild(target, conn); err != nil {
			return nil, err
		}
	}

	for _, node := range g.Nodes {
		if judge, ok := node.(*judgeNode); ok {
			if err := judge.wiredCheck(); err != nil {
				return nil, err
			}
		}
	}
	return g, nil
}

func buildNode(cfg NodeConfig) (Node, error) {
	switch cfg.Type {
	case KindStart:
		return &startNode{newBaseNode(cfg)}, nil
	case KindUserInput:
		return &userInputNode{newBaseNode(cfg)}, nil
	case KindFillSlots:
		return &fillSlotsNode{newBaseNode(cfg)}, nil
	case KindJudge:
		return &judgeNode{newBaseNode(cfg)}, nil
	case KindRPC:
		return &rpcNode{newBaseNode(cfg)}, nil
	case KindSay:
		return &sayNode{newBaseNode(cfg)}, nil
	case KindSwitch:
		return &switchNode{newBaseNode(cfg)}, nil
	case KindDynamic:
		return &dynamicNode{newBaseNode(cfg)}, nil
	default:
		return nil, types.NewStaticCheckError("node_type",
			fmt.Sprintf("unknown node type %q", cfg.Type), cfg.Name)
	}
}
