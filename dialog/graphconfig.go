package dialog

// SlotSpec configures one slot a FillSlots node collects.
type SlotSpec struct {
	Name          string   `json:"slot_name"`
	Alias         string   `json:"slot_alias,omitempty"`
	Rounds        int      `json:"rounds"`
	Required      bool     `json:"is_necessary"`
	Multi         bool     `json:"multi,omitempty"`
	Warning       bool     `json:"warning,omitempty"`
	ReaskWords    []string `json:"reask_words,omitempty"`
	CallbackWords []string `json:"callback_words,omitempty"`
}

// RPCSlotMap maps one response field of an RPC call into a slot.
type RPCSlotMap struct {
	Slot          string `json:"slot_name"`
	Alias         string `json:"slot_alias,omitempty"`
	ResponseField string `json:"response_field"`
}

// NodeConfig is the raw configuration of one node. Which fields apply
// depends on the node type; the static checker enforces the per-type
// requirements at compile time.
type NodeConfig struct {
	ID   string `json:"node_id"`
	Name string `json:"node_name"`
	Type string `json:"node_type"`

	// Start: trigger predicate.
	ConditionGroups []ConditionGroup `json:"condition_group,omitempty"`

	// UserInput / RobotSay: bounded re-ask loop.
	LifeCycle     int      `json:"life_cycle,omitempty"`
	CallbackWords []string `json:"callback_words,omitempty"`
	Strict        bool     `json:"strict,omitempty"`

	// FillSlots.
	Slots []SlotSpec `json:"slots,omitempty"`

	// Judge / RobotSay.
	Branches []Branch `json:"branches,omitempty"`

	// RobotSay.
	Content []string `json:"content,omitempty"`
	Options []string `json:"options,omitempty"`

	// RPC.
	URL     string            `json:"url,omitempty"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Params  map[string]string `json:"params,omitempty"`
	SlotMap []RPCSlotMap      `json:"slot_map,omitempty"`

	// Switch.
	JumpType    string `json:"jump_type,omitempty"`
	JumpReply   string `json:"jump_reply,omitempty"`
	TargetGraph string `json:"graph_id,omitempty"`

	// Dynamic.
	RandomMode int      `json:"random_mode,omitempty"`
	Choice     int      `json:"choice,omitempty"`
	QuestionID string   `json:"question_id,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Rule       string   `json:"rule,omitempty"`
}

// Connection wires two nodes. At most one of OptionID, BranchID and
// IntentIDs may be set; an unmarked connection is the default edge.
type Connection struct {
	SourceID  string   `json:"source_id"`
	TargetID  string   `json:"target_id"`
	LineID    string   `json:"line_id"`
	BranchID  string   `json:"branch_id,omitempty"`
	IntentIDs []string `json:"intent_ids,omitempty"`
	OptionID  string   `json:"option_id,omitempty"`
	IsDefault bool     `json:"is_default,omitempty"`
}

// GraphConfig is the raw declarative form of one dialogue graph.
type GraphConfig struct {
	ID           string            `json:"graph_id"`
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	Nodes        []NodeConfig      `json:"nodes"`
	Connections  []Connection      `json:"connections"`
	GlobalSlots  map[string]string `json:"global_slots,omitempty"`
	GlobalParams map[string]any    `json:"global_params,omitempty"`
}
