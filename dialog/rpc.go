package dialog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/convograph/convograph/types"
)

// rpcNode calls an external endpoint and maps response fields into slots.
// Two reserved response fields are special-cased: understanding signals
// whether the service could handle the request, and __repeat asks the node
// to emit an intermediate answer and call again, bounded to one extra call.
type rpcNode struct {
	baseNode
}

func (n *rpcNode) call(t *StateTracker) iterator {
	t.addTrace(types.TraceRecord{
		"type":      "fun",
		"node_name": n.Name(),
		"header":    map[string]string{},
		"method":    "",
		"url":       "",
		"params":    map[string]string{},
		"response":  map[string]any{},
		"slots":     map[string]string{},
	})
	return newRPCIterator(n, t)
}

func (n *rpcNode) validate() error {
	if err := n.validateBase(); err != nil {
		return err
	}
	if n.cfg.URL == "" {
		return types.NewStaticCheckError("url", "rpc node needs a url field", n.Name())
	}
	method := strings.ToUpper(n.cfg.Method)
	if method != http.MethodGet && method != http.MethodPost {
		return types.NewStaticCheckError("method",
			fmt.Sprintf("rpc method must be get or post, got %q", n.cfg.Method), n.Name())
	}
	for _, m := range n.cfg.SlotMap {
		if m.Slot == "" || m.ResponseField == "" {
			return types.NewStaticCheckError("slot_map",
				"every slot mapping needs slot_name and response_field", n.Name())
		}
	}
	return nil
}

type rpcIterator struct {
	baseIterator
	node    *rpcNode
	repeats int
}

func newRPCIterator(n *rpcNode, t *StateTracker) *rpcIterator {
	return &rpcIterator{baseIterator: baseIterator{tracker: t}, node: n, repeats: 1}
}

func (it *rpcIterator) next(ctx context.Context) (string, error) {
	return it.run(ctx, []stateFunc{it.stateCall})
}

func (it *rpcIterator) stateCall(ctx context.Context) (string, error) {
	t := it.tracker
	n := it.node
	msg := t.latestMsg()

	params := make(map[string]string, len(n.cfg.Params))
	for key, value := range n.cfg.Params {
		params[key] = t.decodeReply(value)
	}
	method := strings.ToUpper(n.cfg.Method)

	data, err := it.invoke(ctx, method, params)
	if err != nil {
		return "", err
	}

	if understood, ok := data["understanding"]; ok {
		if truthy(understood) {
			msg.IntentConfidence = 1
		} else {
			msg.IntentConfidence = 0
			msg.Understanding = types.UnderstandingNoFAQ
			t.isEnd = true
			t.status = types.StatusSystemTransfer
		}
	}

	// One bounded repeat: emit the intermediate answer and call again on
	// the next turn; the second response is final either way.
	if truthy(data["__repeat"]) && it.repeats > 0 {
		it.repeats--
		answer, _ := data["answer"].(string)
		return answer, nil
	}

	filled := make(map[string]string, len(n.cfg.SlotMap))
	for _, m := range n.cfg.SlotMap {
		value := ""
		if v, ok := data[m.ResponseField]; ok {
			value = anyToString(v)
		} else if envelope, ok := data["data"].(map[string]any); ok {
			if v, ok := envelope[m.ResponseField]; ok {
				value = anyToString(v)
			}
		}
		alias := m.Alias
		if alias == "" {
			alias = m.Slot
		}
		t.fillSlot(m.Slot, value, alias, false)
		filled[m.Slot] = value
	}

	t.updateTrace("header", n.cfg.Headers)
	t.updateTrace("method", method)
	t.updateTrace("url", n.cfg.URL)
	t.updateTrace("params", params)
	t.updateTrace("response", data)
	t.updateTrace("slots", filled)

	if n.defaultChild != nil {
		t.addTrace(n.connTrace(n.defaultChild, "default"))
	}
	it.nextNode = n.defaultChild
	it.end()
	return "", nil
}

func (it *rpcIterator) invoke(ctx context.Context, method string, params map[string]string) (map[string]any, error) {
	n := it.node
	var req *http.Request
	var err error
	switch method {
	case http.MethodPost:
		payload, merr := json.Marshal(params)
		if merr != nil {
			return nil, types.NewCollaboratorError("rpc", merr)
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.URL, bytes.NewReader(payload))
		if req != nil {
			req.Header.Set("Content-Type", "application/json")
		}
	default:
		query := url.Values{}
		for key, value := range params {
			query.Set(key, value)
		}
		target := n.cfg.URL
		if len(query) > 0 {
			sep := "?"
			if strings.Contains(target, "?") {
				sep = "&"
			}
			target += sep + query.Encode()
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	}
	if err != nil {
		return nil, types.NewCollaboratorError("rpc", err)
	}
	for key, value := range n.cfg.Headers {
		req.Header.Set(key, value)
	}

	resp, err := it.tracker.collab.HTTP.Do(req)
	if err != nil {
		return nil, types.NewCollaboratorError("rpc", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewCollaboratorError("rpc", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, types.NewCollaboratorError("rpc",
			fmt.Errorf("unexpected status %d from %s", resp.StatusCode, n.cfg.URL))
	}
	data := make(map[string]any)
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, types.NewCollaboratorError("rpc", err)
	}
	return data, nil
}

func truthy(v any) bool {
	switch value := v.(type) {
	case bool:
		return value
	case float64:
		return value != 0
	case string:
		return value != "" && value != "0" && value != "false"
	case nil:
		return false
	default:
		return true
	}
}

func (it *rpcIterator) capture() *iterSnapshot {
	snap := it.captureBase(iterKindRPC)
	snap.NodeID = it.node.ID()
	snap.Ints = map[string]int{"repeats": it.repeats}
	return snap
}

func (it *rpcIterator) restore(t *StateTracker, snap *iterSnapshot) error {
	it.repeats = snap.Ints["repeats"]
	return it.restoreBase(t, snap)
}
