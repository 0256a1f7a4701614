package dialog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/convograph/convograph/nlu"
	"github.com/convograph/convograph/types"
)

// Condition clause types.
const (
	CondIntent = "intent"
	CondEntity = "entity"
	CondGlobal = "global"
	CondParams = "params"
)

// Condition is one comparison clause.
type Condition struct {
	Type     string `json:"type"`
	Name     string `json:"name,omitempty"`
	Operator string `json:"operator"`
	Value    any    `json:"value,omitempty"`
}

// ConditionGroup is a conjunction of clauses.
type ConditionGroup []Condition

// Branch is one named alternative of a Judge or RobotSay node.
type Branch struct {
	ID         string           `json:"branch_id,omitempty"`
	Name       string           `json:"branch_name,omitempty"`
	Conditions []ConditionGroup `json:"conditions"`
	Content    []string         `json:"content,omitempty"`
}

var validOperators = map[string]bool{
	"==": true, "!=": true, "like": true,
	"isNull": true, "notNull": true,
	">": true, "<": true, ">=": true, "<=": true,
	"len_gt": true, "len_lt": true, "len_eq": true,
}

var validConditionTypes = map[string]bool{
	CondIntent: true, CondEntity: true, CondGlobal: true, CondParams: true,
}

// checkCondition validates one clause at compile time.
func checkCondition(nodeName string, cond Condition) error {
	if !validConditionTypes[cond.Type] {
		return types.NewStaticCheckError("type",
			fmt.Sprintf("condition type must be one of intent, entity, global, params; got %q", cond.Type), nodeName)
	}
	if !validOperators[cond.Operator] {
		return types.NewStaticCheckError("operator",
			fmt.Sprintf("unknown condition operator %q", cond.Operator), nodeName)
	}
	if cond.Type != CondIntent && cond.Name == "" {
		return types.NewStaticCheckError("name",
			fmt.Sprintf("condition of type %q needs a name field", cond.Type), nodeName)
	}
	if cond.Value == nil && cond.Operator != "isNull" && cond.Operator != "notNull" {
		return types.NewStaticCheckError("value",
			fmt.Sprintf("operator %q needs a value field", cond.Operator), nodeName)
	}
	return nil
}

// anyToString renders a comparison operand. Nil becomes the empty string so
// unset slots compare as empty.
func anyToString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// evaluate applies operator to a source value and a target value. A list
// target is an OR over its elements; a list source is an OR over its
// elements except for the null and length operators, which treat the list
// as a whole.
func evaluate(source, target any, operator string) (bool, error) {
	if targets, ok := asList(target); ok {
		for _, t := range targets {
			hit, err := evaluate(source, t, operator)
			if err != nil {
				return false, err
			}
			if hit {
				return true, nil
			}
		}
		return false, nil
	}

	switch operator {
	case "isNull":
		return isEmpty(source), nil
	case "notNull":
		return !isEmpty(source), nil
	case "len_gt", "len_lt", "len_eq":
		n, err := valueLen(source)
		if err != nil {
			return false, err
		}
		want, err := toInt(target)
		if err != nil {
			return false, fmt.Errorf("operator %s needs an integer value: %w", operator, err)
		}
		switch operator {
		case "len_gt":
			return n > want, nil
		case "len_lt":
			return n < want, nil
		default:
			return n == want, nil
		}
	}

	if sources, ok := asList(source); ok {
		for _, s := range sources {
			hit, err := evaluate(s, target, operator)
			if err != nil {
				return false, err
			}
			if hit {
				return true, nil
			}
		}
		return false, nil
	}

	switch operator {
	case "==":
		return anyToString(source) == anyToString(target), nil
	case "!=":
		return anyToString(source) != anyToString(target), nil
	case "like":
		src := anyToString(source)
		return src != "" && strings.Contains(anyToString(target), src), nil
	case ">", "<", ">=", "<=":
		a, err := toFloat(source)
		if err != nil {
			return false, fmt.Errorf("operator %s needs numeric operands: %w", operator, err)
		}
		b, err := toFloat(target)
		if err != nil {
			return false, fmt.Errorf("operator %s needs numeric operands: %w", operator, err)
		}
		switch operator {
		case ">":
			return a > b, nil
		case "<":
			return a < b, nil
		case ">=":
			return a >= b, nil
		default:
			return a <= b, nil
		}
	}
	return false, fmt.Errorf("unknown operator %q", operator)
}

func asList(v any) ([]any, bool) {
	switch list := v.(type) {
	case []any:
		return list, true
	case []string:
		out := make([]any, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	if list, ok := asList(v); ok {
		return len(list) == 0
	}
	return anyToString(v) == ""
}

func valueLen(v any) (int, error) {
	if list, ok := asList(v); ok {
		return len(list), nil
	}
	return len([]rune(anyToString(v))), nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return strconv.ParseFloat(anyToString(v), 64)
	}
}

func toInt(v any) (int, error) {
	f, err := toFloat(v)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

// judgeCondition resolves one clause against the session. The left-hand
// value comes from the current message's intent, its extracted entities, a
// session slot, or a session param, per the clause type.
func (t *StateTracker) judgeCondition(nodeName string, cond Condition) (bool, error) {
	msg := t.latestMsg()
	switch cond.Type {
	case CondIntent:
		if value, ok := cond.Value.(string); ok && nlu.IsBuiltinIntent(value) {
			nlu.ProcessBuiltinIntent(msg, value)
		}
		return evaluate(msg.Intent, cond.Value, cond.Operator)
	case CondEntity:
		return evaluate(msg.Entities[cond.Name], cond.Value, cond.Operator)
	case CondGlobal:
		return evaluate(t.slots[cond.Name], cond.Value, cond.Operator)
	case CondParams:
		return evaluate(t.params[cond.Name], cond.Value, cond.Operator)
	default:
		return false, types.NewFlowError(t.robotCode, nodeName,
			fmt.Sprintf("condition type must be one of intent, entity, global, params; got %q", cond.Type))
	}
}

// judgeGroup is the conjunction of a group's clauses.
func (t *StateTracker) judgeGroup(nodeName string, group ConditionGroup) (bool, error) {
	for _, cond := range group {
		hit, err := t.judgeCondition(nodeName, cond)
		if err != nil {
			return false, err
		}
		if !hit {
			return false, nil
		}
	}
	return true, nil
}

// judgeBranch is true iff any group is fully true (OR of ANDs).
func (t *StateTracker) judgeBranch(nodeName string, groups []ConditionGroup) (bool, error) {
	for _, group := range groups {
		hit, err := t.judgeGroup(nodeName, group)
		if err != nil {
			return false, err
		}
		if hit {
			return true, nil
		}
	}
	return false, nil
}
