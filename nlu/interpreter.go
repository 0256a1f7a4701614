package nlu

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/convograph/convograph/types"
)

// Interpreter parses a raw utterance into a Message.
type Interpreter interface {
	Parse(ctx context.Context, text string) (*types.Message, error)
	// EmptyMessage builds a message that carries the interpreter's intent
	// metadata but no parse results, used for connect turns.
	EmptyMessage(text string) *types.Message
}

// IntentClassifier scores an utterance against groups of example phrases.
// The result maps each candidate intent id to its top-n similarity scores.
type IntentClassifier interface {
	Classify(ctx context.Context, text string, group map[string][]string) (map[string][]float64, error)
}

// IntentRule is one regular-expression intent matcher.
type IntentRule struct {
	Pattern string `json:"regx" yaml:"regx"`
	Strict  bool   `json:"strict" yaml:"strict"`
}

// TrainingExample is one labeled utterance.
type TrainingExample struct {
	Text   string `json:"text" yaml:"text"`
	Intent string `json:"intent" yaml:"intent"`
}

// TrainingData is the rule/example bundle a RuleInterpreter is built from.
type TrainingData struct {
	Examples      []TrainingExample       `json:"examples" yaml:"examples"`
	RegexFeatures map[string][]string     `json:"regex_features" yaml:"regex_features"`
	Keywords      map[string][]string     `json:"key_words" yaml:"key_words"`
	IntentRules   map[string][]IntentRule `json:"intent_rules" yaml:"intent_rules"`
	IntentID2Name map[string]string       `json:"intent_id2name" yaml:"intent_id2name"`
	IntentID2Code map[string]string       `json:"intent_id2code" yaml:"intent_id2code"`
}

// RuleInterpreter is the model-free interpreter: bigram similarity against
// example phrases, regex intent rules, and regex/keyword entity abilities.
type RuleInterpreter struct {
	robotCode string
	version   string

	examples    map[string][]string
	regex       map[string][]*regexp.Regexp
	keywords    map[string][]string
	intentRules map[string][]compiledRule

	id2name map[string]string
	id2code map[string]string

	logger *zap.Logger
}

type compiledRule struct {
	re     *regexp.Regexp
	strict bool
}

// NewRuleInterpreter compiles the training data. Example phrases of two or
// more runes are additionally registered as literal intent rules, matching
// the original training pipeline.
func NewRuleInterpreter(robotCode, version string, data TrainingData, logger *zap.Logger) (*RuleInterpreter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ri := &RuleInterpreter{
		robotCode:   robotCode,
		version:     version,
		examples:    make(map[string][]string),
		regex:       make(map[string][]*regexp.Regexp),
		keywords:    data.Keywords,
		intentRules: make(map[string][]compiledRule),
		id2name:     data.IntentID2Name,
		id2code:     data.IntentID2Code,
		logger:      logger.With(zap.String("component", "nlu"), zap.String("robot_code", robotCode)),
	}
	for _, ex := range data.Examples {
		ri.examples[ex.Intent] = append(ri.examples[ex.Intent], ex.Text)
	}
	for ability, patterns := range data.RegexFeatures {
		for _, p := range patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("ability %s has invalid pattern %q: %w", ability, p, err)
			}
			ri.regex[ability] = append(ri.regex[ability], re)
		}
	}
	for intent, rules := range data.IntentRules {
		for _, r := range rules {
			re, err := regexp.Compile(r.Pattern)
			if err != nil {
				return nil, fmt.Errorf("intent %s has invalid rule %q: %w", intent, r.Pattern, err)
			}
			ri.intentRules[intent] = append(ri.intentRules[intent], compiledRule{re: re, strict: r.Strict})
		}
	}
	for _, ex := range data.Examples {
		if len([]rune(ex.Text)) < 2 {
			continue
		}
		ri.intentRules[ex.Intent] = append(ri.intentRules[ex.Intent], compiledRule{
			re: regexp.MustCompile(regexp.QuoteMeta(ex.Text)),
		})
	}
	return ri, nil
}

// EmptyInterpreter builds an interpreter with only the builtin confirm/deny
// examples, for robots with no NLU training data.
func EmptyInterpreter(robotCode string, logger *zap.Logger) *RuleInterpreter {
	data := TrainingData{
		Examples: []TrainingExample{
			{Text: "确认", Intent: BuiltinConfirm},
			{Text: "好的", Intent: BuiltinConfirm},
			{Text: "ok", Intent: BuiltinConfirm},
			{Text: "不行", Intent: BuiltinDeny},
			{Text: "不可以", Intent: BuiltinDeny},
			{Text: "no", Intent: BuiltinDeny},
		},
	}
	ri, _ := NewRuleInterpreter(robotCode, "empty", data, logger)
	return ri
}

// EmptyMessage implements Interpreter.
func (ri *RuleInterpreter) EmptyMessage(text string) *types.Message {
	msg := types.NewMessage(ri.robotCode, text)
	msg.IntentID2Name = ri.id2name
	msg.IntentID2Code = ri.id2code
	msg.IntentExamples = ri.examples
	return msg
}

// Parse implements Interpreter. It scores every intent's examples by bigram
// similarity, then lets regex intent rules force a full-confidence match,
// and finally runs the regex and keyword abilities.
func (ri *RuleInterpreter) Parse(ctx context.Context, text string) (*types.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	msg := ri.EmptyMessage(text)

	for intent, examples := range ri.examples {
		sims := make([]float64, 0, len(examples))
		for _, ex := range examples {
			if sim := bigramSimilarity(text, ex); sim >= 0.2 {
				sims = append(sims, sim)
			}
		}
		if len(sims) == 0 {
			continue
		}
		// Combine as independent evidence, strongest first.
		sort.Sort(sort.Reverse(sort.Float64Slice(sims)))
		confidence := 0.0
		for _, sim := range sims {
			confidence += (1 - confidence) * sim
		}
		msg.AddIntentRanking(intent, confidence)
	}

	for intent, rules := range ri.intentRules {
		for _, rule := range rules {
			if rule.re.MatchString(text) {
				msg.AddIntentRanking(intent, 1)
				break
			}
		}
	}
	msg.UpdateIntent()

	for ability, res := range ri.regex {
		for _, re := range res {
			if values := re.FindAllString(text, -1); len(values) > 0 {
				msg.AddEntity(ability, values...)
			}
		}
	}
	for ability, words := range ri.keywords {
		var hits []string
		for _, w := range words {
			if strings.Contains(text, w) {
				hits = append(hits, w)
			}
		}
		if len(hits) > 0 {
			msg.AddEntity(ability, hits...)
		}
	}
	return msg, nil
}

// bigramSimilarity is the Jaccard similarity of rune bigram sets. Single
// rune strings compare by equality.
func bigramSimilarity(a, b string) float64 {
	ba, bb := bigrams(a), bigrams(b)
	if len(ba) == 0 || len(bb) == 0 {
		if a == b && a != "" {
			return 1
		}
		return 0
	}
	inter := 0
	for g := range ba {
		if bb[g] {
			inter++
		}
	}
	union := len(ba) + len(bb) - inter
	return float64(inter) / float64(union)
}

func bigrams(s string) map[string]bool {
	runes := []rune(s)
	out := make(map[string]bool, len(runes))
	for i := 0; i+1 < len(runes); i++ {
		out[string(runes[i:i+2])] = true
	}
	return out
}
