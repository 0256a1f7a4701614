package nlu

import (
	"regexp"
	"strings"

	"github.com/convograph/convograph/types"
)

// Builtin intent ids. These match without training data.
const (
	BuiltinConfirm = "@sys.intent.confirm"
	BuiltinDeny    = "@sys.intent.deny"
)

// Builtin ability names. Each extracts entities by rule rather than model.
const (
	AbilityPlates         = "@sys.plates"
	AbilityPhone          = "@sys.phone"
	AbilityTel            = "@sys.tel"
	AbilityNumber         = "@sys.num"
	AbilityRecentUserSays = "@sys.recent_usersays"
	AbilityRecentIntent   = "@sys.recent_intent"
	// AbilityRecentIntentOrSays fills with the matched intent name when one
	// resolved, otherwise with the raw utterance.
	AbilityRecentIntentOrSays = "@sys.recent_intent_and_says"
)

var confirmPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(好|行|可以|嗯|恩|是|对|要|有|得|办|确定|确认|同意|没问题|没错|中|妥|愿意)`),
	regexp.MustCompile(`(?i)^(ok|yes|yeah|yep)`),
}

var denyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(不|没|否|别|无|免|拒绝|算了|取消|错)`),
	regexp.MustCompile(`(?i)^(no|nope)`),
}

// Patterns that would misfire the prefix rules above.
var denyOverrides = []*regexp.Regexp{
	regexp.MustCompile(`^(不用谢|没关系|没事)`),
}

var abilityPatterns = map[string][]*regexp.Regexp{
	AbilityPlates: {
		regexp.MustCompile(`[京津沪渝冀豫云辽黑湘皖鲁新苏浙赣鄂桂甘晋蒙陕吉闽贵粤青藏川宁琼使领][A-HJ-NP-Za-hj-np-z][A-HJ-NP-Za-hj-np-z0-9]{4,5}[A-HJ-NP-Za-hj-np-z0-9挂学警港澳]`),
	},
	AbilityPhone: {
		regexp.MustCompile(`1[3-9]\d{9}`),
	},
	AbilityTel: {
		regexp.MustCompile(`0\d{2,3}-?\d{7,8}`),
		regexp.MustCompile(`1[3-9]\d{9}`),
	},
	AbilityNumber: {
		regexp.MustCompile(`\d+`),
	},
}

// IsBuiltinIntent reports whether id is one of the rule-matched intents.
func IsBuiltinIntent(id string) bool {
	return id == BuiltinConfirm || id == BuiltinDeny
}

// ProcessBuiltinIntent re-resolves msg.Intent when the wanted intent is a
// builtin one. The modal-stripped text keeps ASR filler from defeating the
// prefix rules.
func ProcessBuiltinIntent(msg *types.Message, intentID string) {
	if !IsBuiltinIntent(intentID) {
		return
	}
	text := strings.TrimSpace(msg.TextWithoutModal())
	if text == "" {
		return
	}
	deny := false
	for _, re := range denyPatterns {
		if re.MatchString(text) {
			deny = true
			break
		}
	}
	if deny {
		for _, re := range denyOverrides {
			if re.MatchString(text) {
				deny = false
				break
			}
		}
	}
	if deny {
		msg.AddIntentRanking(BuiltinDeny, 1)
		msg.Intent = BuiltinDeny
		msg.IntentConfidence = 1
		return
	}
	for _, re := range confirmPatterns {
		if re.MatchString(text) {
			msg.AddIntentRanking(BuiltinConfirm, 1)
			msg.Intent = BuiltinConfirm
			msg.IntentConfidence = 1
			return
		}
	}
}

// ExtractBuiltin runs the named builtin ability over the message text and
// returns the extracted values. AbilityRecentUserSays returns the raw
// utterance itself.
func ExtractBuiltin(msg *types.Message, ability string) []string {
	if ability == AbilityRecentUserSays {
		if msg.Text == "" {
			return nil
		}
		return []string{msg.Text}
	}
	patterns, ok := abilityPatterns[ability]
	if !ok {
		return nil
	}
	var values []string
	for _, re := range patterns {
		values = append(values, re.FindAllString(msg.Text, -1)...)
	}
	return values
}

// IsBuiltinAbility reports whether the ability is served by ExtractBuiltin.
func IsBuiltinAbility(ability string) bool {
	if ability == AbilityRecentUserSays || ability == AbilityRecentIntent {
		return true
	}
	_, ok := abilityPatterns[ability]
	return ok
}
