package dialog

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/convograph/convograph/nlu"
)

func TestEvaluateOperators(t *testing.T) {
	cases := []struct {
		name     string
		source   any
		target   any
		operator string
		want     bool
	}{
		{"eq strings", "挪车", "挪车", "==", true},
		{"eq mixed types", 3, "3", "==", true},
		{"neq", "a", "b", "!=", true},
		{"like contained", "挪车", "帮我挪车啊", "like", true},
		{"like not contained", "退款", "帮我挪车啊", "like", false},
		{"like empty source", "", "anything", "like", false},
		{"isNull empty string", "", nil, "isNull", true},
		{"isNull nil", nil, nil, "isNull", true},
		{"isNull empty list", []string{}, nil, "isNull", true},
		{"notNull value", "x", nil, "notNull", true},
		{"gt", "3.5", 2, ">", true},
		{"le", 2, 2, "<=", true},
		{"len_gt runes", "广州市", 2, "len_gt", true},
		{"len_eq list", []string{"a", "b"}, 2, "len_eq", true},
		{"len_lt", "ab", 5, "len_lt", true},
		{"list target is OR", "b", []any{"a", "b"}, "==", true},
		{"list source is OR", []string{"x", "挪车"}, "挪车", "==", true},
		{"list source all miss", []string{"x", "y"}, "z", "==", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := evaluate(tc.source, tc.target, tc.operator)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	_, err := evaluate("abc", 1, ">")
	require.Error(t, err)

	_, err = evaluate("abc", "xyz", "len_gt")
	require.Error(t, err)

	_, err = evaluate("a", "b", "~~")
	require.Error(t, err)
}

func TestEvaluateProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.String().Draw(t, "a")
		b := rapid.String().Draw(t, "b")

		eq, err := evaluate(a, b, "==")
		require.NoError(t, err)
		require.Equal(t, a == b, eq)

		ne, err := evaluate(a, b, "!=")
		require.NoError(t, err)
		require.Equal(t, !eq, ne)

		null, err := evaluate(a, nil, "isNull")
		require.NoError(t, err)
		notNull, err := evaluate(a, nil, "notNull")
		require.NoError(t, err)
		require.NotEqual(t, null, notNull)

		lenEq, err := evaluate(a, len([]rune(a)), "len_eq")
		require.NoError(t, err)
		require.True(t, lenEq)

		lenGt, err := evaluate(a, len([]rune(a)), "len_gt")
		require.NoError(t, err)
		require.False(t, lenGt)
	})
}

func TestJudgeConditionTypes(t *testing.T) {
	a := newTestAgent(t, []GraphConfig{moveCarGraph()})
	tr := a.getSession("s1", map[string]any{"vip": "yes"}).tracker
	tr.slots["plate_number"] = "粤A12345"

	msg := a.collab.NLU.EmptyMessage("帮我挪车")
	msg.Intent = "i_move"
	msg.AddEntity("@sys.city", "广州")
	tr.history = append(tr.history, msg)

	hit, err := tr.judgeCondition("n", Condition{Type: CondIntent, Operator: "==", Value: "i_move"})
	require.NoError(t, err)
	require.True(t, hit)

	hit, err = tr.judgeCondition("n", Condition{Type: CondEntity, Name: "@sys.city", Operator: "==", Value: "广州"})
	require.NoError(t, err)
	require.True(t, hit)

	hit, err = tr.judgeCondition("n", Condition{Type: CondGlobal, Name: "plate_number", Operator: "notNull"})
	require.NoError(t, err)
	require.True(t, hit)

	hit, err = tr.judgeCondition("n", Condition{Type: CondParams, Name: "vip", Operator: "==", Value: "yes"})
	require.NoError(t, err)
	require.True(t, hit)

	_, err = tr.judgeCondition("n", Condition{Type: "nonsense", Operator: "=="})
	require.Error(t, err)
}

func TestJudgeConditionResolvesBuiltinIntent(t *testing.T) {
	a := newTestAgent(t, nil)
	tr := a.getSession("s1", nil).tracker

	msg := a.collab.NLU.EmptyMessage("好的没问题")
	tr.history = append(tr.history, msg)

	hit, err := tr.judgeCondition("n", Condition{Type: CondIntent, Operator: "==", Value: nlu.BuiltinConfirm})
	require.NoError(t, err)
	require.True(t, hit)
}

func TestJudgeBranchIsOrOfAnds(t *testing.T) {
	a := newTestAgent(t, nil)
	tr := a.getSession("s1", map[string]any{"x": "1", "y": "2"}).tracker

	groups := []ConditionGroup{
		{
			{Type: CondParams, Name: "x", Operator: "==", Value: "1"},
			{Type: CondParams, Name: "y", Operator: "==", Value: "wrong"},
		},
		{
			{Type: CondParams, Name: "y", Operator: "==", Value: "2"},
		},
	}
	hit, err := tr.judgeBranch("n", groups)
	require.NoError(t, err)
	require.True(t, hit)

	groups[1][0].Value = "also wrong"
	hit, err = tr.judgeBranch("n", groups)
	require.NoError(t, err)
	require.False(t, hit)
}

func TestCheckConditionStatic(t *testing.T) {
	require.NoError(t, checkCondition("n", Condition{Type: CondIntent, Operator: "==", Value: "i"}))
	require.NoError(t, checkCondition("n", Condition{Type: CondGlobal, Name: "slot", Operator: "isNull"}))

	require.Error(t, checkCondition("n", Condition{Type: "bad", Operator: "=="}))
	require.Error(t, checkCondition("n", Condition{Type: CondIntent, Operator: "contains", Value: "i"}))
	require.Error(t, checkCondition("n", Condition{Type: CondGlobal, Operator: "==", Value: "v"}))
	require.Error(t, checkCondition("n", Condition{Type: CondIntent, Operator: "=="}))
}
