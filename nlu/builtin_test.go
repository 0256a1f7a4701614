package nlu

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/convograph/convograph/types"
)

func TestProcessBuiltinIntent(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"好的", BuiltinConfirm},
		{"可以的", BuiltinConfirm},
		{"ok", BuiltinConfirm},
		{"嗯呢", BuiltinConfirm},
		{"不行", BuiltinDeny},
		{"没有", BuiltinDeny},
		{"no", BuiltinDeny},
		{"随便说点什么", ""},
		// Polite phrases start like denials but are not.
		{"不用谢", ""},
		{"没关系", ""},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			msg := types.NewMessage("bot", tc.text)
			ProcessBuiltinIntent(msg, BuiltinConfirm)
			require.Equal(t, tc.want, msg.Intent)
		})
	}
}

func TestProcessBuiltinIntentIgnoresCustomIntents(t *testing.T) {
	msg := types.NewMessage("bot", "好的")
	ProcessBuiltinIntent(msg, "i_custom")
	require.Empty(t, msg.Intent)
}

func TestProcessBuiltinIntentStripsModalParticles(t *testing.T) {
	msg := types.NewMessage("bot", "嗯啊好的")
	// The modal 啊 would not defeat the prefix rule, but a leading one would
	// without stripping.
	ProcessBuiltinIntent(msg, BuiltinConfirm)
	require.Equal(t, BuiltinConfirm, msg.Intent)
}

func TestExtractBuiltin(t *testing.T) {
	msg := types.NewMessage("bot", "我的车牌是粤A12345，电话13800138000")
	require.Equal(t, []string{"粤A12345"}, ExtractBuiltin(msg, AbilityPlates))
	require.Equal(t, []string{"13800138000"}, ExtractBuiltin(msg, AbilityPhone))

	require.Equal(t, []string{msg.Text}, ExtractBuiltin(msg, AbilityRecentUserSays))
	require.Nil(t, ExtractBuiltin(types.NewMessage("bot", ""), AbilityRecentUserSays))
	require.Nil(t, ExtractBuiltin(msg, "@sys.unknown"))
}

func TestExtractBuiltinNumbers(t *testing.T) {
	msg := types.NewMessage("bot", "大概3辆车，等了15分钟")
	require.Equal(t, []string{"3", "15"}, ExtractBuiltin(msg, AbilityNumber))
}

func TestIsBuiltinAbility(t *testing.T) {
	require.True(t, IsBuiltinAbility(AbilityPlates))
	require.True(t, IsBuiltinAbility(AbilityRecentUserSays))
	require.True(t, IsBuiltinAbility(AbilityRecentIntent))
	require.False(t, IsBuiltinAbility("@custom.city"))
}
