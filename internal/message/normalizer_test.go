package message

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xln3/forgeagent/pkg/types"
)

func TestNormalize_DropsProgress(t *testing.T) {
	msgs := []types.Message{
		{Role: types.RoleUser, Content: []types.ContentBlock{types.TextBlock("hi")}},
		{Role: types.RoleProgress, ToolUseID: "a", Text: "working..."},
	}

	out, err := Normalize(msgs)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, types.RoleUser, out[0].Role)
}

func TestNormalize_AllMatched_PassesThrough(t *testing.T) {
	msgs := []types.Message{
		{Role: types.RoleUser, Content: []types.ContentBlock{types.TextBlock("go")}},
		{Role: types.RoleAssistant, Content: []types.ContentBlock{
			types.ToolUseBlock("a", "Grep", nil),
		}},
		{Role: types.RoleUser, Content: []types.ContentBlock{
			types.ToolResultBlock("a", "found 3 matches", false),
		}},
	}

	out, err := Normalize(msgs)
	require.NoError(t, err)
	require.Len(t, out, 3)
}

func TestNormalize_NoneMatched_DropsToolUseKeepsText(t *testing.T) {
	msgs := []types.Message{
		{Role: types.RoleUser, Content: []types.ContentBlock{types.TextBlock("go")}},
		{Role: types.RoleAssistant, Content: []types.ContentBlock{
			types.TextBlock("let me check"),
			types.ToolUseBlock("x", "Bash", map[string]any{"command": "sleep 10"}),
		}},
	}

	out, err := Normalize(msgs)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Len(t, out[1].Content, 1)
	require.Equal(t, types.BlockText, out[1].Content[0].Type)
}

func TestNormalize_NoneMatched_DropsEmptyMessageEntirely(t *testing.T) {
	msgs := []types.Message{
		{Role: types.RoleUser, Content: []types.ContentBlock{types.TextBlock("go")}},
		{Role: types.RoleAssistant, Content: []types.ContentBlock{
			types.ToolUseBlock("x", "Bash", nil),
		}},
	}

	out, err := Normalize(msgs)
	require.NoError(t, err)
	require.Len(t, out, 1)
}

func TestNormalize_PartialMatch_SynthesizesInterrupted(t *testing.T) {
	msgs := []types.Message{
		{Role: types.RoleUser, Content: []types.ContentBlock{types.TextBlock("go")}},
		{Role: types.RoleAssistant, Content: []types.ContentBlock{
			types.ToolUseBlock("p", "Grep", nil),
			types.ToolUseBlock("q", "Grep", nil),
		}},
		{Role: types.RoleUser, Content: []types.ContentBlock{
			types.ToolResultBlock("p", "ok", false),
		}},
	}

	out, err := Normalize(msgs)
	require.NoError(t, err)
	require.Len(t, out, 4)

	synth := out[2]
	require.Equal(t, types.RoleUser, synth.Role)
	require.Len(t, synth.Content, 1)
	require.Equal(t, "q", synth.Content[0].ToolUseRefID)
	require.True(t, synth.Content[0].IsError)
	require.Equal(t, interruptedText, synth.Content[0].Content)
}

func TestNormalize_IsFixedPoint(t *testing.T) {
	msgs := []types.Message{
		{Role: types.RoleUser, Content: []types.ContentBlock{types.TextBlock("go")}},
		{Role: types.RoleAssistant, Content: []types.ContentBlock{
			types.ToolUseBlock("p", "Grep", nil),
			types.ToolUseBlock("q", "Grep", nil),
		}},
		{Role: types.RoleUser, Content: []types.ContentBlock{
			types.ToolResultBlock("p", "ok", false),
		}},
	}

	once, err := Normalize(msgs)
	require.NoError(t, err)

	twice, err := Normalize(once)
	require.NoError(t, err)

	require.Equal(t, once, twice)
}

func TestNormalize_UnknownBlockTypeIsFatal(t *testing.T) {
	msgs := []types.Message{
		{Role: types.RoleUser, Content: []types.ContentBlock{{Type: "bogus"}}},
	}

	_, err := Normalize(msgs)
	require.Error(t, err)

	var nerr *NormalizationError
	require.ErrorAs(t, err, &nerr)
}
