package pipeline

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/genai"

	"github.com/sherpa-ai/sherpa/pkg/core/types"
)

func TestChatContentsRoleMapping(t *testing.T) {
	turns := []types.Message{
		{Role: types.RoleUser, Content: "hi"},
		{Role: types.RoleAssistant, Content: "hello"},
		{Role: types.RoleUser, Content: "bye"},
	}
	contents := chatContents(turns)
	if len(contents) != 3 {
		t.Fatalf("len = %d, want 3", len(contents))
	}
	wantRoles := []genai.Role{genai.RoleUser, genai.RoleModel, genai.RoleUser}
	for i, c := range contents {
		if c.Role != string(wantRoles[i]) {
			t.Errorf("contents[%d].Role = %q, want %q", i, c.Role, wantRoles[i])
		}
		if len(c.Parts) != 1 || c.Parts[0].Text != turns[i].Content {
			t.Errorf("contents[%d] text = %+v, want %q", i, c.Parts, turns[i].Content)
		}
	}
}

func TestReplySplitsSystemPrompt(t *testing.T) {
	r := &GeminiReasoner{model: "test"}
	var gotSystem string
	var gotTurns []types.Message
	r.generate = func(ctx context.Context, system string, turns []types.Message) (string, error) {
		gotSystem = system
		gotTurns = turns
		return "  sure thing  ", nil
	}

	history := []types.Message{
		{Role: types.RoleSystem, Content: "be brief"},
		{Role: types.RoleUser, Content: "hi"},
	}
	reply, err := r.Reply(context.Background(), history)
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if reply != "sure thing" {
		t.Errorf("reply = %q, want trimmed text", reply)
	}
	if gotSystem != "be brief" {
		t.Errorf("system = %q", gotSystem)
	}
	if len(gotTurns) != 1 || gotTurns[0].Role != types.RoleUser {
		t.Errorf("turns = %+v, want the user turn only", gotTurns)
	}
}

func TestReplyRejectsEmptyText(t *testing.T) {
	r := &GeminiReasoner{model: "test"}
	r.generate = func(ctx context.Context, system string, turns []types.Message) (string, error) {
		return "   ", nil
	}
	if _, err := r.Reply(context.Background(), nil); err == nil {
		t.Fatal("want error for empty reply")
	}
}

func TestReplyWrapsGenerateError(t *testing.T) {
	r := &GeminiReasoner{model: "test"}
	boom := errors.New("quota")
	r.generate = func(ctx context.Context, system string, turns []types.Message) (string, error) {
		return "", boom
	}
	if _, err := r.Reply(context.Background(), nil); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped generate error", err)
	}
}
