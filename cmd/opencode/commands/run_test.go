package commands

import "testing"

func TestAgentSpecForKnownNames(t *testing.T) {
	cases := map[string]string{
		"code": "code",
		"plan": "plan",
	}
	for flag, wantName := range cases {
		spec := agentSpecFor(flag)
		if spec.Name != wantName {
			t.Errorf("agentSpecFor(%q).Name = %q, want %q", flag, spec.Name, wantName)
		}
	}
}

func TestAgentSpecForFallsBackToDefault(t *testing.T) {
	for _, flag := range []string{"", "bogus"} {
		spec := agentSpecFor(flag)
		if spec.Name != "default" {
			t.Errorf("agentSpecFor(%q).Name = %q, want %q", flag, spec.Name, "default")
		}
	}
}

func TestSplitModel(t *testing.T) {
	cases := []struct {
		in             string
		wantProviderID string
		wantModelID    string
	}{
		{"anthropic/claude-sonnet-4", "anthropic", "claude-sonnet-4"},
		{"gpt-4o", "", "gpt-4o"},
		{"ark/ep-123/extra", "ark", "ep-123/extra"},
		{"", "", ""},
	}
	for _, c := range cases {
		gotProvider, gotModel := splitModel(c.in)
		if gotProvider != c.wantProviderID || gotModel != c.wantModelID {
			t.Errorf("splitModel(%q) = (%q, %q), want (%q, %q)",
				c.in, gotProvider, gotModel, c.wantProviderID, c.wantModelID)
		}
	}
}
