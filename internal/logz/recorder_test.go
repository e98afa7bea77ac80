package logz

import (
	"strings"
	"testing"
	"time"
)

func TestRecorderDropsEntriesAboveLevel(t *testing.T) {
	r := NewRecorder(LevelTool, 10)
	r.Record(Entry{Level: LevelSummary, Type: "a"})
	r.Record(Entry{Level: LevelTool, Type: "b"})
	r.Record(Entry{Level: LevelFull, Type: "c"})

	got := r.Query(QueryOptions{MinLevel: LevelFull})
	if len(got) != 2 {
		t.Fatalf("expected 2 retained entries, got %d", len(got))
	}
}

func TestRecorderRingOverwritesOldest(t *testing.T) {
	r := NewRecorder(LevelFull, 3)
	for i := 0; i < 5; i++ {
		r.Record(Entry{Level: LevelFull, Type: "x", Message: string(rune('a' + i))})
	}
	got := r.Query(QueryOptions{MinLevel: LevelFull})
	if len(got) != 3 {
		t.Fatalf("expected ring capped at 3, got %d", len(got))
	}
	if got[0].Message != "c" || got[2].Message != "e" {
		t.Fatalf("expected newest-three-to-survive ordering [c d e], got %+v", got)
	}
}

func TestRecorderQueryFilters(t *testing.T) {
	r := NewRecorder(LevelFull, 10)
	base := time.Now()
	r.Record(Entry{Level: LevelFull, Type: "tool", Success: true, Timestamp: base})
	r.Record(Entry{Level: LevelFull, Type: "tool", Success: false, Timestamp: base.Add(time.Second)})
	r.Record(Entry{Level: LevelFull, Type: "llm", Success: false, Timestamp: base.Add(2 * time.Second)})

	failures := r.Query(QueryOptions{MinLevel: LevelFull, FailuresOnly: true})
	if len(failures) != 2 {
		t.Fatalf("expected 2 failures, got %d", len(failures))
	}

	toolOnly := r.Query(QueryOptions{MinLevel: LevelFull, Type: "tool"})
	if len(toolOnly) != 2 {
		t.Fatalf("expected 2 tool entries, got %d", len(toolOnly))
	}

	since := r.Query(QueryOptions{MinLevel: LevelFull, SinceTimestamp: base.Add(time.Millisecond)})
	if len(since) != 2 {
		t.Fatalf("expected 2 entries since the first timestamp, got %d", len(since))
	}

	limited := r.Query(QueryOptions{MinLevel: LevelFull, Limit: 1})
	if len(limited) != 1 || limited[0].Type != "llm" {
		t.Fatalf("expected limit to keep the newest entry, got %+v", limited)
	}
}

func TestAnalyzeMapsRemediationsAndDetectsRepeats(t *testing.T) {
	entries := []Entry{
		{Message: "connection timeout after 30s"},
		{Message: "connection timeout after 30s"},
		{Message: "connection timeout after 30s"},
		{Message: "permission denied opening /etc/shadow", Success: false},
	}
	for i := range entries {
		entries[i].Success = false
	}

	diagnoses := Analyze(entries)
	if len(diagnoses) != 4 {
		t.Fatalf("expected 4 diagnoses, got %d", len(diagnoses))
	}
	for _, d := range diagnoses[:3] {
		if !strings.Contains(d.Remediation, "try a different approach") {
			t.Errorf("expected repeated-timeout diagnosis to recommend a different approach, got %q", d.Remediation)
		}
	}
	if strings.Contains(diagnoses[3].Remediation, "try a different approach") {
		t.Errorf("single permission failure should not trigger the repeat warning, got %q", diagnoses[3].Remediation)
	}
}
