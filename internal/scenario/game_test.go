package scenario

import (
	"errors"
	"testing"
)

func play(t *testing.T, g *Game, decisions ...string) Outcome {
	t.Helper()
	var last Outcome
	for _, d := range decisions {
		out, err := g.Choose(d)
		if err != nil {
			t.Fatalf("choose %s: %v", d, err)
		}
		last = out
	}
	return last
}

func TestJobLossBestPath(t *testing.T) {
	g, err := New("job-loss", DefaultScoring())
	if err != nil {
		t.Fatalf("new game: %v", err)
	}
	if err := g.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	out := play(t, g, "d1", "d1", "d1", "end")
	if !out.Finished || out.Score != 195 {
		t.Fatalf("unexpected outcome %+v", out)
	}
	res, err := g.Results()
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if res.XPEarned != 265 {
		t.Fatalf("xp got %d want 265", res.XPEarned)
	}
	if res.LessonsLearned[0] != "Emergency funds are essential - you navigated the crisis well!" {
		t.Fatalf("unexpected lessons %v", res.LessonsLearned)
	}
	if res.Feedback != DefaultScoring().Bands[0].Feedback {
		t.Fatalf("unexpected feedback %q", res.Feedback)
	}
	if len(res.Choices) != 4 || res.Choices[3] != (Choice{NodeID: "month6", DecisionID: "end"}) {
		t.Fatalf("unexpected choice log %+v", res.Choices)
	}
}

func TestScoreIsFlooredAtZero(t *testing.T) {
	sc := Scenario{
		ID: "test",
		Nodes: []Node{
			{ID: "n1", Decisions: []Decision{{ID: "bad", Impact: -150}}},
			{ID: "n2", Decisions: []Decision{{ID: "ok", Impact: 10}}},
		},
	}
	g := NewGame(sc, DefaultScoring())
	_ = g.Start()
	if out := play(t, g, "bad"); out.Score != 0 {
		t.Fatalf("score got %d want 0", out.Score)
	}
	out := play(t, g, "ok")
	if out.Score != 10 {
		t.Fatalf("floor must apply per update, got %d", out.Score)
	}
	res, _ := g.Results()
	if res.XPEarned != 150 || res.Feedback != DefaultScoring().Fallback {
		t.Fatalf("unexpected results %+v", res)
	}
}

func TestLessonBuckets(t *testing.T) {
	tests := []struct {
		id        string
		decisions []string
		score     int
		bucket    string
	}{
		{"job-loss", []string{"d3", "d3", "d1", "end"}, 105, "middle"},
		{"job-loss", []string{"d3", "d3", "d3", "end"}, 30, "bottom"},
		{"medical-emergency", []string{"d2", "d3"}, 100, "top"},
		{"medical-emergency", []string{"d2", "d2"}, 130, "top"},
		{"medical-emergency", []string{"d3", "d3"}, 125, "top"},
		{"wedding", []string{"d2", "d1"}, 105, "middle"},
		{"wedding", []string{"d2", "d3"}, 45, "bottom"},
	}
	for _, tc := range tests {
		g, _ := New(tc.id, DefaultScoring())
		_ = g.Start()
		play(t, g, tc.decisions...)
		res, err := g.Results()
		if err != nil {
			t.Fatalf("%s: results: %v", tc.id, err)
		}
		if res.Score != tc.score {
			t.Fatalf("%s %v: score got %d want %d", tc.id, tc.decisions, res.Score, tc.score)
		}
		sc, _ := Lookup(tc.id)
		want := map[string][]string{"top": sc.Lessons.Top, "middle": sc.Lessons.Middle, "bottom": sc.Lessons.Bottom}[tc.bucket]
		if res.LessonsLearned[0] != want[0] {
			t.Fatalf("%s %v: expected %s bucket, got %v", tc.id, tc.decisions, tc.bucket, res.LessonsLearned)
		}
	}
}

func TestStageGuards(t *testing.T) {
	g, _ := New("wedding", DefaultScoring())
	if _, err := g.Choose("d1"); !errors.Is(err, ErrWrongStage) {
		t.Fatalf("choose in setup should fail, got %v", err)
	}
	if _, err := g.Results(); !errors.Is(err, ErrWrongStage) {
		t.Fatalf("results in setup should fail, got %v", err)
	}
	_ = g.Start()
	if err := g.Start(); !errors.Is(err, ErrWrongStage) {
		t.Fatalf("double start should fail, got %v", err)
	}
	if _, err := g.Choose("d9"); !errors.Is(err, ErrUnknownDecision) {
		t.Fatalf("expected ErrUnknownDecision, got %v", err)
	}
	if v := g.View(); v.Score != 100 || len(v.Choices) != 0 || v.Node == nil || v.Node.ID != "month1" {
		t.Fatalf("rejected decision changed state: %+v", v)
	}
	play(t, g, "d1", "d1")
	if _, err := g.Choose("d1"); !errors.Is(err, ErrWrongStage) {
		t.Fatalf("choose after results should fail, got %v", err)
	}

	g.Reset()
	v := g.View()
	if v.Stage != StageSetup || v.Score != 100 || len(v.Choices) != 0 || v.NodeIndex != 0 {
		t.Fatalf("reset did not clear the run: %+v", v)
	}
	if _, err := New("lottery-win", DefaultScoring()); !errors.Is(err, ErrUnknownScenario) {
		t.Fatalf("expected ErrUnknownScenario, got %v", err)
	}
}

func TestBucketOverride(t *testing.T) {
	scoring := DefaultScoring()
	scoring.Buckets = map[string][2]int{"wedding": {200, 150}}
	g, _ := New("wedding", scoring)
	_ = g.Start()
	play(t, g, "d1", "d1")
	res, _ := g.Results()
	sc, _ := Lookup("wedding")
	if res.Score != 175 || res.LessonsLearned[0] != sc.Lessons.Middle[0] {
		t.Fatalf("override not applied: %+v", res)
	}
}
