// Package scenario runs the branching life-scenario simulations.
package scenario

import (
	"errors"
	"fmt"
	"sync"
)

type Stage string

const (
	StageSetup   Stage = "setup"
	StagePlaying Stage = "playing"
	StageResults Stage = "results"
)

var (
	ErrUnknownScenario = errors.New("unknown scenario")
	ErrUnknownDecision = errors.New("unknown decision")
	ErrWrongStage      = errors.New("action not allowed in current stage")
)

// Band maps a minimum score to a feedback line.
type Band struct {
	Min      int    `json:"min"`
	Feedback string `json:"feedback"`
}

// Scoring holds the product-tunable numbers of the engine.
type Scoring struct {
	StartScore int
	XPBase     int
	XPPivot    int
	// Bands are checked in order; the last one should have the lowest Min.
	Bands    []Band
	Fallback string
	// Buckets overrides a scenario's lesson thresholds by scenario id.
	Buckets map[string][2]int
}

func DefaultScoring() Scoring {
	return Scoring{
		StartScore: 100,
		XPBase:     150,
		XPPivot:    80,
		Bands: []Band{
			{Min: 120, Feedback: "Outstanding! You made consistently smart decisions. This skill will serve you well in real life."},
			{Min: 100, Feedback: "Very good! You managed the crisis well. A few tweaks in future situations will help."},
			{Min: 80, Feedback: "Decent effort, but there were better choices available. Reflect on what you'd do differently."},
		},
		Fallback: "This scenario showed the real cost of panic decisions. Remember: panic is expensive.",
	}
}

type Choice struct {
	NodeID     string `json:"node_id"`
	DecisionID string `json:"decision_id"`
}

// Outcome is what a single decision did to the run.
type Outcome struct {
	Decision Decision `json:"decision"`
	Score    int      `json:"score"`
	Finished bool     `json:"finished"`
}

type Results struct {
	ScenarioID     string   `json:"scenario_id"`
	Score          int      `json:"score"`
	LessonsLearned []string `json:"lessons_learned"`
	Feedback       string   `json:"feedback"`
	XPEarned       int      `json:"xp_earned"`
	Choices        []Choice `json:"choices"`
}

// View is a read-only copy of a game.
type View struct {
	ScenarioID string   `json:"scenario_id"`
	Name       string   `json:"name"`
	Stage      Stage    `json:"stage"`
	NodeIndex  int      `json:"node_index"`
	NodeCount  int      `json:"node_count"`
	Node       *Node    `json:"node,omitempty"`
	Score      int      `json:"score"`
	Choices    []Choice `json:"choices"`
}

// Game is one play-through of a scenario. It is safe for concurrent use.
type Game struct {
	scenario Scenario
	scoring  Scoring

	mu      sync.Mutex
	stage   Stage
	index   int
	score   int
	choices []Choice
}

func NewGame(sc Scenario, scoring Scoring) *Game {
	if len(scoring.Bands) == 0 {
		scoring.Bands = DefaultScoring().Bands
		scoring.Fallback = DefaultScoring().Fallback
	}
	if b, ok := scoring.Buckets[sc.ID]; ok {
		sc.Lessons.High, sc.Lessons.Mid = b[0], b[1]
	}
	g := &Game{scenario: sc, scoring: scoring}
	g.reset()
	return g
}

// New looks up a scenario by id and starts a game for it.
func New(id string, scoring Scoring) (*Game, error) {
	sc, ok := Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScenario, id)
	}
	return NewGame(sc, scoring), nil
}

func (g *Game) Scenario() Scenario {
	return g.scenario
}

func (g *Game) Start() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stage != StageSetup {
		return fmt.Errorf("%w: start from %s", ErrWrongStage, g.stage)
	}
	g.stage = StagePlaying
	return nil
}

// Choose applies a decision on the current node. The score, the choice log
// and the advance happen together; choosing on the last node ends the game.
func (g *Game) Choose(decisionID string) (Outcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stage != StagePlaying {
		return Outcome{}, fmt.Errorf("%w: choose in %s", ErrWrongStage, g.stage)
	}
	node := g.scenario.Nodes[g.index]
	var picked *Decision
	for i := range node.Decisions {
		if node.Decisions[i].ID == decisionID {
			picked = &node.Decisions[i]
			break
		}
	}
	if picked == nil {
		return Outcome{}, fmt.Errorf("%w: %q on %s", ErrUnknownDecision, decisionID, node.ID)
	}

	g.score = max(0, g.score+picked.Impact)
	g.choices = append(g.choices, Choice{NodeID: node.ID, DecisionID: picked.ID})
	if g.index == len(g.scenario.Nodes)-1 {
		g.stage = StageResults
	} else {
		g.index++
	}
	return Outcome{Decision: *picked, Score: g.score, Finished: g.stage == StageResults}, nil
}

func (g *Game) Results() (Results, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stage != StageResults {
		return Results{}, fmt.Errorf("%w: results in %s", ErrWrongStage, g.stage)
	}
	return Results{
		ScenarioID:     g.scenario.ID,
		Score:          g.score,
		LessonsLearned: append([]string(nil), g.scenario.Lessons.For(g.score)...),
		Feedback:       g.scoring.feedback(g.score),
		XPEarned:       g.scoring.XPBase + max(0, g.score-g.scoring.XPPivot),
		Choices:        append([]Choice(nil), g.choices...),
	}, nil
}

// Reset returns the game to setup with a fresh score and an empty log.
func (g *Game) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reset()
}

func (g *Game) reset() {
	g.stage = StageSetup
	g.index = 0
	g.score = g.scoring.StartScore
	g.choices = nil
}

func (g *Game) View() View {
	g.mu.Lock()
	defer g.mu.Unlock()
	v := View{
		ScenarioID: g.scenario.ID,
		Name:       g.scenario.Name,
		Stage:      g.stage,
		NodeIndex:  g.index,
		NodeCount:  len(g.scenario.Nodes),
		Score:      g.score,
		Choices:    append([]Choice{}, g.choices...),
	}
	if g.stage == StagePlaying {
		node := g.scenario.Nodes[g.index]
		v.Node = &node
	}
	return v
}

func (s Scoring) feedback(score int) string {
	for _, b := range s.Bands {
		if score >= b.Min {
			return b.Feedback
		}
	}
	return s.Fallback
}
