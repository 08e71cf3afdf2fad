package tui

import (
	"fmt"
	"strings"
	"time"

	"finwise/internal/scenario"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

type scenarioKeys struct {
	commonKeys
	Choose key.Binding
	Replay key.Binding
}

func (k scenarioKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Start, k.Choose, k.Quit, k.Help}
}

func (k scenarioKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Start, k.Choose}, {k.Replay, k.Quit, k.Help}}
}

// advanceMsg ends the pause that shows a decision's result.
type advanceMsg struct{}

// ScenarioModel plays one life scenario. Each finished run is kept so the
// caller can report it once the program exits.
type ScenarioModel struct {
	game  *scenario.Game
	delay time.Duration
	keys  scenarioKeys
	help  help.Model

	pending   *scenario.Outcome
	completed []scenario.Results
	err       string
}

func NewScenarioModel(game *scenario.Game, feedbackDelay time.Duration) ScenarioModel {
	return ScenarioModel{
		game:  game,
		delay: feedbackDelay,
		keys: scenarioKeys{
			commonKeys: newCommonKeys(),
			Choose:     key.NewBinding(key.WithKeys("1", "2", "3", "4", "5", "6"), key.WithHelp("1-6", "choose")),
			Replay:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "play again")),
		},
		help: help.New(),
	}
}

// Completed returns the results of every run finished in this program.
func (m ScenarioModel) Completed() []scenario.Results {
	return append([]scenario.Results(nil), m.completed...)
}

func (m ScenarioModel) Init() tea.Cmd { return nil }

func (m ScenarioModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil
	case advanceMsg:
		return m.advance(), nil
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		}
		if m.pending != nil {
			return m, nil
		}
		stage := m.game.View().Stage
		switch {
		case stage == scenario.StageSetup && key.Matches(msg, m.keys.Start):
			if err := m.game.Start(); err != nil {
				m.err = err.Error()
			}
		case stage == scenario.StagePlaying && key.Matches(msg, m.keys.Choose):
			return m.choose(msg.String())
		case stage == scenario.StageResults && key.Matches(msg, m.keys.Replay):
			m.game.Reset()
			m.err = ""
		}
	}
	return m, nil
}

func (m ScenarioModel) choose(keyText string) (tea.Model, tea.Cmd) {
	idx := int(keyText[0] - '1')
	view := m.game.View()
	if view.Node == nil || idx < 0 || idx >= len(view.Node.Decisions) {
		return m, nil
	}
	out, err := m.game.Choose(view.Node.Decisions[idx].ID)
	if err != nil {
		m.err = err.Error()
		return m, nil
	}
	m.err = ""
	if out.Finished && out.Decision.ResultMessage == "" {
		return m.finish(), nil
	}
	m.pending = &out
	return m, tea.Tick(m.delay, func(time.Time) tea.Msg { return advanceMsg{} })
}

func (m ScenarioModel) advance() ScenarioModel {
	if m.pending == nil {
		return m
	}
	finished := m.pending.Finished
	m.pending = nil
	if finished {
		return m.finish()
	}
	return m
}

func (m ScenarioModel) finish() ScenarioModel {
	res, err := m.game.Results()
	if err != nil {
		m.err = err.Error()
		return m
	}
	m.completed = append(m.completed, res)
	return m
}

func (m ScenarioModel) View() string {
	sc := m.game.Scenario()
	view := m.game.View()
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s %s", sc.Icon, sc.Name)))
	b.WriteString("\n\n")

	switch view.Stage {
	case scenario.StageSetup:
		b.WriteString(sc.Description + "\n\n")
		b.WriteString(subtleStyle.Render(sc.Timeframe) + "\n")
		b.WriteString("Goal: " + sc.LearningGoal + "\n")
	case scenario.StagePlaying:
		b.WriteString(subtleStyle.Render(fmt.Sprintf("Step %d of %d · score %d", view.NodeIndex+1, view.NodeCount, view.Score)))
		b.WriteString("\n\n")
		if m.pending != nil {
			b.WriteString(renderOutcome(*m.pending))
			break
		}
		node := view.Node
		b.WriteString(headerStyle.Render(node.Title) + "\n")
		b.WriteString(node.Description + "\n")
		if node.Context != "" {
			b.WriteString(subtleStyle.Render(node.Context) + "\n")
		}
		b.WriteString("\n")
		for i, d := range node.Decisions {
			fmt.Fprintf(&b, "%s %s\n", cursorStyle.Render(fmt.Sprintf("[%d]", i+1)), d.Text)
			if d.Consequence != "" {
				b.WriteString("    " + subtleStyle.Render(d.Consequence) + "\n")
			}
		}
	case scenario.StageResults:
		if m.pending != nil {
			b.WriteString(renderOutcome(*m.pending))
			break
		}
		if res, err := m.game.Results(); err == nil {
			b.WriteString(renderScenarioResults(res))
		}
	}
	if m.err != "" {
		b.WriteString("\n" + badStyle.Render(m.err) + "\n")
	}
	b.WriteString("\n" + m.help.View(m.keys))
	return b.String()
}

func renderOutcome(out scenario.Outcome) string {
	impact := fmt.Sprintf("%+d", out.Decision.Impact)
	return fmt.Sprintf("%s\n%s  %s\n", out.Decision.Text, signed(impact, out.Decision.Impact < 0), out.Decision.ResultMessage)
}

func renderScenarioResults(res scenario.Results) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Final score: %d\nXP earned: %s\n\n", res.Score, goodStyle.Render(fmt.Sprintf("+%d", res.XPEarned)))
	b.WriteString(res.Feedback + "\n\n")
	b.WriteString(headerStyle.Render("Lessons learned") + "\n")
	for _, l := range res.LessonsLearned {
		b.WriteString("• " + l + "\n")
	}
	return resultsStyle.Render(strings.TrimRight(b.String(), "\n"))
}
