package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	cl "finwise/internal/cli"
	"finwise/internal/config"
	"finwise/internal/finance"
	"finwise/internal/market"
	"finwise/internal/scenario"
	"finwise/internal/syncq"
	"finwise/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const (
	kindLifeScenario = "life-scenario"
	kindStockMarket  = "stock-market"
)

func loadTuning() (config.Tuning, error) {
	return config.LoadTuning(os.Getenv("FINWISE_TUNING_FILE"))
}

func newLessonsCmd(apiBase *string) *cobra.Command {
	lessons := &cobra.Command{
		Use:     "lessons",
		Aliases: []string{"lesson"},
		Short:   "Learn and take quizzes",
	}
	lessons.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List lessons",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			out, err := newClient(apiBase).Lessons(ctx, sess.AccessToken)
			if err != nil {
				return err
			}
			renderLessons(out)
			return nil
		},
	})
	lessons.AddCommand(&cobra.Command{
		Use:   "show <lesson_id>",
		Short: "Read a lesson",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			l, err := newClient(apiBase).Lesson(ctx, sess.AccessToken, args[0])
			if err != nil {
				return err
			}
			return printMarkdown(lessonMarkdown(l))
		},
	})
	lessons.AddCommand(&cobra.Command{
		Use:   "attempt <lesson_id>",
		Short: "Take a lesson's quiz",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			client := newClient(apiBase)
			ctx, cancel := requestContext(cmd)
			defer cancel()
			l, err := client.Lesson(ctx, sess.AccessToken, args[0])
			if err != nil {
				return err
			}
			answers := make(map[string]int, len(l.Quiz))
			for i, q := range l.Quiz {
				accent.Printf("\nQ%d. %s\n", i+1, q.Question)
				for j, opt := range q.Options {
					fmt.Printf("  %d) %s\n", j+1, opt)
				}
				pick, err := promptIntRange("Answer", 1, int64(len(q.Options)))
				if err != nil {
					return err
				}
				answers[q.ID] = int(pick) - 1
			}
			res, err := client.AttemptLesson(ctx, sess.AccessToken, l.ID, answers)
			if err != nil {
				return err
			}
			renderLessonResult(res)
			return nil
		},
	})
	return lessons
}

func newScenarioCmd(apiBase *string) *cobra.Command {
	sc := &cobra.Command{
		Use:   "scenario",
		Short: "Life decision simulator",
	}
	sc.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List life scenarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			renderScenarios(scenario.Catalog())
			return nil
		},
	})
	sc.AddCommand(&cobra.Command{
		Use:   "play <scenario_id>",
		Short: "Play a scenario in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tuning, err := loadTuning()
			if err != nil {
				return err
			}
			game, err := scenario.New(args[0], tuning.ScenarioScoring())
			if err != nil {
				return err
			}
			final, err := tea.NewProgram(tui.NewScenarioModel(game, tuning.Scenario.FeedbackDelay), tea.WithAltScreen()).Run()
			if err != nil {
				return err
			}
			m, ok := final.(tui.ScenarioModel)
			if !ok {
				return nil
			}
			for _, res := range m.Completed() {
				if err := reportRun(cmd, apiBase, finance.SimulationResult{
					Kind:         kindLifeScenario,
					SimulationID: res.ScenarioID,
					Score:        res.Score,
					Feedback:     res.Feedback,
					XPEarned:     res.XPEarned,
				}); err != nil {
					return err
				}
			}
			return nil
		},
	})
	return sc
}

func newMarketCmd(apiBase *string) *cobra.Command {
	mk := &cobra.Command{
		Use:   "market",
		Short: "Stock market simulator",
	}
	mk.AddCommand(&cobra.Command{
		Use:   "play",
		Short: "Trade a timed market session in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			tuning, err := loadTuning()
			if err != nil {
				return err
			}
			session := market.NewSession(tuning.MarketConfig(), nil)
			final, err := tea.NewProgram(tui.NewMarketModel(session), tea.WithAltScreen()).Run()
			if err != nil {
				return err
			}
			m, ok := final.(tui.MarketModel)
			if !ok {
				return nil
			}
			res, done := m.Results()
			if !done {
				printInfo("Session abandoned, nothing recorded.")
				return nil
			}
			return reportRun(cmd, apiBase, finance.SimulationResult{
				Kind:         kindStockMarket,
				SimulationID: kindStockMarket,
				Score:        res.Quality,
				FinalValue:   res.FinalValue.StringFixed(2),
				Feedback:     res.Feedback,
				XPEarned:     res.XPEarned,
			})
		},
	})
	return mk
}

// reportRun saves a finished local run to the profile, queueing it when the
// API is unreachable. Runs played while logged out are not saved.
func reportRun(cmd *cobra.Command, apiBase *string, res finance.SimulationResult) error {
	sess, err := cl.LoadSession()
	if err != nil {
		printWarn("Not logged in, result not saved.")
		return nil
	}
	res.ReportID = uuid.NewString()
	ctx, cancel := requestContext(cmd)
	defer cancel()
	rec, err := newClient(apiBase).RecordSimulation(ctx, sess.AccessToken, res)
	if err != nil {
		body, derr := decodeInto[map[string]any](res)
		if derr != nil {
			return derr
		}
		return queueOnNetworkError(err, syncq.Command{
			Method:         http.MethodPost,
			Path:           "/api/v1/simulations",
			Body:           body,
			IdempotencyKey: res.ReportID,
		})
	}
	printSuccess(fmt.Sprintf("Recorded %s: score %d, +%d XP.", rec.SimulationID, rec.Score, rec.XPEarned))
	return nil
}

func lessonMarkdown(l finance.Lesson) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", l.Title)
	fmt.Fprintf(&b, "*%s · %d min · %d XP*\n\n", l.Topic, l.Minutes, l.XPReward)
	b.WriteString(l.Summary)
	b.WriteString("\n\n## Key points\n\n")
	for _, p := range l.KeyPoints {
		fmt.Fprintf(&b, "- %s\n", p)
	}
	if len(l.Quiz) > 0 {
		fmt.Fprintf(&b, "\nRun `finwise lessons attempt %s` to take the %d question quiz.\n", l.ID, len(l.Quiz))
	}
	return b.String()
}

func printMarkdown(md string) error {
	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(80))
	if err != nil {
		fmt.Println(md)
		return nil
	}
	out, err := renderer.Render(md)
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}
