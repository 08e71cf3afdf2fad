package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"finwise/internal/auth"
	cl "finwise/internal/cli"
	"finwise/internal/config"
	"finwise/internal/syncq"

	"github.com/spf13/cobra"
)

func main() {
	_ = config.LoadDotEnv()
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL

	root := &cobra.Command{
		Use:          "finwise",
		Short:        "FinWise personal finance coach",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&apiBase, "api", apiBase, "API base URL")

	root.AddCommand(
		newPingCmd(&apiBase),
		newSignupCmd(&apiBase),
		newLoginCmd(&apiBase),
		newDemoCmd(&apiBase),
		newLogoutCmd(),
		newDashCmd(&apiBase),
		newOnboardingCmd(&apiBase),
		newAccountsCmd(&apiBase),
		newBalanceCmd(&apiBase),
		newTxnCmd(&apiBase),
		newIncomeCmd(&apiBase),
		newGoalsCmd(&apiBase),
		newCIBILCmd(&apiBase),
		newXPCmd(&apiBase),
		newBadgeCmd(&apiBase),
		newChatCmd(&apiBase),
		newCoachCmd(&apiBase),
		newSummaryCmd(&apiBase),
		newLessonsCmd(&apiBase),
		newLeaderboardCmd(&apiBase),
		newExportCmd(&apiBase),
		newScenarioCmd(&apiBase),
		newMarketCmd(&apiBase),
		newSyncCmd(&apiBase),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(apiBase *string) *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(*apiBase), "/"))
}

func requireSession() (cl.Session, error) {
	sess, err := cl.LoadSession()
	if err != nil {
		return cl.Session{}, fmt.Errorf("login required: %w", err)
	}
	return sess, nil
}

func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 30*time.Second)
}

func saveLogin(s auth.Session) error {
	return cl.SaveSession(cl.SessionFrom(s, time.Now()))
}

func newPingCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the API is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()
			msg, err := newClient(apiBase).Ping(ctx)
			if err != nil {
				return err
			}
			printSuccess("API says: " + msg)
			return nil
		},
	}
}

func newSignupCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "signup",
		Short: "Create a FinWise account",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := promptRequired("Name")
			if err != nil {
				return err
			}
			email, err := promptRequired("Email")
			if err != nil {
				return err
			}
			password, err := promptPassword("Password (min 6 chars)")
			if err != nil {
				return err
			}
			age, err := promptIntRange("Age", 18, 100)
			if err != nil {
				return err
			}
			incomeType, err := promptChoice("Income type", []string{"salaried", "freelance", "business", "student"}, "salaried")
			if err != nil {
				return err
			}
			in := auth.SignupInput{
				Name:       name,
				Email:      email,
				Password:   password,
				Age:        int(age),
				IncomeType: incomeType,
			}
			if err := auth.ValidateSignup(in); err != nil {
				return err
			}

			ctx, cancel := requestContext(cmd)
			defer cancel()
			session, err := newClient(apiBase).Signup(ctx, in)
			if err != nil {
				return err
			}
			if err := saveLogin(session); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Welcome, %s. Session saved.", session.User.Name))
			printInfo("Run `finwise onboarding` to personalise your plan.")
			return nil
		},
	}
}

func newLoginCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Login to FinWise",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := promptRequired("Email")
			if err != nil {
				return err
			}
			password, err := promptPassword("Password")
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			session, err := newClient(apiBase).Login(ctx, email, password)
			if err != nil {
				return err
			}
			if err := saveLogin(session); err != nil {
				return err
			}
			printSuccess("Login successful.")
			return nil
		},
	}
}

func newDemoCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Login with the shared demo account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()
			session, err := newClient(apiBase).Demo(ctx)
			if err != nil {
				return err
			}
			if err := saveLogin(session); err != nil {
				return err
			}
			printSuccess("Logged in as " + session.User.Email + ".")
			return nil
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear local session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cl.ClearSession(); err != nil {
				return err
			}
			printSuccess("Logged out.")
			return nil
		},
	}
}

func newDashCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:     "dash",
		Aliases: []string{"state"},
		Short:   "Show your dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			st, err := newClient(apiBase).State(ctx, sess.AccessToken)
			if err != nil {
				return err
			}
			renderDashboard(st)
			return nil
		},
	}
}

func newSyncCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replay locally queued offline writes",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			queue, err := syncq.Load()
			if err != nil {
				return err
			}
			if len(queue) == 0 {
				printInfo("Sync queue is empty.")
				return nil
			}
			client := newClient(apiBase)
			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()

			delivered, dropped, err := syncq.Drain(func(q syncq.Command) syncq.Outcome {
				_, err := client.Do(ctx, q.Method, q.Path, sess.AccessToken, q.Body, q.IdempotencyKey)
				switch {
				case err == nil:
					return syncq.Delivered
				case cl.IsRejected(err):
					printError(fmt.Sprintf("Dropped %s %s: %v", q.Method, q.Path, err))
					return syncq.Dropped
				default:
					printError(fmt.Sprintf("Sync failed for %s %s: %v", q.Method, q.Path, err))
					return syncq.Retry
				}
			})
			if err != nil {
				return err
			}
			remaining := len(queue) - delivered - dropped
			printSuccess(fmt.Sprintf("Sync complete: replayed=%d dropped=%d remaining=%d", delivered, dropped, remaining))
			return nil
		},
	}
}

// queueOnNetworkError keeps a write for `finwise sync` when the API could not
// be reached or failed. A 4xx answer is returned unchanged.
func queueOnNetworkError(err error, q syncq.Command) error {
	if err == nil {
		return nil
	}
	if cl.IsRejected(err) {
		return err
	}
	if qerr := syncq.Push(q); qerr != nil {
		return fmt.Errorf("request failed (%v) and could not be queued: %w", err, qerr)
	}
	printWarn("API unreachable. Saved for later, run `finwise sync` when back online.")
	return nil
}
