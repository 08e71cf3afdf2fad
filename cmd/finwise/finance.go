package main

import (
	"fmt"
	"strings"
	"time"

	"finwise/internal/finance"
	"finwise/internal/money"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newOnboardingCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "onboarding",
		Short: "Tell FinWise about yourself",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			name, err := promptOptional(fmt.Sprintf("Name [%s]", sess.Name))
			if err != nil {
				return err
			}
			if name == "" {
				name = sess.Name
			}
			age, err := promptIntRange("Age", 18, 100)
			if err != nil {
				return err
			}
			incomeType, err := promptChoice("Income type", []string{"salaried", "freelance", "business", "student"}, "salaried")
			if err != nil {
				return err
			}
			experience, err := promptChoice("Experience", []string{"beginner", "intermediate", "advanced"}, "beginner")
			if err != nil {
				return err
			}
			goal, err := promptRequired("Main goal")
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			st, err := newClient(apiBase).Onboarding(ctx, sess.AccessToken, finance.OnboardingInput{
				Name:            name,
				Age:             int(age),
				IncomeType:      incomeType,
				ExperienceLevel: experience,
				MainGoal:        goal,
			})
			if err != nil {
				return err
			}
			printSuccess("Onboarding complete.")
			renderDashboard(st)
			return nil
		},
	}
}

func newAccountsCmd(apiBase *string) *cobra.Command {
	accounts := &cobra.Command{
		Use:     "accounts",
		Aliases: []string{"account"},
		Short:   "Manage linked accounts",
	}
	accounts.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List accounts and net worth",
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
			renderAccounts(st.FinancialHub)
			return nil
		},
	})
	accounts.AddCommand(&cobra.Command{
		Use:   "add",
		Short: "Add an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			kind, err := promptChoice("Type", accountTypes(), string(finance.AccountBank))
			if err != nil {
				return err
			}
			name, err := promptRequired("Name")
			if err != nil {
				return err
			}
			institution, err := promptOptional("Institution")
			if err != nil {
				return err
			}
			balance, err := promptAmount("Balance", true)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			acc, err := newClient(apiBase).AddAccount(ctx, sess.AccessToken, finance.AccountInput{
				Type:        finance.AccountType(kind),
				Name:        name,
				Balance:     balance,
				Institution: institution,
			})
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Added %s (%s) with %s.", acc.Name, acc.ID, money.FormatINR(acc.Balance)))
			return nil
		},
	})
	accounts.AddCommand(&cobra.Command{
		Use:   "update <account_id>",
		Short: "Rename an account or overwrite its balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			var patch finance.AccountPatch
			name, err := promptOptional("New name (blank keeps)")
			if err != nil {
				return err
			}
			if name != "" {
				patch.Name = &name
			}
			raw, err := promptOptional("New balance (blank keeps)")
			if err != nil {
				return err
			}
			if raw != "" {
				balance, err := money.Parse(raw)
				if err != nil {
					return err
				}
				patch.Balance = &balance
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			hub, err := newClient(apiBase).UpdateAccount(ctx, sess.AccessToken, args[0], patch)
			if err != nil {
				return err
			}
			renderAccounts(hub)
			return nil
		},
	})
	accounts.AddCommand(&cobra.Command{
		Use:   "remove <account_id>",
		Short: "Remove an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			hub, err := newClient(apiBase).RemoveAccount(ctx, sess.AccessToken, args[0])
			if err != nil {
				return err
			}
			renderAccounts(hub)
			return nil
		},
	})
	accounts.AddCommand(&cobra.Command{
		Use:   "primary <account_id>",
		Short: "Make an account the default for spending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			hub, err := newClient(apiBase).SetPrimaryAccount(ctx, sess.AccessToken, args[0])
			if err != nil {
				return err
			}
			renderAccounts(hub)
			return nil
		},
	})
	return accounts
}

func newBalanceCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "balance [account_id]",
		Short: "Show an account balance (primary by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			id := ""
			if len(args) > 0 {
				id = args[0]
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			bal, err := newClient(apiBase).Balance(ctx, sess.AccessToken, id)
			if err != nil {
				return err
			}
			fmt.Printf("Balance: %s\n", colorizeAmount(bal))
			return nil
		},
	}
}

func newTxnCmd(apiBase *string) *cobra.Command {
	txn := &cobra.Command{
		Use:   "txn",
		Short: "Record transactions",
	}
	txn.AddCommand(&cobra.Command{
		Use:   "add",
		Short: "Record an expense or income",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			kind, err := promptChoice("Type", []string{"expense", "income"}, "expense")
			if err != nil {
				return err
			}
			amount, err := promptAmount("Amount", false)
			if err != nil {
				return err
			}
			category, err := promptRequired("Category")
			if err != nil {
				return err
			}
			method, err := promptChoice("Payment method", []string{"upi", "card", "cash", "netbanking"}, "upi")
			if err != nil {
				return err
			}
			note, err := promptOptional("Note")
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			tx, err := newClient(apiBase).AddTransaction(ctx, sess.AccessToken, finance.TransactionInput{
				Type:          finance.TransactionType(kind),
				Amount:        amount,
				Category:      strings.ToLower(category),
				PaymentMethod: method,
				Note:          note,
			})
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Recorded %s %s in %s.", tx.Type, money.FormatINR(tx.Amount), tx.Category))
			return nil
		},
	})
	return txn
}

func newIncomeCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "income",
		Short: "Add income, optionally toward a goal",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			amount, err := promptAmount("Amount", false)
			if err != nil {
				return err
			}
			source, err := promptRequired("Source")
			if err != nil {
				return err
			}
			goalID, err := promptOptional("Allocate to goal id (optional)")
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			tx, err := newClient(apiBase).AddIncome(ctx, sess.AccessToken, finance.IncomeInput{
				Amount:         amount,
				Source:         source,
				AllocateToGoal: goalID,
			})
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Income of %s recorded.", money.FormatINR(tx.Amount)))
			return nil
		},
	}
}

func newGoalsCmd(apiBase *string) *cobra.Command {
	goals := &cobra.Command{
		Use:     "goals",
		Aliases: []string{"goal"},
		Short:   "Manage savings goals",
	}
	goals.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List goals",
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
			renderGoals(st.Goals)
			return nil
		},
	})
	goals.AddCommand(&cobra.Command{
		Use:   "add",
		Short: "Create a goal",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			name, err := promptRequired("Name")
			if err != nil {
				return err
			}
			kind, err := promptChoice("Type", []string{"emergency", "vacation", "wedding", "house", "education", "retirement", "other"}, "other")
			if err != nil {
				return err
			}
			target, err := promptAmount("Target", false)
			if err != nil {
				return err
			}
			current, err := promptAmount("Saved so far", true)
			if err != nil {
				return err
			}
			deadline, err := promptDate("Deadline (YYYY-MM-DD)")
			if err != nil {
				return err
			}
			priority, err := promptChoice("Priority", []string{"high", "medium", "low"}, "medium")
			if err != nil {
				return err
			}
			monthly, err := promptAmount("Monthly commitment", true)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			g, err := newClient(apiBase).AddGoal(ctx, sess.AccessToken, finance.GoalInput{
				Type:              kind,
				Name:              name,
				Target:            target,
				Current:           current,
				Deadline:          deadline,
				Priority:          finance.GoalPriority(priority),
				MonthlyCommitment: monthly,
			})
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Goal %s created (%s).", g.Name, g.Status))
			return nil
		},
	})
	goals.AddCommand(&cobra.Command{
		Use:   "update <goal_id>",
		Short: "Change a goal's saved amount or target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			var patch finance.GoalPatch
			for _, field := range []struct {
				label string
				dst   **decimal.Decimal
			}{
				{"Saved so far (blank keeps)", &patch.Current},
				{"Target (blank keeps)", &patch.Target},
			} {
				raw, err := promptOptional(field.label)
				if err != nil {
					return err
				}
				if raw == "" {
					continue
				}
				v, err := money.Parse(raw)
				if err != nil {
					return err
				}
				*field.dst = &v
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			out, err := newClient(apiBase).UpdateGoal(ctx, sess.AccessToken, args[0], patch)
			if err != nil {
				return err
			}
			renderGoals(out)
			return nil
		},
	})
	goals.AddCommand(&cobra.Command{
		Use:   "remove <goal_id>",
		Short: "Delete a goal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			out, err := newClient(apiBase).RemoveGoal(ctx, sess.AccessToken, args[0])
			if err != nil {
				return err
			}
			renderGoals(out)
			return nil
		},
	})
	return goals
}

func newCIBILCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cibil [reason]",
		Short: "Show or adjust your credit score",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			client := newClient(apiBase)
			if len(args) == 0 {
				st, err := client.State(ctx, sess.AccessToken)
				if err != nil {
					return err
				}
				renderCIBIL(st.CIBIL)
				return nil
			}
			data, err := client.UpdateCIBIL(ctx, sess.AccessToken, finance.CIBILReason(args[0]))
			if err != nil {
				return err
			}
			renderCIBIL(data)
			return nil
		},
	}
}

func newXPCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "xp <amount> [reason]",
		Short: "Award yourself XP",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			amount, err := parsePositiveInt(args[0], "amount")
			if err != nil {
				return err
			}
			reason := "manual"
			if len(args) > 1 {
				reason = args[1]
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			user, err := newClient(apiBase).AddXP(ctx, sess.AccessToken, amount, reason)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("XP %d, level %d.", user.XP, user.Level))
			return nil
		},
	}
}

func newBadgeCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "badge <id> <name>",
		Short: "Unlock a badge",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			b, err := newClient(apiBase).AddBadge(ctx, sess.AccessToken, finance.BadgeInput{ID: args[0], Name: args[1]})
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Badge %s unlocked %s.", b.Name, b.UnlockedAt.Format(time.DateOnly)))
			return nil
		},
	}
}

func newChatCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "chat <message>",
		Short: "Talk to your coach (saved in history)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			msgs, err := newClient(apiBase).Chat(ctx, sess.AccessToken, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if len(msgs) > 0 {
				last := msgs[len(msgs)-1]
				if last.Role == finance.RoleAssistant {
					fmt.Println(accent.Sprint("coach: ") + last.Content)
				}
			}
			return nil
		},
	}
}

func newCoachCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "coach <message>",
		Short: "Ask the AI coach a one-off question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()
			reply, err := newClient(apiBase).Coach(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Println(accent.Sprint("coach: ") + reply)
			return nil
		},
	}
}

func newSummaryCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "This month's income and spending",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			sum, err := newClient(apiBase).MonthlySummary(ctx, sess.AccessToken)
			if err != nil {
				return err
			}
			renderSummary(sum)
			return nil
		},
	}
}

func newLeaderboardCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "leaderboard",
		Short: "See how your XP compares",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			rows, err := newClient(apiBase).Leaderboard(ctx, sess.AccessToken)
			if err != nil {
				return err
			}
			renderLeaderboard(rows)
			return nil
		},
	}
}

func newExportCmd(apiBase *string) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download accounts, transactions and goals as xlsx",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			if out == "" {
				out = "finwise_" + time.Now().Format("20060102") + ".xlsx"
			}
			f, err := createFile(out)
			if err != nil {
				return err
			}
			defer f.Close()
			ctx, cancel := requestContext(cmd)
			defer cancel()
			if err := newClient(apiBase).Export(ctx, sess.AccessToken, f); err != nil {
				return err
			}
			printSuccess("Saved " + out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "file to write")
	return cmd
}

func accountTypes() []string {
	return []string{
		string(finance.AccountBank),
		string(finance.AccountCreditCard),
		string(finance.AccountLoan),
		string(finance.AccountInvestment),
		string(finance.AccountRetirement),
		string(finance.AccountInsurance),
	}
}
