package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	cl "finwise/internal/cli"
	"finwise/internal/finance"
	"finwise/internal/money"
	"finwise/internal/scenario"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"golang.org/x/term"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)
)

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printError(msg string) {
	danger.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func promptOptional(label string) (string, error) {
	fmt.Printf("%s: ", label)
	text, err := stdinReader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// promptPassword reads without echo on a terminal and falls back to a plain
// line read when stdin is piped.
func promptPassword(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return promptRequired(label)
	}
	for {
		fmt.Printf("%s: ", label)
		raw, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		if text := strings.TrimSpace(string(raw)); text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func promptChoice(label string, options []string, defaultValue string) (string, error) {
	normalized := make(map[string]struct{}, len(options))
	for _, opt := range options {
		normalized[strings.ToLower(strings.TrimSpace(opt))] = struct{}{}
	}
	for {
		fmt.Printf("%s (%s) [%s]: ", label, strings.Join(options, "/"), defaultValue)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.ToLower(strings.TrimSpace(text))
		if text == "" {
			text = strings.ToLower(strings.TrimSpace(defaultValue))
		}
		if _, ok := normalized[text]; ok {
			return text, nil
		}
		printWarn("Invalid option. Please pick one of the listed values.")
	}
}

func promptInt64(label string, min int64) (int64, error) {
	for {
		text, err := promptRequired(label)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			printWarn("Enter a whole number.")
			continue
		}
		if v < min {
			printWarn(fmt.Sprintf("Value must be >= %d", min))
			continue
		}
		return v, nil
	}
}

func promptIntRange(label string, min, max int64) (int64, error) {
	for {
		v, err := promptInt64(fmt.Sprintf("%s (%d-%d)", label, min, max), min)
		if err != nil {
			return 0, err
		}
		if v <= max {
			return v, nil
		}
		printWarn(fmt.Sprintf("Value must be <= %d", max))
	}
}

func promptAmount(label string, allowZero bool) (decimal.Decimal, error) {
	for {
		text, err := promptRequired(label)
		if err != nil {
			return decimal.Zero, err
		}
		v, err := money.Parse(text)
		if err != nil {
			printWarn(err.Error())
			continue
		}
		if v.IsNegative() || (!allowZero && v.IsZero()) {
			printWarn("Enter an amount greater than zero.")
			continue
		}
		return v, nil
	}
}

func promptDate(label string) (time.Time, error) {
	for {
		text, err := promptRequired(label)
		if err != nil {
			return time.Time{}, err
		}
		t, err := time.ParseInLocation(time.DateOnly, text, time.Local)
		if err != nil {
			printWarn("Use the YYYY-MM-DD format.")
			continue
		}
		return t, nil
	}
}

func parsePositiveInt(raw, label string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid %s", label)
	}
	return v, nil
}

func createFile(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
}

func renderDashboard(st finance.AppState) {
	u := st.User
	accent.Printf("\n== %s ==\n", strings.ToUpper(u.Name))
	fmt.Printf("Level:        %d (%d XP)\n", u.Level, u.XP)
	fmt.Printf("Net Worth:    %s\n", colorizeAmount(st.FinancialHub.NetWorth))
	fmt.Printf("CIBIL:        %d (%s)\n", st.CIBIL.Score, st.CIBIL.Trend)
	fmt.Printf("Login Streak: %d day(s)\n", st.Progress.Streaks.DailyLogin)
	fmt.Printf("Badges:       %d\n", len(u.Badges))

	renderAccounts(st.FinancialHub)
	renderGoals(st.Goals)

	accent.Println("Recent Transactions")
	if len(st.Transactions) == 0 {
		printInfo("No transactions yet.")
	} else {
		fmt.Printf("%-12s %-8s %-16s %14s\n", "DATE", "TYPE", "CATEGORY", "AMOUNT")
		shown := st.Transactions
		if len(shown) > 5 {
			shown = shown[:5]
		}
		for _, tx := range shown {
			amount := tx.Amount
			if tx.Type == finance.TransactionExpense {
				amount = amount.Neg()
			}
			fmt.Printf("%-12s %-8s %-16s %14s\n",
				tx.Date.Local().Format(time.DateOnly),
				tx.Type,
				truncate(tx.Category, 16),
				colorizeAmount(amount),
			)
		}
	}
	fmt.Println()
}

func renderAccounts(hub finance.FinancialHub) {
	fmt.Println()
	accent.Println("Accounts")
	if len(hub.Accounts) == 0 {
		printInfo("No accounts linked.")
		return
	}
	fmt.Printf("%-3s %-24s %-22s %-12s %16s\n", "", "ID", "NAME", "TYPE", "BALANCE")
	for _, a := range hub.Accounts {
		mark := ""
		if a.ID == hub.PrimaryAccountID {
			mark = "*"
		}
		fmt.Printf("%-3s %-24s %-22s %-12s %16s\n",
			mark,
			truncate(a.ID, 24),
			truncate(a.Name, 22),
			a.Type,
			colorizeAmount(a.Balance),
		)
	}
	fmt.Printf("Net Worth: %s\n", colorizeAmount(hub.NetWorth))
}

func renderGoals(goals []finance.Goal) {
	fmt.Println()
	accent.Println("Goals")
	if len(goals) == 0 {
		printInfo("No goals yet.")
		return
	}
	fmt.Printf("%-24s %-20s %14s %14s %6s %-10s %-12s\n", "ID", "NAME", "SAVED", "TARGET", "PCT", "STATUS", "DEADLINE")
	for _, g := range goals {
		fmt.Printf("%-24s %-20s %14s %14s %5s%% %-10s %-12s\n",
			truncate(g.ID, 24),
			truncate(g.Name, 20),
			money.FormatINR(g.Current),
			money.FormatINR(g.Target),
			money.Percent(g.Current, g.Target).StringFixed(0),
			colorizeStatus(g.Status),
			g.Deadline.Local().Format(time.DateOnly),
		)
	}
}

func renderCIBIL(c finance.CIBILData) {
	accent.Printf("\n== CIBIL %d ==\n", c.Score)
	fmt.Printf("Trend: %s\n", c.Trend)
	for _, f := range c.Factors {
		fmt.Printf("%-28s %3d%%  %3d  %s\n", f.Name, f.Weight, f.YourScore, f.Status)
	}
	fmt.Println()
}

func renderSummary(s finance.MonthlySummary) {
	accent.Printf("\n== %s %d ==\n", s.Month, s.Year)
	fmt.Printf("Income:   %s\n", money.FormatINR(s.Income))
	fmt.Printf("Expenses: %s\n", money.FormatINR(s.Expenses))
	fmt.Printf("Net:      %s\n", colorizeAmount(s.Net))
	if len(s.ByCategory) == 0 {
		fmt.Println()
		return
	}
	cats := make([]string, 0, len(s.ByCategory))
	for c := range s.ByCategory {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool {
		return s.ByCategory[cats[i]].GreaterThan(s.ByCategory[cats[j]])
	})
	fmt.Println()
	accent.Println("Spending by category")
	for _, c := range cats {
		fmt.Printf("%-18s %14s\n", truncate(c, 18), money.FormatINR(s.ByCategory[c]))
	}
	fmt.Println()
}

func renderLeaderboard(rows []finance.LeaderboardRow) {
	accent.Println("\n== LEADERBOARD ==")
	if len(rows) == 0 {
		printInfo("No leaderboard rows yet.")
		return
	}
	fmt.Printf("%-6s %-18s %8s %8s\n", "RANK", "PLAYER", "LEVEL", "XP")
	for _, row := range rows {
		line := fmt.Sprintf("%-6d %-18s %8d %8d", row.Rank, truncate(row.Name, 18), row.Level, row.XP)
		if row.You {
			success.Println(line)
			continue
		}
		fmt.Println(line)
	}
	fmt.Println()
}

func renderLessons(lessons []cl.LessonListing) {
	accent.Println("\n== LESSONS ==")
	fmt.Printf("%-3s %-22s %-40s %6s %6s\n", "", "ID", "TITLE", "MIN", "XP")
	for _, l := range lessons {
		mark := ""
		if l.Completed {
			mark = success.Sprint("✓")
		}
		fmt.Printf("%-3s %-22s %-40s %6d %6d\n", mark, l.ID, truncate(l.Title, 40), l.Minutes, l.XPReward)
	}
	fmt.Println()
}

func renderLessonResult(r finance.LessonResult) {
	fmt.Println()
	line := fmt.Sprintf("Score %d%% (%d/%d)", r.Score, r.Correct, r.Total)
	switch {
	case r.Passed && r.AlreadyCompleted:
		printSuccess(line + ", passed again. XP was already awarded.")
	case r.Passed:
		printSuccess(fmt.Sprintf("%s, passed. +%d XP", line, r.XPAwarded))
	default:
		printWarn(line + ". Review the lesson and try again.")
	}
}

func renderScenarios(list []scenario.Scenario) {
	accent.Println("\n== LIFE SCENARIOS ==")
	for _, sc := range list {
		fmt.Printf("%s %s (%s)\n", sc.Icon, accent.Sprint(sc.ID), sc.Timeframe)
		fmt.Printf("   %s\n", sc.Description)
	}
	fmt.Println()
}

func decodeInto[T any](in any) (T, error) {
	var out T
	raw, err := json.Marshal(in)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}

func colorizeAmount(v decimal.Decimal) string {
	text := money.FormatINR(v)
	switch {
	case v.IsPositive():
		return success.Sprint(text)
	case v.IsNegative():
		return danger.Sprint(text)
	default:
		return neutral.Sprint(text)
	}
}

func colorizeStatus(s finance.GoalStatus) string {
	switch s {
	case finance.GoalCompleted, finance.GoalOnTrack:
		return success.Sprint(s)
	case finance.GoalAtRisk:
		return danger.Sprint(s)
	default:
		return warn.Sprint(s)
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
