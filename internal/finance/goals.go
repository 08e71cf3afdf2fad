package finance

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

var commitmentSlack = decimal.RequireFromString("1.2")

// ProjectGoalStatus classifies a goal from its progress, deadline and monthly
// commitment. A goal is behind only when the monthly amount still needed is
// strictly greater than 1.2x the commitment.
func ProjectGoalStatus(g Goal, now time.Time) GoalStatus {
	if g.Status == GoalCompleted || g.Current.GreaterThanOrEqual(g.Target) {
		return GoalCompleted
	}
	needed := g.Target.Sub(g.Current).Div(decimal.NewFromInt(int64(MonthsLeft(g.Deadline, now))))
	if needed.GreaterThan(g.MonthlyCommitment.Mul(commitmentSlack)) {
		return GoalBehind
	}
	return GoalOnTrack
}

// MonthsLeft is ceil(days/30) until the deadline, never less than one.
func MonthsLeft(deadline, now time.Time) int {
	days := math.Ceil(deadline.Sub(now).Hours() / 24)
	months := int(math.Ceil(days / 30))
	if months < 1 {
		return 1
	}
	return months
}
