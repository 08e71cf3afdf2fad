package finance

import (
	"context"
	"fmt"
	"math"
	"slices"
	"time"
)

type QuizQuestion struct {
	ID          string   `json:"id"`
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Correct     int      `json:"correct"`
	Explanation string   `json:"explanation"`
}

type Lesson struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Topic     string         `json:"topic"`
	Minutes   int            `json:"minutes"`
	Summary   string         `json:"summary"`
	KeyPoints []string       `json:"key_points"`
	Quiz      []QuizQuestion `json:"quiz"`
	XPReward  int            `json:"xp_reward"`
}

type LessonAttempt struct {
	LessonID string         `json:"lesson_id"`
	Answers  map[string]int `json:"answers"`
}

type LessonResult struct {
	LessonID         string `json:"lesson_id"`
	Correct          int    `json:"correct"`
	Total            int    `json:"total"`
	Score            int    `json:"score"`
	Passed           bool   `json:"passed"`
	XPAwarded        int    `json:"xp_awarded"`
	AlreadyCompleted bool   `json:"already_completed"`
}

// GradeQuiz scores answers as a rounded percentage of correct questions.
// Unanswered questions count as wrong.
func GradeQuiz(l Lesson, answers map[string]int) (correct, total, score int) {
	total = len(l.Quiz)
	if total == 0 {
		return 0, 0, 0
	}
	for _, q := range l.Quiz {
		if a, ok := answers[q.ID]; ok && a == q.Correct {
			correct++
		}
	}
	score = int(math.Round(float64(correct) / float64(total) * 100))
	return correct, total, score
}

func (s *Store) Lessons() []Lesson {
	return s.opts.Lessons
}

func (s *Store) Lesson(id string) (Lesson, bool) {
	for _, l := range s.opts.Lessons {
		if l.ID == id {
			return l, true
		}
	}
	return Lesson{}, false
}

// CompleteLesson grades an attempt. The first passing attempt marks the lesson
// completed and grants its XP reward.
func (s *Store) CompleteLesson(ctx context.Context, in LessonAttempt) (LessonResult, error) {
	lesson, ok := s.Lesson(in.LessonID)
	if !ok {
		return LessonResult{}, fmt.Errorf("%w: %q", ErrUnknownLesson, in.LessonID)
	}
	correct, total, score := GradeQuiz(lesson, in.Answers)
	res := LessonResult{
		LessonID: lesson.ID,
		Correct:  correct,
		Total:    total,
		Score:    score,
		Passed:   score >= s.opts.LessonPassMark,
	}
	if !res.Passed {
		return res, nil
	}
	_, err := s.mutate(ctx, func(st *AppState, _ time.Time) error {
		if slices.Contains(st.Progress.LessonsCompleted, lesson.ID) {
			res.AlreadyCompleted = true
			return nil
		}
		st.Progress.LessonsCompleted = append(st.Progress.LessonsCompleted, lesson.ID)
		st.grantXP(lesson.XPReward)
		res.XPAwarded = lesson.XPReward
		return nil
	})
	if err != nil {
		return LessonResult{}, err
	}
	return res, nil
}

func DefaultLessons() []Lesson {
	return []Lesson{
		{
			ID:      "budgeting-basics",
			Title:   "Budgeting Basics: The 50/30/20 Rule",
			Topic:   "budgeting",
			Minutes: 8,
			Summary: "A budget tells your money where to go. Split take-home pay into **needs**, **wants** and **savings**, then track every rupee against the plan.",
			KeyPoints: []string{
				"50% of take-home pay covers needs such as rent, groceries and EMIs.",
				"30% is for wants, which flex first when money is tight.",
				"20% goes to savings and investments before you spend.",
			},
			Quiz: []QuizQuestion{
				{ID: "q1", Question: "Under the 50/30/20 rule, what share goes to savings?", Options: []string{"10%", "20%", "30%", "50%"}, Correct: 1, Explanation: "Twenty percent of take-home pay is saved or invested."},
				{ID: "q2", Question: "Which of these is a need?", Options: []string{"Streaming subscription", "Weekend trip", "House rent", "New phone"}, Correct: 2, Explanation: "Rent is an essential fixed cost."},
				{ID: "q3", Question: "When should you move money to savings?", Options: []string{"At month end if anything is left", "Right after salary is credited", "Only during bonuses", "Never"}, Correct: 1, Explanation: "Pay yourself first so saving does not depend on leftovers."},
			},
			XPReward: 100,
		},
		{
			ID:      "emergency-fund",
			Title:   "Building an Emergency Fund",
			Topic:   "saving",
			Minutes: 6,
			Summary: "An emergency fund covers **3 to 6 months** of expenses and sits somewhere safe and liquid, so a job loss or hospital bill never forces you into debt.",
			KeyPoints: []string{
				"Target three to six months of essential expenses.",
				"Keep it liquid: a savings account or liquid fund.",
				"Refill it immediately after you use it.",
			},
			Quiz: []QuizQuestion{
				{ID: "q1", Question: "How many months of expenses should an emergency fund cover?", Options: []string{"1", "3 to 6", "12 to 24", "None"}, Correct: 1, Explanation: "Three to six months is the usual guideline."},
				{ID: "q2", Question: "Where should an emergency fund be kept?", Options: []string{"Small-cap stocks", "Cryptocurrency", "A liquid savings account", "Real estate"}, Correct: 2, Explanation: "It must be available quickly without losing value."},
				{ID: "q3", Question: "What should you do after using the fund?", Options: []string{"Close it", "Rebuild it", "Take a loan", "Ignore it"}, Correct: 1, Explanation: "Rebuild it so you stay protected."},
			},
			XPReward: 100,
		},
		{
			ID:      "credit-score",
			Title:   "Understanding Your CIBIL Score",
			Topic:   "credit",
			Minutes: 7,
			Summary: "Your CIBIL score ranges from **300 to 900**. Paying on time and keeping credit utilization low are the two biggest levers.",
			KeyPoints: []string{
				"Payment history carries the largest weight.",
				"Keep credit card utilization under 30%.",
				"Too many loan enquiries in a short time lower the score.",
			},
			Quiz: []QuizQuestion{
				{ID: "q1", Question: "What is the range of a CIBIL score?", Options: []string{"0 to 100", "300 to 900", "100 to 1000", "500 to 850"}, Correct: 1, Explanation: "CIBIL scores run from 300 to 900."},
				{ID: "q2", Question: "Which factor has the biggest impact?", Options: []string{"Payment history", "Credit mix", "Recent enquiries", "Age of email"}, Correct: 0, Explanation: "Payment history is weighted highest."},
				{ID: "q3", Question: "A healthy credit utilization is below", Options: []string{"90%", "70%", "50%", "30%"}, Correct: 3, Explanation: "Staying under 30% signals responsible use."},
			},
			XPReward: 120,
		},
	}
}
