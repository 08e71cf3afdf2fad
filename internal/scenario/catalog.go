package scenario

type Decision struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	Consequence   string `json:"consequence"`
	Impact        int    `json:"impact"`
	ResultMessage string `json:"result_message"`
}

type Node struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Context     string     `json:"context,omitempty"`
	Decisions   []Decision `json:"decisions"`
}

// LessonSet holds three canned lesson lists picked by final score: Top at or
// above High, Middle at or above Mid, Bottom otherwise.
type LessonSet struct {
	High   int      `json:"high"`
	Mid    int      `json:"mid"`
	Top    []string `json:"top"`
	Middle []string `json:"middle"`
	Bottom []string `json:"bottom"`
}

func (l LessonSet) For(score int) []string {
	switch {
	case score >= l.High:
		return l.Top
	case score >= l.Mid:
		return l.Middle
	default:
		return l.Bottom
	}
}

type Scenario struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Timeframe    string    `json:"timeframe"`
	Icon         string    `json:"icon"`
	LearningGoal string    `json:"learning_goal"`
	Nodes        []Node    `json:"nodes"`
	Lessons      LessonSet `json:"-"`
}

var catalog = []Scenario{
	{
		ID:           "job-loss",
		Name:         "Job Loss Crisis",
		Description:  "Suddenly laid off without warning. You have 6 months of expenses saved.",
		Timeframe:    "6 months simulation",
		Icon:         "😰",
		LearningGoal: "Learn how to prioritize expenses, use emergency funds wisely, and plan for income uncertainty.",
		Nodes: []Node{
			{
				ID:          "month1",
				Title:       "Month 1: The Shock",
				Description: "You just lost your job. Your monthly expenses are ₹50,000.",
				Context:     "You have: ₹3,00,000 in savings, ₹1,50,000 in investments, no severance.",
				Decisions: []Decision{
					{ID: "d1", Text: "Immediately start aggressively job searching (attend interviews, network)", Consequence: "Spend ₹5,000 on coaching/courses, but increase job prospects", Impact: 30, ResultMessage: "Smart move! You're taking action early. This increases your chances."},
					{ID: "d2", Text: "Take a week off to relax and recover emotionally", Consequence: "Good for mental health, but lose 1 week of job search time", Impact: 15, ResultMessage: "Self-care is important, but don't lose momentum."},
					{ID: "d3", Text: "Panic and liquidate your investments immediately", Consequence: "Lose ₹30,000 in penalties, but have more cash", Impact: -20, ResultMessage: "Panic decisions often cost money. Your investments were earning returns."},
				},
			},
			{
				ID:          "month2",
				Title:       "Month 2: Reality Sets In",
				Description: "Still no job offer. You've had some interviews. Bills are due.",
				Context:     "Savings now: ₹2,50,000. Your rent is due. What do you do?",
				Decisions: []Decision{
					{ID: "d1", Text: "Tell landlord the truth, negotiate a 1-month rent waiver", Consequence: "Risk: they refuse or ask you to move. Gain: save ₹50,000", Impact: 25, ResultMessage: "Honest communication often works. Your landlord appreciates transparency."},
					{ID: "d2", Text: "Pay full rent on time - maintain your credit and reputation", Consequence: "Spend ₹50,000 but no risk to your record", Impact: 20, ResultMessage: "Responsible choice. Your credit score stays intact."},
					{ID: "d3", Text: "Borrow ₹1,00,000 from parents at high interest (15%)", Consequence: "Get cash but owe family money with interest. Relationship risk.", Impact: -15, ResultMessage: "Family loans can strain relationships. Only as last resort."},
				},
			},
			{
				ID:          "month4",
				Title:       "Month 4: Turning Point",
				Description: "You have 2 job offers: one at 30% lower salary, one at same salary but different city.",
				Context:     "Savings left: ₹1,50,000. Your confidence is shaken. Both job options available.",
				Decisions: []Decision{
					{ID: "d1", Text: "Take the same-salary job in the new city (relocation required)", Consequence: "No salary cut, but relocation costs ₹50,000. New city, new adventure.", Impact: 40, ResultMessage: "Excellent! You protected your salary and got back to work quickly."},
					{ID: "d2", Text: "Accept the 30% pay cut to stay in your current city near family", Consequence: "Reduced income means tighter budget, but stable location", Impact: 20, ResultMessage: "Family support is valuable, but your earning power matters too."},
					{ID: "d3", Text: "Reject both and continue searching for a 'perfect' job", Consequence: "Money runs out fast. Enter dangerous territory.", Impact: -35, ResultMessage: "Perfection is the enemy of good. Sometimes 'good enough' is perfect."},
				},
			},
			{
				ID:          "month6",
				Title:       "Month 6: The Outcome",
				Description: "6 months have passed. Let's see how you navigated the crisis.",
				Context:     "Your decisions will determine your financial health and lessons learned.",
				Decisions: []Decision{
					{ID: "end", Text: "See Results", Consequence: "Review your journey and lessons", Impact: 0},
				},
			},
		},
		Lessons: LessonSet{
			High: 110,
			Mid:  90,
			Top: []string{
				"Emergency funds are essential - you navigated the crisis well!",
				"Honest communication with creditors/landlords often works",
				"Getting back to work quickly (even if not perfect) beats prolonged unemployment",
			},
			Middle: []string{
				"You handled the crisis adequately - but could optimize faster",
				"Avoid liquidating investments in panic - they're your long-term backup",
				"Job search requires consistency - small improvements compound",
			},
			Bottom: []string{
				"Emotional decisions cost money - stay rational under pressure",
				"Emergency funds exist for situations like this - use them wisely",
				"Pride has a cost - negotiate when necessary",
			},
		},
	},
	{
		ID:           "medical-emergency",
		Name:         "Medical Emergency",
		Description:  "A family member has a serious health condition requiring ₹5,00,000+ treatment.",
		Timeframe:    "3 months simulation",
		Icon:         "🏥",
		LearningGoal: "Learn about insurance, emergency funds, and major life expenses.",
		Nodes: []Node{
			{
				ID:          "week1",
				Title:       "Week 1: Crisis",
				Description: "Your parent needs emergency heart surgery. Cost: ₹4,50,000.",
				Context:     "Savings: ₹3,00,000. Insurance might cover 60% if claimed.",
				Decisions: []Decision{
					{ID: "d1", Text: "File insurance claim first, then arrange remaining amount", Consequence: "Claim takes 2-3 weeks. Use personal savings as buffer.", Impact: 35, ResultMessage: "Smart! Insurance exists for this. Your planning actually paid off."},
					{ID: "d2", Text: "Pay full amount upfront, claim insurance reimbursement later", Consequence: "Hospital wants payment immediately. You pay ₹4,50,000.", Impact: 20, ResultMessage: "Works, but ties up all your savings. Good thing you had it."},
					{ID: "d3", Text: "Check for government schemes and NGO support programs", Consequence: "Reduce cost by 20-30% through subsidy programs", Impact: 45, ResultMessage: "Excellent research! These programs are underutilized."},
				},
			},
			{
				ID:          "week3",
				Title:       "Week 3: Recovery Planning",
				Description: "Surgery successful! Recovery phase begins. Additional costs: ₹50,000.",
				Context:     "Your savings are depleted. Now: rebuild while handling ongoing costs.",
				Decisions: []Decision{
					{ID: "d1", Text: "Pause all non-essential investments. Focus on rebuilding emergency fund.", Consequence: "Sacrifice 6 months of growth, but rebuild safety net", Impact: 30, ResultMessage: "Wise priority. Emergency fund rebuilds from salary."},
					{ID: "d2", Text: "Take personal loan at 12% to replenish savings", Consequence: "Get cash but pay ₹50,000/year in interest for 3 years", Impact: 10, ResultMessage: "Debt costs money. Only when absolutely necessary."},
					{ID: "d3", Text: "Continue investments normally, rebuild savings slowly", Consequence: "Stick to plan, but have zero emergency cushion", Impact: -20, ResultMessage: "Without an emergency fund, one more crisis destroys you."},
				},
			},
		},
		Lessons: LessonSet{
			High: 100,
			Mid:  80,
			Top: []string{
				"Insurance planning saves major emergencies from becoming disasters",
				"Government schemes and subsidies can reduce costs significantly",
				"Health expenses require immediate action - delayed decisions = higher costs",
			},
			Middle: []string{
				"Emergency funds exist for medical situations - always have one",
				"Insurance is not optional - it's essential financial armor",
				"Major expenses require prioritization, not panic",
			},
			Bottom: []string{
				"Without insurance or emergency funds, one health crisis destroys finances",
				"Debt to cover emergencies often exceeds the original crisis cost",
				"Plan for unlikely events - they happen when least expected",
			},
		},
	},
	{
		ID:           "wedding",
		Name:         "Wedding Planning",
		Description:  "You're getting married! Budget required: ₹10,00,000 (flexible).",
		Timeframe:    "12 months simulation",
		Icon:         "💍",
		LearningGoal: "Learn about major expense planning, prioritization, and goal-based budgeting.",
		Nodes: []Node{
			{
				ID:          "month1",
				Title:       "Month 1: Planning Phase",
				Description: "The wedding is 12 months away. Family expects a big celebration. Budget: ₹10,00,000.",
				Context:     "Your current savings: ₹5,00,000. Partner's family can contribute ₹2,00,000.",
				Decisions: []Decision{
					{ID: "d1", Text: "Set priorities: Venue & Catering (essential), rest flexible", Consequence: "Create realistic budget, track each expense", Impact: 40, ResultMessage: "Perfect! This prioritization saves money and stress."},
					{ID: "d2", Text: "Aim for the most expensive venue and full 500-guest celebration", Consequence: "Budget balloons to ₹15,00,000. Must borrow ₹3,00,000.", Impact: -30, ResultMessage: "Lifestyle inflation catches many. Your wedding isn't your net worth."},
					{ID: "d3", Text: "Go minimalist: courthouse wedding, small celebration, save ₹7,00,000", Consequence: "Family unhappy, but financial freedom achieved", Impact: 25, ResultMessage: "Unconventional but smart. Your choice defines your values."},
				},
			},
			{
				ID:          "month6",
				Title:       "Month 6: Mid-Way Check",
				Description: "You're at the halfway mark. Some costs have overrun expectations.",
				Context:     "You've already spent ₹4,50,000. Wedding still 6 months away. Uh oh!",
				Decisions: []Decision{
					{ID: "d1", Text: "Renegotiate with vendors, cut non-essential items", Consequence: "Save ₹1,50,000 through negotiations", Impact: 35, ResultMessage: "Vendors expect negotiation. Always try!"},
					{ID: "d2", Text: "Ask family for additional contribution", Consequence: "Additional ₹2,00,000 from extended family", Impact: 25, ResultMessage: "Community support is part of Indian culture. Nothing wrong with asking."},
					{ID: "d3", Text: "Take a ₹2,00,000 personal loan to cover overruns", Consequence: "Get cash but start married life in debt", Impact: -25, ResultMessage: "Starting married life with debt adds pressure. Avoid if possible."},
				},
			},
		},
		Lessons: LessonSet{
			High: 110,
			Mid:  90,
			Top: []string{
				"Major expenses need clear prioritization - avoid scope creep",
				"Vendor negotiation is normal and expected",
				"Financial wisdom is more impressive than expensive celebrations",
			},
			Middle: []string{
				"Wedding budgets are famous for overruns - stay disciplined",
				"Community support is valuable - don't hesitate to ask",
				"Starting married life financially stable is more important than the party",
			},
			Bottom: []string{
				"Lifestyle inflation happens during major purchases - guard against it",
				"Taking debt for celebrations shifts burden to future years",
				"Values-aligned decisions (even unconventional) lead to better outcomes",
			},
		},
	},
}

// Catalog lists the built-in scenarios in display order.
func Catalog() []Scenario {
	out := make([]Scenario, len(catalog))
	copy(out, catalog)
	return out
}

func Lookup(id string) (Scenario, bool) {
	for _, sc := range catalog {
		if sc.ID == id {
			return sc, true
		}
	}
	return Scenario{}, false
}
