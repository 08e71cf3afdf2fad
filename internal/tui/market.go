package tui

import (
	"fmt"
	"strings"
	"time"

	"finwise/internal/market"
	"finwise/internal/money"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type marketKeys struct {
	commonKeys
	Up    key.Binding
	Down  key.Binding
	Focus key.Binding
	Buy   key.Binding
	Sell  key.Binding
	End   key.Binding
}

func (k marketKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Buy, k.Sell, k.Focus, k.End, k.Quit, k.Help}
}

func (k marketKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Start, k.Up, k.Down, k.Focus}, {k.Buy, k.Sell, k.End, k.Quit}}
}

type clockMsg struct{}
type walkMsg struct{}

// MarketModel runs a stock-market session with bubbletea timers: one for the
// countdown and one for the price walk.
type MarketModel struct {
	session *market.Session
	keys    marketKeys
	help    help.Model

	cursor    int
	lotCursor int
	onLots    bool
	notice    string
	noticeBad bool
	results   *market.Results
}

func NewMarketModel(session *market.Session) MarketModel {
	return MarketModel{
		session: session,
		keys: marketKeys{
			commonKeys: newCommonKeys(),
			Up:         key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
			Down:       key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
			Focus:      key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "stocks/positions")),
			Buy:        key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "buy")),
			Sell:       key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sell")),
			End:        key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "end now")),
		},
		help: help.New(),
	}
}

// Results is set once the session has ended.
func (m MarketModel) Results() (market.Results, bool) {
	if m.results == nil {
		return market.Results{}, false
	}
	return *m.results, true
}

func (m MarketModel) Init() tea.Cmd { return nil }

func (m MarketModel) clockCmd() tea.Cmd {
	return tea.Tick(m.session.Config().ClockEvery, func(time.Time) tea.Msg { return clockMsg{} })
}

func (m MarketModel) walkCmd() tea.Cmd {
	return tea.Tick(m.session.Config().WalkEvery, func(time.Time) tea.Msg { return walkMsg{} })
}

func (m MarketModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil
	case clockMsg:
		if m.session.Stage() != market.StageActive {
			return m, nil
		}
		if m.session.Tick() {
			return m.finish(), nil
		}
		return m, m.clockCmd()
	case walkMsg:
		if m.session.Stage() != market.StageActive {
			return m, nil
		}
		m.session.Walk()
		return m, m.walkCmd()
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m MarketModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}

	switch m.session.Stage() {
	case market.StageRules:
		if key.Matches(msg, m.keys.Start) {
			if err := m.session.Start(); err != nil {
				m.setNotice(err.Error(), true)
				return m, nil
			}
			return m, tea.Batch(m.clockCmd(), m.walkCmd())
		}
	case market.StageActive:
		view := m.session.View()
		switch {
		case key.Matches(msg, m.keys.Focus):
			m.onLots = !m.onLots && len(view.Lots) > 0
		case key.Matches(msg, m.keys.Up):
			if m.onLots {
				m.lotCursor = max(0, m.lotCursor-1)
			} else {
				m.cursor = max(0, m.cursor-1)
			}
		case key.Matches(msg, m.keys.Down):
			if m.onLots {
				m.lotCursor = min(len(view.Lots)-1, m.lotCursor+1)
			} else {
				m.cursor = min(len(view.Stocks)-1, m.cursor+1)
			}
		case key.Matches(msg, m.keys.Buy):
			stock := view.Stocks[m.cursor]
			qty := m.session.Config().DefaultQty
			if _, err := m.session.Buy(stock.Symbol, qty); err != nil {
				m.setNotice(market.Message(err), true)
			} else {
				m.setNotice(fmt.Sprintf("Bought %d %s at %s", qty, stock.Symbol, money.FormatINR(stock.Price)), false)
			}
		case key.Matches(msg, m.keys.Sell):
			if !m.onLots || len(view.Lots) == 0 {
				m.setNotice("Press tab to pick a position to sell.", true)
				break
			}
			sale, err := m.session.Sell(view.Lots[m.lotCursor].ID)
			if err != nil {
				m.setNotice(market.Message(err), true)
				break
			}
			m.setNotice(sale.Message, sale.Profit.IsNegative())
			if remaining := len(view.Lots) - 1; remaining == 0 {
				m.onLots, m.lotCursor = false, 0
			} else {
				m.lotCursor = min(m.lotCursor, remaining-1)
			}
		case key.Matches(msg, m.keys.End):
			m.session.End()
			return m.finish(), nil
		}
	}
	return m, nil
}

func (m *MarketModel) setNotice(text string, bad bool) {
	m.notice, m.noticeBad = text, bad
}

func (m MarketModel) finish() MarketModel {
	res, err := m.session.Results()
	if err != nil {
		m.setNotice(err.Error(), true)
		return m
	}
	m.results = &res
	return m
}

func (m MarketModel) View() string {
	view := m.session.View()
	var b strings.Builder
	b.WriteString(titleStyle.Render("📈 Stock Market Simulator"))
	b.WriteString("\n\n")

	switch view.Stage {
	case market.StageRules:
		cfg := m.session.Config()
		fmt.Fprintf(&b, "You start with %s of virtual capital.\n", money.FormatINR(cfg.Capital))
		fmt.Fprintf(&b, "• The session lasts %s and prices move every %s.\n", cfg.Duration, cfg.WalkEvery)
		fmt.Fprintf(&b, "• You can buy at most %d times; each buy is %d shares.\n", cfg.MaxTrades, cfg.DefaultQty)
		b.WriteString("• Sell any position at the current price to lock in profit or loss.\n")
		b.WriteString("\n" + subtleStyle.Render("Press enter when you are ready.") + "\n")
	case market.StageActive:
		m.renderActive(&b, view)
	case market.StageResults:
		if m.results != nil {
			b.WriteString(renderMarketResults(*m.results))
			b.WriteString("\n")
		}
	}
	if m.notice != "" {
		style := noticeStyle
		if m.noticeBad {
			style = badStyle
		}
		b.WriteString("\n" + style.Render(m.notice) + "\n")
	}
	b.WriteString("\n" + m.help.View(m.keys))
	return b.String()
}

func (m MarketModel) renderActive(b *strings.Builder, view market.View) {
	fmt.Fprintf(b, "⏱ %s   Cash %s   Holdings %s   P&L %s   Trades %d/%d\n\n",
		formatClock(view.TimeLeft),
		money.FormatINR(view.Cash),
		money.FormatINR(view.Holdings),
		signed(money.FormatINR(view.PnL), view.PnL.IsNegative()),
		view.Trades, view.MaxTrades)

	var stocks strings.Builder
	stocks.WriteString(headerStyle.Render("Stocks") + "\n")
	for i, st := range view.Stocks {
		marker := "  "
		if !m.onLots && i == m.cursor {
			marker = cursorStyle.Render("> ")
		}
		change := signed(fmt.Sprintf("%s%%", st.ChangePercent.StringFixed(2)), st.ChangePercent.IsNegative())
		line := fmt.Sprintf("%s%-11s %12s  %s", marker, st.Symbol, money.FormatINR(st.Price), change)
		if st.Delisted {
			line = subtleStyle.Render(fmt.Sprintf("  %-11s delisted", st.Symbol))
		}
		stocks.WriteString(line + "\n")
	}

	var lots strings.Builder
	lots.WriteString(headerStyle.Render("Positions") + "\n")
	if len(view.Lots) == 0 {
		lots.WriteString(subtleStyle.Render("No open positions") + "\n")
	}
	for i, lot := range view.Lots {
		marker := "  "
		if m.onLots && i == m.lotCursor {
			marker = cursorStyle.Render("> ")
		}
		fmt.Fprintf(&lots, "%s%-11s %3d @ %s\n", marker, lot.Symbol, lot.Quantity, money.FormatINR(lot.BuyPrice))
	}

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		panelStyle.Render(strings.TrimRight(stocks.String(), "\n")),
		" ",
		panelStyle.Render(strings.TrimRight(lots.String(), "\n")),
	))
	b.WriteString("\n")
}

func renderMarketResults(res market.Results) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Final value: %s\n", money.FormatINR(res.FinalValue))
	fmt.Fprintf(&b, "Profit/Loss: %s\n", signed(money.FormatINR(res.PnL), res.PnL.IsNegative()))
	fmt.Fprintf(&b, "Decision quality: %d%%   Trades: %d   XP: %s\n\n", res.Quality, res.Trades, goodStyle.Render(fmt.Sprintf("+%d", res.XPEarned)))
	b.WriteString(res.Feedback)
	return resultsStyle.Render(b.String())
}

func formatClock(seconds int) string {
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
