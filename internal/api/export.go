package api

import (
	"fmt"
	"net/http"
	"time"

	"finwise/internal/finance"

	"github.com/xuri/excelize/v2"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type sheet struct {
	name    string
	headers []string
	widths  []float64
	rows    [][]any
}

// exportWorkbook lays out accounts, transactions and goals on one sheet each.
func exportWorkbook(st finance.AppState) (*excelize.File, error) {
	accounts := sheet{
		name:    "Accounts",
		headers: []string{"Name", "Type", "Institution", "Balance", "Primary", "Last Updated"},
		widths:  []float64{24, 14, 22, 14, 10, 14},
	}
	for _, a := range st.FinancialHub.Accounts {
		balance, _ := a.Balance.Float64()
		accounts.rows = append(accounts.rows, []any{
			a.Name, string(a.Type), a.Institution, balance,
			a.ID == st.FinancialHub.PrimaryAccountID, a.LastUpdated.Format("2006-01-02"),
		})
	}
	netWorth, _ := st.FinancialHub.NetWorth.Float64()
	accounts.rows = append(accounts.rows, []any{"Net Worth", "", "", netWorth, "", ""})

	txns := sheet{
		name:    "Transactions",
		headers: []string{"Date", "Type", "Category", "Amount", "Payment Method", "Note"},
		widths:  []float64{12, 10, 16, 14, 16, 30},
	}
	for _, t := range st.Transactions {
		amount, _ := t.Amount.Float64()
		txns.rows = append(txns.rows, []any{
			t.Date.Format("2006-01-02"), string(t.Type), t.Category, amount, t.PaymentMethod, t.Note,
		})
	}

	goals := sheet{
		name:    "Goals",
		headers: []string{"Name", "Target", "Current", "Deadline", "Priority", "Status", "Monthly"},
		widths:  []float64{24, 14, 14, 12, 10, 12, 12},
	}
	for _, g := range st.Goals {
		target, _ := g.Target.Float64()
		current, _ := g.Current.Float64()
		monthly, _ := g.MonthlyCommitment.Float64()
		goals.rows = append(goals.rows, []any{
			g.Name, target, current, g.Deadline.Format("2006-01-02"), string(g.Priority), string(g.Status), monthly,
		})
	}

	f := excelize.NewFile()
	for i, sh := range []sheet{accounts, txns, goals} {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sh.name); err != nil {
				return nil, err
			}
		} else if _, err := f.NewSheet(sh.name); err != nil {
			return nil, err
		}
		if err := writeSheet(f, sh); err != nil {
			return nil, err
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

func writeSheet(f *excelize.File, sh sheet) error {
	for i, h := range sh.headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sh.name, cell, h); err != nil {
			return err
		}
	}
	for r, row := range sh.rows {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sh.name, cell, &row); err != nil {
			return err
		}
	}
	for i, width := range sh.widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sh.name, col, col, width); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	store, ok := s.storeFor(w, r)
	if !ok {
		return
	}
	f, err := exportWorkbook(store.Snapshot())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"finwise_%s.xlsx\"", time.Now().Format("20060102")))
	if err := f.Write(w); err != nil {
		s.log.Error("write export", "err", err)
	}
}
