// Package statements builds customer account statements from invoices and
// payments and renders them as PDF documents.
package statements

import (
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// EntryKind distinguishes debits from credits on a statement.
type EntryKind string

const (
	EntryInvoice EntryKind = "invoice"
	EntryPayment EntryKind = "payment"
)

// Customer is the statement addressee.
type Customer struct {
	ID      int64  `json:"id"`
	Code    string `json:"code"`
	Name    string `json:"name"`
	TPIN    string `json:"tpin"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// Entry is one statement line. Invoices debit the account and payments credit
// it; Balance is the running balance after the line.
type Entry struct {
	Kind        EntryKind       `json:"kind"`
	DocumentID  int64           `json:"document_id"`
	Date        time.Time       `json:"date"`
	Reference   string          `json:"reference"`
	Description string          `json:"description"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Balance     decimal.Decimal `json:"balance"`
}

// Statement is a customer's account activity over a closed date range.
type Statement struct {
	Customer       Customer        `json:"customer"`
	From           time.Time       `json:"from"`
	To             time.Time       `json:"to"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	TotalDebits    decimal.Decimal `json:"total_debits"`
	TotalCredits   decimal.Decimal `json:"total_credits"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`
	Entries        []Entry         `json:"entries"`
	GeneratedAt    time.Time       `json:"generated_at"`
}

// Snapshot is the raw activity loaded for a statement.
type Snapshot struct {
	Customer Customer
	Opening  decimal.Decimal
	Entries  []Entry
}

// Period bounds a statement. Both ends are inclusive calendar days.
type Period struct {
	From time.Time
	To   time.Time
}

// DeliveryRequest asks for a statement PDF to be rendered and stored.
type DeliveryRequest struct {
	CustomerID  int64  `json:"customer_id"`
	From        string `json:"from"`
	To          string `json:"to"`
	RequestedBy int64  `json:"requested_by"`
}

// DeliveryReceipt reports where a statement went or which task will produce it.
type DeliveryReceipt struct {
	CustomerID int64  `json:"customer_id"`
	From       string `json:"from"`
	To         string `json:"to"`
	Queued     bool   `json:"queued"`
	TaskID     string `json:"task_id,omitempty"`
	Location   string `json:"location,omitempty"`
}

// Assemble orders entries chronologically and computes running and closing
// balances. On the same day invoices come before payments.
func Assemble(snap Snapshot, period Period, generatedAt time.Time) Statement {
	entries := make([]Entry, len(snap.Entries))
	copy(entries, snap.Entries)
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Kind != b.Kind {
			return a.Kind == EntryInvoice
		}
		return a.DocumentID < b.DocumentID
	})

	st := Statement{
		Customer:       snap.Customer,
		From:           period.From,
		To:             period.To,
		OpeningBalance: snap.Opening.Round(2),
		TotalDebits:    decimal.Zero,
		TotalCredits:   decimal.Zero,
		Entries:        entries,
		GeneratedAt:    generatedAt,
	}
	balance := st.OpeningBalance
	for i := range entries {
		balance = balance.Add(entries[i].Debit).Sub(entries[i].Credit)
		entries[i].Balance = balance
		st.TotalDebits = st.TotalDebits.Add(entries[i].Debit)
		st.TotalCredits = st.TotalCredits.Add(entries[i].Credit)
	}
	st.ClosingBalance = balance
	return st
}

// FileKey is the object storage key of a rendered statement.
func FileKey(st Statement) string {
	name := st.Customer.Code
	if name == "" {
		name = "customer-" + strconv.FormatInt(st.Customer.ID, 10)
	}
	return "statements/" + name + "/" + st.From.Format(dateLayout) + "_" + st.To.Format(dateLayout) + ".pdf"
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
