package statements

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const displayDate = "02-Jan-2006"

// PDFRenderer lays statements out on A4 pages.
type PDFRenderer struct {
	company string
	printer *message.Printer
}

// NewPDFRenderer builds a renderer that prints company in the page header.
func NewPDFRenderer(company string) *PDFRenderer {
	if company == "" {
		company = "QuoteDesk"
	}
	return &PDFRenderer{company: company, printer: message.NewPrinter(language.English)}
}

func (p *PDFRenderer) money(v decimal.Decimal) string {
	return p.printer.Sprintf("%.2f", v.Round(2).InexactFloat64())
}

// Render produces the PDF bytes for st.
func (p *PDFRenderer) Render(st Statement) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 15)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 6, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(190, 10, p.company, "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "B", 13)
	pdf.CellFormat(190, 8, "Statement of Account", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(190, 6, fmt.Sprintf("Period: %s to %s", st.From.Format(displayDate), st.To.Format(displayDate)), "", 1, "C", false, 0, "")
	pdf.CellFormat(190, 6, "Generated: "+st.GeneratedAt.Format("02-Jan-2006 15:04"), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(190, 8, "Customer", "1", 1, "L", true, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(95, 7, "Name: "+st.Customer.Name, "LB", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, "Code: "+st.Customer.Code, "RB", 1, "L", false, 0, "")
	pdf.CellFormat(95, 7, "TPIN: "+st.Customer.TPIN, "LB", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, "Phone: "+st.Customer.Phone, "RB", 1, "L", false, 0, "")
	if st.Customer.Address != "" {
		pdf.CellFormat(190, 7, "Address: "+truncate(st.Customer.Address, 90), "LRB", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	widths := []float64{25, 22, 38, 45, 20, 20, 20}
	header := []string{"Date", "Type", "Reference", "Description", "Debit", "Credit", "Balance"}
	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(200, 200, 200)
	for i, h := range header {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "I", 9)
	pdf.CellFormat(widths[0]+widths[1]+widths[2]+widths[3]+widths[4]+widths[5], 6, "Balance brought forward", "1", 0, "L", false, 0, "")
	pdf.CellFormat(widths[6], 6, p.money(st.OpeningBalance), "1", 1, "R", false, 0, "")

	pdf.SetFont("Arial", "", 9)
	for _, e := range st.Entries {
		pdf.CellFormat(widths[0], 6, e.Date.Format(displayDate), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[1], 6, string(e.Kind), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[2], 6, truncate(e.Reference, 22), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[3], 6, truncate(e.Description, 28), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[4], 6, p.amount(e.Debit), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[5], 6, p.amount(e.Credit), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[6], 6, p.money(e.Balance), "1", 1, "R", false, 0, "")
	}
	if len(st.Entries) == 0 {
		pdf.CellFormat(190, 6, "No activity in this period", "1", 1, "C", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(63, 8, "Opening: "+p.money(st.OpeningBalance), "1", 0, "C", false, 0, "")
	pdf.CellFormat(63, 8, "Invoiced: "+p.money(st.TotalDebits), "1", 0, "C", false, 0, "")
	pdf.CellFormat(64, 8, "Paid: "+p.money(st.TotalCredits), "1", 1, "C", false, 0, "")

	if st.ClosingBalance.IsPositive() {
		pdf.SetFillColor(255, 200, 200)
	} else {
		pdf.SetFillColor(200, 255, 200)
	}
	pdf.SetFont("Arial", "B", 12)
	closing := "Balance Due: " + p.money(st.ClosingBalance)
	if st.ClosingBalance.IsNegative() {
		closing = "Credit Balance: " + p.money(st.ClosingBalance.Neg())
	}
	pdf.CellFormat(190, 10, closing, "1", 1, "C", true, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("statements: render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (p *PDFRenderer) amount(v decimal.Decimal) string {
	if v.IsZero() {
		return ""
	}
	return p.money(v)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
