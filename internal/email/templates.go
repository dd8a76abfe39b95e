package email

import (
	"fmt"
	"html/template"
	"strconv"

	"paygate_backend/internal/models"
)

type receiptLine struct {
	Name  string
	Price string
}

type receiptView struct {
	Customer      string
	TransactionID string
	Date          string
	Method        string
	Status        string
	Approved      bool
	Amount        string
	Items         []receiptLine
}

func newReceiptView(to string, r models.PurchaseRecord) receiptView {
	v := receiptView{
		Customer:      to,
		TransactionID: r.TransactionID,
		Date:          r.Timestamp.Format("2006-01-02 15:04 MST"),
		Method:        r.Method,
		Status:        string(r.Status),
		Approved:      r.Status == models.PurchaseStatusApproved,
		Amount:        formatAmount(r.Amount),
	}
	for _, it := range r.Items {
		line := receiptLine{Name: it.Name}
		if it.Price != nil {
			line.Price = formatAmount(*it.Price)
		}
		v.Items = append(v.Items, line)
	}
	return v
}

func receiptSubject(r models.PurchaseRecord) string {
	if r.Status == models.PurchaseStatusApproved {
		return "Your purchase receipt"
	}
	return fmt.Sprintf("Your payment was not completed (%s)", r.Status)
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var receiptTemplate = template.Must(template.New("receipt").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Receipt</title></head>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2>{{if .Approved}}Thank you for your purchase{{else}}Payment {{.Status}}{{end}}</h2>
  <p>Customer: {{.Customer}}</p>
  {{if .TransactionID}}<p>Transaction: {{.TransactionID}}</p>{{end}}
  <p>Date: {{.Date}}</p>
  <p>Method: {{.Method}}</p>
  <table cellpadding="4">
    {{range .Items}}<tr><td>{{.Name}}</td><td>{{.Price}}</td></tr>
    {{end}}
  </table>
  <p><strong>Total: {{.Amount}}</strong></p>
</body>
</html>
`))
