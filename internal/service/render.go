package service

import (
	"bytes"
	"html/template"

	"github.com/shopspring/decimal"

	"tokomas/backend/internal/domain"
)

// invoiceHTMLTmpl renders the printable invoice document. User-controlled
// fields (customer details, notes) are auto-escaped by html/template.
var invoiceHTMLTmpl = template.Must(template.New("invoice").Funcs(template.FuncMap{
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
}).Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Invoice {{.InvoiceNumber}}</title>
  <style>
    body { font-family: Arial, sans-serif; color: #111; }
    .container { max-width: 900px; margin: 0 auto; }
    table { width: 100%; border-collapse: collapse; }
    th, td { border: 1px solid #ddd; padding: 8px; }
    th { background: #f5f5f5; text-align: left; }
    .right { text-align: right; }
  </style>
</head>
<body>
  <div class="container">
    <h1>Invoice {{.InvoiceNumber}}</h1>
    <p><strong>Order:</strong> {{.OrderNumber}}</p>
    <p><strong>Issue Date:</strong> {{.IssueDate.Format "2006-01-02"}}</p>
    <p><strong>Due Date:</strong> {{.DueDate.Format "2006-01-02"}}</p>
    <h3>Bill To</h3>
    <p>{{.BilledTo.Name}}{{with .BilledTo.Email}}<br/>{{.}}{{end}}{{with .BilledTo.Phone}}<br/>{{.}}{{end}}{{with .BilledTo.Address}}<br/>{{.}}{{end}}</p>
    <h3>Items</h3>
    <table>
      <thead>
        <tr><th>SKU</th><th>Name</th><th class="right">Qty</th><th class="right">Unit</th><th class="right">Making</th><th class="right">Sub</th><th class="right">Tax</th><th class="right">Total</th></tr>
      </thead>
      <tbody>
      {{range .Items}}<tr><td>{{.SKU}}</td><td>{{.Name}}</td><td class="right">{{.Qty}}</td><td class="right">{{money .UnitPrice}}</td><td class="right">{{money .MakingCharges}}</td><td class="right">{{money .Subtotal}}</td><td class="right">{{money .TaxAmount}}</td><td class="right">{{money .Total}}</td></tr>
      {{end}}</tbody>
    </table>
    <h3 class="right">Subtotal: {{money .Subtotal}}</h3>
    <h3 class="right">Tax: {{money .TaxTotal}}</h3>
    <h2 class="right">Grand Total: {{money .GrandTotal}}</h2>
    {{with .Notes}}<p>{{.}}</p>{{end}}
  </div>
</body>
</html>
`))

func renderInvoiceHTML(invoice domain.Invoice) (string, error) {
	var buf bytes.Buffer
	if err := invoiceHTMLTmpl.Execute(&buf, invoice); err != nil {
		return "", err
	}
	return buf.String(), nil
}
