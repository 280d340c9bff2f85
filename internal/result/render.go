package result

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// Render writes the display of r to w, choosing a layout per variant
func Render(w io.Writer, r Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	switch r := r.(type) {
	case *Invoice:
		renderInvoice(tw, r)
	case *Wine:
		renderWine(tw, r)
	case *ErrorResult:
		renderError(tw, r)
	case *Unrecognized:
		renderUnrecognized(tw, r)
	default:
		return fmt.Errorf("unknown result type %T", r)
	}
	return tw.Flush()
}

func row(w io.Writer, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(w, "  %s:\t%s\n", label, indentContinuation(value))
}

// indentContinuation keeps multi-line values (formatted JSON) aligned under their label
func indentContinuation(value string) string {
	return strings.ReplaceAll(value, "\n", "\n\t")
}

func renderExtra(w io.Writer, title string, fields []Field) {
	if len(fields) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\n", title)
	for _, f := range fields {
		row(w, f.Label, f.Value)
	}
}

func renderInvoice(w io.Writer, inv *Invoice) {
	fmt.Fprintf(w, "📄 Facture: %s\n", inv.VendorName)
	if v := inv.Vendor; v != nil {
		row(w, "SIRET", v.Siret)
		row(w, "TVA", v.TVAIntra)
		row(w, "Adresse", v.Adresse)
		row(w, "Tél", v.Telephone)
		row(w, "Email", v.Email)
		row(w, "Site", v.SiteWeb)
	}
	row(w, "Numéro", inv.InvoiceNumber)
	row(w, "Date", inv.Date)
	row(w, "Montant Total", inv.TotalAmount)
	renderExtra(w, "Informations supplémentaires", inv.Extra)
}

func renderWine(w io.Writer, wine *Wine) {
	fmt.Fprintf(w, "🍷 Vin: %s\n", wine.Name)
	row(w, "Appellation", wine.Appellation)
	row(w, "Millésime", wine.Vintage)
	row(w, "Cépage", wine.Cepage)
	row(w, "Pays", wine.Pays)
	row(w, "Degré d'alcool", wine.DegreAlcool)
	renderExtra(w, "Détails complémentaires", wine.Extra)
}

func renderError(w io.Writer, e *ErrorResult) {
	fmt.Fprintf(w, "Erreur de traitement: %s\n", e.Message)
	if e.RawDetail != "" {
		fmt.Fprintf(w, "\nDétails:\n%s\n", e.RawDetail)
	}
}

func renderUnrecognized(w io.Writer, u *Unrecognized) {
	fmt.Fprintln(w, "Résultat de l'analyse")
	var buf bytes.Buffer
	if err := json.Indent(&buf, u.RawPayload, "", "  "); err != nil {
		fmt.Fprintln(w, string(u.RawPayload))
		return
	}
	fmt.Fprintln(w, buf.String())
}

// Summary is the one-line description of r used in batch tables
func Summary(r Result) string {
	switch r := r.(type) {
	case *Invoice:
		return fmt.Sprintf("Facture %s | %s | %s", orDash(r.InvoiceNumber), r.VendorName, orDash(r.TotalAmount))
	case *Wine:
		parts := []string{"Vin", r.Name}
		for _, p := range []string{r.Appellation, r.Vintage} {
			if p != "" {
				parts = append(parts, p)
			}
		}
		return strings.Join(parts, " | ")
	case *ErrorResult:
		return "Erreur: " + r.Message
	case *Unrecognized:
		return "Format non reconnu"
	}
	return ""
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
