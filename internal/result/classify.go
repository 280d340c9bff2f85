package result

import (
	"bytes"
	"encoding/json"
	"strings"
)

var (
	invoiceKeys = []string{"type", "date", "vendeur", "montant_total", "numero_facture"}
	wineKeys    = []string{"type", "nom", "appellation", "millesime", "cepage", "pays", "degre_alcool"}
)

// Classify decides which shape payload has. It never fails: anything that is
// not an error document, an invoice or a wine label is Unrecognized.
func Classify(payload []byte) Result {
	obj, ok := decodeObject(payload)
	if !ok {
		return unrecognized(payload)
	}

	if v, ok := obj.get("error"); ok {
		return classifyError(obj, v)
	}

	discriminant, ok := obj.get("type")
	if !ok || kindOf(discriminant) != kindString {
		return unrecognized(payload)
	}
	t, _ := scalarText(discriminant)
	switch strings.ToLower(t) {
	case "facture":
		return classifyInvoice(obj)
	case "vin":
		return classifyWine(obj)
	}
	return unrecognized(payload)
}

func unrecognized(payload []byte) *Unrecognized {
	return &Unrecognized{RawPayload: append(json.RawMessage(nil), bytes.TrimSpace(payload)...)}
}

func classifyError(obj object, v json.RawMessage) *ErrorResult {
	res := &ErrorResult{}
	if text, ok := scalarText(v); ok {
		res.Message = text
	} else {
		res.Message = string(bytes.TrimSpace(v))
	}

	for _, key := range []string{"raw_ai", "details"} {
		detail, ok := obj.get(key)
		if !ok || kindOf(detail) == kindNull {
			continue
		}
		if text := displayValue(detail); text != "" {
			res.RawDetail = text
			break
		}
	}
	return res
}

func classifyInvoice(obj object) *Invoice {
	s := newSlots(obj, invoiceKeys...)
	inv := &Invoice{
		Date:          s.text("date"),
		InvoiceNumber: s.first("numero_facture", "numero"),
		TotalAmount:   s.first("montant_total", "montant_ttc"),
		VendorName:    UnknownVendor,
	}

	if v, ok := obj.get("vendeur"); ok {
		switch kindOf(v) {
		case kindObject:
			vendor, _ := decodeObject(v)
			vs := newSlots(vendor)
			if name := vs.text("nom"); name != "" {
				inv.VendorName = name
			}
			details := VendorDetails{
				Siret:     vs.text("siret"),
				TVAIntra:  vs.text("tva_intra"),
				Adresse:   vs.text("adresse"),
				Telephone: vs.text("telephone"),
				Email:     vs.text("email"),
				SiteWeb:   vs.text("site_web"),
			}
			if details.Siret != "" || details.TVAIntra != "" || details.Adresse != "" {
				inv.Vendor = &details
			}
		case kindNull:
		default:
			if name := s.text("vendeur"); name != "" {
				inv.VendorName = name
			}
		}
	}

	inv.Extra = s.extra()
	return inv
}

func classifyWine(obj object) *Wine {
	s := newSlots(obj, wineKeys...)
	wine := &Wine{
		Name:        s.text("nom"),
		Appellation: s.text("appellation"),
		Vintage:     s.text("millesime"),
		Cepage:      s.text("cepage"),
		Pays:        s.text("pays"),
		DegreAlcool: s.text("degre_alcool"),
	}
	if wine.Name == "" {
		wine.Name = UnknownWine
	}
	wine.Extra = s.extra()
	return wine
}
