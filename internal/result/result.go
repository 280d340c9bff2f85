// Package result interprets gateway payloads as invoices, wine labels or
// errors and renders them for display.
package result

import "encoding/json"

// Kind names the variant of a Result
type Kind string

const (
	KindInvoice      Kind = "invoice"
	KindWine         Kind = "wine"
	KindError        Kind = "error"
	KindUnrecognized Kind = "unrecognized"
)

// Result is the classified view of a payload. It is one of *Invoice, *Wine,
// *ErrorResult or *Unrecognized.
type Result interface {
	Kind() Kind
	result()
}

const (
	// UnknownVendor is shown when an invoice names no vendor
	UnknownVendor = "Vendeur non identifié"
	// UnknownWine is shown when a wine label has no name
	UnknownWine = "Vin non identifié"
)

// Field is a payload entry with no dedicated slot
type Field struct {
	Key   string
	Label string
	Value string
}

// VendorDetails is the optional vendor block of an invoice
type VendorDetails struct {
	Siret     string
	TVAIntra  string
	Adresse   string
	Telephone string
	Email     string
	SiteWeb   string
}

// Invoice is a payload whose type is "facture"
type Invoice struct {
	Date          string
	VendorName    string
	Vendor        *VendorDetails
	InvoiceNumber string
	TotalAmount   string
	Extra         []Field
}

// Wine is a payload whose type is "vin"
type Wine struct {
	Name        string
	Appellation string
	Vintage     string
	Cepage      string
	Pays        string
	DegreAlcool string
	Extra       []Field
}

// ErrorResult is a payload carrying an "error" key
type ErrorResult struct {
	Message   string
	RawDetail string
}

// Unrecognized is any payload matching no other variant
type Unrecognized struct {
	RawPayload json.RawMessage
}

func (*Invoice) Kind() Kind      { return KindInvoice }
func (*Wine) Kind() Kind         { return KindWine }
func (*ErrorResult) Kind() Kind  { return KindError }
func (*Unrecognized) Kind() Kind { return KindUnrecognized }

func (*Invoice) result()      {}
func (*Wine) result()         {}
func (*ErrorResult) result()  {}
func (*Unrecognized) result() {}
