package scanning

import (
	"context"
	"encoding/json"
)

// Scanner defines the interface for document classification
type Scanner interface {
	// ScanDocument reads an invoice or wine label image and returns the
	// extracted fields as a JSON object
	ScanDocument(ctx context.Context, imageData []byte, contentType string) (json.RawMessage, error)
	// Close closes the scanner and releases resources
	Close() error
}

// documentScanPrompt is the shared prompt used by all LLM providers
const documentScanPrompt = `Tu es un assistant expert en extraction de données.
Analyse cette image.

Détermine si c'est 'Facture' ou 'Vin'.

Si FACTURE, extrais (JSON) :
- type: "Facture"
- date (JJ/MM/AAAA)
- vendeur (objet avec nom, siret, tva_intra, adresse si disponibles)
- montant_total
- numero_facture

Si VIN, extrais (JSON) :
- type: "Vin"
- nom
- millesime
- appellation
- cepage
- pays
- degre_alcool

Toutes les valeurs doivent être des chaînes de caractères.
Réponds UNIQUEMENT en JSON valide, sans texte avant ou après et sans bloc markdown.`
