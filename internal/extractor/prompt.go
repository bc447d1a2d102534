package extractor

import "customsdesk/internal/domain"

// BuildPrompt returns the extraction prompt for a source document kind.
func BuildPrompt(kind domain.DocumentKind) string {
	return `You are a customs document data extraction assistant. Analyze the provided ` + kind.Label() + ` and extract its data into the following JSON structure.

IMPORTANT INSTRUCTIONS:
- Every value is a string. Copy numbers together with their unit exactly as printed (e.g., "450 KG", "12.5 CBM", "1,200.00").
- Use an empty string for any field not present in the document. Do not guess.
- Countries should be ISO 3166 alpha-2 codes when the document makes them unambiguous.
- Container and seal numbers are lists; seal_numbers[i] belongs to container_numbers[i].` + kindNotes(kind) + `

Return ONLY valid JSON with no markdown formatting and no code fences.

{
  "shipper": {"name": "", "address": "", "country": ""},
  "consignee": {"name": "", "address": "", "country": ""},
  "goods": {
    "hs_code": "", "description": "", "package_type": "",
    "quantity": "", "weight": "", "value": "", "currency": ""
  },
  "transport": {"mode": "", "carrier": "", "vessel": "", "voyage": ""},
  "documentation": {
    "invoice_number": "", "invoice_date": "",
    "origin_country": "", "destination_country": "",
    "incoterms": "", "payment_terms": "", "remarks": ""
  },
  "bill_of_lading": {
    "bl_number": "", "port_of_loading": "", "port_of_discharge": "",
    "container_numbers": [], "seal_numbers": [],
    "gross_weight": "", "measurement": ""
  }
}`
}

func kindNotes(kind domain.DocumentKind) string {
	switch kind {
	case domain.DocumentBillOfLading:
		return `
- This is a bill of lading. Report the gross weight as both goods.weight and bill_of_lading.gross_weight.
- Leave invoice-only fields such as payment_terms empty unless printed on the bill of lading.`
	default:
		return `
- This is a commercial invoice. Report the total shipment weight as goods.weight.
- Leave bill_of_lading fields empty unless the invoice explicitly references them.`
	}
}
