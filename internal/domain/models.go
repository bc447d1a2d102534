package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Party is a shipper or consignee.
type Party struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Country string `json:"country"`
}

// Goods describes the declared cargo.
type Goods struct {
	HSCode      string `json:"hs_code"`
	Description string `json:"description"`
	PackageType string `json:"package_type"`
	Quantity    string `json:"quantity"`
	Weight      string `json:"weight"`
	Value       string `json:"value"`
	Currency    string `json:"currency"`
}

// Transport describes how the goods move.
type Transport struct {
	Mode    string `json:"mode"`
	Carrier string `json:"carrier"`
	Vessel  string `json:"vessel"`
	Voyage  string `json:"voyage"`
}

// Documentation holds commercial document references and terms.
type Documentation struct {
	InvoiceNumber      string `json:"invoice_number"`
	InvoiceDate        string `json:"invoice_date"`
	OriginCountry      string `json:"origin_country"`
	DestinationCountry string `json:"destination_country"`
	Incoterms          string `json:"incoterms"`
	PaymentTerms       string `json:"payment_terms"`
	Remarks            string `json:"remarks"`
}

// BillOfLadingDetails holds the fields only a bill of lading carries.
// ContainerNumbers[i] pairs with SealNumbers[i].
type BillOfLadingDetails struct {
	BLNumber         string   `json:"bl_number"`
	PortOfLoading    string   `json:"port_of_loading"`
	PortOfDischarge  string   `json:"port_of_discharge"`
	ContainerNumbers []string `json:"container_numbers"`
	SealNumbers      []string `json:"seal_numbers"`
	GrossWeight      string   `json:"gross_weight"`
	Measurement      string   `json:"measurement"`
}

// CanonicalDeclaration is the record shape both source documents populate.
// Missing values are empty strings or empty lists.
type CanonicalDeclaration struct {
	Shipper       Party               `json:"shipper"`
	Consignee     Party               `json:"consignee"`
	Goods         Goods               `json:"goods"`
	Transport     Transport           `json:"transport"`
	Documentation Documentation       `json:"documentation"`
	BillOfLading  BillOfLadingDetails `json:"bill_of_lading"`
}

// DeclaredWeight is the consignment weight a source vouches for: the bill of
// lading gross weight when one is printed, otherwise the goods weight.
func (d *CanonicalDeclaration) DeclaredWeight() string {
	if w := strings.TrimSpace(d.BillOfLading.GrossWeight); w != "" {
		return w
	}
	return strings.TrimSpace(d.Goods.Weight)
}

// Clone returns a deep copy; list fields never alias the original.
func (d *CanonicalDeclaration) Clone() *CanonicalDeclaration {
	if d == nil {
		return nil
	}
	out := *d
	out.BillOfLading.ContainerNumbers = cloneStrings(d.BillOfLading.ContainerNumbers)
	out.BillOfLading.SealNumbers = cloneStrings(d.BillOfLading.SealNumbers)
	return &out
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}

// ExtractionResult wraps one extracted document. It is never mutated after
// creation.
type ExtractionResult struct {
	Source      DocumentKind          `json:"source"`
	Declaration *CanonicalDeclaration `json:"declaration"`
	FileName    string                `json:"file_name"`
	ContentType string                `json:"content_type"`
	StorageKey  string                `json:"storage_key,omitempty"`
	ModelUsed   string                `json:"model_used,omitempty"`
	ExtractedAt time.Time             `json:"extracted_at"`
}

// Discrepancy is a field whose invoice and bill of lading values disagree.
type Discrepancy struct {
	Field        FieldID `json:"field"`
	InvoiceValue string  `json:"invoice_value"`
	BLValue      string  `json:"bl_value"`
}

// Resolution settles one discrepancy. Value is only read for ManualOverride.
type Resolution struct {
	Choice ResolutionChoice `json:"choice"`
	Value  string           `json:"value,omitempty"`
}

// WorkingDeclaration is the single merged record edited during review and
// sent on submission. Provenance is not tracked.
type WorkingDeclaration struct {
	CanonicalDeclaration
}

// StepReceipt records the outcome of a completed submission step.
type StepReceipt struct {
	Reference   string    `json:"reference,omitempty"`
	Attempts    int       `json:"attempts"`
	CompletedAt time.Time `json:"completed_at"`
}

// DeclarationSession owns all state for one declaration from first upload to
// submission. Every field is exclusively owned by the session.
type DeclarationSession struct {
	ID                uuid.UUID                      `json:"id"`
	Reference         int64                          `json:"reference"`
	ClientName        string                         `json:"client_name,omitempty"`
	ClientEmail       string                         `json:"client_email,omitempty"`
	Phase             Phase                          `json:"phase"`
	Invoice           *ExtractionResult              `json:"invoice,omitempty"`
	BillOfLading      *ExtractionResult              `json:"bill_of_lading,omitempty"`
	Discrepancies     []Discrepancy                  `json:"discrepancies"`
	Resolutions       map[FieldID]Resolution         `json:"resolutions,omitempty"`
	Working           *WorkingDeclaration            `json:"working,omitempty"`
	LastCompletedStep SubmissionStep                 `json:"last_completed_step"`
	StepReceipts      map[SubmissionStep]StepReceipt `json:"step_receipts,omitempty"`
	LastError         string                         `json:"last_error,omitempty"`
	CreatedAt         time.Time                      `json:"created_at"`
	UpdatedAt         time.Time                      `json:"updated_at"`
	SubmittedAt       *time.Time                     `json:"submitted_at,omitempty"`
	CancelledAt       *time.Time                     `json:"cancelled_at,omitempty"`
}

// NewDeclarationSession creates a session in its initial phase.
func NewDeclarationSession() *DeclarationSession {
	return &DeclarationSession{
		ID:            uuid.New(),
		Phase:         PhaseAwaitingInvoice,
		Discrepancies: []Discrepancy{},
	}
}

// Unresolved returns the fields of discrepancies without a resolution, in
// discrepancy order.
func (s *DeclarationSession) Unresolved() []FieldID {
	var out []FieldID
	for _, d := range s.Discrepancies {
		if _, ok := s.Resolutions[d.Field]; !ok {
			out = append(out, d.Field)
		}
	}
	return out
}

// Lodged reports whether the declaration has reached the customs authority.
func (s *DeclarationSession) Lodged() bool {
	return s.LastCompletedStep >= StepCustomsAuthority
}
