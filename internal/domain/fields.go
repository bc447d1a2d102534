package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// FieldID is the stable identifier of a CanonicalDeclaration attribute.
// A single list entry is addressed as "<ListField>[<index>]".
type FieldID string

const (
	FieldShipperName        FieldID = "ShipperName"
	FieldShipperAddress     FieldID = "ShipperAddress"
	FieldShipperCountry     FieldID = "ShipperCountry"
	FieldConsigneeName      FieldID = "ConsigneeName"
	FieldConsigneeAddress   FieldID = "ConsigneeAddress"
	FieldConsigneeCountry   FieldID = "ConsigneeCountry"
	FieldHSCode             FieldID = "HSCode"
	FieldDescription        FieldID = "Description"
	FieldPackageType        FieldID = "PackageType"
	FieldQuantity           FieldID = "Quantity"
	FieldWeight             FieldID = "Weight"
	FieldValue              FieldID = "Value"
	FieldCurrency           FieldID = "Currency"
	FieldTransportMode      FieldID = "TransportMode"
	FieldCarrier            FieldID = "Carrier"
	FieldVessel             FieldID = "Vessel"
	FieldVoyage             FieldID = "Voyage"
	FieldInvoiceNumber      FieldID = "InvoiceNumber"
	FieldInvoiceDate        FieldID = "InvoiceDate"
	FieldOriginCountry      FieldID = "OriginCountry"
	FieldDestinationCountry FieldID = "DestinationCountry"
	FieldIncoterms          FieldID = "Incoterms"
	FieldPaymentTerms       FieldID = "PaymentTerms"
	FieldRemarks            FieldID = "Remarks"
	FieldBLNumber           FieldID = "BLNumber"
	FieldPortOfLoading      FieldID = "PortOfLoading"
	FieldPortOfDischarge    FieldID = "PortOfDischarge"
	FieldContainerNumbers   FieldID = "ContainerNumbers"
	FieldSealNumbers        FieldID = "SealNumbers"
	FieldGrossWeight        FieldID = "GrossWeight"
	FieldMeasurement        FieldID = "Measurement"
)

// FieldKind selects the comparison policy for a field.
type FieldKind int

const (
	KindText FieldKind = iota
	KindMeasure
	KindList
)

// FieldDef describes one schema attribute and how to reach it.
type FieldDef struct {
	ID    FieldID
	Label string
	Kind  FieldKind
	// BLSpecific fields are carried by the bill of lading; its value is
	// preferred when merging.
	BLSpecific bool

	scalar func(*CanonicalDeclaration) *string
	list   func(*CanonicalDeclaration) *[]string
}

// Get returns the scalar value of the field. List fields return "".
func (f FieldDef) Get(d *CanonicalDeclaration) string {
	if f.scalar == nil || d == nil {
		return ""
	}
	return *f.scalar(d)
}

// Set assigns a scalar value. It is a no-op for list fields.
func (f FieldDef) Set(d *CanonicalDeclaration, value string) {
	if f.scalar == nil {
		return
	}
	*f.scalar(d) = value
}

// List returns the list value of the field. Scalar fields return nil.
func (f FieldDef) List(d *CanonicalDeclaration) []string {
	if f.list == nil || d == nil {
		return nil
	}
	return *f.list(d)
}

// SetList replaces the list value. It is a no-op for scalar fields.
func (f FieldDef) SetList(d *CanonicalDeclaration, values []string) {
	if f.list == nil {
		return
	}
	*f.list(d) = values
}

// Present reports whether d carries a non-blank value for the field.
func (f FieldDef) Present(d *CanonicalDeclaration) bool {
	if f.Kind == KindList {
		for _, v := range f.List(d) {
			if strings.TrimSpace(v) != "" {
				return true
			}
		}
		return false
	}
	return strings.TrimSpace(f.Get(d)) != ""
}

func text(id FieldID, label string, p func(*CanonicalDeclaration) *string) FieldDef {
	return FieldDef{ID: id, Label: label, Kind: KindText, scalar: p}
}

func measure(id FieldID, label string, p func(*CanonicalDeclaration) *string) FieldDef {
	return FieldDef{ID: id, Label: label, Kind: KindMeasure, scalar: p}
}

func blOnly(f FieldDef) FieldDef {
	f.BLSpecific = true
	return f
}

// schema lists every field in declaration order.
var schema = []FieldDef{
	text(FieldShipperName, "Shipper Name", func(d *CanonicalDeclaration) *string { return &d.Shipper.Name }),
	text(FieldShipperAddress, "Shipper Address", func(d *CanonicalDeclaration) *string { return &d.Shipper.Address }),
	text(FieldShipperCountry, "Shipper Country", func(d *CanonicalDeclaration) *string { return &d.Shipper.Country }),
	text(FieldConsigneeName, "Consignee Name", func(d *CanonicalDeclaration) *string { return &d.Consignee.Name }),
	text(FieldConsigneeAddress, "Consignee Address", func(d *CanonicalDeclaration) *string { return &d.Consignee.Address }),
	text(FieldConsigneeCountry, "Consignee Country", func(d *CanonicalDeclaration) *string { return &d.Consignee.Country }),
	text(FieldHSCode, "HS Code", func(d *CanonicalDeclaration) *string { return &d.Goods.HSCode }),
	text(FieldDescription, "Description", func(d *CanonicalDeclaration) *string { return &d.Goods.Description }),
	text(FieldPackageType, "Package Type", func(d *CanonicalDeclaration) *string { return &d.Goods.PackageType }),
	measure(FieldQuantity, "Quantity", func(d *CanonicalDeclaration) *string { return &d.Goods.Quantity }),
	measure(FieldWeight, "Weight", func(d *CanonicalDeclaration) *string { return &d.Goods.Weight }),
	measure(FieldValue, "Value", func(d *CanonicalDeclaration) *string { return &d.Goods.Value }),
	text(FieldCurrency, "Currency", func(d *CanonicalDeclaration) *string { return &d.Goods.Currency }),
	text(FieldTransportMode, "Transport Mode", func(d *CanonicalDeclaration) *string { return &d.Transport.Mode }),
	text(FieldCarrier, "Carrier", func(d *CanonicalDeclaration) *string { return &d.Transport.Carrier }),
	text(FieldVessel, "Vessel", func(d *CanonicalDeclaration) *string { return &d.Transport.Vessel }),
	text(FieldVoyage, "Voyage", func(d *CanonicalDeclaration) *string { return &d.Transport.Voyage }),
	text(FieldInvoiceNumber, "Invoice Number", func(d *CanonicalDeclaration) *string { return &d.Documentation.InvoiceNumber }),
	text(FieldInvoiceDate, "Invoice Date", func(d *CanonicalDeclaration) *string { return &d.Documentation.InvoiceDate }),
	text(FieldOriginCountry, "Origin Country", func(d *CanonicalDeclaration) *string { return &d.Documentation.OriginCountry }),
	text(FieldDestinationCountry, "Destination Country", func(d *CanonicalDeclaration) *string { return &d.Documentation.DestinationCountry }),
	text(FieldIncoterms, "Incoterms", func(d *CanonicalDeclaration) *string { return &d.Documentation.Incoterms }),
	text(FieldPaymentTerms, "Payment Terms", func(d *CanonicalDeclaration) *string { return &d.Documentation.PaymentTerms }),
	text(FieldRemarks, "Remarks", func(d *CanonicalDeclaration) *string { return &d.Documentation.Remarks }),
	blOnly(text(FieldBLNumber, "B/L Number", func(d *CanonicalDeclaration) *string { return &d.BillOfLading.BLNumber })),
	blOnly(text(FieldPortOfLoading, "Port of Loading", func(d *CanonicalDeclaration) *string { return &d.BillOfLading.PortOfLoading })),
	blOnly(text(FieldPortOfDischarge, "Port of Discharge", func(d *CanonicalDeclaration) *string { return &d.BillOfLading.PortOfDischarge })),
	{ID: FieldContainerNumbers, Label: "Container Numbers", Kind: KindList, BLSpecific: true,
		list: func(d *CanonicalDeclaration) *[]string { return &d.BillOfLading.ContainerNumbers }},
	{ID: FieldSealNumbers, Label: "Seal Numbers", Kind: KindList, BLSpecific: true,
		list: func(d *CanonicalDeclaration) *[]string { return &d.BillOfLading.SealNumbers }},
	blOnly(measure(FieldGrossWeight, "Gross Weight", func(d *CanonicalDeclaration) *string { return &d.BillOfLading.GrossWeight })),
	blOnly(measure(FieldMeasurement, "Measurement", func(d *CanonicalDeclaration) *string { return &d.BillOfLading.Measurement })),
}

// priorityFields are compared first; weight and measurement mismatches have
// the highest duty impact.
var priorityFields = []FieldID{FieldWeight, FieldGrossWeight, FieldMeasurement}

var schemaIndex = func() map[FieldID]FieldDef {
	m := make(map[FieldID]FieldDef, len(schema))
	for _, f := range schema {
		m[f.ID] = f
	}
	return m
}()

// Fields returns every field in schema-declaration order.
func Fields() []FieldDef {
	out := make([]FieldDef, len(schema))
	copy(out, schema)
	return out
}

// ComparisonOrder returns the fields in discrepancy reporting order: the
// priority fields, then the rest in schema-declaration order.
func ComparisonOrder() []FieldDef {
	out := make([]FieldDef, 0, len(schema))
	seen := make(map[FieldID]bool, len(priorityFields))
	for _, id := range priorityFields {
		out = append(out, schemaIndex[id])
		seen[id] = true
	}
	for _, f := range schema {
		if !seen[f.ID] {
			out = append(out, f)
		}
	}
	return out
}

// LookupField returns the definition of a top-level field id.
func LookupField(id FieldID) (FieldDef, bool) {
	f, ok := schemaIndex[id]
	return f, ok
}

// FieldRef is a parsed field identifier. Index is -1 for whole fields.
type FieldRef struct {
	Def   FieldDef
	Index int
}

// ListEntryID builds the identifier of one list entry.
func ListEntryID(id FieldID, index int) FieldID {
	return FieldID(fmt.Sprintf("%s[%d]", id, index))
}

// ParseFieldRef resolves "Weight" or "ContainerNumbers[2]" against the schema.
func ParseFieldRef(raw FieldID) (FieldRef, error) {
	s := strings.TrimSpace(string(raw))
	index := -1
	if open := strings.IndexByte(s, '['); open >= 0 {
		if !strings.HasSuffix(s, "]") {
			return FieldRef{}, fmt.Errorf("%w: %s", ErrUnknownField, raw)
		}
		n, err := strconv.Atoi(s[open+1 : len(s)-1])
		if err != nil || n < 0 {
			return FieldRef{}, fmt.Errorf("%w: %s", ErrUnknownField, raw)
		}
		index = n
		s = s[:open]
	}
	def, ok := schemaIndex[FieldID(s)]
	if !ok {
		return FieldRef{}, fmt.Errorf("%w: %s", ErrUnknownField, raw)
	}
	if (def.Kind == KindList) != (index >= 0) {
		return FieldRef{}, fmt.Errorf("%w: %s", ErrUnknownField, raw)
	}
	return FieldRef{Def: def, Index: index}, nil
}

// Value reads the referenced value from d; out-of-range entries read as "".
func (r FieldRef) Value(d *CanonicalDeclaration) string {
	if r.Index < 0 {
		return r.Def.Get(d)
	}
	list := r.Def.List(d)
	if r.Index >= len(list) {
		return ""
	}
	return list[r.Index]
}

// Assign writes value into d. Writing past the end of a list pads it with
// empty entries so positions stay aligned.
func (r FieldRef) Assign(d *CanonicalDeclaration, value string) {
	if r.Index < 0 {
		r.Def.Set(d, value)
		return
	}
	list := append([]string(nil), r.Def.List(d)...)
	for len(list) <= r.Index {
		list = append(list, "")
	}
	list[r.Index] = value
	r.Def.SetList(d, list)
}
