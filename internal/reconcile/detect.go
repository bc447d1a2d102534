package reconcile

import (
	"customsdesk/internal/domain"
)

// Detect compares an invoice-derived and a bill-of-lading-derived declaration
// field by field. The result is deterministic: priority fields first, then
// schema-declaration order, list entries in index order.
//
// A field that is blank in either source is not a discrepancy. List fields
// present in both sources are compared per index, so a length mismatch yields
// one discrepancy for every index past the shorter list.
//
// Weight is compared on each source's declared weight, which pairs the
// invoice goods weight with the bill of lading gross weight. Gross weight is
// never reported on its own.
func Detect(invoice, bl *domain.CanonicalDeclaration) []domain.Discrepancy {
	if invoice == nil {
		invoice = &domain.CanonicalDeclaration{}
	}
	if bl == nil {
		bl = &domain.CanonicalDeclaration{}
	}

	out := []domain.Discrepancy{}
	for _, f := range domain.ComparisonOrder() {
		switch {
		case f.ID == domain.FieldGrossWeight:
			continue
		case f.ID == domain.FieldWeight:
			if d, ok := compareScalar(f, invoice.DeclaredWeight(), bl.DeclaredWeight()); ok {
				out = append(out, d)
			}
		case f.Kind == domain.KindList:
			if f.Present(invoice) && f.Present(bl) {
				out = append(out, detectList(f, invoice, bl)...)
			}
		default:
			if d, ok := compareScalar(f, f.Get(invoice), f.Get(bl)); ok {
				out = append(out, d)
			}
		}
	}
	return out
}

func compareScalar(f domain.FieldDef, iv, bv string) (domain.Discrepancy, bool) {
	iv, bv = NormalizeText(iv), NormalizeText(bv)
	if iv == "" || bv == "" || Equivalent(f.Kind, iv, bv) {
		return domain.Discrepancy{}, false
	}
	return domain.Discrepancy{Field: f.ID, InvoiceValue: iv, BLValue: bv}, true
}

func detectList(f domain.FieldDef, invoice, bl *domain.CanonicalDeclaration) []domain.Discrepancy {
	iv, bv := f.List(invoice), f.List(bl)
	n := len(iv)
	if len(bv) > n {
		n = len(bv)
	}

	var out []domain.Discrepancy
	for i := 0; i < n; i++ {
		a, b := entry(iv, i), entry(bv, i)
		if a == b {
			continue
		}
		out = append(out, domain.Discrepancy{
			Field:        domain.ListEntryID(f.ID, i),
			InvoiceValue: a,
			BLValue:      b,
		})
	}
	return out
}

func entry(list []string, i int) string {
	if i >= len(list) {
		return ""
	}
	return NormalizeText(list[i])
}
