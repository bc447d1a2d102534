package reconcile

import (
	"fmt"
	"strings"

	"customsdesk/internal/domain"
)

// Merge builds the working declaration from both sources and the operator's
// resolutions.
//
// The invoice is the base. For each field the preferred source is the bill
// of lading for B/L-specific fields and the invoice otherwise; a value blank
// in the preferred source is taken from the other one, so nothing populated in
// either document is lost. Goods weight carries the declared weight, so a
// bill of lading gross weight wins over its own goods weight. Resolutions then
// overwrite every conflicting field; a weight resolution is written to the
// gross weight too.
//
// Every discrepancy must carry a resolution; a missing one returns
// *domain.IncompleteResolutionError without producing a partial result.
func Merge(
	invoice, bl *domain.CanonicalDeclaration,
	discrepancies []domain.Discrepancy,
	resolutions map[domain.FieldID]domain.Resolution,
) (*domain.WorkingDeclaration, error) {
	type resolved struct {
		ref   domain.FieldRef
		value string
	}

	chosen := make([]resolved, 0, len(discrepancies))
	for _, d := range discrepancies {
		res, ok := resolutions[d.Field]
		if !ok {
			return nil, &domain.IncompleteResolutionError{Field: d.Field}
		}
		value, err := resolvedValue(d, res)
		if err != nil {
			return nil, err
		}
		ref, err := domain.ParseFieldRef(d.Field)
		if err != nil {
			return nil, err
		}
		chosen = append(chosen, resolved{ref: ref, value: value})
	}

	if invoice == nil {
		invoice = &domain.CanonicalDeclaration{}
	}
	if bl == nil {
		bl = &domain.CanonicalDeclaration{}
	}

	merged := invoice.Clone()
	for _, f := range domain.Fields() {
		preferred, other := invoice, bl
		if f.BLSpecific {
			preferred, other = bl, invoice
		}

		if f.Kind == domain.KindList {
			f.SetList(merged, mergeList(f.List(preferred), f.List(other), f.Present(preferred)))
			continue
		}
		switch {
		case f.Present(preferred):
			f.Set(merged, f.Get(preferred))
		case f.Present(other):
			f.Set(merged, f.Get(other))
		}
	}

	switch {
	case invoice.DeclaredWeight() != "":
		merged.Goods.Weight = invoice.DeclaredWeight()
	case bl.DeclaredWeight() != "":
		merged.Goods.Weight = bl.DeclaredWeight()
	}

	for _, r := range chosen {
		r.ref.Assign(merged, r.value)
		if r.ref.Def.ID == domain.FieldWeight && strings.TrimSpace(merged.BillOfLading.GrossWeight) != "" {
			merged.BillOfLading.GrossWeight = r.value
		}
	}
	for _, f := range domain.Fields() {
		if f.Kind == domain.KindList {
			f.SetList(merged, trimTrailingBlanks(f.List(merged)))
		}
	}

	return &domain.WorkingDeclaration{CanonicalDeclaration: *merged}, nil
}

func resolvedValue(d domain.Discrepancy, res domain.Resolution) (string, error) {
	switch res.Choice {
	case domain.UseInvoiceValue:
		return d.InvoiceValue, nil
	case domain.UseBLValue:
		return d.BLValue, nil
	case domain.ManualOverride:
		v := strings.TrimSpace(res.Value)
		if v == "" {
			return "", fmt.Errorf("%w: manual override for %s is blank", domain.ErrInvalidResolution, d.Field)
		}
		return v, nil
	default:
		return "", fmt.Errorf("%w: unknown choice %q for %s", domain.ErrInvalidResolution, res.Choice, d.Field)
	}
}

// mergeList keeps the preferred list when it carries data, padded with the
// other list's trailing entries so every index either source filled survives.
func mergeList(preferred, other []string, preferredPresent bool) []string {
	base := preferred
	if !preferredPresent {
		base = other
	}
	out := make([]string, len(base))
	copy(out, base)
	if preferredPresent {
		for i := len(out); i < len(other); i++ {
			out = append(out, other[i])
		}
	}
	return out
}

func trimTrailingBlanks(list []string) []string {
	end := len(list)
	for end > 0 && strings.TrimSpace(list[end-1]) == "" {
		end--
	}
	if end == 0 {
		return nil
	}
	return list[:end]
}
