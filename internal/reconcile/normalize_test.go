package reconcile_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"customsdesk/internal/domain"
	"customsdesk/internal/reconcile"
)

func TestNormalizeMeasure(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"450 KG", "450 KG", true},
		{"450kgs", "450 KG", true},
		{" 1,200.50 Kilograms ", "2401/2 KG", true},
		{"1200.5 kg", "2401/2 KG", true},
		{"USD 12,000", "12000 USD", true},
		{"12000", "12000", true},
		{"12.30 CBM", "123/10 CBM", true},
		{"1,20,000", "", false},
		{"about 450 kg", "", false},
		{"KG", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := reconcile.NormalizeMeasure(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEquivalent(t *testing.T) {
	assert.True(t, reconcile.Equivalent(domain.KindMeasure, "1,200 KGS", "1200.00 kg"))
	assert.True(t, reconcile.Equivalent(domain.KindMeasure, "12000", "12,000.00"))
	assert.False(t, reconcile.Equivalent(domain.KindMeasure, "450 KG", "455 KG"))
	assert.False(t, reconcile.Equivalent(domain.KindMeasure, "450 KG", "450 LB"))
	assert.True(t, reconcile.Equivalent(domain.KindMeasure, "n/a", " n/a "))

	assert.True(t, reconcile.Equivalent(domain.KindText, "  Acme Imports ", "Acme Imports"))
	assert.False(t, reconcile.Equivalent(domain.KindText, "Acme Imports", "ACME IMPORTS"))
	assert.False(t, reconcile.Equivalent(domain.KindText, "1200 KG", "1,200 KG"))
}
