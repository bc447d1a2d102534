package reconcile_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"customsdesk/internal/domain"
	"customsdesk/internal/reconcile"
)

func TestMerge_ResolutionChoices(t *testing.T) {
	invoice := &domain.CanonicalDeclaration{}
	invoice.Goods.Weight = "450 KG"
	invoice.Goods.Value = "100"
	invoice.Consignee.Name = "Acme"
	bl := &domain.CanonicalDeclaration{}
	bl.Goods.Weight = "455 KG"
	bl.Goods.Value = "110"
	bl.Consignee.Name = "ACME LTD"

	discrepancies := reconcile.Detect(invoice, bl)
	require.Len(t, discrepancies, 3)

	working, err := reconcile.Merge(invoice, bl, discrepancies, map[domain.FieldID]domain.Resolution{
		domain.FieldWeight:        {Choice: domain.UseBLValue},
		domain.FieldValue:         {Choice: domain.UseInvoiceValue},
		domain.FieldConsigneeName: {Choice: domain.ManualOverride, Value: " Acme Imports Ltd "},
	})

	require.NoError(t, err)
	assert.Equal(t, "455 KG", working.Goods.Weight)
	assert.Equal(t, "100", working.Goods.Value)
	assert.Equal(t, "Acme Imports Ltd", working.Consignee.Name)
}

func TestMerge_MissingResolution(t *testing.T) {
	discrepancies := []domain.Discrepancy{{Field: domain.FieldWeight, InvoiceValue: "1", BLValue: "2"}}

	working, err := reconcile.Merge(&domain.CanonicalDeclaration{}, &domain.CanonicalDeclaration{}, discrepancies, nil)

	var incomplete *domain.IncompleteResolutionError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, domain.FieldWeight, incomplete.Field)
	assert.Nil(t, working)
}

func TestMerge_InvalidResolution(t *testing.T) {
	discrepancies := []domain.Discrepancy{{Field: domain.FieldWeight, InvoiceValue: "1", BLValue: "2"}}

	_, err := reconcile.Merge(nil, nil, discrepancies, map[domain.FieldID]domain.Resolution{
		domain.FieldWeight: {Choice: domain.ManualOverride},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidResolution)

	_, err = reconcile.Merge(nil, nil, discrepancies, map[domain.FieldID]domain.Resolution{
		domain.FieldWeight: {Choice: "guess"},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidResolution)
}

func TestMerge_KeepsFieldsFromEitherSource(t *testing.T) {
	invoice := &domain.CanonicalDeclaration{}
	invoice.Goods.Value = "5000"
	invoice.Documentation.InvoiceNumber = "INV-1"
	bl := &domain.CanonicalDeclaration{}
	bl.Transport.Vessel = "MAERSK EDMONTON"
	bl.BillOfLading.BLNumber = "BL-1"
	bl.BillOfLading.SealNumbers = []string{"S1", "S2"}

	working, err := reconcile.Merge(invoice, bl, nil, nil)

	require.NoError(t, err)
	for _, f := range domain.Fields() {
		if f.Present(invoice) && !f.Present(bl) {
			assert.True(t, f.Present(&working.CanonicalDeclaration), "field %s lost", f.ID)
		}
		if f.Present(bl) && !f.Present(invoice) {
			assert.True(t, f.Present(&working.CanonicalDeclaration), "field %s lost", f.ID)
		}
	}
	assert.Equal(t, []string{"S1", "S2"}, working.BillOfLading.SealNumbers)
}

func TestMerge_PrefersBLForBLSpecificFields(t *testing.T) {
	invoice := &domain.CanonicalDeclaration{}
	invoice.BillOfLading.PortOfLoading = "Ningbo"
	bl := &domain.CanonicalDeclaration{}
	bl.BillOfLading.PortOfLoading = "Ningbo"
	bl.BillOfLading.ContainerNumbers = []string{"MSKU1234565"}

	working, err := reconcile.Merge(invoice, bl, nil, nil)

	require.NoError(t, err)
	assert.Equal(t, "Ningbo", working.BillOfLading.PortOfLoading)
	assert.Equal(t, []string{"MSKU1234565"}, working.BillOfLading.ContainerNumbers)
}

func TestMerge_ListEntryResolution(t *testing.T) {
	invoice := &domain.CanonicalDeclaration{}
	invoice.BillOfLading.ContainerNumbers = []string{"A", "B"}
	bl := &domain.CanonicalDeclaration{}
	bl.BillOfLading.ContainerNumbers = []string{"A", "C", "D"}

	discrepancies := reconcile.Detect(invoice, bl)
	require.Len(t, discrepancies, 2)

	working, err := reconcile.Merge(invoice, bl, discrepancies, map[domain.FieldID]domain.Resolution{
		"ContainerNumbers[1]": {Choice: domain.UseInvoiceValue},
		"ContainerNumbers[2]": {Choice: domain.UseInvoiceValue},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, working.BillOfLading.ContainerNumbers)
}

func TestMerge_DoesNotAliasSources(t *testing.T) {
	bl := &domain.CanonicalDeclaration{}
	bl.BillOfLading.ContainerNumbers = []string{"A"}

	working, err := reconcile.Merge(&domain.CanonicalDeclaration{}, bl, nil, nil)
	require.NoError(t, err)
	working.BillOfLading.ContainerNumbers[0] = "Z"

	assert.Equal(t, "A", bl.BillOfLading.ContainerNumbers[0])
}

func TestMerge_WeightResolutionWritesBothWeightFields(t *testing.T) {
	invoice := &domain.CanonicalDeclaration{}
	invoice.Goods.Weight = "450 KG"
	bl := &domain.CanonicalDeclaration{}
	bl.BillOfLading.GrossWeight = "455 KG"

	discrepancies := reconcile.Detect(invoice, bl)
	require.Len(t, discrepancies, 1)

	working, err := reconcile.Merge(invoice, bl, discrepancies, map[domain.FieldID]domain.Resolution{
		domain.FieldWeight: {Choice: domain.UseBLValue},
	})
	require.NoError(t, err)
	assert.Equal(t, "455 KG", working.Goods.Weight)
	assert.Equal(t, "455 KG", working.BillOfLading.GrossWeight)

	working, err = reconcile.Merge(invoice, bl, discrepancies, map[domain.FieldID]domain.Resolution{
		domain.FieldWeight: {Choice: domain.UseInvoiceValue},
	})
	require.NoError(t, err)
	assert.Equal(t, "450 KG", working.Goods.Weight)
	assert.Equal(t, "450 KG", working.BillOfLading.GrossWeight)
}

func TestMerge_GrossWeightFillsMissingInvoiceWeight(t *testing.T) {
	bl := &domain.CanonicalDeclaration{}
	bl.Goods.Weight = "440 KG"
	bl.BillOfLading.GrossWeight = "455 KG"

	working, err := reconcile.Merge(&domain.CanonicalDeclaration{}, bl, nil, nil)

	require.NoError(t, err)
	assert.Equal(t, "455 KG", working.Goods.Weight)
	assert.Equal(t, "455 KG", working.BillOfLading.GrossWeight)
}

func TestMerge_SameInputsGiveIdenticalResults(t *testing.T) {
	invoice := &domain.CanonicalDeclaration{}
	invoice.Goods.Weight = "450 KG"
	invoice.Shipper.Name = "Shenzhen Widget Co"
	invoice.BillOfLading.ContainerNumbers = []string{"MSKU1234565", "TGHU0000001"}
	bl := &domain.CanonicalDeclaration{}
	bl.BillOfLading.GrossWeight = "455 KG"
	bl.Shipper.Name = "Shenzhen Widget Company"
	bl.BillOfLading.ContainerNumbers = []string{"MSKU1234565", "TGHU0000002"}
	bl.Transport.Vessel = "MAERSK EDMONTON"

	discrepancies := reconcile.Detect(invoice, bl)
	require.Len(t, discrepancies, 3)
	resolutions := map[domain.FieldID]domain.Resolution{
		domain.FieldWeight:      {Choice: domain.UseBLValue},
		domain.FieldShipperName: {Choice: domain.ManualOverride, Value: "Shenzhen Widget Co Ltd"},
		"ContainerNumbers[1]":   {Choice: domain.UseInvoiceValue},
	}

	first, err := reconcile.Merge(invoice, bl, discrepancies, resolutions)
	require.NoError(t, err)
	second, err := reconcile.Merge(invoice, bl, discrepancies, resolutions)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(firstJSON), string(secondJSON))
}
