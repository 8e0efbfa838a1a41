package models_test

import (
	"testing"

	"bitbucket.org/frioaustral/plant_backend/models"
)

func receptionWithFolios(folios ...string) models.Reception {
	reception := models.Reception{ID: "r-" + folios[0]}
	for _, folio := range folios {
		reception.PalletDetails = append(reception.PalletDetails, models.PalletDetail{Folio: folio})
	}
	return reception
}

func TestNextFolioSequenceScansHistoryAndStaged(t *testing.T) {
	receptions := []models.Reception{
		receptionWithFolios("0001-512", "0007-512"),
		receptionWithFolios("0003-600"),
	}
	staged := []models.PalletDetail{{Folio: "0008-512"}}

	if got := models.NextFolioSequence(receptions, staged, "512"); got != 9 {
		t.Fatalf("expected next 9 for code 512, got %d", got)
	}
	if got := models.NextFolioSequence(receptions, nil, "600"); got != 4 {
		t.Fatalf("expected next 4 for code 600, got %d", got)
	}
	if got := models.NextFolioSequence(receptions, nil, "700"); got != 1 {
		t.Fatalf("expected next 1 for unseen code, got %d", got)
	}
}

func TestFormatFolioZeroPads(t *testing.T) {
	if got := models.FormatFolio(7, "512"); got != "0007-512" {
		t.Fatalf("expected 0007-512, got %s", got)
	}
	if got := models.FormatFolio(12345, "512"); got != "12345-512" {
		t.Fatalf("expected 12345-512, got %s", got)
	}
}

func TestSplitFolioRejectsFreeText(t *testing.T) {
	if _, _, ok := models.SplitFolio("PALLET A"); ok {
		t.Fatal("free-text folio should not parse")
	}
	if _, _, ok := models.SplitFolio("0001-"); ok {
		t.Fatal("folio without code should not parse")
	}
	sequence, code, ok := models.SplitFolio("0010-512")
	if !ok || sequence != 10 || code != "512" {
		t.Fatalf("expected 10/512, got %d/%s/%v", sequence, code, ok)
	}
}

// Changing the producer mid-entry rewrites every placeholder folio against the
// new code's history; pallets already on a real code keep their folios.
func TestReassignPlaceholderFolios(t *testing.T) {
	receptions := []models.Reception{receptionWithFolios("0007-512")}
	staged := []models.PalletDetail{
		{Folio: "0001-PENDING"},
		{Folio: "0003-600"},
		{Folio: "0002-PENDING"},
	}

	result := models.ReassignPlaceholderFolios(receptions, staged, "512")
	if result[0].Folio != "0008-512" {
		t.Fatalf("expected 0008-512, got %s", result[0].Folio)
	}
	if result[1].Folio != "0003-600" {
		t.Fatalf("non-placeholder folio must not change, got %s", result[1].Folio)
	}
	if result[2].Folio != "0009-512" {
		t.Fatalf("expected 0009-512, got %s", result[2].Folio)
	}

	// staged input must stay untouched
	if staged[0].Folio != "0001-PENDING" {
		t.Fatalf("input slice mutated: %s", staged[0].Folio)
	}
}

// The sequencer never emits a folio already present among persisted or staged
// pallets for the same code.
func TestFolioUniquenessProperty(t *testing.T) {
	receptions := []models.Reception{receptionWithFolios("0002-512", "0005-512")}
	staged := []models.PalletDetail{}
	seen := map[string]struct{}{"0002-512": {}, "0005-512": {}}

	for i := 0; i < 50; i++ {
		folio := models.FormatFolio(models.NextFolioSequence(receptions, staged, "512"), "512")
		if _, dup := seen[folio]; dup {
			t.Fatalf("duplicate folio %s at iteration %d", folio, i)
		}
		seen[folio] = struct{}{}
		staged = append(staged, models.PalletDetail{Folio: folio})
	}
	if len(staged) != 50 {
		t.Fatalf("expected 50 staged pallets, got %d", len(staged))
	}
}
