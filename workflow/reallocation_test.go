package workflow_test

import (
	"errors"
	"testing"

	"bitbucket.org/frioaustral/plant_backend/models"
	"bitbucket.org/frioaustral/plant_backend/workflow"
	"github.com/shopspring/decimal"
)

// Splitting a 144-unit line: shrink the source to 94 and create the 50-unit
// remainder on another lot. Totals rebalance to 598.29 and 318.24 at a unit
// weight of 6.3648, and both lots' producedKilos follow.
func TestBulkUpdateSplitsLine(t *testing.T) {
	setupStore(t)
	ctx := testContext("NORTH")
	weight := decimal.NewFromFloat(6.3648)
	source := createTestLot(t, "NORTH",
		models.NewProductionDetail{FormatName: "Caja 8.2kg", WeightPerUnit: weight, Units: 144, Pallets: 1, ManualFolio: "F1"},
	)
	target := createTestLot(t, "NORTH")

	lots, err := workflow.BulkUpdateStockItems(ctx, []models.StockUpdate{
		{LotId: source.ID, DetailIndex: 0, ManualFolio: "F1", Units: 94, Pallets: 1},
		{LotId: source.ID, DetailIndex: 0, TargetLotId: target.ID, ManualFolio: "F1-B", Units: 50, Pallets: 1, Create: true},
	})
	if err != nil {
		t.Fatalf("BulkUpdateStockItems: %v", err)
	}

	var updatedSource, updatedTarget *models.ProductionLot
	for i := range lots {
		switch lots[i].ID {
		case source.ID:
			updatedSource = &lots[i]
		case target.ID:
			updatedTarget = &lots[i]
		}
	}
	if updatedSource == nil || updatedTarget == nil {
		t.Fatal("missing lots in result")
	}

	if updatedSource.Details[0].Units != 94 {
		t.Fatalf("expected source at 94 units, got %d", updatedSource.Details[0].Units)
	}
	if !updatedSource.Details[0].TotalKilos.Equal(decimal.NewFromFloat(598.29)) {
		t.Fatalf("expected 598.29, got %s", updatedSource.Details[0].TotalKilos)
	}
	if !updatedSource.ProducedKilos.Equal(decimal.NewFromFloat(598.29)) {
		t.Fatalf("expected producedKilos 598.29, got %s", updatedSource.ProducedKilos)
	}

	if len(updatedTarget.Details) != 1 || updatedTarget.Details[0].Units != 50 {
		t.Fatalf("expected one 50-unit line on target, got %+v", updatedTarget.Details)
	}
	if !updatedTarget.Details[0].TotalKilos.Equal(decimal.NewFromFloat(318.24)) {
		t.Fatalf("expected 318.24, got %s", updatedTarget.Details[0].TotalKilos)
	}
	if !updatedTarget.ProducedKilos.Equal(decimal.NewFromFloat(318.24)) {
		t.Fatalf("expected producedKilos 318.24, got %s", updatedTarget.ProducedKilos)
	}
	// the split line keeps the source's traceability
	if updatedTarget.Details[0].OriginProducer != "Fundo Santa Rosa" {
		t.Fatalf("split line lost its origin: %+v", updatedTarget.Details[0])
	}
}

func TestBulkUpdateMovesLineAcrossLots(t *testing.T) {
	setupStore(t)
	ctx := testContext("NORTH")
	source := createTestLot(t, "NORTH",
		models.NewProductionDetail{FormatName: "Caja 5kg", WeightPerUnit: decimal.NewFromInt(5), Units: 40, Pallets: 1, ManualFolio: "F1"},
		models.NewProductionDetail{FormatName: "Caja 2kg", WeightPerUnit: decimal.NewFromInt(2), Units: 20, Pallets: 1, ManualFolio: "F2"},
	)
	target := createTestLot(t, "NORTH")

	lots, err := workflow.BulkUpdateStockItems(ctx, []models.StockUpdate{
		{LotId: source.ID, DetailIndex: 0, TargetLotId: target.ID, ManualFolio: "F1", Units: 40, Pallets: 1},
	})
	if err != nil {
		t.Fatalf("BulkUpdateStockItems: %v", err)
	}

	for i := range lots {
		switch lots[i].ID {
		case source.ID:
			if len(lots[i].Details) != 1 || lots[i].Details[0].ManualFolio != "F2" {
				t.Fatalf("expected only F2 left on source, got %+v", lots[i].Details)
			}
			if !lots[i].ProducedKilos.Equal(decimal.NewFromInt(40)) {
				t.Fatalf("expected source producedKilos 40, got %s", lots[i].ProducedKilos)
			}
		case target.ID:
			if len(lots[i].Details) != 1 || lots[i].Details[0].ManualFolio != "F1" {
				t.Fatalf("expected F1 on target, got %+v", lots[i].Details)
			}
			if lots[i].Details[0].OriginProducer != "Fundo Santa Rosa" {
				t.Fatalf("moved line lost its origin: %+v", lots[i].Details[0])
			}
		}
	}
}

func TestBulkUpdateDeletesLine(t *testing.T) {
	setupStore(t)
	ctx := testContext("NORTH")
	lot := createTestLot(t, "NORTH",
		models.NewProductionDetail{FormatName: "Caja 5kg", WeightPerUnit: decimal.NewFromInt(5), Units: 40, Pallets: 1, ManualFolio: "F1"},
		models.NewProductionDetail{FormatName: "Caja 2kg", WeightPerUnit: decimal.NewFromInt(2), Units: 20, Pallets: 1, ManualFolio: "F2"},
	)

	lots, err := workflow.BulkUpdateStockItems(ctx, []models.StockUpdate{
		{LotId: lot.ID, DetailIndex: 0, Delete: true},
	})
	if err != nil {
		t.Fatalf("BulkUpdateStockItems: %v", err)
	}
	for i := range lots {
		if lots[i].ID != lot.ID {
			continue
		}
		if len(lots[i].Details) != 1 || lots[i].Details[0].ManualFolio != "F2" {
			t.Fatalf("expected only F2 left, got %+v", lots[i].Details)
		}
		if !lots[i].ProducedKilos.Equal(decimal.NewFromInt(40)) {
			t.Fatalf("expected producedKilos 40, got %s", lots[i].ProducedKilos)
		}
	}
}

// A batch with an unresolvable target publishes nothing: the first update in
// the batch must not survive the failure of the second.
func TestBulkUpdateIsAllOrNothing(t *testing.T) {
	setupStore(t)
	ctx := testContext("NORTH")
	lot := createTestLot(t, "NORTH",
		models.NewProductionDetail{FormatName: "Caja 5kg", WeightPerUnit: decimal.NewFromInt(5), Units: 40, Pallets: 1, ManualFolio: "F1"},
	)

	_, err := workflow.BulkUpdateStockItems(ctx, []models.StockUpdate{
		{LotId: lot.ID, DetailIndex: 0, ManualFolio: "F1", Units: 10, Pallets: 1},
		{LotId: lot.ID, DetailIndex: 0, TargetLotId: "missing", ManualFolio: "F1", Units: 5, Pallets: 1},
	})
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	refreshed, err := models.GetLot(ctx, lot.ID)
	if err != nil {
		t.Fatalf("GetLot: %v", err)
	}
	if refreshed.Details[0].Units != 40 {
		t.Fatalf("failed batch must leave lots untouched, got %d units", refreshed.Details[0].Units)
	}
}

func TestBulkUpdateRejectsCreateAndDelete(t *testing.T) {
	setupStore(t)
	lot := createTestLot(t, "NORTH",
		models.NewProductionDetail{FormatName: "Caja 5kg", WeightPerUnit: decimal.NewFromInt(5), Units: 40, Pallets: 1},
	)
	_, err := workflow.BulkUpdateStockItems(testContext("NORTH"), []models.StockUpdate{
		{LotId: lot.ID, DetailIndex: 0, Create: true, Delete: true},
	})
	if !errors.Is(err, models.ErrInvariantViolation) {
		t.Fatalf("expected ErrInvariantViolation, got %v", err)
	}
}

func TestDeleteFolioAcrossLots(t *testing.T) {
	setupStore(t)
	ctx := testContext("NORTH")
	a := createTestLot(t, "NORTH",
		models.NewProductionDetail{FormatName: "Caja 5kg", WeightPerUnit: decimal.NewFromInt(5), Units: 40, Pallets: 1, ManualFolio: "F1"},
		models.NewProductionDetail{FormatName: "Caja 2kg", WeightPerUnit: decimal.NewFromInt(2), Units: 20, Pallets: 1, ManualFolio: "F2"},
	)
	b := createTestLot(t, "NORTH",
		models.NewProductionDetail{FormatName: "Caja 5kg", WeightPerUnit: decimal.NewFromInt(5), Units: 10, Pallets: 1, ManualFolio: "F1"},
	)

	removed, err := workflow.DeleteFolio(ctx, "F1")
	if err != nil {
		t.Fatalf("DeleteFolio: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 lines removed, got %d", removed)
	}

	refreshedA, err := models.GetLot(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetLot: %v", err)
	}
	if len(refreshedA.Details) != 1 || refreshedA.Details[0].ManualFolio != "F2" {
		t.Fatalf("expected only F2 left on first lot, got %+v", refreshedA.Details)
	}
	refreshedB, err := models.GetLot(ctx, b.ID)
	if err != nil {
		t.Fatalf("GetLot: %v", err)
	}
	if len(refreshedB.Details) != 0 {
		t.Fatalf("expected empty second lot, got %+v", refreshedB.Details)
	}

	if _, err := workflow.DeleteFolio(ctx, "F1"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on repeat, got %v", err)
	}
}
