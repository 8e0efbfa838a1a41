package models_test

import (
	"errors"
	"testing"
	"time"

	"bitbucket.org/frioaustral/plant_backend/config"
	"bitbucket.org/frioaustral/plant_backend/models"
	"github.com/shopspring/decimal"
)

func createLotWithDetails(t *testing.T, workCenter string, details ...models.NewProductionDetail) *models.ProductionLot {
	t.Helper()
	ctx := testContext(workCenter)
	reception, err := models.CreateReception(ctx, &models.NewReception{
		GuideNumber: "G-" + workCenter,
		Producer:    "Fundo Santa Rosa",
		Variety:     "Regina",
		Trays:       100,
		Pallets:     1,
		GrossWeight: decimal.NewFromInt(2000),
	})
	if err != nil {
		t.Fatalf("CreateReception: %v", err)
	}
	lot, err := models.CreateLot(ctx, &models.NewProductionLot{
		ReceptionIds: []string{reception.ID},
		Details:      details,
	})
	if err != nil {
		t.Fatalf("CreateLot: %v", err)
	}
	return lot
}

func TestDispatchRemovesFoliosFromAvailability(t *testing.T) {
	setupStore(t)
	ctx := testContext("NORTH")
	createLotWithDetails(t, "NORTH",
		models.NewProductionDetail{FormatName: "Caja 5kg", WeightPerUnit: decimal.NewFromInt(5), Units: 100, Pallets: 1, ManualFolio: "F1"},
		models.NewProductionDetail{FormatName: "Caja 5kg", WeightPerUnit: decimal.NewFromInt(5), Units: 80, Pallets: 1, ManualFolio: "F2"},
		models.NewProductionDetail{FormatName: "Caja 2kg", WeightPerUnit: decimal.NewFromInt(2), Units: 50, Pallets: 1},
	)

	dispatch, err := models.CreateDispatch(ctx, &models.NewDispatch{
		Guide:            "D-100",
		Client:           "Exportadora Sur",
		DispatchedFolios: []string{"F1"},
	})
	if err != nil {
		t.Fatalf("CreateDispatch: %v", err)
	}
	// totals derive from the matched rows, not the caller
	if !dispatch.TotalKilos.Equal(decimal.NewFromInt(500)) || dispatch.TotalUnits != 100 {
		t.Fatalf("expected 500kg/100u, got %s/%d", dispatch.TotalKilos, dispatch.TotalUnits)
	}
	if len(dispatch.LotIds) != 1 {
		t.Fatalf("expected one back-referenced lot, got %v", dispatch.LotIds)
	}

	available, err := models.AvailableFinishedGoods(ctx)
	if err != nil {
		t.Fatalf("AvailableFinishedGoods: %v", err)
	}
	if len(available) != 2 {
		t.Fatalf("expected 2 rows left, got %d", len(available))
	}
	for _, row := range available {
		if row.ManualFolio == "F1" {
			t.Fatal("dispatched folio still available")
		}
	}

	// a dispatched folio cannot be dispatched again
	_, err = models.CreateDispatch(ctx, &models.NewDispatch{
		Guide:            "D-101",
		Client:           "Exportadora Sur",
		DispatchedFolios: []string{"F1"},
	})
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on re-dispatch, got %v", err)
	}
}

func TestDispatchUnknownFolio(t *testing.T) {
	setupStore(t)
	createLotWithDetails(t, "NORTH",
		models.NewProductionDetail{FormatName: "Caja 5kg", WeightPerUnit: decimal.NewFromInt(5), Units: 10, Pallets: 1, ManualFolio: "F1"},
	)
	_, err := models.CreateDispatch(testContext("NORTH"), &models.NewDispatch{
		Guide:            "D-102",
		Client:           "Exportadora Sur",
		DispatchedFolios: []string{"NOPE"},
	})
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// Historical dispatches carry lotIds and no folios; they consume every current
// line of those lots.
func TestLegacyLotDispatchConsumesWholeLot(t *testing.T) {
	setupStore(t)
	ctx := testContext("NORTH")
	legacy := createLotWithDetails(t, "NORTH",
		models.NewProductionDetail{FormatName: "Caja 5kg", WeightPerUnit: decimal.NewFromInt(5), Units: 10, Pallets: 1, ManualFolio: "F1"},
		models.NewProductionDetail{FormatName: "Caja 2kg", WeightPerUnit: decimal.NewFromInt(2), Units: 20, Pallets: 1},
	)
	other := createLotWithDetails(t, "NORTH",
		models.NewProductionDetail{FormatName: "Caja 5kg", WeightPerUnit: decimal.NewFromInt(5), Units: 30, Pallets: 1, ManualFolio: "F2"},
	)

	err := config.GetStore().Update(func(get models.Getter, put models.Putter) error {
		dispatches, err := models.LoadCollection[models.Dispatch](get, models.CollectionDispatches)
		if err != nil {
			return err
		}
		dispatches = append(dispatches, models.Dispatch{
			ID:         "legacy-1",
			WorkCenter: "NORTH",
			Guide:      "D-OLD",
			Client:     "Exportadora Sur",
			Date:       time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
			LotIds:     []string{legacy.ID},
			CreatedAt:  time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
		})
		return models.SaveCollection(put, models.CollectionDispatches, dispatches)
	})
	if err != nil {
		t.Fatalf("seed legacy dispatch: %v", err)
	}

	available, err := models.AvailableFinishedGoods(ctx)
	if err != nil {
		t.Fatalf("AvailableFinishedGoods: %v", err)
	}
	if len(available) != 1 || available[0].LotId != other.ID {
		t.Fatalf("expected only the other lot's row, got %+v", available)
	}
}

func TestGroupedFinishedGoodsMergesByFolio(t *testing.T) {
	setupStore(t)
	ctx := testContext("NORTH")
	createLotWithDetails(t, "NORTH",
		models.NewProductionDetail{FormatName: "Caja 5kg", WeightPerUnit: decimal.NewFromInt(5), Units: 60, Pallets: 1, ManualFolio: "F1"},
		models.NewProductionDetail{FormatName: "Caja 2kg", WeightPerUnit: decimal.NewFromInt(2), Units: 40, Pallets: 0, ManualFolio: "F1"},
		models.NewProductionDetail{FormatName: "Caja 2kg", WeightPerUnit: decimal.NewFromInt(2), Units: 10, Pallets: 1},
		models.NewProductionDetail{FormatName: "Caja 2kg", WeightPerUnit: decimal.NewFromInt(2), Units: 15, Pallets: 1},
	)

	groups, err := models.GroupedFinishedGoods(ctx)
	if err != nil {
		t.Fatalf("GroupedFinishedGoods: %v", err)
	}
	// F1 merges its two lines; the two unlabelled lines never merge
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(groups))
	}
	var f1 *models.FinishedGoodsGroup
	for i := range groups {
		if groups[i].ManualFolio == "F1" {
			f1 = &groups[i]
		}
	}
	if f1 == nil {
		t.Fatal("missing F1 group")
	}
	if f1.Units != 100 || !f1.TotalKilos.Equal(decimal.NewFromInt(380)) {
		t.Fatalf("expected 100u/380kg in F1, got %du/%s", f1.Units, f1.TotalKilos)
	}
}
