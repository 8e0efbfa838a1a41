package models_test

import (
	"context"
	"errors"
	"testing"

	"bitbucket.org/frioaustral/plant_backend/models"
	"github.com/shopspring/decimal"
)

func createReceptionAt(t *testing.T, workCenter, guide string) *models.Reception {
	t.Helper()
	reception, err := models.CreateReception(testContext(workCenter), &models.NewReception{
		GuideNumber: guide,
		Producer:    "Fundo El Alamo",
		Trays:       100,
		Pallets:     1,
		GrossWeight: decimal.NewFromInt(1000),
	})
	if err != nil {
		t.Fatalf("CreateReception(%s): %v", workCenter, err)
	}
	return reception
}

func TestWorkCenterIsolation(t *testing.T) {
	setupStore(t)
	createReceptionAt(t, "NORTH", "G-1")
	createReceptionAt(t, "NORTH", "G-2")
	south := createReceptionAt(t, "SOUTH", "G-3")

	northList, err := models.ListReceptions(testContext("NORTH"))
	if err != nil {
		t.Fatalf("ListReceptions: %v", err)
	}
	if len(northList) != 2 {
		t.Fatalf("expected 2 NORTH receptions, got %d", len(northList))
	}

	// a SOUTH record is invisible to NORTH even when addressed by id
	if _, err := models.GetReception(testContext("NORTH"), south.ID); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound across centers, got %v", err)
	}

	all, err := models.ListReceptions(testContext(models.WorkCenterAll))
	if err != nil {
		t.Fatalf("ListReceptions ALL: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 receptions under ALL, got %d", len(all))
	}
	if _, err := models.GetReception(testContext(models.WorkCenterAll), south.ID); err != nil {
		t.Fatalf("ALL should see every center: %v", err)
	}
}

func TestWorkCenterRequired(t *testing.T) {
	setupStore(t)
	_, err := models.ListReceptions(context.Background())
	if !errors.Is(err, models.ErrWorkCenterRequired) {
		t.Fatalf("expected ErrWorkCenterRequired, got %v", err)
	}
}

func TestSwitchWorkCenterPersists(t *testing.T) {
	setupStore(t)

	current, err := models.PersistedWorkCenter()
	if err != nil {
		t.Fatalf("PersistedWorkCenter: %v", err)
	}
	if current != models.WorkCenterAll {
		t.Fatalf("fresh store should default to ALL, got %s", current)
	}

	if err := models.SwitchWorkCenter(testContext("NORTH"), "SOUTH"); err != nil {
		t.Fatalf("SwitchWorkCenter: %v", err)
	}
	current, err = models.PersistedWorkCenter()
	if err != nil {
		t.Fatalf("PersistedWorkCenter: %v", err)
	}
	if current != "SOUTH" {
		t.Fatalf("expected SOUTH, got %s", current)
	}

	if err := models.SwitchWorkCenter(testContext("NORTH"), ""); !errors.Is(err, models.ErrWorkCenterRequired) {
		t.Fatalf("expected ErrWorkCenterRequired for empty center, got %v", err)
	}
}

func TestResetModuleDataScopedToCenter(t *testing.T) {
	setupStore(t)
	createReceptionAt(t, "NORTH", "G-1")
	createReceptionAt(t, "SOUTH", "G-2")

	if err := models.ResetModuleData(testContext("NORTH"), "receptions"); err != nil {
		t.Fatalf("ResetModuleData: %v", err)
	}

	all, err := models.ListReceptions(testContext(models.WorkCenterAll))
	if err != nil {
		t.Fatalf("ListReceptions: %v", err)
	}
	if len(all) != 1 || all[0].WorkCenter != "SOUTH" {
		t.Fatalf("expected only the SOUTH reception to survive, got %+v", all)
	}
}

func TestResetModuleDataUnscopedUnderAll(t *testing.T) {
	setupStore(t)
	createReceptionAt(t, "NORTH", "G-1")
	createReceptionAt(t, "SOUTH", "G-2")

	if err := models.ResetModuleData(testContext(models.WorkCenterAll), "receptions"); err != nil {
		t.Fatalf("ResetModuleData: %v", err)
	}
	all, err := models.ListReceptions(testContext(models.WorkCenterAll))
	if err != nil {
		t.Fatalf("ListReceptions: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected empty collection, got %d records", len(all))
	}
}

func TestResetModuleDataUnknownModule(t *testing.T) {
	setupStore(t)
	if err := models.ResetModuleData(testContext("NORTH"), "bogus"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
