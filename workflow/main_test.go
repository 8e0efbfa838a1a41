package workflow_test

import (
	"context"
	"path/filepath"
	"testing"

	"bitbucket.org/frioaustral/plant_backend/config"
	"bitbucket.org/frioaustral/plant_backend/models"
	"bitbucket.org/frioaustral/plant_backend/utils"
	"github.com/shopspring/decimal"
)

func setupStore(t *testing.T) {
	t.Helper()
	t.Setenv("STORE_PATH", filepath.Join(t.TempDir(), "plant.db"))
	if err := config.ConnectStore(); err != nil {
		t.Fatalf("ConnectStore: %v", err)
	}
	t.Cleanup(func() { _ = config.GetStore().Close() })
}

func testContext(workCenter string) context.Context {
	ctx := context.Background()
	ctx = utils.SetUserIdInContext(ctx, "test-user")
	ctx = utils.SetUserNameInContext(ctx, "Test")
	return utils.SetWorkCenterInContext(ctx, workCenter)
}

func createTestLot(t *testing.T, workCenter string, details ...models.NewProductionDetail) *models.ProductionLot {
	t.Helper()
	ctx := testContext(workCenter)
	reception, err := models.CreateReception(ctx, &models.NewReception{
		GuideNumber: "G-1",
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
