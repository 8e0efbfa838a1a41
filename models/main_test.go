package models_test

import (
	"context"
	"path/filepath"
	"testing"

	"bitbucket.org/frioaustral/plant_backend/config"
	"bitbucket.org/frioaustral/plant_backend/utils"
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
