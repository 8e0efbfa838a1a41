package workflow

import (
	"context"
	"fmt"
	"sort"
	"time"

	"bitbucket.org/frioaustral/plant_backend/config"
	"bitbucket.org/frioaustral/plant_backend/models"
	"bitbucket.org/frioaustral/plant_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// DepleteFIFO walks the given batches oldest entry date first, subtracting qty
// until it is covered or stock runs out. Batches that reach zero are kept at
// zero, never dropped. Returns the mutated copies and the actually-deducted
// amount, which is less than qty when stock is insufficient.
func DepleteFIFO(batches []models.Material, qty decimal.Decimal) ([]models.Material, decimal.Decimal) {
	sorted := make([]models.Material, len(batches))
	copy(sorted, batches)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].EntryDate.Equal(sorted[j].EntryDate) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].EntryDate.Before(sorted[j].EntryDate)
	})

	remaining := qty
	now := time.Now()
	for i := range sorted {
		if !remaining.IsPositive() {
			break
		}
		if !sorted[i].Quantity.IsPositive() {
			continue
		}
		if sorted[i].Quantity.GreaterThan(remaining) {
			sorted[i].Quantity = sorted[i].Quantity.Sub(remaining)
			sorted[i].UpdatedAt = now
			remaining = decimal.Zero
			break
		}
		remaining = remaining.Sub(sorted[i].Quantity)
		sorted[i].Quantity = decimal.Zero
		sorted[i].UpdatedAt = now
	}
	return sorted, qty.Sub(remaining)
}

type MaterialWithdrawal struct {
	MaterialName string          `json:"material_name"`
	Requested    decimal.Decimal `json:"requested"`
	Deducted     decimal.Decimal `json:"deducted"`
	Shortfall    decimal.Decimal `json:"shortfall"`
}

// RemoveMaterial withdraws qty of a material from the active center's batches,
// oldest first, and appends one OUT movement for the actually-deducted amount.
// On insufficient stock it still deducts and records what exists (the physical
// stock did leave the floor) but reports ErrInsufficientStock with the
// shortfall so the caller cannot miss it.
func RemoveMaterial(ctx context.Context, name string, qty decimal.Decimal, reason string) (*MaterialWithdrawal, error) {
	workCenter, err := models.ActiveWorkCenter(ctx)
	if err != nil {
		return nil, err
	}
	if !qty.IsPositive() {
		return nil, fmt.Errorf("withdrawal quantity must be positive: %w", models.ErrInvariantViolation)
	}

	withdrawal := MaterialWithdrawal{MaterialName: name, Requested: qty}
	store := config.GetStore()
	err = store.Update(func(get models.Getter, put models.Putter) error {
		materials, err := models.LoadCollection[models.Material](get, models.CollectionMaterials)
		if err != nil {
			return err
		}

		matching := []models.Material{}
		for _, material := range materials {
			if material.Name == name && (workCenter == models.WorkCenterAll || material.WorkCenter == workCenter) {
				matching = append(matching, material)
			}
		}

		depleted, deducted := DepleteFIFO(matching, qty)
		withdrawal.Deducted = deducted
		withdrawal.Shortfall = qty.Sub(deducted)

		byId := map[string]models.Material{}
		for _, material := range depleted {
			byId[material.ID] = material
		}
		for i, material := range materials {
			if updated, ok := byId[material.ID]; ok {
				materials[i] = updated
			}
		}
		if err := models.SaveCollection(put, models.CollectionMaterials, materials); err != nil {
			return err
		}

		if !deducted.IsPositive() {
			return nil
		}
		return models.AppendMovement(get, put, models.MaterialMovement{
			ID:           uuid.NewString(),
			WorkCenter:   workCenter,
			Date:         time.Now(),
			Type:         models.MovementTypeOut,
			MaterialName: name,
			Quantity:     deducted,
			Reason:       reason,
		})
	})
	if err != nil {
		return nil, err
	}

	if withdrawal.Shortfall.IsPositive() {
		config.GetLogger().WithFields(logrus.Fields{
			"module":       "workflow",
			"funcName":     "RemoveMaterial",
			"material":     name,
			"work_center":  workCenter,
			"requested":    qty.String(),
			"deducted":     withdrawal.Deducted.String(),
			"requested_by": userNameOrBlank(ctx),
		}).Warn("material withdrawal exceeded available stock")
		return &withdrawal, fmt.Errorf("material %s short by %s: %w", name, withdrawal.Shortfall, models.ErrInsufficientStock)
	}
	return &withdrawal, nil
}

func userNameOrBlank(ctx context.Context) string {
	name, _ := utils.GetUserNameFromContext(ctx)
	return name
}
