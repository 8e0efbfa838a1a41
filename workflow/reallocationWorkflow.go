package workflow

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/frioaustral/plant_backend/config"
	"bitbucket.org/frioaustral/plant_backend/models"
	"bitbucket.org/frioaustral/plant_backend/utils"
)

// ApplyStockUpdates runs one reallocation batch over the given lot snapshot,
// in array order. Each update resolves against the state left by the previous
// one. Any unresolved lot or detail index fails the whole batch; nothing is
// published on error.
func ApplyStockUpdates(lots []models.ProductionLot, workCenter string, updates []models.StockUpdate) error {
	now := time.Now()
	for _, update := range updates {
		sourceIndex := models.FindLot(lots, workCenter, update.LotId)
		if sourceIndex < 0 {
			return fmt.Errorf("production lot %s: %w", update.LotId, models.ErrNotFound)
		}
		source := &lots[sourceIndex]
		if update.DetailIndex >= len(source.Details) {
			return fmt.Errorf("lot %s has no detail %d: %w", update.LotId, update.DetailIndex, models.ErrNotFound)
		}

		switch {
		case update.Delete:
			source.Details = append(source.Details[:update.DetailIndex], source.Details[update.DetailIndex+1:]...)
			source.RecalcAggregates()
			source.UpdatedAt = now

		case update.Create:
			// split remainder: new line cloned from the source, traceability
			// fields carried over unchanged
			targetId := update.TargetLotId
			if targetId == "" {
				targetId = update.LotId
			}
			targetIndex := models.FindLot(lots, workCenter, targetId)
			if targetIndex < 0 {
				return fmt.Errorf("target lot %s: %w", targetId, models.ErrNotFound)
			}
			detail := source.Details[update.DetailIndex]
			applyUpdateFields(&detail, update)
			target := &lots[targetIndex]
			target.Details = append(target.Details, detail)
			target.RecalcAggregates()
			target.UpdatedAt = now

		case update.TargetLotId != "" && update.TargetLotId != update.LotId:
			// cross-lot move: remove from source, append to target
			targetIndex := models.FindLot(lots, workCenter, update.TargetLotId)
			if targetIndex < 0 {
				return fmt.Errorf("target lot %s: %w", update.TargetLotId, models.ErrNotFound)
			}
			detail := source.Details[update.DetailIndex]
			applyUpdateFields(&detail, update)
			source.Details = append(source.Details[:update.DetailIndex], source.Details[update.DetailIndex+1:]...)
			source.RecalcAggregates()
			source.UpdatedAt = now
			target := &lots[targetIndex]
			target.Details = append(target.Details, detail)
			target.RecalcAggregates()
			target.UpdatedAt = now

		default:
			applyUpdateFields(&source.Details[update.DetailIndex], update)
			source.RecalcAggregates()
			source.UpdatedAt = now
		}
	}
	return nil
}

func applyUpdateFields(detail *models.ProductionDetail, update models.StockUpdate) {
	detail.ManualFolio = update.ManualFolio
	detail.Units = update.Units
	detail.Pallets = update.Pallets
	detail.IsFullPallet = update.IsFullPallet
	detail.RecalcTotal()
}

// BulkUpdateStockItems applies a reallocation batch atomically: the whole
// batch runs over a deep copy of the lot collection and is published only if
// every update resolved.
func BulkUpdateStockItems(ctx context.Context, updates []models.StockUpdate) ([]models.ProductionLot, error) {
	workCenter, err := models.ActiveWorkCenter(ctx)
	if err != nil {
		return nil, err
	}
	for i := range updates {
		if err := utils.ValidateStruct(&updates[i]); err != nil {
			return nil, err
		}
		if updates[i].Delete && updates[i].Create {
			return nil, fmt.Errorf("update %d both creates and deletes: %w", i, models.ErrInvariantViolation)
		}
	}

	var result []models.ProductionLot
	store := config.GetStore()
	err = store.Update(func(get models.Getter, put models.Putter) error {
		lots, err := models.LoadCollection[models.ProductionLot](get, models.CollectionProductionLots)
		if err != nil {
			return err
		}
		if err := ApplyStockUpdates(lots, workCenter, updates); err != nil {
			return err
		}
		if err := models.SaveCollection(put, models.CollectionProductionLots, lots); err != nil {
			return err
		}
		result = lots
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteFolio removes every output line carrying the folio, across all of the
// active center's lots. There is no undo other than re-entry.
func DeleteFolio(ctx context.Context, folio string) (int, error) {
	workCenter, err := models.ActiveWorkCenter(ctx)
	if err != nil {
		return 0, err
	}
	if folio == "" {
		return 0, fmt.Errorf("folio is required: %w", models.ErrInvariantViolation)
	}

	removed := 0
	store := config.GetStore()
	err = store.Update(func(get models.Getter, put models.Putter) error {
		lots, err := models.LoadCollection[models.ProductionLot](get, models.CollectionProductionLots)
		if err != nil {
			return err
		}
		now := time.Now()
		for i := range lots {
			lot := &lots[i]
			if workCenter != models.WorkCenterAll && lot.WorkCenter != workCenter {
				continue
			}
			kept := lot.Details[:0:0]
			for _, detail := range lot.Details {
				if detail.ManualFolio == folio {
					removed++
					continue
				}
				kept = append(kept, detail)
			}
			if len(kept) != len(lot.Details) {
				lot.Details = kept
				lot.RecalcAggregates()
				lot.UpdatedAt = now
			}
		}
		if removed == 0 {
			return fmt.Errorf("folio %s: %w", folio, models.ErrNotFound)
		}
		return models.SaveCollection(put, models.CollectionProductionLots, lots)
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}
