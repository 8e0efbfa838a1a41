package models

import (
	"context"
	"encoding/json"
	"fmt"

	"bitbucket.org/frioaustral/plant_backend/config"
	"bitbucket.org/frioaustral/plant_backend/utils"
)

// WorkCenterAll disables work-center filtering for reads and makes destructive
// resets unscoped. It is a session value, never stamped onto records.
const WorkCenterAll = "ALL"

// Resource is anything partitioned by work center.
type Resource interface {
	GetWorkCenter() string
}

type Settings struct {
	ActiveWorkCenter string `json:"active_work_center"`
}

func filterByWorkCenter[T Resource](items []T, workCenter string) []T {
	if workCenter == WorkCenterAll {
		return items
	}
	result := make([]T, 0, len(items))
	for _, item := range items {
		if item.GetWorkCenter() == workCenter {
			result = append(result, item)
		}
	}
	return result
}

func activeWorkCenter(ctx context.Context) (string, error) {
	workCenter, ok := utils.GetWorkCenterFromContext(ctx)
	if !ok || workCenter == "" {
		return "", ErrWorkCenterRequired
	}
	return workCenter, nil
}

// ActiveWorkCenter reports the center the request operates under.
func ActiveWorkCenter(ctx context.Context) (string, error) {
	return activeWorkCenter(ctx)
}

// PersistedWorkCenter returns the center saved by the last SwitchWorkCenter.
// Defaults to ALL on a fresh store.
func PersistedWorkCenter() (string, error) {
	raw := config.GetStore().Read(CollectionSettings)
	if len(raw) == 0 {
		return WorkCenterAll, nil
	}
	var settings Settings
	if err := json.Unmarshal(raw, &settings); err != nil {
		return "", fmt.Errorf("decode settings: %w", err)
	}
	if settings.ActiveWorkCenter == "" {
		return WorkCenterAll, nil
	}
	return settings.ActiveWorkCenter, nil
}

// SwitchWorkCenter persists the active center. Existing records are not
// migrated or re-stamped; only the filter/stamp applied from now on changes.
func SwitchWorkCenter(ctx context.Context, workCenter string) error {
	if workCenter == "" {
		return ErrWorkCenterRequired
	}
	store := config.GetStore()
	return store.Update(func(get Getter, put Putter) error {
		raw, err := json.Marshal(Settings{ActiveWorkCenter: workCenter})
		if err != nil {
			return fmt.Errorf("encode settings: %w", err)
		}
		put(CollectionSettings, raw)
		return nil
	})
}

// moduleCollections maps a resettable module key to the collections it owns.
var moduleCollections = map[string][]string{
	"receptions": {CollectionReceptions},
	"production": {CollectionProductionLots},
	"materials":  {CollectionMaterials, CollectionMaterialMovements},
	"dispatches": {CollectionDispatches},
	"iqf":        {CollectionIqfPallets},
	"employees":  {CollectionEmployees},
}

// ResetModuleData clears one module's collections. Scoped to the active
// center; under ALL the reset is unscoped and wipes every center at once.
func ResetModuleData(ctx context.Context, moduleKey string) error {
	workCenter, err := activeWorkCenter(ctx)
	if err != nil {
		return err
	}
	keys, ok := moduleCollections[moduleKey]
	if !ok {
		return fmt.Errorf("unknown module %q: %w", moduleKey, ErrNotFound)
	}

	store := config.GetStore()
	return store.Update(func(get Getter, put Putter) error {
		for _, key := range keys {
			if err := resetScoped(get, put, key, workCenter); err != nil {
				return err
			}
		}
		return nil
	})
}

// resetScoped drops records of the active center from one collection, keeping
// other centers' records intact. Works on the raw records so it does not need
// a type switch per collection.
func resetScoped(get Getter, put Putter, key string, workCenter string) error {
	if workCenter == WorkCenterAll {
		put(key, []byte("[]"))
		return nil
	}
	type scopedRecord struct {
		WorkCenter string `json:"work_center"`
	}
	records, err := LoadCollection[json.RawMessage](get, key)
	if err != nil {
		return err
	}
	kept := make([]json.RawMessage, 0, len(records))
	for _, raw := range records {
		var record scopedRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			return fmt.Errorf("decode record in %s: %w", key, err)
		}
		if record.WorkCenter != workCenter {
			kept = append(kept, raw)
		}
	}
	return SaveCollection(put, key, kept)
}
