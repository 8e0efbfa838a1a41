package models

import (
	"encoding/json"
	"fmt"

	"bitbucket.org/frioaustral/plant_backend/config"
	"github.com/google/uuid"
)

// Stable collection keys. Each key holds one whole JSON array (settings: one
// object) and is rewritten in full on every mutation. Renaming a key orphans
// previously persisted data, so these never change.
const (
	CollectionReceptions        = "receptions"
	CollectionProductionLots    = "production_lots"
	CollectionMaterials         = "materials"
	CollectionMaterialMovements = "material_movements"
	CollectionDispatches        = "dispatches"
	CollectionIqfPallets        = "iqf_pallets"
	CollectionEmployees         = "employees"
	CollectionUsers             = "users"
	CollectionSettings          = "settings"
)

type Getter = func(string) []byte
type Putter = func(string, []byte)

// LoadCollection decodes one collection inside a store update. Records
// persisted before a field existed decode with that field zeroed; consumers
// must treat new fields as optional.
func LoadCollection[T any](get Getter, key string) ([]T, error) {
	return decodeCollection[T](get(key), key)
}

func SaveCollection[T any](put Putter, key string, items []T) error {
	if items == nil {
		items = []T{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode collection %s: %w", key, err)
	}
	put(key, raw)
	return nil
}

// ListCollection reads a deep copy of one collection outside any mutation.
// The JSON round trip is the copy; callers can never alias store state.
func ListCollection[T any](key string) ([]T, error) {
	return decodeCollection[T](config.GetStore().Read(key), key)
}

func decodeCollection[T any](raw []byte, key string) ([]T, error) {
	if len(raw) == 0 {
		return []T{}, nil
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode collection %s: %w", key, err)
	}
	return items, nil
}

func newId() string {
	return uuid.NewString()
}
