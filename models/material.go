package models

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/frioaustral/plant_backend/config"
	"bitbucket.org/frioaustral/plant_backend/utils"
	"github.com/shopspring/decimal"
)

// Material is one inventory batch. Several batches may share a Name; the
// on-hand quantity of a material is the sum over its batches. Batches that
// reach zero are retained so their entry date and provider stay visible.
type Material struct {
	ID          string          `json:"id"`
	WorkCenter  string          `json:"work_center"`
	Name        string          `json:"name"`
	Provider    string          `json:"provider"`
	Quantity    decimal.Decimal `json:"quantity"`
	EntryDate   time.Time       `json:"entry_date"`
	GuideNumber string          `json:"guide_number"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (m Material) GetWorkCenter() string { return m.WorkCenter }

// MaterialMovement is an append-only ledger entry. Movements are never
// mutated or deleted.
type MaterialMovement struct {
	ID           string          `json:"id"`
	WorkCenter   string          `json:"work_center"`
	Date         time.Time       `json:"date"`
	Type         MovementType    `json:"type"`
	MaterialName string          `json:"material_name"`
	Quantity     decimal.Decimal `json:"quantity"`
	Reason       string          `json:"reason"`
}

func (m MaterialMovement) GetWorkCenter() string { return m.WorkCenter }

type NewMaterial struct {
	Name        string          `json:"name" validate:"required"`
	Provider    string          `json:"provider"`
	Quantity    decimal.Decimal `json:"quantity"`
	EntryDate   time.Time       `json:"entry_date"`
	GuideNumber string          `json:"guide_number"`
}

func (input *NewMaterial) validate() error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if input.Quantity.IsNegative() {
		return fmt.Errorf("quantity cannot be negative: %w", ErrInvariantViolation)
	}
	return nil
}

func CreateMaterial(ctx context.Context, input *NewMaterial) (*Material, error) {
	workCenter, err := activeWorkCenter(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	entryDate := input.EntryDate
	if entryDate.IsZero() {
		entryDate = now
	}
	material := Material{
		ID:          newId(),
		WorkCenter:  workCenter,
		Name:        input.Name,
		Provider:    input.Provider,
		Quantity:    input.Quantity,
		EntryDate:   entryDate,
		GuideNumber: input.GuideNumber,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	store := config.GetStore()
	err = store.Update(func(get Getter, put Putter) error {
		materials, err := LoadCollection[Material](get, CollectionMaterials)
		if err != nil {
			return err
		}
		materials = append(materials, material)
		if err := SaveCollection(put, CollectionMaterials, materials); err != nil {
			return err
		}
		if material.Quantity.IsZero() {
			return nil
		}
		return AppendMovement(get, put, MaterialMovement{
			ID:           newId(),
			WorkCenter:   workCenter,
			Date:         now,
			Type:         MovementTypeIn,
			MaterialName: material.Name,
			Quantity:     material.Quantity,
			Reason:       "material entry, guide " + material.GuideNumber,
		})
	})
	if err != nil {
		return nil, err
	}
	return &material, nil
}

func UpdateMaterial(ctx context.Context, id string, input *NewMaterial) (*Material, error) {
	workCenter, err := activeWorkCenter(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	var updated Material
	store := config.GetStore()
	err = store.Update(func(get Getter, put Putter) error {
		materials, err := LoadCollection[Material](get, CollectionMaterials)
		if err != nil {
			return err
		}
		index := -1
		for i, material := range materials {
			if material.ID == id && (workCenter == WorkCenterAll || material.WorkCenter == workCenter) {
				index = i
				break
			}
		}
		if index < 0 {
			return fmt.Errorf("material %s: %w", id, ErrNotFound)
		}

		material := materials[index]
		delta := input.Quantity.Sub(material.Quantity)
		material.Name = input.Name
		material.Provider = input.Provider
		material.Quantity = input.Quantity
		if !input.EntryDate.IsZero() {
			material.EntryDate = input.EntryDate
		}
		material.GuideNumber = input.GuideNumber
		material.UpdatedAt = time.Now()
		materials[index] = material
		updated = material

		if err := SaveCollection(put, CollectionMaterials, materials); err != nil {
			return err
		}
		if delta.IsZero() {
			return nil
		}
		movementType := MovementTypeIn
		if delta.IsNegative() {
			movementType = MovementTypeOut
			delta = delta.Neg()
		}
		return AppendMovement(get, put, MaterialMovement{
			ID:           newId(),
			WorkCenter:   material.WorkCenter,
			Date:         time.Now(),
			Type:         movementType,
			MaterialName: material.Name,
			Quantity:     delta,
			Reason:       "manual adjustment",
		})
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// AppendMovement stages one ledger entry inside a store update. The movement
// collection is strictly append-only; nothing in this codebase rewrites it.
func AppendMovement(get Getter, put Putter, movement MaterialMovement) error {
	movements, err := LoadCollection[MaterialMovement](get, CollectionMaterialMovements)
	if err != nil {
		return err
	}
	movements = append(movements, movement)
	return SaveCollection(put, CollectionMaterialMovements, movements)
}

// AvailableMaterial sums the batches of one material name within the active
// center.
func AvailableMaterial(ctx context.Context, name string) (decimal.Decimal, error) {
	workCenter, err := activeWorkCenter(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	materials, err := ListCollection[Material](CollectionMaterials)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, material := range filterByWorkCenter(materials, workCenter) {
		if material.Name == name {
			total = total.Add(material.Quantity)
		}
	}
	return total, nil
}

func ListMaterials(ctx context.Context) ([]Material, error) {
	workCenter, err := activeWorkCenter(ctx)
	if err != nil {
		return nil, err
	}
	materials, err := ListCollection[Material](CollectionMaterials)
	if err != nil {
		return nil, err
	}
	return filterByWorkCenter(materials, workCenter), nil
}

func ListMaterialMovements(ctx context.Context) ([]MaterialMovement, error) {
	workCenter, err := activeWorkCenter(ctx)
	if err != nil {
		return nil, err
	}
	movements, err := ListCollection[MaterialMovement](CollectionMaterialMovements)
	if err != nil {
		return nil, err
	}
	return filterByWorkCenter(movements, workCenter), nil
}
