package models

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/frioaustral/plant_backend/config"
	"bitbucket.org/frioaustral/plant_backend/utils"
	"github.com/shopspring/decimal"
)

type PalletDetail struct {
	Folio          string          `json:"folio"`
	Weight         decimal.Decimal `json:"weight"`
	Trays          int             `json:"trays"`
	Classification string          `json:"classification"`
	IsUsed         bool            `json:"is_used"`
}

// NetWeight is the tag weight for one pallet: its gross minus tray tare and
// one pallet tare.
func (d PalletDetail) NetWeight() decimal.Decimal {
	return NetWeight(d.Weight, d.Trays, 1)
}

type Reception struct {
	ID            string          `json:"id"`
	WorkCenter    string          `json:"work_center"`
	GuideNumber   string          `json:"guide_number"`
	Producer      string          `json:"producer"`
	Variety       string          `json:"variety"`
	OriginType    string          `json:"origin_type"`
	ReceptionDate time.Time       `json:"reception_date"`
	Trays         int             `json:"trays"`
	Pallets       int             `json:"pallets"`
	GrossWeight   decimal.Decimal `json:"gross_weight"`
	NetWeight     decimal.Decimal `json:"net_weight"`
	Status        ReceptionStatus `json:"status"`
	PalletDetails []PalletDetail  `json:"pallet_details,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (r Reception) GetWorkCenter() string { return r.WorkCenter }

type NewReception struct {
	GuideNumber   string          `json:"guide_number" validate:"required"`
	Producer      string          `json:"producer" validate:"required"`
	Variety       string          `json:"variety"`
	OriginType    string          `json:"origin_type"`
	ReceptionDate time.Time       `json:"reception_date"`
	Trays         int             `json:"trays" validate:"min=0"`
	Pallets       int             `json:"pallets" validate:"min=0"`
	GrossWeight   decimal.Decimal `json:"gross_weight"`
	PalletDetails []PalletDetail  `json:"pallet_details"`
}

func (input *NewReception) validate() error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if input.GrossWeight.IsNegative() {
		return fmt.Errorf("gross weight cannot be negative: %w", ErrInvariantViolation)
	}
	if len(input.PalletDetails) == 0 {
		return nil
	}

	// with per-pallet detail, the aggregates must equal the detail sums
	sumWeight := decimal.Zero
	sumTrays := 0
	for _, detail := range input.PalletDetails {
		if detail.Folio == "" {
			return fmt.Errorf("pallet detail without folio: %w", ErrInvariantViolation)
		}
		sumWeight = sumWeight.Add(detail.Weight)
		sumTrays += detail.Trays
	}
	if !sumWeight.Equal(input.GrossWeight) {
		return fmt.Errorf("pallet weights sum to %s, gross weight is %s: %w",
			sumWeight, input.GrossWeight, ErrInvariantViolation)
	}
	if sumTrays != input.Trays {
		return fmt.Errorf("pallet trays sum to %d, reception has %d: %w",
			sumTrays, input.Trays, ErrInvariantViolation)
	}
	return nil
}

func CreateReception(ctx context.Context, input *NewReception) (*Reception, error) {
	workCenter, err := activeWorkCenter(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	receptionDate := input.ReceptionDate
	if receptionDate.IsZero() {
		receptionDate = now
	}
	reception := Reception{
		ID:            newId(),
		WorkCenter:    workCenter,
		GuideNumber:   input.GuideNumber,
		Producer:      input.Producer,
		Variety:       input.Variety,
		OriginType:    input.OriginType,
		ReceptionDate: receptionDate,
		Trays:         input.Trays,
		Pallets:       input.Pallets,
		GrossWeight:   input.GrossWeight,
		NetWeight:     NetWeight(input.GrossWeight, input.Trays, input.Pallets),
		Status:        ReceptionStatusPending,
		PalletDetails: input.PalletDetails,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	store := config.GetStore()
	err = store.Update(func(get Getter, put Putter) error {
		receptions, err := LoadCollection[Reception](get, CollectionReceptions)
		if err != nil {
			return err
		}
		receptions = append(receptions, reception)
		return SaveCollection(put, CollectionReceptions, receptions)
	})
	if err != nil {
		return nil, err
	}
	return &reception, nil
}

func UpdateReception(ctx context.Context, id string, input *NewReception) (*Reception, error) {
	workCenter, err := activeWorkCenter(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	var updated Reception
	store := config.GetStore()
	err = store.Update(func(get Getter, put Putter) error {
		receptions, err := LoadCollection[Reception](get, CollectionReceptions)
		if err != nil {
			return err
		}
		index := findReception(receptions, workCenter, id)
		if index < 0 {
			return fmt.Errorf("reception %s: %w", id, ErrNotFound)
		}
		reception := receptions[index]
		if reception.Status == ReceptionStatusProcessed {
			return fmt.Errorf("reception %s is already processed: %w", id, ErrInvariantViolation)
		}
		for _, detail := range reception.PalletDetails {
			if detail.IsUsed {
				return fmt.Errorf("pallet %s already consumed by production: %w", detail.Folio, ErrInvariantViolation)
			}
		}

		reception.GuideNumber = input.GuideNumber
		reception.Producer = input.Producer
		reception.Variety = input.Variety
		reception.OriginType = input.OriginType
		if !input.ReceptionDate.IsZero() {
			reception.ReceptionDate = input.ReceptionDate
		}
		reception.Trays = input.Trays
		reception.Pallets = input.Pallets
		reception.GrossWeight = input.GrossWeight
		reception.NetWeight = NetWeight(input.GrossWeight, input.Trays, input.Pallets)
		reception.PalletDetails = input.PalletDetails
		reception.UpdatedAt = time.Now()

		receptions[index] = reception
		updated = reception
		return SaveCollection(put, CollectionReceptions, receptions)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func GetReception(ctx context.Context, id string) (*Reception, error) {
	workCenter, err := activeWorkCenter(ctx)
	if err != nil {
		return nil, err
	}
	receptions, err := ListCollection[Reception](CollectionReceptions)
	if err != nil {
		return nil, err
	}
	index := findReception(receptions, workCenter, id)
	if index < 0 {
		return nil, fmt.Errorf("reception %s: %w", id, ErrNotFound)
	}
	return &receptions[index], nil
}

func ListReceptions(ctx context.Context) ([]Reception, error) {
	workCenter, err := activeWorkCenter(ctx)
	if err != nil {
		return nil, err
	}
	receptions, err := ListCollection[Reception](CollectionReceptions)
	if err != nil {
		return nil, err
	}
	return filterByWorkCenter(receptions, workCenter), nil
}

func findReception(receptions []Reception, workCenter string, id string) int {
	for i, reception := range receptions {
		if reception.ID != id {
			continue
		}
		if workCenter != WorkCenterAll && reception.WorkCenter != workCenter {
			continue
		}
		return i
	}
	return -1
}

// markReceptionPalletsUsed flips is_used on every consumed folio and advances
// reception status. Receptions without per-pallet detail are marked PROCESSED
// in full by their first consuming lot; that simplification is irreversible.
func markReceptionPalletsUsed(receptions []Reception, receptionIds []string, folios []string) error {
	indexById := map[string]int{}
	for _, id := range receptionIds {
		found := false
		for i := range receptions {
			if receptions[i].ID == id {
				indexById[id] = i
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("reception %s: %w", id, ErrNotFound)
		}
	}

	remaining := utils.UniqueSlice(folios)
	for _, id := range receptionIds {
		reception := &receptions[indexById[id]]
		if len(reception.PalletDetails) == 0 {
			reception.Status = ReceptionStatusProcessed
			reception.UpdatedAt = time.Now()
			continue
		}

		unmatched := remaining[:0:0]
		for _, folio := range remaining {
			used := false
			for j := range reception.PalletDetails {
				detail := &reception.PalletDetails[j]
				if detail.Folio != folio {
					continue
				}
				if detail.IsUsed {
					return fmt.Errorf("pallet %s already consumed: %w", folio, ErrInvariantViolation)
				}
				detail.IsUsed = true
				used = true
				break
			}
			if !used {
				unmatched = append(unmatched, folio)
			}
		}
		remaining = unmatched

		allUsed := true
		for _, detail := range reception.PalletDetails {
			if !detail.IsUsed {
				allUsed = false
				break
			}
		}
		if allUsed {
			reception.Status = ReceptionStatusProcessed
		}
		reception.UpdatedAt = time.Now()
	}

	if len(remaining) > 0 {
		return fmt.Errorf("pallet %s not found in the consumed receptions: %w", remaining[0], ErrNotFound)
	}
	return nil
}
