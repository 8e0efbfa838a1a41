package models

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/frioaustral/plant_backend/config"
	"bitbucket.org/frioaustral/plant_backend/utils"
	"github.com/shopspring/decimal"
)

type IqfPalletItem struct {
	LotId    string          `json:"lot_id"`
	Kilos    decimal.Decimal `json:"kilos"`
	Producer string          `json:"producer"`
	Variety  string          `json:"variety"`
}

// IqfPallet consolidates the IQF by-product of one or more lots. The
// formatted* labels are free text for the printed tag, editable independently
// of the structured items.
type IqfPallet struct {
	ID                string          `json:"id"`
	WorkCenter        string          `json:"work_center"`
	Folio             string          `json:"folio"`
	CreationDate      time.Time       `json:"creation_date"`
	TotalKilos        decimal.Decimal `json:"total_kilos"`
	Trays             int             `json:"trays"`
	Items             []IqfPalletItem `json:"items"`
	Status            IqfPalletStatus `json:"status"`
	FormattedProducer string          `json:"formatted_producer"`
	FormattedVariety  string          `json:"formatted_variety"`
	DispatchGuide     string          `json:"dispatch_guide"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func (p IqfPallet) GetWorkCenter() string { return p.WorkCenter }

// IqfAvailability is one lot's not-yet-consolidated IQF kilos. Remaining is
// derived on every read: iqfKilos minus whatever existing pallets consumed,
// floored at zero. Deleting a pallet therefore returns kilos by construction.
type IqfAvailability struct {
	LotId          string          `json:"lot_id"`
	Producer       string          `json:"producer"`
	Variety        string          `json:"variety"`
	IqfKilos       decimal.Decimal `json:"iqf_kilos"`
	ConsumedKilos  decimal.Decimal `json:"consumed_kilos"`
	RemainingKilos decimal.Decimal `json:"remaining_kilos"`
}

// IqfRemainingByLot computes availability over a snapshot. Only lots that
// produced IQF kilos appear.
func IqfRemainingByLot(lots []ProductionLot, pallets []IqfPallet) []IqfAvailability {
	consumed := map[string]decimal.Decimal{}
	for _, pallet := range pallets {
		for _, item := range pallet.Items {
			consumed[item.LotId] = consumed[item.LotId].Add(item.Kilos)
		}
	}

	result := []IqfAvailability{}
	for _, lot := range lots {
		if !lot.IqfKilos.IsPositive() {
			continue
		}
		used := consumed[lot.ID]
		remaining := lot.IqfKilos.Sub(used)
		if remaining.IsNegative() {
			remaining = decimal.Zero
		}
		result = append(result, IqfAvailability{
			LotId:          lot.ID,
			Producer:       lot.LotProducer,
			Variety:        lot.LotVariety,
			IqfKilos:       lot.IqfKilos,
			ConsumedKilos:  used,
			RemainingKilos: remaining,
		})
	}
	return result
}

func IqfRemaining(ctx context.Context) ([]IqfAvailability, error) {
	workCenter, err := activeWorkCenter(ctx)
	if err != nil {
		return nil, err
	}
	lots, err := ListCollection[ProductionLot](CollectionProductionLots)
	if err != nil {
		return nil, err
	}
	pallets, err := ListCollection[IqfPallet](CollectionIqfPallets)
	if err != nil {
		return nil, err
	}
	return IqfRemainingByLot(filterByWorkCenter(lots, workCenter), filterByWorkCenter(pallets, workCenter)), nil
}

type NewIqfPallet struct {
	Folio        string    `json:"folio" validate:"required"`
	Trays        int       `json:"trays" validate:"min=0"`
	CreationDate time.Time `json:"creation_date"`
	LotIds       []string  `json:"lot_ids" validate:"required,min=1"`
}

// CreateIqfPallet consolidates the entire currently-remaining IQF amount of
// each selected lot; partial consolidation is not supported. The tag labels
// start as the " + "-joined distinct producers and varieties of the consumed
// lots.
func CreateIqfPallet(ctx context.Context, input *NewIqfPallet) (*IqfPallet, error) {
	workCenter, err := activeWorkCenter(ctx)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	now := time.Now()
	creationDate := input.CreationDate
	if creationDate.IsZero() {
		creationDate = now
	}

	var created IqfPallet
	store := config.GetStore()
	err = store.Update(func(get Getter, put Putter) error {
		lots, err := LoadCollection[ProductionLot](get, CollectionProductionLots)
		if err != nil {
			return err
		}
		pallets, err := LoadCollection[IqfPallet](get, CollectionIqfPallets)
		if err != nil {
			return err
		}

		availability := IqfRemainingByLot(filterByWorkCenter(lots, workCenter), filterByWorkCenter(pallets, workCenter))
		byLot := map[string]IqfAvailability{}
		for _, a := range availability {
			byLot[a.LotId] = a
		}

		pallet := IqfPallet{
			ID:           newId(),
			WorkCenter:   workCenter,
			Folio:        input.Folio,
			CreationDate: creationDate,
			Trays:        input.Trays,
			Status:       IqfPalletStatusPending,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		producers := []string{}
		varieties := []string{}
		total := decimal.Zero
		for _, lotId := range utils.UniqueSlice(input.LotIds) {
			a, ok := byLot[lotId]
			if !ok {
				return fmt.Errorf("lot %s has no IQF kilos: %w", lotId, ErrNotFound)
			}
			if !a.RemainingKilos.IsPositive() {
				return fmt.Errorf("lot %s has no remaining IQF kilos: %w", lotId, ErrInsufficientStock)
			}
			pallet.Items = append(pallet.Items, IqfPalletItem{
				LotId:    lotId,
				Kilos:    a.RemainingKilos,
				Producer: a.Producer,
				Variety:  a.Variety,
			})
			producers = append(producers, a.Producer)
			varieties = append(varieties, a.Variety)
			total = total.Add(a.RemainingKilos)
		}
		pallet.TotalKilos = total
		pallet.FormattedProducer = utils.JoinDistinct(producers, " + ")
		pallet.FormattedVariety = utils.JoinDistinct(varieties, " + ")

		pallets = append(pallets, pallet)
		if err := SaveCollection(put, CollectionIqfPallets, pallets); err != nil {
			return err
		}
		created = pallet
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

type UpdateIqfPalletInput struct {
	Folio             string `json:"folio"`
	Trays             int    `json:"trays" validate:"min=0"`
	FormattedProducer string `json:"formatted_producer"`
	FormattedVariety  string `json:"formatted_variety"`
}

// UpdateIqfPallet edits tag fields of a pending pallet. The structured items
// are immutable; only deletion returns kilos.
func UpdateIqfPallet(ctx context.Context, id string, input *UpdateIqfPalletInput) (*IqfPallet, error) {
	workCenter, err := activeWorkCenter(ctx)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	var updated IqfPallet
	store := config.GetStore()
	err = store.Update(func(get Getter, put Putter) error {
		pallets, err := LoadCollection[IqfPallet](get, CollectionIqfPallets)
		if err != nil {
			return err
		}
		index := findIqfPallet(pallets, workCenter, id)
		if index < 0 {
			return fmt.Errorf("iqf pallet %s: %w", id, ErrNotFound)
		}
		pallet := pallets[index]
		if pallet.Status == IqfPalletStatusDispatched {
			return fmt.Errorf("iqf pallet %s: %w", id, ErrAlreadyDispatched)
		}
		if input.Folio != "" {
			pallet.Folio = input.Folio
		}
		if input.Trays > 0 {
			pallet.Trays = input.Trays
		}
		if input.FormattedProducer != "" {
			pallet.FormattedProducer = input.FormattedProducer
		}
		if input.FormattedVariety != "" {
			pallet.FormattedVariety = input.FormattedVariety
		}
		pallet.UpdatedAt = time.Now()
		pallets[index] = pallet
		updated = pallet
		return SaveCollection(put, CollectionIqfPallets, pallets)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// RemoveIqfPallet deletes a pending pallet. No stock is destroyed: remaining
// kilos are computed, so removal puts the consumed kilos back in the pool.
func RemoveIqfPallet(ctx context.Context, id string) error {
	workCenter, err := activeWorkCenter(ctx)
	if err != nil {
		return err
	}

	store := config.GetStore()
	return store.Update(func(get Getter, put Putter) error {
		pallets, err := LoadCollection[IqfPallet](get, CollectionIqfPallets)
		if err != nil {
			return err
		}
		index := findIqfPallet(pallets, workCenter, id)
		if index < 0 {
			return fmt.Errorf("iqf pallet %s: %w", id, ErrNotFound)
		}
		if pallets[index].Status == IqfPalletStatusDispatched {
			return fmt.Errorf("iqf pallet %s: %w", id, ErrAlreadyDispatched)
		}
		pallets = append(pallets[:index], pallets[index+1:]...)
		return SaveCollection(put, CollectionIqfPallets, pallets)
	})
}

// DispatchIqfPallets moves a batch of pending pallets to DISPATCHED under one
// shared guide. Dispatched pallets are excluded from further edit, delete and
// consolidation.
func DispatchIqfPallets(ctx context.Context, ids []string, guide string) error {
	workCenter, err := activeWorkCenter(ctx)
	if err != nil {
		return err
	}
	if guide == "" {
		return fmt.Errorf("dispatch guide is required: %w", ErrInvariantViolation)
	}
	if len(ids) == 0 {
		return fmt.Errorf("no pallets selected: %w", ErrInvariantViolation)
	}

	store := config.GetStore()
	return store.Update(func(get Getter, put Putter) error {
		pallets, err := LoadCollection[IqfPallet](get, CollectionIqfPallets)
		if err != nil {
			return err
		}
		now := time.Now()
		for _, id := range utils.UniqueSlice(ids) {
			index := findIqfPallet(pallets, workCenter, id)
			if index < 0 {
				return fmt.Errorf("iqf pallet %s: %w", id, ErrNotFound)
			}
			if pallets[index].Status == IqfPalletStatusDispatched {
				return fmt.Errorf("iqf pallet %s: %w", id, ErrAlreadyDispatched)
			}
			pallets[index].Status = IqfPalletStatusDispatched
			pallets[index].DispatchGuide = guide
			pallets[index].UpdatedAt = now
		}
		return SaveCollection(put, CollectionIqfPallets, pallets)
	})
}

func ListIqfPallets(ctx context.Context) ([]IqfPallet, error) {
	workCenter, err := activeWorkCenter(ctx)
	if err != nil {
		return nil, err
	}
	pallets, err := ListCollection[IqfPallet](CollectionIqfPallets)
	if err != nil {
		return nil, err
	}
	return filterByWorkCenter(pallets, workCenter), nil
}

func findIqfPallet(pallets []IqfPallet, workCenter string, id string) int {
	for i, pallet := range pallets {
		if pallet.ID != id {
			continue
		}
		if workCenter != WorkCenterAll && pallet.WorkCenter != workCenter {
			continue
		}
		return i
	}
	return -1
}
