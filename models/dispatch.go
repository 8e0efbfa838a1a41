package models

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/frioaustral/plant_backend/config"
	"bitbucket.org/frioaustral/plant_backend/utils"
	"github.com/shopspring/decimal"
)

// Dispatch is one outbound shipment. dispatchedFolios is the authoritative
// list of finished-goods folios removed from availability; lotIds is an
// informational back-reference. Historical records may carry lotIds with no
// folios, which means "every line of these lots is consumed" (see
// AvailableRows) — that legacy form is read-tolerated but no longer written.
type Dispatch struct {
	ID               string          `json:"id"`
	WorkCenter       string          `json:"work_center"`
	Guide            string          `json:"guide"`
	Client           string          `json:"client"`
	Date             time.Time       `json:"date"`
	LotIds           []string        `json:"lot_ids"`
	DispatchedFolios []string        `json:"dispatched_folios"`
	TotalKilos       decimal.Decimal `json:"total_kilos"`
	TotalUnits       int             `json:"total_units"`
	CreatedAt        time.Time       `json:"created_at"`
}

func (d Dispatch) GetWorkCenter() string { return d.WorkCenter }

type NewDispatch struct {
	Guide            string    `json:"guide" validate:"required"`
	Client           string    `json:"client" validate:"required"`
	Date             time.Time `json:"date"`
	DispatchedFolios []string  `json:"dispatched_folios" validate:"required,min=1"`
}

// CreateDispatch removes the given folios from availability. Every folio must
// currently be available; the totals and the lot back-references are derived
// from the matched rows, never trusted from the caller.
func CreateDispatch(ctx context.Context, input *NewDispatch) (*Dispatch, error) {
	workCenter, err := activeWorkCenter(ctx)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	now := time.Now()
	date := input.Date
	if date.IsZero() {
		date = now
	}

	var created Dispatch
	store := config.GetStore()
	err = store.Update(func(get Getter, put Putter) error {
		lots, err := LoadCollection[ProductionLot](get, CollectionProductionLots)
		if err != nil {
			return err
		}
		dispatches, err := LoadCollection[Dispatch](get, CollectionDispatches)
		if err != nil {
			return err
		}

		available := AvailableRows(filterByWorkCenter(lots, workCenter), filterByWorkCenter(dispatches, workCenter))
		rowsByFolio := map[string][]FinishedGoodsRow{}
		for _, row := range available {
			if row.ManualFolio != "" {
				rowsByFolio[row.ManualFolio] = append(rowsByFolio[row.ManualFolio], row)
			}
		}

		folios := utils.UniqueSlice(input.DispatchedFolios)
		totalKilos := decimal.Zero
		totalUnits := 0
		lotIds := []string{}
		for _, folio := range folios {
			rows, ok := rowsByFolio[folio]
			if !ok {
				return fmt.Errorf("folio %s is not available for dispatch: %w", folio, ErrNotFound)
			}
			for _, row := range rows {
				totalKilos = totalKilos.Add(row.TotalKilos)
				totalUnits += row.Units
				if !utils.ContainsString(lotIds, row.LotId) {
					lotIds = append(lotIds, row.LotId)
				}
			}
		}

		dispatch := Dispatch{
			ID:               newId(),
			WorkCenter:       workCenter,
			Guide:            input.Guide,
			Client:           input.Client,
			Date:             date,
			LotIds:           lotIds,
			DispatchedFolios: folios,
			TotalKilos:       totalKilos,
			TotalUnits:       totalUnits,
			CreatedAt:        now,
		}
		dispatches = append(dispatches, dispatch)
		if err := SaveCollection(put, CollectionDispatches, dispatches); err != nil {
			return err
		}
		created = dispatch
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func ListDispatches(ctx context.Context) ([]Dispatch, error) {
	workCenter, err := activeWorkCenter(ctx)
	if err != nil {
		return nil, err
	}
	dispatches, err := ListCollection[Dispatch](CollectionDispatches)
	if err != nil {
		return nil, err
	}
	return filterByWorkCenter(dispatches, workCenter), nil
}
