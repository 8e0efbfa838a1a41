package models

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/frioaustral/plant_backend/config"
	"bitbucket.org/frioaustral/plant_backend/utils"
	"github.com/shopspring/decimal"
)

// ProductionDetail is one finished-goods output line. The origin* fields are
// denormalized traceability and travel with the line: after a cross-lot move
// they can differ from the owning lot's own producer/variety/date.
type ProductionDetail struct {
	FormatName     string          `json:"format_name"`
	WeightPerUnit  decimal.Decimal `json:"weight_per_unit"`
	Units          int             `json:"units"`
	Pallets        int             `json:"pallets"`
	ManualFolio    string          `json:"manual_folio"`
	TotalKilos     decimal.Decimal `json:"total_kilos"`
	OriginProducer string          `json:"origin_producer"`
	OriginVariety  string          `json:"origin_variety"`
	OriginDate     time.Time       `json:"origin_date"`
	IsFullPallet   bool            `json:"is_full_pallet"`
	ProductionLine string          `json:"production_line"`
}

// RecalcTotal restores the line invariant totalKilos = units x weightPerUnit.
// Must run after every mutation of units or weight.
func (d *ProductionDetail) RecalcTotal() {
	d.TotalKilos = decimal.NewFromInt(int64(d.Units)).Mul(d.WeightPerUnit).Round(2)
}

type ProductionLot struct {
	ID                  string             `json:"id"`
	WorkCenter          string             `json:"work_center"`
	ReceptionIds        []string           `json:"reception_ids"`
	UsedPalletFolios    []string           `json:"used_pallet_folios"`
	TotalInputNetWeight decimal.Decimal    `json:"total_input_net_weight"`
	CreatedAt           time.Time          `json:"created_at"`
	LotProducer         string             `json:"lot_producer"`
	LotVariety          string             `json:"lot_variety"`
	Details             []ProductionDetail `json:"details"`
	ProducedKilos       decimal.Decimal    `json:"produced_kilos"`
	IqfKilos            decimal.Decimal    `json:"iqf_kilos"`
	MermaKilos          decimal.Decimal    `json:"merma_kilos"`
	WasteKilos          decimal.Decimal    `json:"waste_kilos"`
	YieldPercentage     decimal.Decimal    `json:"yield_percentage"`
	UpdatedAt           time.Time          `json:"updated_at"`
}

func (lot ProductionLot) GetWorkCenter() string { return lot.WorkCenter }

// RecalcAggregates restores producedKilos and yieldPercentage from the
// current details. Yield is 0 when there was no input weight.
func (lot *ProductionLot) RecalcAggregates() {
	produced := decimal.Zero
	for _, detail := range lot.Details {
		produced = produced.Add(detail.TotalKilos)
	}
	lot.ProducedKilos = produced
	if lot.TotalInputNetWeight.IsPositive() {
		lot.YieldPercentage = produced.Div(lot.TotalInputNetWeight).Mul(decimal.NewFromInt(100)).Round(2)
	} else {
		lot.YieldPercentage = decimal.Zero
	}
}

type NewProductionDetail struct {
	FormatName     string          `json:"format_name" validate:"required"`
	WeightPerUnit  decimal.Decimal `json:"weight_per_unit"`
	Units          int             `json:"units" validate:"min=0"`
	Pallets        int             `json:"pallets" validate:"min=0"`
	ManualFolio    string          `json:"manual_folio"`
	IsFullPallet   bool            `json:"is_full_pallet"`
	ProductionLine string          `json:"production_line"`
}

type NewProductionLot struct {
	ReceptionIds        []string              `json:"reception_ids" validate:"required,min=1"`
	UsedPalletFolios    []string              `json:"used_pallet_folios"`
	TotalInputNetWeight decimal.Decimal       `json:"total_input_net_weight"`
	Details             []NewProductionDetail `json:"details" validate:"dive"`
	IqfKilos            decimal.Decimal       `json:"iqf_kilos"`
	MermaKilos          decimal.Decimal       `json:"merma_kilos"`
	WasteKilos          decimal.Decimal       `json:"waste_kilos"`
}

func (input *NewProductionLot) validate() error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	for _, detail := range input.Details {
		if detail.WeightPerUnit.IsNegative() {
			return fmt.Errorf("weight per unit cannot be negative: %w", ErrInvariantViolation)
		}
	}
	return nil
}

// CreateLot inserts the lot and consumes its input pallets: every folio in
// usedPalletFolios flips to is_used on its owning reception, and receptions
// whose pallets are all used (or that have no per-pallet detail) go PROCESSED.
func CreateLot(ctx context.Context, input *NewProductionLot) (*ProductionLot, error) {
	workCenter, err := activeWorkCenter(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	var created ProductionLot
	store := config.GetStore()
	err = store.Update(func(get Getter, put Putter) error {
		receptions, err := LoadCollection[Reception](get, CollectionReceptions)
		if err != nil {
			return err
		}
		for _, id := range input.ReceptionIds {
			if findReception(receptions, workCenter, id) < 0 {
				return fmt.Errorf("reception %s: %w", id, ErrNotFound)
			}
		}

		// denormalize producer/variety/date from the first consumed reception
		first := receptions[findReception(receptions, workCenter, input.ReceptionIds[0])]
		inputWeight := input.TotalInputNetWeight
		if inputWeight.IsZero() {
			inputWeight = consumedNetWeight(receptions, input.ReceptionIds, input.UsedPalletFolios)
		}

		if err := markReceptionPalletsUsed(receptions, input.ReceptionIds, input.UsedPalletFolios); err != nil {
			return err
		}

		lot := ProductionLot{
			ID:                  newId(),
			WorkCenter:          workCenter,
			ReceptionIds:        utils.UniqueSlice(input.ReceptionIds),
			UsedPalletFolios:    utils.UniqueSlice(input.UsedPalletFolios),
			TotalInputNetWeight: inputWeight,
			CreatedAt:           now,
			LotProducer:         first.Producer,
			LotVariety:          first.Variety,
			IqfKilos:            input.IqfKilos,
			MermaKilos:          input.MermaKilos,
			WasteKilos:          input.WasteKilos,
			UpdatedAt:           now,
		}
		for _, d := range input.Details {
			detail := ProductionDetail{
				FormatName:     d.FormatName,
				WeightPerUnit:  d.WeightPerUnit,
				Units:          d.Units,
				Pallets:        d.Pallets,
				ManualFolio:    d.ManualFolio,
				OriginProducer: first.Producer,
				OriginVariety:  first.Variety,
				OriginDate:     first.ReceptionDate,
				IsFullPallet:   d.IsFullPallet,
				ProductionLine: d.ProductionLine,
			}
			detail.RecalcTotal()
			lot.Details = append(lot.Details, detail)
		}
		lot.RecalcAggregates()

		lots, err := LoadCollection[ProductionLot](get, CollectionProductionLots)
		if err != nil {
			return err
		}
		lots = append(lots, lot)
		if err := SaveCollection(put, CollectionProductionLots, lots); err != nil {
			return err
		}
		if err := SaveCollection(put, CollectionReceptions, receptions); err != nil {
			return err
		}
		created = lot
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

type UpdateProductionLot struct {
	LotProducer string          `json:"lot_producer"`
	LotVariety  string          `json:"lot_variety"`
	IqfKilos    decimal.Decimal `json:"iqf_kilos"`
	MermaKilos  decimal.Decimal `json:"merma_kilos"`
	WasteKilos  decimal.Decimal `json:"waste_kilos"`
}

// UpdateLot mutates the lot-level fields. Output lines are only ever changed
// through the reallocation protocol (workflow.BulkUpdateStockItems).
func UpdateLot(ctx context.Context, id string, input *UpdateProductionLot) (*ProductionLot, error) {
	workCenter, err := activeWorkCenter(ctx)
	if err != nil {
		return nil, err
	}
	if input.IqfKilos.IsNegative() || input.MermaKilos.IsNegative() || input.WasteKilos.IsNegative() {
		return nil, fmt.Errorf("kilos cannot be negative: %w", ErrInvariantViolation)
	}

	var updated ProductionLot
	store := config.GetStore()
	err = store.Update(func(get Getter, put Putter) error {
		lots, err := LoadCollection[ProductionLot](get, CollectionProductionLots)
		if err != nil {
			return err
		}
		index := FindLot(lots, workCenter, id)
		if index < 0 {
			return fmt.Errorf("production lot %s: %w", id, ErrNotFound)
		}
		lot := lots[index]
		if input.LotProducer != "" {
			lot.LotProducer = input.LotProducer
		}
		if input.LotVariety != "" {
			lot.LotVariety = input.LotVariety
		}
		lot.IqfKilos = input.IqfKilos
		lot.MermaKilos = input.MermaKilos
		lot.WasteKilos = input.WasteKilos
		lot.RecalcAggregates()
		lot.UpdatedAt = time.Now()
		lots[index] = lot
		updated = lot
		return SaveCollection(put, CollectionProductionLots, lots)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func GetLot(ctx context.Context, id string) (*ProductionLot, error) {
	workCenter, err := activeWorkCenter(ctx)
	if err != nil {
		return nil, err
	}
	lots, err := ListCollection[ProductionLot](CollectionProductionLots)
	if err != nil {
		return nil, err
	}
	index := FindLot(lots, workCenter, id)
	if index < 0 {
		return nil, fmt.Errorf("production lot %s: %w", id, ErrNotFound)
	}
	return &lots[index], nil
}

func ListLots(ctx context.Context) ([]ProductionLot, error) {
	workCenter, err := activeWorkCenter(ctx)
	if err != nil {
		return nil, err
	}
	lots, err := ListCollection[ProductionLot](CollectionProductionLots)
	if err != nil {
		return nil, err
	}
	return filterByWorkCenter(lots, workCenter), nil
}

// FindLot locates a lot by id within a work-center scope, -1 if absent.
func FindLot(lots []ProductionLot, workCenter string, id string) int {
	for i, lot := range lots {
		if lot.ID != id {
			continue
		}
		if workCenter != WorkCenterAll && lot.WorkCenter != workCenter {
			continue
		}
		return i
	}
	return -1
}

// consumedNetWeight derives the lot input weight: per-pallet net for consumed
// folios, full reception net where no per-pallet detail exists.
func consumedNetWeight(receptions []Reception, receptionIds []string, folios []string) decimal.Decimal {
	total := decimal.Zero
	folioSet := map[string]struct{}{}
	for _, folio := range folios {
		folioSet[folio] = struct{}{}
	}
	for _, id := range receptionIds {
		for _, reception := range receptions {
			if reception.ID != id {
				continue
			}
			if len(reception.PalletDetails) == 0 {
				total = total.Add(reception.NetWeight)
				break
			}
			for _, detail := range reception.PalletDetails {
				if _, ok := folioSet[detail.Folio]; ok {
					total = total.Add(detail.NetWeight())
				}
			}
			break
		}
	}
	return total
}

// StockUpdate is one reallocation instruction addressing an output line by
// (lot id, detail index). Updates apply in array order against the evolving
// snapshot, so a batch must not reorder a lot's own details before addressing
// them again.
//
// Create appends a brand-new line in TargetLotId cloned from the addressed
// source line (traceability fields carried over); a split is therefore
// "shrink the source in place, then Create the remainder".
type StockUpdate struct {
	LotId        string `json:"lot_id" validate:"required"`
	DetailIndex  int    `json:"detail_index" validate:"min=0"`
	TargetLotId  string `json:"target_lot_id"`
	ManualFolio  string `json:"manual_folio"`
	Units        int    `json:"units" validate:"min=0"`
	Pallets      int    `json:"pallets" validate:"min=0"`
	IsFullPallet bool   `json:"is_full_pallet"`
	Create       bool   `json:"create"`
	Delete       bool   `json:"delete"`
}
