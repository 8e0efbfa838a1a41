package models

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// FinishedGoodsRow is one output line flattened out of its lot for the stock
// and dispatch pages. Key groups rows that belong to the same physical pallet:
// the manual folio when the operator assigned one, otherwise a synthetic
// per-line key so unlabelled pallets never merge with each other.
type FinishedGoodsRow struct {
	Key            string          `json:"key"`
	LotId          string          `json:"lot_id"`
	DetailIndex    int             `json:"detail_index"`
	ManualFolio    string          `json:"manual_folio"`
	FormatName     string          `json:"format_name"`
	WeightPerUnit  decimal.Decimal `json:"weight_per_unit"`
	Units          int             `json:"units"`
	Pallets        int             `json:"pallets"`
	TotalKilos     decimal.Decimal `json:"total_kilos"`
	OriginProducer string          `json:"origin_producer"`
	OriginVariety  string          `json:"origin_variety"`
	OriginDate     time.Time       `json:"origin_date"`
	IsFullPallet   bool            `json:"is_full_pallet"`
	ProductionLine string          `json:"production_line"`
}

type FinishedGoodsGroup struct {
	Key         string             `json:"key"`
	ManualFolio string             `json:"manual_folio"`
	Rows        []FinishedGoodsRow `json:"rows"`
	Units       int                `json:"units"`
	Pallets     int                `json:"pallets"`
	TotalKilos  decimal.Decimal    `json:"total_kilos"`
}

// FlattenFinishedGoods turns every lot's details into pallet rows.
func FlattenFinishedGoods(lots []ProductionLot) []FinishedGoodsRow {
	rows := []FinishedGoodsRow{}
	for _, lot := range lots {
		for i, detail := range lot.Details {
			key := detail.ManualFolio
			if key == "" {
				key = fmt.Sprintf("%s#%d", lot.ID, i)
			}
			rows = append(rows, FinishedGoodsRow{
				Key:            key,
				LotId:          lot.ID,
				DetailIndex:    i,
				ManualFolio:    detail.ManualFolio,
				FormatName:     detail.FormatName,
				WeightPerUnit:  detail.WeightPerUnit,
				Units:          detail.Units,
				Pallets:        detail.Pallets,
				TotalKilos:     detail.TotalKilos,
				OriginProducer: detail.OriginProducer,
				OriginVariety:  detail.OriginVariety,
				OriginDate:     detail.OriginDate,
				IsFullPallet:   detail.IsFullPallet,
				ProductionLine: detail.ProductionLine,
			})
		}
	}
	return rows
}

// AvailableRows computes availability fresh from the given snapshot. There is
// no persisted "available" flag; a row is available unless its folio appears
// in some dispatch's dispatchedFolios, or its lot is named by a legacy
// dispatch that carries lotIds and no folios at all (which consumes every
// current line of those lots, including lines moved in after dispatch time).
func AvailableRows(lots []ProductionLot, dispatches []Dispatch) []FinishedGoodsRow {
	consumedFolios := map[string]struct{}{}
	consumedLots := map[string]struct{}{}
	for _, dispatch := range dispatches {
		if len(dispatch.DispatchedFolios) == 0 {
			for _, lotId := range dispatch.LotIds {
				consumedLots[lotId] = struct{}{}
			}
			continue
		}
		for _, folio := range dispatch.DispatchedFolios {
			consumedFolios[folio] = struct{}{}
		}
	}

	available := []FinishedGoodsRow{}
	for _, row := range FlattenFinishedGoods(lots) {
		if _, ok := consumedLots[row.LotId]; ok {
			continue
		}
		if row.ManualFolio != "" {
			if _, ok := consumedFolios[row.ManualFolio]; ok {
				continue
			}
		}
		available = append(available, row)
	}
	return available
}

// AvailableFinishedGoods is the dispatch-page view, recomputed on every read.
func AvailableFinishedGoods(ctx context.Context) ([]FinishedGoodsRow, error) {
	workCenter, err := activeWorkCenter(ctx)
	if err != nil {
		return nil, err
	}
	lots, err := ListCollection[ProductionLot](CollectionProductionLots)
	if err != nil {
		return nil, err
	}
	dispatches, err := ListCollection[Dispatch](CollectionDispatches)
	if err != nil {
		return nil, err
	}
	return AvailableRows(filterByWorkCenter(lots, workCenter), filterByWorkCenter(dispatches, workCenter)), nil
}

// GroupedFinishedGoods groups the active center's output lines by pallet key
// for the stock page (dispatched rows included; this is the full inventory
// view, not availability).
func GroupedFinishedGoods(ctx context.Context) ([]FinishedGoodsGroup, error) {
	workCenter, err := activeWorkCenter(ctx)
	if err != nil {
		return nil, err
	}
	lots, err := ListCollection[ProductionLot](CollectionProductionLots)
	if err != nil {
		return nil, err
	}

	groups := []FinishedGoodsGroup{}
	indexByKey := map[string]int{}
	for _, row := range FlattenFinishedGoods(filterByWorkCenter(lots, workCenter)) {
		index, ok := indexByKey[row.Key]
		if !ok {
			index = len(groups)
			indexByKey[row.Key] = index
			groups = append(groups, FinishedGoodsGroup{Key: row.Key, ManualFolio: row.ManualFolio})
		}
		group := groups[index]
		group.Rows = append(group.Rows, row)
		group.Units += row.Units
		group.Pallets += row.Pallets
		group.TotalKilos = group.TotalKilos.Add(row.TotalKilos)
		groups[index] = group
	}
	return groups, nil
}
