package models

import (
	"fmt"
	"strconv"
	"strings"
)

// FolioPendingCode is the suffix used while no producer has been selected in
// the entry session. Pallets keep it until the operator picks a producer.
const FolioPendingCode = "PENDING"

// FormatFolio renders the canonical folio form: zero-padded sequence, dash,
// producer code (e.g. "0007-512").
func FormatFolio(sequence int, code string) string {
	return fmt.Sprintf("%04d-%s", sequence, code)
}

// SplitFolio parses "NNNN-CODE". Folios that predate the format (or were
// hand-typed) simply don't participate in sequencing.
func SplitFolio(folio string) (sequence int, code string, ok bool) {
	parts := strings.SplitN(folio, "-", 2)
	if len(parts) != 2 {
		return 0, "", false
	}
	sequence, err := strconv.Atoi(parts[0])
	if err != nil || parts[1] == "" {
		return 0, "", false
	}
	return sequence, parts[1], true
}

// NextFolioSequence scans persisted receptions plus the staged pallets of the
// current, not-yet-submitted entry session and returns 1 + the highest
// sequence carrying the given producer code.
//
// Uniqueness holds only under a single active entry session per producer;
// there is no cross-session reservation.
func NextFolioSequence(receptions []Reception, staged []PalletDetail, code string) int {
	max := 0
	scan := func(folio string) {
		sequence, folioCode, ok := SplitFolio(folio)
		if ok && folioCode == code && sequence > max {
			max = sequence
		}
	}
	for _, reception := range receptions {
		for _, detail := range reception.PalletDetails {
			scan(detail.Folio)
		}
	}
	for _, detail := range staged {
		scan(detail.Folio)
	}
	return max + 1
}

// NextFolio returns the next folio for a producer code, scanning every
// persisted reception regardless of work center (folios are plant-global).
// An empty code means no producer is selected yet and yields the placeholder.
func NextFolio(code string, staged []PalletDetail) (string, error) {
	if code == "" {
		code = FolioPendingCode
	}
	receptions, err := ListCollection[Reception](CollectionReceptions)
	if err != nil {
		return "", err
	}
	return FormatFolio(NextFolioSequence(receptions, staged, code), code), nil
}

// ReassignPlaceholderFolios rewrites staged pallets still carrying the
// placeholder suffix to the new producer code, renumbering against that
// code's history plus any staged pallets already on the new code.
// Last-writer-wins: called again on the next producer change.
func ReassignPlaceholderFolios(receptions []Reception, staged []PalletDetail, code string) []PalletDetail {
	result := make([]PalletDetail, len(staged))
	copy(result, staged)
	if code == "" || code == FolioPendingCode {
		return result
	}

	next := NextFolioSequence(receptions, staged, code)
	for i := range result {
		_, folioCode, ok := SplitFolio(result[i].Folio)
		if ok && folioCode == FolioPendingCode {
			result[i].Folio = FormatFolio(next, code)
			next++
		}
	}
	return result
}
