package griot

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DiffResult is the row-level payload of one capture decision.
type DiffResult struct {
	RowImage      RowImage
	ChangedFields RowImage
	// Suppressed reports an update whose diff was empty after exclusions.
	// No record is written for it.
	Suppressed bool
}

// ComputeDiff decides what a row-level record stores.
//
// Inserts keep the new image, deletes the old image, both minus the ignored
// columns. Updates keep the old image minus the ignored columns plus the
// changed fields: every new-image entry, not ignored, whose value differs
// from the corresponding row-image entry. An update whose changed set comes
// out empty is suppressed rather than recorded with an empty mapping.
func ComputeDiff(action Action, oldImage, newImage RowImage, ignored map[string]struct{}) (DiffResult, error) {
	switch action {
	case ActionInsert:
		return DiffResult{RowImage: restrict(newImage, ignored)}, nil
	case ActionDelete:
		return DiffResult{RowImage: restrict(oldImage, ignored)}, nil
	case ActionUpdate:
		base := restrict(oldImage, ignored)
		changed := make(RowImage)
		for col, newVal := range newImage {
			if _, skip := ignored[col]; skip {
				continue
			}
			oldVal, had := base[col]
			if !had || !valuesEqual(oldVal, newVal) {
				changed[col] = newVal
			}
		}
		if len(changed) == 0 {
			return DiffResult{Suppressed: true}, nil
		}
		return DiffResult{RowImage: base, ChangedFields: changed}, nil
	default:
		return DiffResult{}, fmt.Errorf("griot: no diff rule for action %q", action)
	}
}

// restrict copies img without the ignored columns. Ignored names that don't
// exist in the image simply don't apply.
func restrict(img RowImage, ignored map[string]struct{}) RowImage {
	if img == nil {
		return nil
	}
	out := make(RowImage, len(img))
	for col, val := range img {
		if _, skip := ignored[col]; skip {
			continue
		}
		out[col] = val
	}
	return out
}

// valuesEqual compares captured column values by canonical JSON encoding, not
// by reference. Values that cannot be encoded are treated as unequal so the
// change is captured rather than silently suppressed.
func valuesEqual(a, b any) bool {
	ab, aerr := json.Marshal(a)
	bb, berr := json.Marshal(b)
	if aerr != nil || berr != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}
