// Package payload implements the merge law governing how a chain
// successor's literal data combines with the producing effect's output.
package payload

import (
	"github.com/songokas/hvents/pkg/models"
)

// Merge combines outData (the producing effect's result, possibly empty)
// with nextData (the successor event's literal `data:`, possibly nil) per
// the merge law: merge_data == false replaces outright; otherwise strings
// and byte sequences concatenate and structured maps deep-merge with the
// successor's keys winning on collision. A scalar data value merging
// against a structured one replaces it outright in either direction —
// there is no silent type coercion between the two shapes.
func Merge(outData models.Data, nextLiteral *models.DataLiteral, mergeData bool) models.Data {
	nextData := nextLiteral.ToData()

	if !mergeData {
		if !nextData.IsEmpty() {
			return nextData
		}
		return outData
	}

	if outData.IsEmpty() {
		return nextData
	}
	if nextData.IsEmpty() {
		return outData
	}

	if outData.Kind == models.DataKindStructured && nextData.Kind == models.DataKindStructured {
		return models.StructuredData(deepMerge(outData.Structured, nextData.Structured))
	}
	if outData.Kind != models.DataKindStructured && nextData.Kind != models.DataKindStructured {
		return models.BytesData(append(append([]byte{}, outData.AsBytes()...), nextData.AsBytes()...))
	}

	// One scalar, one structured: no coercion, the successor's shape wins.
	return nextData
}

// ResolveMergeData applies merge_data's documented default of true when the
// event config leaves it unset.
func ResolveMergeData(mergeData *bool) bool {
	if mergeData == nil {
		return true
	}
	return *mergeData
}

func deepMerge(base, overlay map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		if baseVal, ok := out[k]; ok {
			baseMap, baseIsMap := baseVal.(map[string]interface{})
			overlayMap, overlayIsMap := v.(map[string]interface{})
			if baseIsMap && overlayIsMap {
				out[k] = deepMerge(baseMap, overlayMap)
				continue
			}
		}
		out[k] = v
	}
	return out
}
