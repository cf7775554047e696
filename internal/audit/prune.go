package audit

// Absent marks a metadata value that was never set, as opposed to an
// explicit null. Pruning removes Absent entries entirely while nil values
// survive into the persisted record (e.g. "no image for this send").
var Absent = absentValue{}

type absentValue struct{}

// PruneMetadata recursively walks a dynamic JSON tree and removes Absent
// markers: object keys holding Absent are dropped, Absent array elements are
// filtered out, and everything else (including explicit nil) passes through
// unchanged. The walker is reserved for genuinely dynamic passthrough
// fields; typed log columns never go through it.
func PruneMetadata(metadata map[string]any) map[string]any {
	if metadata == nil {
		return nil
	}
	pruned, _ := pruneValue(metadata)
	return pruned.(map[string]any)
}

func pruneValue(v any) (any, bool) {
	switch value := v.(type) {
	case absentValue:
		return nil, false
	case map[string]any:
		out := make(map[string]any, len(value))
		for key, item := range value {
			if prunedItem, keep := pruneValue(item); keep {
				out[key] = prunedItem
			}
		}
		return out, true
	case []any:
		out := make([]any, 0, len(value))
		for _, item := range value {
			if prunedItem, keep := pruneValue(item); keep {
				out = append(out, prunedItem)
			}
		}
		return out, true
	default:
		return value, true
	}
}
