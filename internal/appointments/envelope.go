package appointments

// Known top-level response shapes, in fixed precedence:
//
//  1. a bare array of records
//  2. {"data": [...]}
//  3. {"data": {"appointments": [...]}}
//  4. {"appointments": [...]}
//  5. {"data": {...}} — a singular record
//  6. scavenge: the first array-valued entry of the envelope
//  7. the envelope itself looks like a single record
//
// Anything else unwraps to an empty slice, never to an error.

// UnwrapRecords reduces a shape-polymorphic API response body to a flat
// sequence of raw records.
func UnwrapRecords(body any) []RawRecord {
	if records, ok := asRecords(body); ok {
		return records
	}

	envelope, ok := body.(map[string]any)
	if !ok {
		return []RawRecord{}
	}

	if records, ok := asRecords(envelope["data"]); ok {
		return records
	}
	if data, ok := envelope["data"].(map[string]any); ok {
		if records, ok := asRecords(data["appointments"]); ok {
			return records
		}
	}
	if records, ok := asRecords(envelope["appointments"]); ok {
		return records
	}
	if data, ok := envelope["data"].(map[string]any); ok {
		return []RawRecord{data}
	}
	for _, v := range envelope {
		if records, ok := asRecords(v); ok {
			return records
		}
	}
	if looksLikeRecord(envelope) {
		return []RawRecord{envelope}
	}
	return []RawRecord{}
}

// asRecords converts a decoded JSON array to raw records. Elements that are
// not objects cannot carry appointment fields and are skipped.
func asRecords(v any) ([]RawRecord, bool) {
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	records := make([]RawRecord, 0, len(items))
	for _, item := range items {
		if record, ok := item.(map[string]any); ok {
			records = append(records, record)
		}
	}
	return records, true
}

// looksLikeRecord reports whether a map carries any recognized appointment
// field, which is the cue that the response was a bare single record.
func looksLikeRecord(m map[string]any) bool {
	for _, keys := range [][]string{idKeys, dateKeys, timeKeys, {"status"}} {
		if firstValue(m, keys) != nil {
			return true
		}
	}
	return false
}
