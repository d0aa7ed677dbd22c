package opendata

// extractKeys is the priority order of wrapper keys that may hold the
// record list inside an object payload.
var extractKeys = []string{"records", "data", "items", "result"}

// ExtractRecords locates the list of raw records in an arbitrary decoded
// JSON value: the value itself when it is a list, otherwise the first
// direct list under a wrapper key, then the first nested object under
// those keys holding its own "records" list. No recognizable list yields
// an empty slice, never an error.
func ExtractRecords(payload any) []map[string]any {
	switch v := payload.(type) {
	case []any:
		return toRecords(v)
	case map[string]any:
		for _, k := range extractKeys {
			if list, ok := v[k].([]any); ok {
				return toRecords(list)
			}
		}
		for _, k := range extractKeys {
			nested, ok := v[k].(map[string]any)
			if !ok {
				continue
			}
			if list, ok := nested["records"].([]any); ok {
				return toRecords(list)
			}
		}
	}
	return []map[string]any{}
}

// toRecords keeps the mapping elements of a JSON list; records are
// objects, anything else in the list is noise.
func toRecords(list []any) []map[string]any {
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if rec, ok := item.(map[string]any); ok {
			out = append(out, rec)
		}
	}
	return out
}
