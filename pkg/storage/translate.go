package storage

// wrappedField is the bridge's per-field envelope shape: {"value":..., "type":...}.
type wrappedField struct {
	Value any    `json:"value"`
	Type  string `json:"type"`
}

// wrapFields translates an outbound flat {field: value} map into the
// bridge's {"fields": {field: {value, type}}} shape, auto-detecting type
// as boolean / integer / decimal / string (§4.3).
func wrapFields(fields map[string]any) map[string]any {
	wrapped := make(map[string]any, len(fields))
	for k, v := range fields {
		wrapped[k] = wrappedField{Value: v, Type: detectType(v)}
	}
	return map[string]any{"fields": wrapped}
}

func detectType(v any) string {
	switch n := v.(type) {
	case bool:
		return "boolean"
	case int, int32, int64:
		return "integer"
	case float64:
		if n == float64(int64(n)) {
			return "integer"
		}
		return "decimal"
	case float32:
		return "decimal"
	default:
		return "string"
	}
}

// translateRowsIn flattens inbound rows whose top-level records carry a
// "Fields" wrapper of {Value, Type} entries into plain {key: value} maps.
// Rows that are already flat pass through unchanged (§4.3).
func translateRowsIn(rows []map[string]any) []map[string]any {
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		fieldsRaw, ok := row["Fields"]
		if !ok {
			out = append(out, row)
			continue
		}
		fieldsMap, ok := fieldsRaw.(map[string]any)
		if !ok {
			out = append(out, row)
			continue
		}
		flat := make(map[string]any, len(fieldsMap))
		for k, v := range fieldsMap {
			if wrapped, ok := v.(map[string]any); ok {
				flat[k] = wrapped["Value"]
				if flat[k] == nil {
					flat[k] = wrapped["value"]
				}
				continue
			}
			flat[k] = v
		}
		out = append(out, flat)
	}
	return out
}
