package registry

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"placa-service/internal/domain/plate"
)

var (
	brandKeys = []string{"marca", "brand", "make"}
	modelKeys = []string{"modelo", "model"}
)

// Summarize pulls brand and model out of an arbitrary registry payload.
func Summarize(record plate.VehicleRecord) plate.VehicleSummary {
	if len(record) == 0 {
		return plate.VehicleSummary{}
	}
	payload := map[string]interface{}(record)
	return plate.VehicleSummary{
		Marca:    ExtractField(payload, brandKeys),
		Modelo:   ExtractField(payload, modelKeys),
		Detalhes: record,
	}
}

// ExtractField returns the first non-empty value stored under one of keys at
// any depth. Aliases are tried in order; for each alias the tree is walked
// depth-first with map keys in sorted order, so the result is deterministic.
// Key comparison ignores case. Missing values yield "".
func ExtractField(payload interface{}, keys []string) string {
	for _, key := range keys {
		if v, ok := search(payload, key); ok {
			return render(v)
		}
	}
	return ""
}

func search(node interface{}, key string) (interface{}, bool) {
	switch n := node.(type) {
	case map[string]interface{}:
		names := make([]string, 0, len(n))
		for k := range n {
			names = append(names, k)
		}
		sort.Strings(names)

		for _, k := range names {
			if strings.EqualFold(k, key) && !isBlank(n[k]) {
				return n[k], true
			}
		}
		for _, k := range names {
			if v, ok := search(n[k], key); ok {
				return v, true
			}
		}
	case plate.VehicleRecord:
		return search(map[string]interface{}(n), key)
	case []interface{}:
		for _, item := range n {
			if v, ok := search(item, key); ok {
				return v, true
			}
		}
	}
	return nil, false
}

func isBlank(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	}
	return false
}

func render(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}
