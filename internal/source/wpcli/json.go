package wpcli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// flexInt accepts both JSON numbers and numeric strings; wp-cli emits
// database columns as strings.
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		*f = flexInt(value)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer %q", value)
		}
		*f = flexInt(n)
	case nil:
		*f = 0
	default:
		return fmt.Errorf("invalid integer %s", data)
	}
	return nil
}

// flexBool accepts JSON booleans, numbers and "0"/"1" strings.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case bool:
		*f = flexBool(value)
	case float64:
		*f = value != 0
	case string:
		*f = value != "" && value != "0"
	default:
		*f = false
	}
	return nil
}

// optionValues returns the string values of a decoded PHP array option. PHP
// lists encode as JSON arrays, arrays with gaps in their keys as objects.
func optionValues(raw any) []string {
	switch v := raw.(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sortNumericKeys(keys)
		out := make([]string, 0, len(v))
		for _, k := range keys {
			if s, ok := v[k].(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// optionKeys returns the keys of a decoded associative option such as
// active_sitewide_plugins.
func optionKeys(raw any) []string {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortNumericKeys(keys []string) {
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		if errA == nil && errB == nil {
			return a < b
		}
		return keys[i] < keys[j]
	})
}
