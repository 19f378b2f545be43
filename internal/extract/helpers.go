package extract

import (
	"encoding/json"
	"strconv"
	"time"
)

// decodeRawItems unmarshals a page of raw JSON records into RawItems.
func decodeRawItems(msgs []json.RawMessage) ([]RawItem, error) {
	items := make([]RawItem, 0, len(msgs))
	for _, m := range msgs {
		var item RawItem
		if err := json.Unmarshal(m, &item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// mergeDetail copies every field of detail into raw, overwriting duplicates
// (detail responses are treated as authoritative over list responses).
func mergeDetail(raw RawItem, detail RawItem) {
	for k, v := range detail {
		raw[k] = v
	}
}

// stringField returns the first candidate key whose value is a non-empty
// string or a number (formatted as an integer); other values are skipped.
func stringField(raw RawItem, candidates ...string) string {
	for _, key := range candidates {
		if v, ok := raw[key]; ok {
			switch t := v.(type) {
			case string:
				if t != "" {
					return t
				}
			case float64:
				return strconv.FormatInt(int64(t), 10)
			}
		}
	}
	return ""
}

// timeField parses an RFC3339-ish timestamp from the first present key.
func timeField(raw RawItem, candidates ...string) time.Time {
	s := stringField(raw, candidates...)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, time.RFC3339Nano, "2006-01-02T15:04:05.999", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// boolField reads a boolean from the first present key.
func boolField(raw RawItem, candidates ...string) bool {
	for _, key := range candidates {
		if v, ok := raw[key]; ok {
			if b, ok := v.(bool); ok {
				return b
			}
		}
	}
	return false
}

// sliceField reads a []interface{} from the first present key.
func sliceField(raw RawItem, candidates ...string) []interface{} {
	for _, key := range candidates {
		if v, ok := raw[key]; ok {
			if s, ok := v.([]interface{}); ok {
				return s
			}
		}
	}
	return nil
}

// mapField reads a RawItem-shaped nested object from the first present key.
func mapField(raw RawItem, candidates ...string) RawItem {
	for _, key := range candidates {
		if v, ok := raw[key]; ok {
			if m, ok := v.(map[string]interface{}); ok {
				return RawItem(m)
			}
		}
	}
	return nil
}

// asRawItem coerces an interface{} slice element into a RawItem.
func asRawItem(v interface{}) RawItem {
	if m, ok := v.(map[string]interface{}); ok {
		return RawItem(m)
	}
	return nil
}
