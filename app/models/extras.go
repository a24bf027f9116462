package models

import (
	"encoding/json"
	"fmt"
)

// Extras keeps JSON members a typed payload does not model, so a payload
// written by a newer producer survives a decode/encode round trip.
type Extras map[string]json.RawMessage

// collectExtras returns the members of raw whose keys are not in known.
func collectExtras(raw []byte, known []string) (Extras, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(raw, &all); err != nil {
		return nil, err
	}
	for _, k := range known {
		delete(all, k)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return Extras(all), nil
}

// mergeExtras adds extras to an encoded object without overriding typed members.
func mergeExtras(encoded []byte, extras Extras) ([]byte, error) {
	if len(extras) == 0 {
		return encoded, nil
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(encoded, &all); err != nil {
		return nil, err
	}
	for k, v := range extras {
		if _, exists := all[k]; !exists {
			all[k] = v
		}
	}
	return json.Marshal(all)
}

// scanJSON decodes a JSON column into dst. NULL leaves dst untouched.
func scanJSON(src interface{}, dst interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dst)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported JSON column type %T", src)
	}
}
