package utils

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// JSONToMap convert datatypes.JSON to map[string]string. Empty input yields an empty map.
func JSONToMap(jsonData datatypes.JSON) (map[string]string, error) {
	result := map[string]string{}
	if len(jsonData) == 0 || string(jsonData) == "null" {
		return result, nil
	}
	if err := json.Unmarshal(jsonData, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// MapToJSON convert map[string]string to datatypes.JSON
func MapToJSON(data map[string]string) (datatypes.JSON, error) {
	if data == nil {
		data = map[string]string{}
	}
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return jsonData, nil
}
