package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// JSON 通用 JSON 字段类型
type JSON map[string]interface{}

// Value 用于数据库写入
func (j JSON) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan 用于数据库读取
func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("unsupported json column type")
	}
	if len(data) == 0 {
		*j = nil
		return nil
	}
	return json.Unmarshal(data, j)
}
