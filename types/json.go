/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JsonObject maps a JSON/JSONB column holding a single object, such as a
// raw survey submission.
type JsonObject map[string]interface{}

// Value implements driver.Valuer for JsonObject.
func (j JsonObject) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	b, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for JsonObject. Drivers hand JSON columns
// back as []byte (postgres, mysql) or string (sqlite TEXT).
func (j *JsonObject) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*j = make(JsonObject)
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported JSON column type %T", value)
	}
	if len(raw) == 0 {
		*j = make(JsonObject)
		return nil
	}
	return json.Unmarshal(raw, j)
}

// String returns the value stored under key, or "" when absent.
func (j JsonObject) String(key string) string {
	if v, ok := j[key]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}
