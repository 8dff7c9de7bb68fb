package database

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// StringArray maps a postgres text[] column. Elements must not contain
// commas, braces or quotes.
type StringArray []string

func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = []string{}
		return nil
	}

	var str string
	switch v := value.(type) {
	case []byte:
		str = string(v)
	case string:
		str = v
	default:
		return fmt.Errorf("unsupported Scan, storing driver.Value type %T into type StringArray", value)
	}

	str = strings.Trim(str, "{}")
	if str == "" {
		*a = []string{}
	} else {
		*a = strings.Split(str, ",")
	}
	return nil
}

func (a StringArray) Value() (driver.Value, error) {
	var cleanedArray []string
	for _, str := range a {
		if strings.TrimSpace(str) != "" {
			cleanedArray = append(cleanedArray, str)
		}
	}
	if len(cleanedArray) == 0 {
		return "{}", nil
	}
	return fmt.Sprintf("{%s}", strings.Join(cleanedArray, ",")), nil
}
