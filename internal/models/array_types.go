package models

import (
	"database/sql/driver"

	"github.com/lib/pq"
)

// QuestionSet is a custom type for handling TEXT[] question lists in PostgreSQL
type QuestionSet []string

// Value implements the driver.Valuer interface
func (a QuestionSet) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	return pq.Array([]string(a)).Value()
}

// Scan implements the sql.Scanner interface
func (a *QuestionSet) Scan(src interface{}) error {
	if src == nil {
		*a = nil
		return nil
	}
	slice := (*[]string)(a)
	return pq.Array(slice).Scan(src)
}

// Contains reports whether question is in the set
func (a QuestionSet) Contains(question string) bool {
	for _, q := range a {
		if q == question {
			return true
		}
	}
	return false
}

// Int64Array is a custom type for handling BIGINT[] arrays in PostgreSQL
type Int64Array []int64

// Value implements the driver.Valuer interface
func (a Int64Array) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	return pq.Array([]int64(a)).Value()
}

// Scan implements the sql.Scanner interface
func (a *Int64Array) Scan(src interface{}) error {
	if src == nil {
		*a = nil
		return nil
	}
	slice := (*[]int64)(a)
	return pq.Array(slice).Scan(src)
}
