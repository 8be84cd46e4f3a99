// SPDX-License-Identifier: MPL-2.0

package marshal

import (
	"errors"
	"fmt"
	"reflect"
)

// Category constants for leaf scalars.
const (
	CategoryEmpty Category = iota
	CategoryString
	CategoryInteger
	CategoryReal
	CategoryLogic
)

// ErrInvalidCategory is the sentinel error wrapped by InvalidCategoryError.
var ErrInvalidCategory = errors.New("invalid category")

var categoryNames = [...]string{
	CategoryEmpty:   "Empty",
	CategoryString:  "String",
	CategoryInteger: "Integer",
	CategoryReal:    "Real",
	CategoryLogic:   "Logic",
}

type (
	// Category is the closed set of scalar kinds a leaf can carry.
	Category uint8

	// InvalidCategoryError is returned when a category label is not recognized.
	// It wraps ErrInvalidCategory for errors.Is() compatibility.
	InvalidCategoryError struct {
		Value string
	}
)

// String returns the wire label of the category.
func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return fmt.Sprintf("Category(%d)", uint8(c))
}

// ParseCategory maps a wire label back to its Category.
func ParseCategory(label string) (Category, error) {
	for i, name := range categoryNames {
		if name == label {
			return Category(i), nil
		}
	}
	return CategoryEmpty, &InvalidCategoryError{Value: label}
}

// Error implements the error interface.
func (e *InvalidCategoryError) Error() string {
	return fmt.Sprintf("invalid category %q (must be one of String, Integer, Real, Logic, Empty)", e.Value)
}

// Unwrap returns ErrInvalidCategory so callers can use errors.Is for programmatic detection.
func (e *InvalidCategoryError) Unwrap() error { return ErrInvalidCategory }

// Classify inspects the dynamic type of v. Types outside the closed set
// degrade to CategoryEmpty instead of failing.
func Classify(v any) Category {
	if v == nil {
		return CategoryEmpty
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return CategoryString
	case reflect.Bool:
		return CategoryLogic
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return CategoryInteger
	case reflect.Float32, reflect.Float64:
		return CategoryReal
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return CategoryString
		}
	}
	return CategoryEmpty
}
