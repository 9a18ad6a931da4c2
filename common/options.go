package common

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Field names holding the bookkeeping timestamps of every base record.
const (
	FieldCreatedAt = "created_at"
	FieldUpdatedAt = "updated_at"
	FieldDeletedAt = "deleted_at"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Filter maps a field name to the value it must equal. All entries of a
// filter must hold. A nil value matches NULL or missing fields, a slice
// value matches any of its members.
type Filter map[string]any

// Keys returns the filter field names in a stable order.
func (f Filter) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}

// Patch holds field values to overwrite on a record.
type Patch map[string]any

// Keys returns the patched field names in a stable order.
func (p Patch) Keys() []string {
	return Filter(p).Keys()
}

type FindOptions struct {
	// Where must match. When Or is set, Where becomes one alternative
	// among the Or filters.
	Where Filter
	Or    []Filter

	// Relations names associations to load together with the records.
	Relations []string

	// Order lists sort fields, "-" prefix sorts descending.
	Order []string
}

// Criteria returns the alternatives of the lookup. An empty result, or any
// empty alternative, matches every record.
func (o FindOptions) Criteria() []Filter {
	var criteria []Filter
	if len(o.Where) > 0 || len(o.Or) == 0 {
		criteria = append(criteria, o.Where)
	}
	criteria = append(criteria, o.Or...)

	for _, f := range criteria {
		if len(f) == 0 {
			return nil
		}
	}

	return criteria
}

type FindOrFailOptions struct {
	FindOptions

	// ErrorMessage replaces the default not found message.
	ErrorMessage string
}

// MaxPageLimit is the largest page size accepted by Validate, it must match
// the lte rule on FindWithPaginationOptions.Limit.
const MaxPageLimit = 1000

type FindWithPaginationOptions struct {
	FindOptions

	Limit int `validate:"gte=1,lte=1000"`
	Page  int `validate:"gte=1"`
}

// Validate checks the page window, the returned error wraps ErrInvalidPagination.
// A page whose skip does not fit in an int is rejected, so Skip never goes
// negative on validated options.
func (o FindWithPaginationOptions) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidPagination, validationMessage(err))
	}

	if o.Page-1 > math.MaxInt/o.Limit {
		return fmt.Errorf("%w: page %d is out of range", ErrInvalidPagination, o.Page)
	}

	return nil
}

// Skip is the number of matches before the requested page.
func (o FindWithPaginationOptions) Skip() int {
	return o.Limit * (o.Page - 1)
}

func validationMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		op := fe.Tag()
		switch op {
		case "gte":
			op = ">="
		case "lte":
			op = "<="
		}
		msgs = append(msgs, fmt.Sprintf("%s must be %s %s", strings.ToLower(fe.Field()), op, fe.Param()))
	}

	return strings.Join(msgs, ", ")
}

// IsNullValue reports whether v is nil or a nil pointer, map or slice.
func IsNullValue(v any) bool {
	if v == nil {
		return true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}

	return false
}

// IsListValue reports whether a filter value should match by membership.
// Byte slices are scalar values.
func IsListValue(v any) bool {
	if v == nil {
		return false
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return false
	}

	return rv.Type().Elem().Kind() != reflect.Uint8
}
