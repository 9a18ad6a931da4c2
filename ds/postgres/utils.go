package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/logistics-id/crud/common"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

// validField matches plain column names, optionally prefixed by a relation alias.
var validField = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*(\.[a-zA-Z_][a-zA-Z0-9_]*)?$`)

// whereQuery is satisfied by bun select, update and delete queries.
type whereQuery[Q any] interface {
	Where(query string, args ...any) Q
	WhereGroup(sep string, fn func(Q) Q) Q
}

// applyCriteria adds the lookup criteria to q. Alternatives are OR-ed, the
// fields of one alternative are AND-ed. Select queries qualify columns with
// the model alias so that joined relations do not make them ambiguous.
func applyCriteria[Q whereQuery[Q]](q Q, criteria []common.Filter, qualify bool) Q {
	switch len(criteria) {
	case 0:
		return q
	case 1:
		return applyFilter(q, criteria[0], qualify)
	}

	return q.WhereGroup(" AND ", func(q Q) Q {
		for _, f := range criteria {
			q = q.WhereGroup(" OR ", func(q Q) Q {
				return applyFilter(q, f, qualify)
			})
		}
		return q
	})
}

func applyFilter[Q whereQuery[Q]](q Q, f common.Filter, qualify bool) Q {
	col := "?"
	if qualify {
		col = "?TableAlias.?"
	}

	for _, k := range f.Keys() {
		v := f[k]

		switch {
		case common.IsNullValue(v):
			q = q.Where(col+" IS NULL", bun.Ident(k))
		case common.IsListValue(v):
			if reflect.ValueOf(v).Len() == 0 {
				q = q.Where("1 = 0")
				continue
			}
			q = q.Where(col+" IN (?)", bun.Ident(k), bun.In(v))
		default:
			q = q.Where(col+" = ?", bun.Ident(k), v)
		}
	}

	return q
}

// RequestSort converts sort keys into an ORDER BY expression.
//
// Prefixing a field with "-" sorts descending, "__" walks into a JSON column
// and ":" addresses a joined relation. Unqualified fields are qualified with
// the model alias. Keys that are not plain identifiers are dropped.
//
// Example:
//
//	RequestSort([]string{"-created_at", "meta__color"})
//	=>
//	"?TableAlias.created_at DESC, ?TableAlias.meta->>'color' ASC"
func RequestSort(sort []string) string {
	var result []string

	for _, s := range sort {
		order := "ASC"
		if strings.HasPrefix(s, "-") {
			order = "DESC"
			s = s[1:]
		}

		s = strings.ReplaceAll(s, ":", ".")
		parts := strings.Split(s, "__")
		if !validField.MatchString(parts[0]) {
			continue
		}

		field := parts[0]
		if !strings.Contains(field, ".") {
			field = "?TableAlias." + field
		}
		for _, p := range parts[1:] {
			if !validField.MatchString(p) || strings.Contains(p, ".") {
				field = ""
				break
			}
			field += fmt.Sprintf("->>'%s'", p)
		}
		if field == "" {
			continue
		}

		result = append(result, fmt.Sprintf("%s %s", field, order))
	}

	return strings.Join(result, ", ")
}

// assignField sets dst to v, converting between pointer and value forms and
// within the numeric and string kinds.
func assignField(dst reflect.Value, v any) error {
	dt := dst.Type()

	if common.IsNullValue(v) {
		dst.Set(reflect.Zero(dt))
		return nil
	}

	src := reflect.ValueOf(v)
	st := src.Type()

	switch {
	case st.AssignableTo(dt):
		dst.Set(src)
	case dt.Kind() == reflect.Pointer && st.AssignableTo(dt.Elem()):
		p := reflect.New(dt.Elem())
		p.Elem().Set(src)
		dst.Set(p)
	case st.Kind() == reflect.Pointer && st.Elem().AssignableTo(dt):
		dst.Set(src.Elem())
	case sameKindFamily(st.Kind(), dt.Kind()) && st.ConvertibleTo(dt):
		dst.Set(src.Convert(dt))
	default:
		return fmt.Errorf("cannot assign %T to %s", v, dt)
	}

	return nil
}

func sameKindFamily(a, b reflect.Kind) bool {
	family := func(k reflect.Kind) int {
		switch k {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
			reflect.Float32, reflect.Float64:
			return 1
		case reflect.String:
			return 2
		case reflect.Bool:
			return 3
		}
		return 0
	}

	return family(a) != 0 && family(a) == family(b)
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// PostgreSQL error codes (SQLSTATE)
const (
	// Class 23, integrity constraint violation
	ErrCodeUniqueViolation     = "23505" // unique_violation
	ErrCodeForeignKeyViolation = "23503" // foreign_key_violation
	ErrCodeNotNullViolation    = "23502" // not_null_violation
	ErrCodeCheckViolation      = "23514" // check_violation
	ErrCodeExclusionViolation  = "23P01" // exclusion_violation
)

// getPGError extracts a pgdriver.Error from an error, handling wrapped errors.
func getPGError(err error) (pgdriver.Error, bool) {
	var pgErr pgdriver.Error
	if err != nil && errors.As(err, &pgErr) {
		return pgErr, true
	}

	return pgErr, false
}

// GetPostgresErrorCode returns the SQLSTATE of a PostgreSQL error, or an
// empty string for any other error.
func GetPostgresErrorCode(err error) string {
	pgErr, ok := getPGError(err)
	if !ok {
		return ""
	}
	return pgErr.Field('C')
}

// GetPostgresErrorConstraint returns the name of the violated constraint.
func GetPostgresErrorConstraint(err error) string {
	pgErr, ok := getPGError(err)
	if !ok {
		return ""
	}
	return pgErr.Field('n')
}

// IsUniqueViolation checks if error is a PostgreSQL unique constraint violation.
func IsUniqueViolation(err error) bool {
	return GetPostgresErrorCode(err) == ErrCodeUniqueViolation
}

// IsForeignKeyViolation checks if error is a PostgreSQL foreign key constraint violation.
func IsForeignKeyViolation(err error) bool {
	return GetPostgresErrorCode(err) == ErrCodeForeignKeyViolation
}

// IsNotNullViolation checks if error is a PostgreSQL NOT NULL constraint violation.
func IsNotNullViolation(err error) bool {
	return GetPostgresErrorCode(err) == ErrCodeNotNullViolation
}

// IsCheckViolation checks if error is a PostgreSQL CHECK constraint violation.
func IsCheckViolation(err error) bool {
	return GetPostgresErrorCode(err) == ErrCodeCheckViolation
}
