package gormdb

import (
	"strings"

	"github.com/logistics-id/crud/common"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

// applyCriteria adds the lookup criteria to q. A single filter becomes a
// plain condition, several alternatives are grouped with OR.
func applyCriteria(q *gorm.DB, criteria []common.Filter) *gorm.DB {
	switch len(criteria) {
	case 0:
		return q
	case 1:
		return q.Where(map[string]any(criteria[0]))
	}

	group := q.Session(&gorm.Session{NewDB: true}).Where(map[string]any(criteria[0]))
	for _, f := range criteria[1:] {
		group = group.Or(map[string]any(f))
	}

	return q.Where(group)
}

// requestSort converts sort keys ("-" prefix for descending) into an ORDER
// BY clause. Keys that are not columns of sch are dropped.
func requestSort(sch *schema.Schema, sort []string) clause.OrderBy {
	var order clause.OrderBy

	for _, s := range sort {
		desc := strings.HasPrefix(s, "-")
		field := sch.LookUpField(strings.TrimPrefix(s, "-"))
		if field == nil || field.DBName == "" {
			continue
		}

		order.Columns = append(order.Columns, clause.OrderByColumn{
			Column: clause.Column{Table: clause.CurrentTable, Name: field.DBName},
			Desc:   desc,
		})
	}

	return order
}
