package rest

import (
	"net/http"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/logistics-id/crud/common"
)

const defaultPageSize = 10

// Resource exposes a common.Service as JSON routes under Prefix:
//
//	POST   /prefix        Create
//	GET    /prefix        GetAll, or GetAllWithPagination when page or limit is given
//	GET    /prefix/{id}   GetOneByIDOrFail
//	PATCH  /prefix/{id}   UpdateByID
//	DELETE /prefix/{id}   RemoveByID, SoftRemoveByID with ?soft=true
//
// Query keys other than page, limit, sort, include and soft filter the
// listing by equality, a repeated key matches any of its values. A filter key
// must be a plain identifier, so operator keys like $where and dotted paths
// are refused with 400. When the key names a numeric or bool field of T
// (by json name) the value is parsed into that type, anything else is
// compared as a string. sort and include take comma separated lists.
type Resource[T any] struct {
	Prefix  string
	Service common.Service[T]

	// NotFoundMessage is passed to the OrFail lookups, empty keeps the
	// service default.
	NotFoundMessage string
}

type listQuery struct {
	Page    *int     `query:"page"`
	Limit   *int     `query:"limit"`
	Sort    []string `query:"sort"`
	Include []string `query:"include"`
}

var reservedQuery = map[string]struct{}{
	"page":    {},
	"limit":   {},
	"sort":    {},
	"include": {},
	"soft":    {},
}

// Mount registers the routes of r on s.
func (r *Resource[T]) Mount(s *Server) {
	s.POST(r.Prefix, r.create)
	s.GET(r.Prefix, r.list)
	s.GET(r.Prefix+"/{id}", r.show)
	s.PATCH(r.Prefix+"/{id}", r.update)
	s.DELETE(r.Prefix+"/{id}", r.remove)
}

func (r *Resource[T]) create(c *Context) error {
	entity := new(T)
	if err := c.Bind(entity); err != nil {
		return err
	}

	created, err := r.Service.Create(c, entity)

	return c.Respond(&ResponseBody{StatusCode: http.StatusCreated, Message: string(MsgCreated), Data: created}, err)
}

func (r *Resource[T]) list(c *Context) error {
	var q listQuery
	if err := c.BindQuery(&q); err != nil {
		return err
	}

	where, err := r.filter(c)
	if err != nil {
		return c.Respond(nil, err)
	}

	opts := common.FindOptions{
		Where:     where,
		Relations: q.Include,
		Order:     q.Sort,
	}

	if q.Page == nil && q.Limit == nil {
		data, err := r.Service.GetAll(c, opts)
		return c.Respond(data, err)
	}

	popts := common.FindWithPaginationOptions{FindOptions: opts, Page: 1, Limit: defaultPageSize}
	if q.Page != nil {
		popts.Page = *q.Page
	}
	if q.Limit != nil {
		popts.Limit = *q.Limit
	}

	page, err := r.Service.GetAllWithPagination(c, popts)
	if err != nil {
		return c.Respond(nil, err)
	}

	return c.Respond(Paginated(page), nil)
}

func (r *Resource[T]) show(c *Context) error {
	var q listQuery
	if err := c.BindQuery(&q); err != nil {
		return err
	}

	entity, err := r.Service.GetOneByIDOrFail(c, c.Param("id"), q.Include, r.NotFoundMessage)

	return c.Respond(entity, err)
}

func (r *Resource[T]) update(c *Context) error {
	var q listQuery
	if err := c.BindQuery(&q); err != nil {
		return err
	}

	var patch common.Patch
	if err := c.Bind(&patch); err != nil {
		return err
	}

	entity, err := r.Service.UpdateByID(c, c.Param("id"), patch, q.Include, r.NotFoundMessage)

	return c.Respond(&ResponseBody{Message: string(MsgUpdated), Data: entity}, err)
}

func (r *Resource[T]) remove(c *Context) error {
	var (
		entity *T
		err    error
	)

	if c.Query("soft") == "true" {
		entity, err = r.Service.SoftRemoveByID(c, c.Param("id"), r.NotFoundMessage)
	} else {
		entity, err = r.Service.RemoveByID(c, c.Param("id"), r.NotFoundMessage)
	}

	return c.Respond(&ResponseBody{Message: string(MsgDeleted), Data: entity}, err)
}

var filterKey = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func (r *Resource[T]) filter(c *Context) (common.Filter, error) {
	fields := filterFields(reflect.TypeOf((*T)(nil)).Elem())

	f := common.Filter{}
	for k, v := range c.Request.URL.Query() {
		if _, ok := reservedQuery[k]; ok || len(v) == 0 {
			continue
		}
		if !filterKey.MatchString(k) {
			return nil, HTTPError{Code: http.StatusBadRequest, Message: MsgInvalidField + Message(": "+k)}
		}

		ft, ok := fields[k]
		if !ok {
			if len(v) == 1 {
				f[k] = v[0]
			} else {
				f[k] = v
			}
			continue
		}

		values := reflect.MakeSlice(reflect.SliceOf(ft), 0, len(v))
		for _, raw := range v {
			val, err := parseFilterValue(ft, raw)
			if err != nil {
				return nil, HTTPError{Code: http.StatusBadRequest, Message: MsgInvalidField + Message(": "+k)}
			}
			values = reflect.Append(values, val)
		}

		if len(v) == 1 {
			f[k] = values.Index(0).Interface()
		} else {
			f[k] = values.Interface()
		}
	}

	return f, nil
}

// filterFields maps the json names of the numeric and bool fields of t,
// embedded structs included, to their types.
func filterFields(t reflect.Type) map[string]reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	out := map[string]reflect.Type{}
	if t.Kind() != reflect.Struct {
		return out
	}

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)

		name := sf.Name
		if tag, ok := sf.Tag.Lookup("json"); ok {
			if tag == "-" {
				continue
			}
			if n, _, _ := strings.Cut(tag, ","); n != "" {
				name = n
			}
		}

		if sf.Anonymous && sf.Tag.Get("json") == "" {
			for k, v := range filterFields(sf.Type) {
				if _, ok := out[k]; !ok {
					out[k] = v
				}
			}
			continue
		}
		if !sf.IsExported() {
			continue
		}

		ft := sf.Type
		for ft.Kind() == reflect.Ptr {
			ft = ft.Elem()
		}

		switch ft.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
			reflect.Float32, reflect.Float64, reflect.Bool:
			out[name] = ft
		}
	}

	return out
}

func parseFilterValue(t reflect.Type, raw string) (reflect.Value, error) {
	v := reflect.New(t).Elem()

	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, t.Bits())
		if err != nil {
			return v, err
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, t.Bits())
		if err != nil {
			return v, err
		}
		v.SetUint(n)
	case reflect.Float32, reflect.Float64:
		n, err := strconv.ParseFloat(raw, t.Bits())
		if err != nil {
			return v, err
		}
		v.SetFloat(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return v, err
		}
		v.SetBool(b)
	}

	return v, nil
}
