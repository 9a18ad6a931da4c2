package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type Context struct {
	context.Context

	Response http.ResponseWriter
	Request  *http.Request

	logger *zap.Logger
}

// Bind decodes the JSON request body into v and validates it with the
// `validate` struct tags. Map targets are decoded without validation.
func (c *Context) Bind(v any) error {
	if c.Request.ContentLength == 0 {
		return BadRequest()
	}

	if err := json.NewDecoder(c.Request.Body).Decode(v); err != nil {
		c.logger.Warn("REST/BIND", zap.Error(err))
		return BadRequest()
	}

	if rv := reflect.Indirect(reflect.ValueOf(v)); rv.Kind() != reflect.Struct {
		return nil
	}

	return validate.Struct(v)
}

// BindQuery fills v from the URL query, using the `query` tag or the lower
// cased field name as key.
func (c *Context) BindQuery(v any) error {
	if err := bindStructFields(v, c.Request.URL.Query()); err != nil {
		c.logger.Warn("REST/BIND", zap.Error(err))
		return BadRequest()
	}

	return nil
}

// JSON writes a standard JSON response with status code
func (c *Context) JSON(code int, data any) error {
	c.Response.Header().Set("Content-Type", "application/json")
	c.Response.WriteHeader(code)
	return json.NewEncoder(c.Response).Encode(data)
}

// Error returns a structured error response with the given status code
func (c *Context) Error(code int, message Message, errs any) error {
	return c.JSON(code, ResponseBody{
		Success: false,
		Message: string(message),
		Errors:  errs,
	})
}

// Query returns a query string parameter by key
func (c *Context) Query(key string) string {
	return c.Request.URL.Query().Get(key)
}

// Param returns a path parameter by key (using gorilla/mux)
func (c *Context) Param(key string) string {
	return mux.Vars(c.Request)[key]
}

// Respond writes body on success, or the error mapped by FromError.
func (c *Context) Respond(body any, err error) error {
	var verrs validator.ValidationErrors

	switch {
	case err == nil:
		statusCode := http.StatusOK

		if rb, ok := body.(*ResponseBody); ok {
			if rb.StatusCode > 0 {
				statusCode = rb.StatusCode
			}
			if rb.Message == "" {
				rb.Message = string(MsgSuccess)
			}
			rb.Success = true
			return c.JSON(statusCode, rb)
		}

		return c.JSON(statusCode, ResponseBody{
			Success: true,
			Message: string(MsgSuccess),
			Data:    body,
		})

	case errors.As(err, &verrs):
		return c.JSON(http.StatusUnprocessableEntity, ResponseBody{
			Success: false,
			Message: string(MsgValidationError),
			Errors:  validationMessages(verrs),
		})
	}

	he := FromError(err)
	if he.Code >= http.StatusInternalServerError {
		c.logger.Error("REST/ERROR", zap.Error(err))
		return c.Error(he.Code, he.Message, err.Error())
	}

	return c.Error(he.Code, he.Message, nil)
}

func validationMessages(verrs validator.ValidationErrors) map[string]string {
	msgs := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		msgs[strings.ToLower(fe.Field())] = fmt.Sprintf("failed on the '%s' rule", fe.Tag())
	}

	return msgs
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	if field.Kind() == reflect.Ptr {
		elemValue := reflect.New(field.Type().Elem()).Elem()
		if err := setFieldValue(elemValue, value); err != nil {
			return err
		}
		field.Set(elemValue.Addr())
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int64:
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(i)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", field.Type())
		}
		field.Set(reflect.ValueOf(strings.Split(value, ",")))
	}

	return nil
}

func bindStructFields(v any, values url.Values) error {
	val := reflect.ValueOf(v).Elem()
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		if fieldType.Anonymous && field.Kind() == reflect.Struct {
			if err := bindStructFields(field.Addr().Interface(), values); err != nil {
				return err
			}
			continue
		}

		tag := fieldType.Tag.Get("query")
		if tag == "" {
			tag = strings.ToLower(fieldType.Name)
		}

		paramVal := values.Get(tag)
		if paramVal == "" {
			continue
		}

		if err := setFieldValue(field, paramVal); err != nil {
			return fmt.Errorf("failed to bind field '%s': %w", tag, err)
		}
	}

	return nil
}
