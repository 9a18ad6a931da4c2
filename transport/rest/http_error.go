package rest

import (
	"errors"
	"net/http"

	"github.com/logistics-id/crud/common"
)

// Message defines the allowed standard message values
type Message string

const (
	MsgSuccess Message = "success"
	MsgCreated Message = "resource created"
	MsgUpdated Message = "resource updated"
	MsgDeleted Message = "resource deleted"

	MsgInvalidJSON     Message = "invalid request body"
	MsgInvalidField    Message = "invalid field value"
	MsgValidationError Message = "validation failed"

	MsgNotFound      Message = "resource not found"
	MsgInternalError Message = "internal server error"
	MsgBadRequest    Message = "invalid request body. please check your input format"
	MsgNotAllowed    Message = "method not allowed"
)

type HTTPError struct {
	Code    int
	Message Message
}

func (e HTTPError) Error() string {
	return string(e.Message)
}

func BadRequest() HTTPError {
	return HTTPError{Code: http.StatusBadRequest, Message: MsgBadRequest}
}

func InternalServer() HTTPError {
	return HTTPError{Code: http.StatusInternalServerError, Message: MsgInternalError}
}

func NotFound() HTTPError {
	return HTTPError{Code: http.StatusNotFound, Message: MsgNotFound}
}

func NotAllowed() HTTPError {
	return HTTPError{Code: http.StatusMethodNotAllowed, Message: MsgNotAllowed}
}

// FromError maps an error returned by a CRUD service onto an HTTPError.
// Not found errors keep the message chosen by the caller of the service.
func FromError(err error) HTTPError {
	var (
		httpErr HTTPError
		nf      *common.NotFoundError
	)

	switch {
	case errors.As(err, &httpErr):
		return httpErr
	case errors.As(err, &nf):
		return HTTPError{Code: http.StatusNotFound, Message: Message(nf.Message)}
	case errors.Is(err, common.ErrNotFound):
		return NotFound()
	case errors.Is(err, common.ErrInvalidPagination),
		errors.Is(err, common.ErrUnknownField),
		errors.Is(err, common.ErrUnknownRelation):
		return HTTPError{Code: http.StatusBadRequest, Message: Message(err.Error())}
	}

	return InternalServer()
}
