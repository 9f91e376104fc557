package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Публичные сообщения клиенту; подробности уходят в details только в dev.
const (
	MsgBadRequest  = "Virheellinen pyyntö"
	MsgTooLarge    = "Kuvat ovat liian suuria"
	MsgRateLimited = "Liian monta yritystä"
	MsgUpstream    = "Tekstintunnistus ei ole juuri nyt käytettävissä"
	MsgNotFound    = "Ei löytynyt"
	MsgInternal    = "Kuvien käsittelyssä tapahtui virhe"
)

type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("api error (%d)", e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, message string, err error) *Error {
	return &Error{Status: status, Message: message, Err: err}
}

func BadRequest(format string, args ...any) *Error {
	return New(http.StatusBadRequest, MsgBadRequest, fmt.Errorf(format, args...))
}

func TooLarge(format string, args ...any) *Error {
	return New(http.StatusRequestEntityTooLarge, MsgTooLarge, fmt.Errorf(format, args...))
}

func NotFound(format string, args ...any) *Error {
	return New(http.StatusNotFound, MsgNotFound, fmt.Errorf(format, args...))
}

func RateLimited() *Error {
	return New(http.StatusTooManyRequests, MsgRateLimited, nil)
}

func Upstream(err error) *Error {
	return New(http.StatusServiceUnavailable, MsgUpstream, err)
}

func Internal(err error) *Error {
	return New(http.StatusInternalServerError, MsgInternal, err)
}

// As достаёт *Error из цепочки; nil, если его там нет.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}
