// Package apperr описывает типизированные ошибки локального хранилища и синхронизации.
package apperr

import (
	"errors"
	"fmt"
)

// Kind — класс ошибки.
type Kind int

const (
	KindUnknown Kind = iota
	// KindOpenFailure — хранилище не удалось открыть/обновить. Хэндл непригоден до нового Open.
	KindOpenFailure
	// KindKeyConflict — add с уже существующим ключом.
	KindKeyConflict
	// KindNotFound — get/delete/update по отсутствующему id.
	KindNotFound
	// KindTransformNoop — чистое преобразование ничего не изменило.
	KindTransformNoop
	// KindNetworkFailure — сетевой вызов не удался (или вернул не-2xx).
	KindNetworkFailure
	// KindInvalid — некорректные входные данные.
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindOpenFailure:
		return "open_failure"
	case KindKeyConflict:
		return "key_conflict"
	case KindNotFound:
		return "not_found"
	case KindTransformNoop:
		return "transform_noop"
	case KindNetworkFailure:
		return "network_failure"
	case KindInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Sentinel-ошибки для errors.Is.
var (
	ErrOpenFailure    = &Error{Kind: KindOpenFailure}
	ErrKeyConflict    = &Error{Kind: KindKeyConflict}
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrTransformNoop  = &Error{Kind: KindTransformNoop}
	ErrNetworkFailure = &Error{Kind: KindNetworkFailure}
	ErrInvalid        = &Error{Kind: KindInvalid}
)

// Error — ошибка с классом, операцией и исходной причиной.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap возвращает исходную ошибку.
func (e *Error) Unwrap() error { return e.Err }

// Is сравнивает только класс ошибки, поэтому errors.Is(err, ErrNotFound) работает
// для любого *Error с KindNotFound.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// New создаёт ошибку заданного класса.
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap оборачивает err в ошибку заданного класса. Возвращает nil для nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf возвращает класс ошибки или KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
