package apperrors

import (
	"errors"
	"fmt"
)

// Kind классифицирует ошибку ядра расписания
type Kind int

const (
	KindUnknown Kind = iota
	// KindInvalidRecurrence - правило повторения не разбирается или противоречиво
	KindInvalidRecurrence
	// KindStorageFailure - хранилище недоступно или не уложилось в таймаут
	KindStorageFailure
	// KindNotFound - урок или занятие отсутствует
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindInvalidRecurrence:
		return "invalid recurrence"
	case KindStorageFailure:
		return "storage failure"
	case KindNotFound:
		return "not found"
	default:
		return "unknown"
	}
}

var (
	ErrInvalidRecurrence = errors.New("invalid recurrence")
	ErrStorageFailure    = errors.New("storage failure")
	ErrNotFound          = errors.New("not found")
)

// Error ошибка с видом и операцией, в которой она возникла
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is позволяет сравнивать с ErrInvalidRecurrence, ErrStorageFailure, ErrNotFound через errors.Is
func (e *Error) Is(target error) bool {
	switch target {
	case ErrInvalidRecurrence:
		return e.Kind == KindInvalidRecurrence
	case ErrStorageFailure:
		return e.Kind == KindStorageFailure
	case ErrNotFound:
		return e.Kind == KindNotFound
	}
	return false
}

// InvalidRecurrence оборачивает ошибку разбора или валидации правила
func InvalidRecurrence(op string, err error) error {
	return &Error{Kind: KindInvalidRecurrence, Op: op, Err: err}
}

// StorageFailure оборачивает ошибку хранилища. Повторно не оборачивает.
func StorageFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) == KindStorageFailure {
		return err
	}
	return &Error{Kind: KindStorageFailure, Op: op, Err: err}
}

// NotFound создаёт ошибку об отсутствующей сущности
func NotFound(op, format string, args ...interface{}) error {
	return &Error{Kind: KindNotFound, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf возвращает вид первой ошибки ядра в цепочке
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsInvalidRecurrence(err error) bool {
	return errors.Is(err, ErrInvalidRecurrence)
}

func IsStorageFailure(err error) bool {
	return errors.Is(err, ErrStorageFailure)
}
