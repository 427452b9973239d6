package safe

import (
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/zhihao1021/tjoy/tools/errs"
)

// MustNotNil panics if the given value is nil.
// Useful for enforcing required collaborators during construction.
func MustNotNil(v any, name string) {
	if v == nil {
		panic(fmt.Sprintf("%s must not be nil", name))
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if rv.IsNil() {
			panic(fmt.Sprintf("%s must not be nil", name))
		}
	}
}

// DefaultString returns the dereferenced value of a string pointer,
// or the fallback if the pointer is nil.
func DefaultString(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}

// Go starts f in a new goroutine that recovers from panic,
// so that a bug in one task cannot crash the gateway.
func Go(log *zap.Logger, name string, f func()) {
	go Run(log, name, f)
}

// Run calls f and recovers from panic. It reports whether f returned normally.
func Run(log *zap.Logger, name string, f func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			if log != nil {
				log.Error("panic recovered", zap.String("task", name), zap.Error(errs.ErrPanic(r)))
			}
		}
	}()
	f()
	return true
}
