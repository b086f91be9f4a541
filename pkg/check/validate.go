package check

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Validatable is implemented by config structs that can check their own fields, such as
// model.HyperbandConfig or logger.Config.
type Validatable interface {
	Validate() []error
}

// ValidationError holds every failed check found under a config value. Each error is wrapped
// with the field path it was found at, e.g. "root.Hyperband".
type ValidationError struct {
	Errs []error
}

func (v ValidationError) Error() string {
	msgs := make([]string, len(v.Errs))
	for i, err := range v.Errs {
		msgs[i] = err.Error()
	}
	sort.Strings(msgs)
	return fmt.Sprintf("%d validation errors found:\n\t%s", len(msgs), strings.Join(msgs, "\n\t"))
}

// Unwrap lets errors.Is and errors.As look at the individual failures.
func (v ValidationError) Unwrap() []error {
	return v.Errs
}

// Validate runs Validate on v and on every Validatable reachable from it through exported
// fields, pointers, interfaces, slices, arrays and maps. It returns nil or a ValidationError.
func Validate(v interface{}) error {
	var w walker
	w.walk(reflect.ValueOf(v), "root")
	if len(w.errs) == 0 {
		return nil
	}
	return ValidationError{Errs: w.errs}
}

type walker struct {
	errs []error
}

func (w *walker) walk(v reflect.Value, path string) {
	if !v.IsValid() {
		return
	}

	switch v.Kind() {
	case reflect.Ptr, reflect.Interface:
		if !v.IsNil() {
			w.walk(v.Elem(), path)
		}
		return
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			w.walk(v.Index(i), fmt.Sprintf("%s[%d]", path, i))
		}
	case reflect.Map:
		// Map order is random; sort so repeated runs report in the same order.
		keys := v.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
		})
		for _, key := range keys {
			w.walk(v.MapIndex(key), fmt.Sprintf("%s[%v]", path, key.Interface()))
		}
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			if t.Field(i).IsExported() {
				w.walk(v.Field(i), path+"."+t.Field(i).Name)
			}
		}
	}

	w.check(v, path)
}

// check calls Validate on v itself, whether the method has a value or pointer receiver.
func (w *walker) check(v reflect.Value, path string) {
	if !v.CanInterface() {
		return
	}
	ptr := reflect.New(v.Type())
	ptr.Elem().Set(v)
	validatable, ok := ptr.Interface().(Validatable)
	if !ok {
		return
	}
	for _, err := range validatable.Validate() {
		if err != nil {
			w.errs = append(w.errs, errors.Wrapf(err, "error found at %s", path))
		}
	}
}
