package check

import (
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
)

// GreaterThan returns an error with the provided message if actual is not greater than
// expected.
func GreaterThan[T constraints.Ordered](actual, expected T, msgAndArgs ...interface{}) error {
	return check(actual > expected, msgAndArgs, "%v is not greater than %v", actual, expected)
}

// GreaterThanOrEqualTo returns an error with the provided message if actual is less than
// expected.
func GreaterThanOrEqualTo[T constraints.Ordered](
	actual, expected T, msgAndArgs ...interface{},
) error {
	return check(actual >= expected, msgAndArgs,
		"%v is not greater than or equal to %v", actual, expected)
}

// LessThanOrEqualTo returns an error with the provided message if actual is greater than
// expected.
func LessThanOrEqualTo[T constraints.Ordered](
	actual, expected T, msgAndArgs ...interface{},
) error {
	return check(actual <= expected, msgAndArgs,
		"%v is not less than or equal to %v", actual, expected)
}

// In returns an error with the provided message if actual is not one of expected.
func In[T comparable](actual T, expected []T, msgAndArgs ...interface{}) error {
	for _, value := range expected {
		if value == actual {
			return nil
		}
	}
	return check(false, msgAndArgs, "%v not in %v", actual, expected)
}

// True returns an error with the provided message if condition is false.
func True(condition bool, msgAndArgs ...interface{}) error {
	return check(condition, msgAndArgs, "condition is false")
}

func check(ok bool, msgAndArgs []interface{}, defaultFormat string, args ...interface{}) error {
	if ok {
		return nil
	}
	if msg := message(msgAndArgs...); msg != "" {
		return errors.Errorf("%s: %s", msg, fmt.Sprintf(defaultFormat, args...))
	}
	return errors.Errorf(defaultFormat, args...)
}

func message(msgAndArgs ...interface{}) string {
	switch {
	case len(msgAndArgs) == 1:
		if msg, ok := msgAndArgs[0].(string); ok {
			return msg
		}
		return fmt.Sprintf("%+v", msgAndArgs[0])
	case len(msgAndArgs) > 1:
		format, ok := msgAndArgs[0].(string)
		if !ok {
			return fmt.Sprint(msgAndArgs...)
		}
		return fmt.Sprintf(format, msgAndArgs[1:]...)
	default:
		return ""
	}
}
