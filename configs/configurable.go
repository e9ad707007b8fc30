package configs

import (
	"errors"
	"reflect"
)

type Configurable interface {
	ConfigExpr() string
}

var configurableType = reflect.TypeFor[Configurable]()

// ErrValueNotFound is returned by AssignFirst when no configured file
// provides a value at the requested cue path; First returns the zero value
// in that case instead.
var ErrValueNotFound = errors.New("configs: value not found")
