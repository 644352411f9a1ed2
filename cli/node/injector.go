// This file contains the implementation of a dependency injector using
// reflection.
//
// Documentation Last Review: 13.10.2020
//

package node

import (
	"reflect"
	"sync"

	"golang.org/x/xerrors"
)

// ReflectInjector is a dependency injector that uses reflection to resolve
// specific interfaces. The dependencies are kept in injection order so that
// the resolution does not depend on the iteration of a map.
//
// - implements node.Injector
type reflectInjector struct {
	sync.Mutex
	deps []dependency
}

type dependency struct {
	typ   reflect.Type
	value interface{}
}

// NewInjector returns a empty injector.
func NewInjector() Injector {
	return &reflectInjector{}
}

// Resolve implements node.Injector. It populates the given interface with the
// most recently injected compatible dependency.
func (inj *reflectInjector) Resolve(v interface{}) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr {
		return xerrors.New("expect a pointer")
	}

	if !rv.Elem().IsValid() {
		return xerrors.Errorf("reflect value '%v' is invalid", rv)
	}

	inj.Lock()
	defer inj.Unlock()

	for i := len(inj.deps) - 1; i >= 0; i-- {
		dep := inj.deps[i]

		if dep.typ.AssignableTo(rv.Elem().Type()) {
			rv.Elem().Set(reflect.ValueOf(dep.value))
			return nil
		}
	}

	return xerrors.Errorf("couldn't find dependency for '%v'", rv.Elem().Type())
}

// Inject implements node.Injector. It injects the dependency to be available
// later on. A dependency of the same type replaces the previous one and takes
// precedence over the others.
func (inj *reflectInjector) Inject(v interface{}) {
	inj.Lock()
	defer inj.Unlock()

	key := reflect.TypeOf(v)

	for i, dep := range inj.deps {
		if dep.typ == key {
			inj.deps = append(inj.deps[:i], inj.deps[i+1:]...)
			break
		}
	}

	inj.deps = append(inj.deps, dependency{typ: key, value: v})
}
