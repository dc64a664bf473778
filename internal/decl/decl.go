// Package decl provides a declarative way to build tasks from a
// parameter struct, the Go analogue of the source project's
// typing.Annotated-based parameter inspection. Go has no runtime
// parameter metadata, so the equivalent information is carried on
// struct field tags instead.
package decl

import (
	"context"
	"fmt"
	"reflect"

	"github.com/noppelmax/depio-go/internal/domain/artifact"
	"github.com/noppelmax/depio-go/internal/domain/task"
)

// Tag values recognized on a `depio:"..."` struct tag.
const (
	tagDependency = "dependency"
	tagProduct    = "product"
	tagIgnoreEq   = "ignore_eq"
)

// Func is a task body parameterized over a concrete params struct T,
// the declarative analogue of task.Func.
type Func[T any] func(ctx context.Context, params T) error

// Task builds a *task.Task from fn and params: any field of T tagged
// `depio:"dependency"` becomes a declared Dependency, any field tagged
// `depio:"product"` becomes a declared Product, both by calling
// artifact.File on the field's string value. Fields tagged
// `depio:"ignore_eq"` are excluded from the equality key returned by
// EqualityKey, so two params values that differ only in such a field
// have the same key. Task itself does not consult that key: every call
// returns a new *task.Task, and pipeline.AddTask compares tasks by
// pointer, so two calls register as two distinct tasks.
//
// T's fields must be exported and of kind string or
// artifact.Reference to be recognized as a dependency/product; any
// other tagged field is a configuration error, reported via the
// returned error.
func Task[T any](name string, queueID int, fn Func[T], params T, opts ...task.Option) (*task.Task, error) {
	deps, products, err := extractRefs(params)
	if err != nil {
		return nil, fmt.Errorf("decl: task %q: %w", name, err)
	}

	allOpts := make([]task.Option, 0, len(opts)+2)
	allOpts = append(allOpts, task.WithDependencies(deps...), task.WithProducts(products...))
	allOpts = append(allOpts, opts...)

	t := task.New(name, queueID, func(ctx context.Context) error {
		return fn(ctx, params)
	}, allOpts...)
	return t, nil
}

// EqualityKey returns a string uniquely identifying params by its
// non-ignored, tagged fields, so callers can detect whether two
// declarative Task calls describe the same underlying task.
func EqualityKey[T any](params T) (string, error) {
	v := reflect.ValueOf(params)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return "", fmt.Errorf("decl: params must be a struct, got %s", v.Kind())
	}

	key := ""
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tagRaw, ok := field.Tag.Lookup("depio")
		if !ok {
			continue
		}
		if hasTagValue(tagRaw, tagIgnoreEq) {
			continue
		}
		key += fmt.Sprintf("%s=%v;", field.Name, v.Field(i).Interface())
	}
	return key, nil
}

func extractRefs(params any) (deps, products []artifact.Reference, err error) {
	v := reflect.ValueOf(params)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, nil, fmt.Errorf("params must be a struct, got %s", v.Kind())
	}

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tagRaw, ok := field.Tag.Lookup("depio")
		if !ok {
			continue
		}

		ref, err := fieldToReference(v.Field(i))
		if err != nil {
			return nil, nil, fmt.Errorf("field %s: %w", field.Name, err)
		}

		switch {
		case hasTagValue(tagRaw, tagDependency):
			if ref != nil {
				deps = append(deps, ref)
			}
		case hasTagValue(tagRaw, tagProduct):
			if ref != nil {
				products = append(products, ref)
			}
		case hasTagValue(tagRaw, tagIgnoreEq):
			// recognized but carries no artifact meaning on its own.
		default:
			return nil, nil, fmt.Errorf("field %s: unrecognized depio tag %q", field.Name, tagRaw)
		}
	}
	return deps, products, nil
}

// fieldToReference converts a tagged field's value into an
// artifact.Reference. A string field becomes a FileReference; a field
// already holding an artifact.Reference is passed through unchanged.
func fieldToReference(fv reflect.Value) (artifact.Reference, error) {
	if ref, ok := fv.Interface().(artifact.Reference); ok {
		return ref, nil
	}
	if fv.Kind() == reflect.String {
		return artifact.File(fv.String()), nil
	}
	return nil, fmt.Errorf("unsupported kind %s, want string or artifact.Reference", fv.Kind())
}

// hasTagValue reports whether comma-separated tag contains value.
func hasTagValue(tag, value string) bool {
	start := 0
	for i := 0; i <= len(tag); i++ {
		if i == len(tag) || tag[i] == ',' {
			if tag[start:i] == value {
				return true
			}
			start = i + 1
		}
	}
	return false
}
