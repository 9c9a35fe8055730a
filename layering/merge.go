// Package layering merges values ordered from strongest to weakest layer.
//
// Nil maps, slices and pointers in a stronger layer are filled from the
// weaker ones. Scalars from the strongest layer win unless WithZeroAsMissing
// is set, in which case zero scalars also fall through.
package layering

import "reflect"

// SliceMode controls how slices present in more than one layer combine.
type SliceMode int

const (
	// SliceReplace keeps the strongest non-nil slice.
	SliceReplace SliceMode = iota
	// SliceAppend concatenates strong then weak elements, dropping
	// duplicates of comparable elements.
	SliceAppend
)

type Option func(*merger)

func WithSliceMode(mode SliceMode) Option {
	return func(m *merger) {
		m.slices = mode
	}
}

func WithZeroAsMissing() Option {
	return func(m *merger) {
		m.zeroMissing = true
	}
}

type merger struct {
	slices      SliceMode
	zeroMissing bool
}

// Merge composes layers ordered from strongest to weakest and returns a
// deep copy; none of the inputs are mutated.
func Merge[T any](layers []T, opts ...Option) T {
	var zero T
	if len(layers) == 0 {
		return zero
	}
	m := &merger{}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	merged := cloneValue(reflect.ValueOf(layers[len(layers)-1]))
	for i := len(layers) - 2; i >= 0; i-- {
		merged = m.merge(reflect.ValueOf(layers[i]), merged)
	}
	if !merged.IsValid() {
		return zero
	}
	target := reflect.TypeOf(zero)
	if target != nil && merged.Type() != target {
		return merged.Convert(target).Interface().(T)
	}
	return merged.Interface().(T)
}

func (m *merger) merge(strong, weak reflect.Value) reflect.Value {
	if !strong.IsValid() {
		return cloneValue(weak)
	}

	switch strong.Kind() {
	case reflect.Pointer:
		if strong.IsNil() {
			return cloneValue(weak)
		}
		var weakElem reflect.Value
		if weak.IsValid() && weak.Kind() == reflect.Pointer && !weak.IsNil() {
			weakElem = weak.Elem()
		}
		result := reflect.New(strong.Type().Elem())
		result.Elem().Set(m.merge(strong.Elem(), weakElem))
		return result
	case reflect.Struct:
		result := reflect.New(strong.Type()).Elem()
		sameType := weak.IsValid() && weak.Type() == strong.Type()
		for i := 0; i < strong.NumField(); i++ {
			field := result.Field(i)
			if !field.CanSet() {
				continue
			}
			var weakField reflect.Value
			if sameType {
				weakField = weak.Field(i)
			}
			field.Set(m.merge(strong.Field(i), weakField))
		}
		return result
	case reflect.Map:
		if strong.IsNil() {
			return cloneValue(weak)
		}
		result := reflect.MakeMapWithSize(strong.Type(), strong.Len())
		if weak.IsValid() && weak.Kind() == reflect.Map && !weak.IsNil() {
			iter := weak.MapRange()
			for iter.Next() {
				result.SetMapIndex(iter.Key(), cloneValue(iter.Value()))
			}
		}
		iter := strong.MapRange()
		for iter.Next() {
			key := iter.Key()
			if existing := result.MapIndex(key); existing.IsValid() {
				result.SetMapIndex(key, m.merge(iter.Value(), existing))
				continue
			}
			result.SetMapIndex(key, cloneValue(iter.Value()))
		}
		return result
	case reflect.Slice:
		if strong.IsNil() {
			return cloneValue(weak)
		}
		if m.slices == SliceAppend && weak.IsValid() && weak.Kind() == reflect.Slice {
			return appendUnique(strong, weak)
		}
		return cloneValue(strong)
	case reflect.Interface:
		if strong.IsNil() {
			return cloneValue(weak)
		}
		return cloneValue(strong)
	default:
		if m.zeroMissing && strong.IsZero() && weak.IsValid() {
			return cloneValue(weak)
		}
		return cloneValue(strong)
	}
}

func appendUnique(strong, weak reflect.Value) reflect.Value {
	result := reflect.MakeSlice(strong.Type(), 0, strong.Len()+weak.Len())
	comparable := strong.Type().Elem().Comparable()
	seen := map[any]struct{}{}
	add := func(v reflect.Value) {
		if comparable {
			key := v.Interface()
			if _, ok := seen[key]; ok {
				return
			}
			seen[key] = struct{}{}
		}
		result = reflect.Append(result, cloneValue(v))
	}
	for i := 0; i < strong.Len(); i++ {
		add(strong.Index(i))
	}
	for i := 0; i < weak.Len(); i++ {
		add(weak.Index(i))
	}
	return result
}

func cloneValue(v reflect.Value) reflect.Value {
	if !v.IsValid() {
		return v
	}

	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		clone := reflect.New(v.Type().Elem())
		clone.Elem().Set(cloneValue(v.Elem()))
		return clone
	case reflect.Struct:
		clone := reflect.New(v.Type()).Elem()
		for i := 0; i < v.NumField(); i++ {
			if field := clone.Field(i); field.CanSet() {
				field.Set(cloneValue(v.Field(i)))
			}
		}
		return clone
	case reflect.Map:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		clone := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			clone.SetMapIndex(iter.Key(), cloneValue(iter.Value()))
		}
		return clone
	case reflect.Slice:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		clone := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			clone.Index(i).Set(cloneValue(v.Index(i)))
		}
		return clone
	default:
		// Scalars and interfaces are copied by value; set-able copies keep
		// unexported struct fields out of reach.
		out := reflect.New(v.Type()).Elem()
		out.Set(v)
		return out
	}
}
