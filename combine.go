package store

import (
	"fmt"
	"reflect"
	"sort"
)

// SliceReducer reduces one top-level slice. It receives nil when the slice is
// absent from state.
type SliceReducer func(slice any, action Action) (any, error)

// CombineReducers builds a Reducer that hands each named slice to its own
// reducer. Slices without a reducer pass through untouched. When no slice
// changes, the input state is returned as is.
func CombineReducers(reducers map[string]SliceReducer) Reducer {
	names := make([]string, 0, len(reducers))
	table := make(map[string]SliceReducer, len(reducers))
	for name, reducer := range reducers {
		if reducer == nil {
			continue
		}
		names = append(names, name)
		table[name] = reducer
	}
	sort.Strings(names)

	return func(state State, action Action) (State, error) {
		var next State
		for _, name := range names {
			prev, had := state[name]
			value, err := table[name](prev, action)
			if err != nil {
				return state, fmt.Errorf("store: reducer %q: %w", name, err)
			}
			if had && identical(prev, value) {
				continue
			}
			if !had && value == nil {
				continue
			}
			if next == nil {
				next = make(State, len(state)+1)
				for k, v := range state {
					next[k] = v
				}
			}
			next[name] = value
		}
		if next == nil {
			return state, nil
		}
		return next, nil
	}
}

// identical reports whether two slice values are the same reference (maps,
// slices, pointers) or equal comparable values.
func identical(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Map, reflect.Pointer, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return va.UnsafePointer() == vb.UnsafePointer()
	case reflect.Slice:
		return va.Len() == vb.Len() && va.UnsafePointer() == vb.UnsafePointer()
	}
	if !va.Type().Comparable() {
		return false
	}
	return safeEqual(a, b)
}

// safeEqual compares values whose type is comparable but may hold an
// interface field with an uncomparable dynamic value.
func safeEqual(a, b any) (equal bool) {
	defer func() {
		if recover() != nil {
			equal = false
		}
	}()
	return a == b
}
