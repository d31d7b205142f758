package store

import "testing"

func TestIdenticalValues(t *testing.T) {
	shared := []any{"a"}
	m := map[string]any{}
	type withIface struct{ V any }
	cases := []struct {
		name string
		a, b any
		want bool
	}{
		{"same slice", shared, shared, true},
		{"copied slice", shared, append([]any(nil), shared...), false},
		{"same map", m, m, true},
		{"equal ints", 3, 3, true},
		{"different types", 3, int64(3), false},
		{"nil pair", nil, nil, true},
		{"uncomparable payload", withIface{V: []int{1}}, withIface{V: []int{1}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := identical(tc.a, tc.b); got != tc.want {
				t.Fatalf("identical(%#v, %#v) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}
