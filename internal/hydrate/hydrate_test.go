package hydrate

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
)

type tableState struct {
	SortColumn string   `json:"sortColumn"`
	Page       int      `json:"page"`
	Filters    []string `json:"filters,omitempty"`
}

func (s tableState) Validate() error {
	if s.Page < 0 {
		return errors.New("page must not be negative")
	}
	return nil
}

func TestDecoderCases(t *testing.T) {
	renamePage := func(_ Context, raw json.RawMessage) (json.RawMessage, error) {
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		if v, ok := m["currentPage"]; ok {
			m["page"] = v
			delete(m, "currentPage")
		}
		return json.Marshal(m)
	}
	defaultSort := func(_ Context, s *tableState) error {
		if s.SortColumn == "" {
			s.SortColumn = "name"
		}
		return nil
	}

	cases := []struct {
		name      string
		input     string
		options   []DecoderOption[tableState]
		expect    tableState
		expectErr string
	}{
		{
			name:   "plain",
			input:  `{"sortColumn":"familyId","page":2}`,
			expect: tableState{SortColumn: "familyId", Page: 2},
		},
		{
			name:    "pre hook migrates field",
			input:   `{"sortColumn":"familyId","currentPage":4}`,
			options: []DecoderOption[tableState]{WithPreHook[tableState](renamePage)},
			expect:  tableState{SortColumn: "familyId", Page: 4},
		},
		{
			name:    "post hook fills default",
			input:   `{"page":1}`,
			options: []DecoderOption[tableState]{WithPostHook[tableState](defaultSort)},
			expect:  tableState{SortColumn: "name", Page: 1},
		},
		{
			name:      "unknown field rejected",
			input:     `{"sortColumn":"x","legacy":true}`,
			options:   []DecoderOption[tableState]{WithDisallowUnknownFields[tableState]()},
			expectErr: "unknown field",
		},
		{
			name:      "validation failure",
			input:     `{"page":-1}`,
			options:   []DecoderOption[tableState]{WithValidation[tableState]()},
			expectErr: "page must not be negative",
		},
		{
			name:      "corrupt payload",
			input:     `{"page":`,
			expectErr: "decode key",
		},
		{
			name:      "empty payload",
			input:     ``,
			expectErr: "payload is empty",
		},
		{
			name:      "trailing data",
			input:     `{"page":1} {"page":2}`,
			expectErr: "trailing data",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decoder := NewDecoder(tc.options...)
			got, err := decoder.Decode(Context{Key: "familyTableState", Version: 1}, json.RawMessage(tc.input))
			if tc.expectErr != "" {
				if err == nil {
					t.Fatalf("expected error %q, got nil", tc.expectErr)
				}
				if !strings.Contains(err.Error(), tc.expectErr) {
					t.Fatalf("expected error containing %q, got %v", tc.expectErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected decode error: %v", err)
			}
			if !reflect.DeepEqual(tc.expect, got) {
				t.Fatalf("decoded mismatch:\nwant: %#v\n got: %#v", tc.expect, got)
			}
		})
	}
}

func TestDecoderUseNumber(t *testing.T) {
	decoder := NewDecoder(WithUseNumber[any]())
	got, err := decoder.Decode(Context{Key: "k"}, json.RawMessage(`{"n":12345678901234567890}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	n, ok := got.(map[string]any)["n"].(json.Number)
	if !ok || n.String() != "12345678901234567890" {
		t.Fatalf("expected json.Number preserved, got %#v", got)
	}
}

func TestDecoderCustomDecoder(t *testing.T) {
	decoder := NewDecoder(WithCustomDecoder[string](func(ctx Context, raw json.RawMessage) (string, error) {
		return ctx.Key + ":" + string(raw), nil
	}))
	got, err := decoder.Decode(Context{Key: "cart"}, json.RawMessage(`[1]`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != "cart:[1]" {
		t.Fatalf("unexpected custom result %q", got)
	}
}

func TestDecoderDoesNotMutatePayload(t *testing.T) {
	payload := json.RawMessage(`{"page":1}`)
	decoder := NewDecoder(WithPreHook[tableState](func(_ Context, raw json.RawMessage) (json.RawMessage, error) {
		raw[1] = 'X'
		return json.RawMessage(`{"page":3}`), nil
	}))
	if _, err := decoder.Decode(Context{Key: "k"}, payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(payload) != `{"page":1}` {
		t.Fatalf("expected caller payload untouched, got %s", payload)
	}
}
