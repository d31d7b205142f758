package persist_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssadedin/go-statestore/pkg/persist"
)

type variantSearchDisplay struct {
	Sort     string `json:"sort"`
	Page     int    `json:"page"`
	PageSize int    `json:"recordsPerPage"`
}

func (d variantSearchDisplay) Validate() error {
	if d.PageSize < 0 {
		return errors.New("recordsPerPage must not be negative")
	}
	return nil
}

func TestSliceRoundTrip(t *testing.T) {
	key := persist.Slice[variantSearchDisplay]("variantSearchDisplay")
	want := variantSearchDisplay{Sort: "xpos", Page: 2, PageSize: 100}

	raw, err := key.Encode(want)
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":1,"data":{"sort":"xpos","page":2,"recordsPerPage":100}}`, string(raw))

	got, ok, err := key.Decode(raw)
	require.NoError(t, err)
	require.True(t, ok)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("decoded mismatch (-want +got):\n%s", diff)
	}

	fromPtr, err := key.Encode(&want)
	require.NoError(t, err)
	assert.Equal(t, string(raw), string(fromPtr))
}

func TestSliceRejectsWrongType(t *testing.T) {
	key := persist.Slice[variantSearchDisplay]("variantSearchDisplay")
	_, err := key.Encode(map[string]any{"sort": "xpos"})
	assert.ErrorIs(t, err, persist.ErrSliceType)
}

func TestSliceNilIsAbsent(t *testing.T) {
	key := persist.Untyped("searchesByHash")
	raw, err := key.Encode(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":1,"data":null}`, string(raw))

	_, ok, err := key.Decode(raw)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUntypedRoundTrip(t *testing.T) {
	key := persist.Untyped("cart")
	raw, err := key.Encode([]any{"apple"})
	require.NoError(t, err)

	got, ok, err := key.Decode(raw)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []any{"apple"}, got)
}

func TestDecodeCorruptRecords(t *testing.T) {
	key := persist.Slice[variantSearchDisplay]("variantSearchDisplay")
	for name, raw := range map[string]string{
		"empty":            ``,
		"invalid json":     `{"v":1,"data":`,
		"undefined string": `undefined`,
		"wrong data type":  `{"v":1,"data":"not an object"}`,
		"fails validation": `{"v":1,"data":{"recordsPerPage":-5}}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, ok, err := key.Decode([]byte(raw))
			assert.False(t, ok)
			assert.ErrorIs(t, err, persist.ErrCorrupt)
		})
	}
}

func TestDecodeNewerVersionRejected(t *testing.T) {
	key := persist.Untyped("cart", persist.WithVersion(1))
	_, ok, err := key.Decode([]byte(`{"v":3,"data":[]}`))
	assert.False(t, ok)
	assert.ErrorIs(t, err, persist.ErrVersion)
}

func TestDecodeMigratesOlderVersions(t *testing.T) {
	toV2 := func(data json.RawMessage) (json.RawMessage, error) {
		var legacy []string
		if err := json.Unmarshal(data, &legacy); err != nil {
			return nil, err
		}
		return json.Marshal(map[string]any{"items": legacy})
	}
	toV3 := func(data json.RawMessage) (json.RawMessage, error) {
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		m["currency"] = "AUD"
		return json.Marshal(m)
	}
	type cart struct {
		Items    []string `json:"items"`
		Currency string   `json:"currency"`
	}
	key := persist.Slice[cart]("cart",
		persist.WithVersion(3),
		persist.WithMigration(1, toV2),
		persist.WithMigration(2, toV3),
	)

	got, ok, err := key.Decode([]byte(`{"v":1,"data":["apple"]}`))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, cart{Items: []string{"apple"}, Currency: "AUD"}, got)
}

func TestDecodeLegacyBareJSONNeedsMigration(t *testing.T) {
	plain := persist.Untyped("projectsTableState")
	_, ok, err := plain.Decode([]byte(`{"sortColumn":"name"}`))
	assert.False(t, ok)
	assert.ErrorIs(t, err, persist.ErrVersion)

	adopt := persist.Untyped("projectsTableState", persist.WithMigration(0, func(d json.RawMessage) (json.RawMessage, error) {
		return d, nil
	}))
	got, ok, err := adopt.Decode([]byte(`{"sortColumn":"name"}`))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"sortColumn": "name"}, got)
}

func TestStrictRejectsUnknownFields(t *testing.T) {
	key := persist.Slice[variantSearchDisplay]("variantSearchDisplay", persist.WithStrict())
	_, ok, err := key.Decode([]byte(`{"v":1,"data":{"sort":"x","legacy":1}}`))
	assert.False(t, ok)
	assert.ErrorIs(t, err, persist.ErrCorrupt)
}

func TestEncodeFailureSurfaces(t *testing.T) {
	key := persist.Untyped("bad")
	_, err := key.Encode(map[string]any{"ch": make(chan int)})
	require.Error(t, err)
}

func TestKeySetValidation(t *testing.T) {
	set, err := persist.Names("projectsTableState", "familyTableState", "searchesByHash")
	require.NoError(t, err)
	assert.Equal(t, []string{"projectsTableState", "familyTableState", "searchesByHash"}, set.Names())
	assert.Equal(t, 3, set.Len())
	assert.True(t, set.Contains("familyTableState"))
	assert.False(t, set.Contains("other"))

	keys := set.Keys()
	keys[0] = nil
	assert.NotNil(t, set.Keys()[0], "Keys must return a copy")

	_, err = persist.Names("a", "a")
	assert.ErrorIs(t, err, persist.ErrDuplicateKey)

	_, err = persist.Names("a", " ")
	assert.ErrorIs(t, err, persist.ErrKeyNameRequired)

	_, err = persist.Names("tables/family")
	assert.ErrorIs(t, err, persist.ErrInvalidKeyName)

	assert.Panics(t, func() { persist.MustKeySet(nil) })
}
