// Copyright (c) 2026 honeybbq
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package value

import (
	"math"
	"testing"

	"github.com/busline/ubus/errdefs"
)

func TestFromJSONPreservesKeyOrder(t *testing.T) {
	v, err := FromJSON([]byte(`{"z":1,"a":2,"m":3}`))
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}

	want := []string{"z", "a", "m"}

	if len(v.Table) != len(want) {
		t.Fatalf("got %d fields, want %d", len(v.Table), len(want))
	}

	for i, name := range want {
		if v.Table[i].Name != name {
			t.Errorf("field %d = %q, want %q", i, v.Table[i].Name, name)
		}
	}
}

func TestRoundTripPreservesOrder(t *testing.T) {
	original := `{"id":1,"msg":"hello","nested":{"c":3,"b":2,"a":1}}`

	v, err := FromJSON([]byte(original))
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}

	out, err := v.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}

	if string(out) != original {
		t.Fatalf("round trip mismatch:\n got: %s\nwant: %s", out, original)
	}
}

func TestNarrowestIntWidth(t *testing.T) {
	cases := []struct {
		n    int64
		kind Kind
	}{
		{0, KindInt16},
		{math.MaxInt16, KindInt16},
		{math.MaxInt16 + 1, KindInt32},
		{math.MinInt16 - 1, KindInt32},
		{math.MaxInt32, KindInt32},
		{math.MaxInt32 + 1, KindInt64},
		{math.MinInt64, KindInt64},
	}

	for _, tc := range cases {
		got := NarrowestInt(tc.n)
		if got.Kind != tc.kind {
			t.Errorf("NarrowestInt(%d).Kind = %v, want %v", tc.n, got.Kind, tc.kind)
		}

		if got.Int != tc.n {
			t.Errorf("NarrowestInt(%d).Int = %d, want %d", tc.n, got.Int, tc.n)
		}
	}
}

func TestFractionalNumberBecomesDouble(t *testing.T) {
	v, err := FromJSON([]byte(`3.5`))
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}

	if v.Kind != KindDouble || v.Double != 3.5 {
		t.Fatalf("got %+v, want DOUBLE 3.5", v)
	}
}

func TestEmptyDocumentIsEmptyTable(t *testing.T) {
	v, err := FromJSON(nil)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}

	if v.Kind != KindTable || len(v.Table) != 0 {
		t.Fatalf("got %+v, want empty TABLE", v)
	}
}

func TestTrailingDataRejected(t *testing.T) {
	if _, err := FromJSON([]byte(`1 2`)); !errdefs.IsParseArguments(err) {
		t.Fatalf("expected ErrParseArguments, got %v", err)
	}
}

func TestArrayPreservesOrderAndTypes(t *testing.T) {
	v, err := FromJSON([]byte(`[1, "two", true, null, 4.5]`))
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}

	if len(v.Array) != 5 {
		t.Fatalf("got %d items, want 5", len(v.Array))
	}

	wantKinds := []Kind{KindInt16, KindString, KindBool, KindNull, KindDouble}
	for i, k := range wantKinds {
		if v.Array[i].Kind != k {
			t.Errorf("item %d kind = %v, want %v", i, v.Array[i].Kind, k)
		}
	}
}

func TestGetAndSet(t *testing.T) {
	v := TableOf(Field{Name: "a", Value: Int16Of(1)})

	if got, ok := v.Get("a"); !ok || got.Int != 1 {
		t.Fatalf("Get(a) = %+v, %v", got, ok)
	}

	if _, ok := v.Get("missing"); ok {
		t.Fatalf("Get(missing) unexpectedly found")
	}

	v.Set("a", Int16Of(2))
	v.Set("b", Int16Of(3))

	if len(v.Table) != 2 {
		t.Fatalf("got %d fields, want 2", len(v.Table))
	}

	if v.Table[0].Name != "a" || v.Table[0].Value.Int != 2 {
		t.Errorf("Set did not replace in place: %+v", v.Table[0])
	}

	if v.Table[1].Name != "b" {
		t.Errorf("Set did not append new field: %+v", v.Table[1])
	}
}

func TestNaNRejected(t *testing.T) {
	v := DoubleOf(math.NaN())

	if _, err := v.ToJSON(); !errdefs.IsInvalidData(err) {
		t.Fatalf("expected ErrInvalidData for NaN, got %v", err)
	}
}

func TestDecodeIntoStruct(t *testing.T) {
	v := TableOf(
		Field{Name: "name", Value: StringOf("bridge0")},
		Field{Name: "up", Value: BoolOf(true)},
	)

	var target struct {
		Name string `json:"name"`
		Up   bool   `json:"up"`
	}

	if err := v.Decode(&target); err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if target.Name != "bridge0" || !target.Up {
		t.Fatalf("got %+v", target)
	}
}

func TestOpaqueRejectedByToJSON(t *testing.T) {
	v := OpaqueOf([]byte{1, 2, 3})

	if _, err := v.ToJSON(); !errdefs.IsInvalidBlobType(err) {
		t.Fatalf("expected ErrInvalidBlobType, got %v", err)
	}
}
