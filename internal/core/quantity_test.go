package core

import (
	"encoding/json"
	"testing"
)

func TestQuantityUnmarshal(t *testing.T) {
	cases := []struct {
		in    string
		out   float64
		valid bool
	}{
		{`3.5`, 3.5, true},
		{`"3.5"`, 3.5, true},
		{`" 2 "`, 2, true},
		{`"1e2"`, 100, true},
		{`null`, 0, false},
		{`""`, 0, false},
		{`"abc"`, 0, false},
		{`true`, 0, false},
		{`{}`, 0, false},
	}
	for _, tc := range cases {
		var q Quantity
		if err := json.Unmarshal([]byte(tc.in), &q); err != nil {
			t.Fatalf("%s: unexpected error %v", tc.in, err)
		}
		if q.Valid() != tc.valid || q.Float() != tc.out {
			t.Fatalf("%s expected (%v, %v), got (%v, %v)", tc.in, tc.out, tc.valid, q.Float(), q.Valid())
		}
	}
}

func TestQuantityMarshal(t *testing.T) {
	b, err := json.Marshal(struct {
		A Quantity
		B Quantity
	}{A: NewQuantity(1.25)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"A":1.25,"B":null}` {
		t.Fatalf("unexpected json: %s", b)
	}
}

func TestEstimateEmission(t *testing.T) {
	if got := EstimateEmission(2.5, 150).Float(); got != 37.5 {
		t.Fatalf("expected 37.5, got %v", got)
	}
	if got := EstimateEmission(0.1, 0.2).String(); got != "0.00" {
		t.Fatalf("expected 0.00, got %s", got)
	}
}
