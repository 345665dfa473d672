package chunk

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

func rawOf(t *testing.T, v interface{}) bson.RawValue {
	t.Helper()
	ty, data, err := bson.MarshalValue(v)
	if err != nil {
		t.Fatalf("MarshalValue(%v): %v", v, err)
	}
	return bson.RawValue{Type: ty, Value: data}
}

func TestCompareNumbers(t *testing.T) {
	tests := []struct {
		name string
		a, b interface{}
		want int
	}{
		{"equal ints", int32(1), int32(1), 0},
		{"less", int32(1), int32(3), -1},
		{"greater", int32(3), int32(1), 1},
		{"int64 vs int32", int64(5), int32(5), 0},
		{"double vs int", float64(2), int32(2), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compare(rawOf(t, tt.a), rawOf(t, tt.b))
			if got != tt.want {
				t.Errorf("Compare(%v, %v) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestCompareMinMaxKey(t *testing.T) {
	minKey := bson.RawValue{Type: bson.TypeMinKey}
	maxKey := bson.RawValue{Type: bson.TypeMaxKey}
	one := rawOf(t, int32(1))

	if Compare(minKey, one) >= 0 {
		t.Errorf("MinKey should sort below any ordinary value")
	}
	if Compare(maxKey, one) <= 0 {
		t.Errorf("MaxKey should sort above any ordinary value")
	}
	if Compare(minKey, bson.RawValue{Type: bson.TypeMinKey}) != 0 {
		t.Errorf("MinKey should equal MinKey")
	}
	if !Equal(minKey, bson.RawValue{Type: bson.TypeMinKey}) {
		t.Errorf("Equal should agree with Compare == 0")
	}
}

func TestCompareStrings(t *testing.T) {
	a := rawOf(t, "alice")
	b := rawOf(t, "bob")
	if Compare(a, b) >= 0 {
		t.Errorf("expected alice < bob")
	}
	if Compare(a, a) != 0 {
		t.Errorf("expected alice == alice")
	}
}
