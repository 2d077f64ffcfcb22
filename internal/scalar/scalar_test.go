package scalar

import "testing"

func TestToIntConversions(t *testing.T) {
	tests := []struct {
		name string
		s    *Scalar
		want int64
	}{
		{"int", NewInt(42), 42},
		{"double truncates", NewDouble(3.9), 3},
		{"bool true", NewBool(true), 1},
		{"bool false", NewBool(false), 0},
		{"leading digits", NewString("42abc"), 42},
		{"leading whitespace", NewString("  -7"), -7},
		{"non-numeric string", NewString("abc"), 0},
		{"undef", NewUndef(), 0},
	}

	for _, tt := range tests {
		got := tt.s.ToInt()
		if got != tt.want {
			t.Errorf("test[%s] - wrong result. got=%d, want=%d", tt.name, got, tt.want)
		}
	}
}

func TestToBooleanConversions(t *testing.T) {
	tests := []struct {
		name string
		s    *Scalar
		want bool
	}{
		{"undef", NewUndef(), false},
		{"zero int", NewInt(0), false},
		{"nonzero int", NewInt(1), true},
		{"empty string", NewString(""), false},
		{"string zero", NewString("0"), false},
		{"string zero-point-zero is truthy", NewString("0.0"), true},
		{"nonempty string", NewString("hi"), true},
	}

	for _, tt := range tests {
		got := tt.s.ToBoolean()
		if got != tt.want {
			t.Errorf("test[%s] - wrong result. got=%v, want=%v", tt.name, got, tt.want)
		}
	}
}

func TestToStringDoubleFormatting(t *testing.T) {
	tests := []struct {
		name string
		d    float64
		want string
	}{
		{"integral double has no decimal", 3.0, "3"},
		{"fractional keeps precision", 3.5, "3.5"},
		{"negative integral", -8.0, "-8"},
	}

	for _, tt := range tests {
		got := NewDouble(tt.d).ToString()
		if got != tt.want {
			t.Errorf("test[%s] - wrong result. got=%s, want=%s", tt.name, got, tt.want)
		}
	}
}

func TestConversionCacheInvalidatedOnSet(t *testing.T) {
	s := NewInt(5)
	if got := s.ToString(); got != "5" {
		t.Fatalf("precondition failed, got=%s", got)
	}
	s.SetInt(9)
	if got := s.ToString(); got != "9" {
		t.Errorf("stale cache after SetInt: got=%s, want=9", got)
	}
}

func TestIntPoolReusesSmallValues(t *testing.T) {
	a := Int(10)
	b := Int(10)
	if a != b {
		t.Errorf("expected pooled small ints to share identity")
	}
	big1 := Int(100000)
	big2 := Int(100000)
	if big1 == big2 {
		t.Errorf("expected non-pooled ints to be distinct allocations")
	}
}

func TestAssignDoesNotAliasCaches(t *testing.T) {
	src := NewInt(1)
	_ = src.ToString() // populate src's string cache as "1"
	dst := NewInt(1)
	src.SetInt(2)
	dst.Assign(src)
	if got := dst.ToString(); got != "2" {
		t.Errorf("Assign picked up stale cache: got=%s, want=2", got)
	}
}
