package version

import (
	"testing"
)

func TestParse_Valid(t *testing.T) {
	tests := []struct {
		input string
		want  Driver
	}{
		{"1.0.0", Driver{1, 0, 0}},
		{"1.0", Driver{1, 0, 0}},
		{"2.3.4", Driver{2, 3, 4}},
		{"10.23.7", Driver{10, 23, 7}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			v, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q) returned error: %v", tt.input, err)
			}
			if v != tt.want {
				t.Errorf("Parse(%q) = %v, want %v", tt.input, v, tt.want)
			}
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []string{
		"",
		"1",
		"abc",
		"1.0.0.0",
		"1.x",
		"-1.0",
		"1..0",
	}

	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			if err == nil {
				t.Errorf("Parse(%q) should return error", input)
			}
		})
	}
}

func TestDriver_String(t *testing.T) {
	v := Driver{Major: 1, Minor: 2, Patchlevel: 3}
	if got := v.String(); got != "1.2.3" {
		t.Errorf("String() = %q, want %q", got, "1.2.3")
	}
}

func TestDriver_Compatible(t *testing.T) {
	a := MustParse("1.0.0")
	if !a.Compatible(MustParse("1.4.2")) {
		t.Error("1.0.0 should be compatible with 1.4.2")
	}
	if a.Compatible(MustParse("2.0.0")) {
		t.Error("1.0.0 should not be compatible with 2.0.0")
	}
}

func TestDriver_Less(t *testing.T) {
	if !MustParse("1.0.9").Less(MustParse("1.1.0")) {
		t.Error("1.0.9 should order before 1.1.0")
	}
	if MustParse("1.1.0").Less(MustParse("1.1.0")) {
		t.Error("equal versions should not be Less")
	}
}

func TestMustParsePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustParse should panic on invalid input")
		}
	}()
	MustParse("bogus")
}
