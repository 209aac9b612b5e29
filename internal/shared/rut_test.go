package shared

import "testing"

func TestNormalizeRUT(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"12.345.678-9", "12345678-9"},
		{"12345678-9", "12345678-9"},
		{"12345678K", "12345678-K"},
		{"  7.654.321-k ", "7654321-K"},
		{"9", "9"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizeRUT(tc.in); got != tc.want {
			t.Errorf("NormalizeRUT(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestValidRUT(t *testing.T) {
	valid := []string{
		"12345678-5",
		"11111111-1",
		"11223344K",
		"7.654.321-6",
	}
	for _, rut := range valid {
		if !ValidRUT(rut) {
			t.Errorf("ValidRUT(%q) = false, want true", rut)
		}
	}

	invalid := []string{
		"12345678-9",
		"12345678-0",
		"1234567a-9",
		"",
		"-9",
		"9",
	}
	for _, rut := range invalid {
		if ValidRUT(rut) {
			t.Errorf("ValidRUT(%q) = true, want false", rut)
		}
	}
}
