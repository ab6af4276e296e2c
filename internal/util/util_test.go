package util

import "testing"

func TestMaskSecret(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "supersecretpassword", want: "supe...word"},
		{in: "sevench", want: "se...ch"},
		{in: "abc", want: "a...c"},
		{in: "ab", want: "ab"},
		{in: "", want: ""},
	}
	for _, tc := range cases {
		if got := MaskSecret(tc.in); got != tc.want {
			t.Fatalf("MaskSecret(%q): expected %q, got %q", tc.in, tc.want, got)
		}
	}
}

func TestMaskEmailKeepsDomain(t *testing.T) {
	got := MaskEmail("familyaccount@example.com")
	if got != "fami...ount@example.com" {
		t.Fatalf("expected masked local part, got %q", got)
	}
}

func TestMaskEmailWithoutAt(t *testing.T) {
	if got := MaskEmail("notanemail"); got != "nota...mail" {
		t.Fatalf("expected full mask, got %q", got)
	}
}
