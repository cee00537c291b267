package dates

import "testing"

func TestFormatDisplay(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1998-05-04", "04.05.1998"},
		{"04.05.1998", "04.05.1998"},
		{"04/05/1998", "04.05.1998"},
		{"1998/05/04", "04.05.1998"},
		{"04-05-1998", "04.05.1998"},
		{"1998.05.04", "04.05.1998"},
		{"not a date", "not a date"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := FormatDisplay(tt.in); got != tt.want {
			t.Errorf("FormatDisplay(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRewriteForSave(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"04.05.1998", "1998-05-04"},
		{"4.5.1998", "1998-05-04"},
		{"1998-05-04", "1998-05-04"}, // already ISO, passes through
		{"04/05/1998", "04/05/1998"}, // other formats pass through unchanged
		{"garbage", "garbage"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := RewriteForSave(tt.in); got != tt.want {
			t.Errorf("RewriteForSave(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
