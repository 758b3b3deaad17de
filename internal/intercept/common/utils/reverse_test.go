package utils

import "testing"

func TestReverseString(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"a", "a"},
		{"ab", "ba"},
		{"domain.com", "moc.niamod"},
		{"sub.domain.com", "moc.niamod.bus"},
		{"你好", "好你"},
	}
	for _, tt := range tests {
		if got := ReverseString(tt.in); got != tt.want {
			t.Errorf("ReverseString(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}
