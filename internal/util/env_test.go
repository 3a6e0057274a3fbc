package util

import "testing"

func TestGetEnv(t *testing.T) {
	t.Setenv("CLINICBOT_TEST_STR", "value")
	if got := GetEnv("CLINICBOT_TEST_STR", "fallback"); got != "value" {
		t.Errorf("GetEnv = %q", got)
	}
	if got := GetEnv("CLINICBOT_TEST_UNSET", "fallback"); got != "fallback" {
		t.Errorf("GetEnv default = %q", got)
	}
}

func TestParseBoolEnv(t *testing.T) {
	cases := []struct {
		value string
		def   bool
		want  bool
	}{
		{"true", false, true},
		{"1", false, true},
		{"YES", false, true},
		{"off", true, false},
		{"0", true, false},
		{"garbage", true, true},
		{"", false, false},
	}
	for _, c := range cases {
		t.Setenv("CLINICBOT_TEST_BOOL", c.value)
		if got := ParseBoolEnv("CLINICBOT_TEST_BOOL", c.def); got != c.want {
			t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", c.value, c.def, got, c.want)
		}
	}
}

func TestParseIntEnv(t *testing.T) {
	t.Setenv("CLINICBOT_TEST_INT", "42")
	if got := ParseIntEnv("CLINICBOT_TEST_INT", 7); got != 42 {
		t.Errorf("ParseIntEnv = %d", got)
	}
	t.Setenv("CLINICBOT_TEST_INT", "not-a-number")
	if got := ParseIntEnv("CLINICBOT_TEST_INT", 7); got != 7 {
		t.Errorf("ParseIntEnv invalid = %d", got)
	}
}
