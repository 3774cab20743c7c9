package util

import "testing"

func TestParseBoolEnv(t *testing.T) {
	cases := []struct {
		value        string
		defaultValue bool
		want         bool
	}{
		{"true", false, true},
		{"TRUE", false, true},
		{"1", false, true},
		{"yes", false, true},
		{"on", false, true},
		{"false", true, false},
		{"0", true, false},
		{"no", true, false},
		{"off", true, false},
		{" true ", false, true},
		{"", true, true},
		{"", false, false},
		{"maybe", true, true},
		{"maybe", false, false},
	}
	for _, tc := range cases {
		t.Setenv("LINEBRIDGE_TEST_BOOL", tc.value)
		if got := ParseBoolEnv("LINEBRIDGE_TEST_BOOL", tc.defaultValue); got != tc.want {
			t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tc.value, tc.defaultValue, got, tc.want)
		}
	}
}

func TestParseBoolEnv_Unset(t *testing.T) {
	if got := ParseBoolEnv("LINEBRIDGE_TEST_BOOL_UNSET", true); !got {
		t.Error("unset variable should return the default")
	}
}

func TestParseIntEnv(t *testing.T) {
	cases := []struct {
		value        string
		defaultValue int
		want         int
	}{
		{"14", 0, 14},
		{" 7 ", 0, 7},
		{"-3", 0, -3},
		{"", 14, 14},
		{"fourteen", 14, 14},
		{"1.5", 14, 14},
	}
	for _, tc := range cases {
		t.Setenv("LINEBRIDGE_TEST_INT", tc.value)
		if got := ParseIntEnv("LINEBRIDGE_TEST_INT", tc.defaultValue); got != tc.want {
			t.Errorf("ParseIntEnv(%q, %d) = %d, want %d", tc.value, tc.defaultValue, got, tc.want)
		}
	}
}
