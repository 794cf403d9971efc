package util

import (
	"reflect"
	"testing"
	"time"
)

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		val  string
		def  bool
		want bool
	}{
		{"", true, true},
		{"yes", false, true},
		{"ON", false, true},
		{"0", true, false},
		{"off", true, false},
		{"maybe", true, true},
	}
	for _, tt := range tests {
		t.Setenv("CARDDESK_TEST_BOOL", tt.val)
		if got := ParseBoolEnv("CARDDESK_TEST_BOOL", tt.def); got != tt.want {
			t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tt.val, tt.def, got, tt.want)
		}
	}
}

func TestParseIntEnv(t *testing.T) {
	t.Setenv("CARDDESK_TEST_INT", " 3 ")
	if got := ParseIntEnv("CARDDESK_TEST_INT", 1); got != 3 {
		t.Errorf("expected 3, got %d", got)
	}
	t.Setenv("CARDDESK_TEST_INT", "three")
	if got := ParseIntEnv("CARDDESK_TEST_INT", 1); got != 1 {
		t.Errorf("expected default 1, got %d", got)
	}
}

func TestParseDurationEnv(t *testing.T) {
	t.Setenv("CARDDESK_TEST_DUR", "45s")
	if got := ParseDurationEnv("CARDDESK_TEST_DUR", time.Second); got != 45*time.Second {
		t.Errorf("expected 45s, got %v", got)
	}
	for _, bad := range []string{"soon", "-5s"} {
		t.Setenv("CARDDESK_TEST_DUR", bad)
		if got := ParseDurationEnv("CARDDESK_TEST_DUR", time.Second); got != time.Second {
			t.Errorf("%q: expected default, got %v", bad, got)
		}
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList(" http://a.example , ,http://b.example,")
	want := []string{"http://a.example", "http://b.example"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if SplitList("") != nil {
		t.Error("expected nil for empty input")
	}
}
