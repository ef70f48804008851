package tracing

import (
	"context"
	"testing"
)

func TestSetupDisabledIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{Enabled: false}, nil)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSanitizeEndpoint(t *testing.T) {
	tests := map[string]string{
		"":                        "",
		"localhost:4317":          "localhost:4317",
		"http://collector:4317":   "collector:4317",
		"https://collector:4317/": "collector:4317",
		"collector:4317/":         "collector:4317",
	}
	for in, want := range tests {
		if got := sanitizeEndpoint(in); got != want {
			t.Errorf("sanitizeEndpoint(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseSampleRatio(t *testing.T) {
	tests := map[string]float64{
		"":     0,
		"0.5":  0.5,
		" 1 ":  1,
		"nope": 0,
	}
	for in, want := range tests {
		if got := ParseSampleRatio(in); got != want {
			t.Errorf("ParseSampleRatio(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseBool(t *testing.T) {
	for _, v := range []string{"true", "1", "YES", "on"} {
		if !parseBool(v) {
			t.Errorf("parseBool(%q) = false", v)
		}
	}
	for _, v := range []string{"false", "0", "", "off"} {
		if parseBool(v) {
			t.Errorf("parseBool(%q) = true", v)
		}
	}
}
