package config_test

import (
	"strings"
	"testing"

	"github.com/kper/funky/config"
)

func TestLoadAppliesDefaults(t *testing.T) {
	doc := `
entrypoints:
  - function: main
    pc: 0
    variable: taut
`
	cfg, err := config.Load(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Run.Variant != config.VariantFast {
		t.Fatalf("default variant = %q, want %q", cfg.Run.Variant, config.VariantFast)
	}
	if cfg.Run.LogLevel != "info" {
		t.Fatalf("default log level = %q, want info", cfg.Run.LogLevel)
	}
	if len(cfg.Entrypoints) != 1 || cfg.Entrypoints[0].Function != "main" {
		t.Fatalf("unexpected entrypoints: %+v", cfg.Entrypoints)
	}
}

func TestLoadRejectsUnknownVariant(t *testing.T) {
	doc := `
run:
  variant: quick
entrypoints:
  - function: main
    pc: 0
`
	if _, err := config.Load(strings.NewReader(doc)); err == nil {
		t.Fatal("expected an error for an unknown variant")
	}
}

func TestLoadRequiresAnEntrypoint(t *testing.T) {
	if _, err := config.Load(strings.NewReader("run:\n  variant: naive\n")); err == nil {
		t.Fatal("expected an error for zero entrypoints")
	}
}

func TestParseCSV(t *testing.T) {
	got := config.ParseCSV(" foo , ,bar,,  baz ")
	want := []string{"foo", "bar", "baz"}
	if len(got) != len(want) {
		t.Fatalf("ParseCSV = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ParseCSV[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestValidateRequest(t *testing.T) {
	if err := config.ValidateRequest([]byte(`{"function": "main", "pc": 3}`)); err != nil {
		t.Fatalf("ValidateRequest: %v", err)
	}
	if err := config.ValidateRequest([]byte(`{"pc": 3}`)); err == nil {
		t.Fatal("expected an error for a missing function")
	}
	if err := config.ValidateRequest([]byte(`{"function": "main", "pc": -1}`)); err == nil {
		t.Fatal("expected an error for a negative pc")
	}
	if err := config.ValidateRequest([]byte(`{"function": "main", "pc": 3, "extra": true}`)); err == nil {
		t.Fatal("expected an error for an unexpected property")
	}
	if err := config.ValidateRequest([]byte(`not json`)); err == nil {
		t.Fatal("expected an error for invalid JSON")
	}
}
