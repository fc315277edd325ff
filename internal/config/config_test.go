package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if !cfg.Finance.StrictApproval {
		t.Fatalf("strict approval should default on")
	}
	if cfg.Auth.TokenTTL != 24*time.Hour {
		t.Fatalf("token ttl = %v", cfg.Auth.TokenTTL)
	}
	if got := cfg.Limits[FinanceSummary]; got.Default != 300 || got.Max != 500 {
		t.Fatalf("finance summary limit = %+v", got)
	}
}

func TestPageSize(t *testing.T) {
	cfg := Default()
	cases := []struct {
		req, want int
	}{
		{0, 20}, {-3, 20}, {10, 10}, {50, 50}, {51, 50}, {1000, 50},
	}
	for _, c := range cases {
		if got := cfg.PageSize(Announcements, c.req); got != c.want {
			t.Fatalf("PageSize(%d) = %d, want %d", c.req, got, c.want)
		}
	}
}

func TestFromYAMLOverridesDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte("finance:\n  strict_approval: false\nlimits:\n  loans:\n    default: 5\n    max: 10\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Finance.StrictApproval {
		t.Fatalf("expected strict approval off")
	}
	if cfg.Limits[Loans].Max != 10 || cfg.Limits[Items].Max != 100 {
		t.Fatalf("unexpected limits %+v", cfg.Limits)
	}
}

func TestValidateRejectsBadLimits(t *testing.T) {
	if _, err := FromYAML([]byte("limits:\n  items:\n    default: 200\n    max: 100\n")); err == nil || !strings.Contains(err.Error(), "exceeds") {
		t.Fatalf("expected default>max error, got %v", err)
	}
	if _, err := FromYAML([]byte("limits:\n  widgets:\n    default: 1\n    max: 2\n")); err == nil {
		t.Fatalf("expected unknown resource error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(dir); err == nil {
		t.Fatalf("expected error for missing config")
	}
	cfg, err := LoadOptional(dir)
	if err != nil || cfg == nil {
		t.Fatalf("LoadOptional: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "guyub.yml"), []byte(GenerateDefault()), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err != nil {
		t.Fatalf("load written default: %v", err)
	}
}
