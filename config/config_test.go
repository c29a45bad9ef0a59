package config

import "testing"

func TestDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBPath != "library.db" {
		t.Fatalf("default db path = %q", cfg.DBPath)
	}
	if cfg.LoanPeriodDays != 14 {
		t.Fatalf("default loan period = %d", cfg.LoanPeriodDays)
	}
	if cfg.MaxErrorDisplay != 10 {
		t.Fatalf("default error display = %d", cfg.MaxErrorDisplay)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LIBRARY_DB", "/tmp/other.db")
	t.Setenv("LIBRARY_LOAN_DAYS", "7")
	t.Setenv("LIBRARY_MAX_ERRORS", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBPath != "/tmp/other.db" || cfg.LoanPeriodDays != 7 || cfg.MaxErrorDisplay != 3 {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}

func TestInvalidValue(t *testing.T) {
	t.Setenv("LIBRARY_LOAN_DAYS", "soon")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for non-numeric loan period")
	}
}
