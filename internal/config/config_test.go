package config

import (
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default("y-1")
	if cfg.Yacht.ID != "y-1" {
		t.Fatalf("yacht id = %q", cfg.Yacht.ID)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if _, ok := cfg.Roles.Catalog["Chief Engineer"]; !ok {
		t.Fatal("role catalog missing Chief Engineer")
	}
}

func TestGenerateDefaultRoundTrips(t *testing.T) {
	cfg, err := FromYAML([]byte(GenerateDefault("m-y-aurora")))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Yacht.ID != "m-y-aurora" || cfg.Yacht.Name != "m-y-aurora" {
		t.Fatalf("yacht = %+v", cfg.Yacht)
	}
	if !cfg.Auth.AllowAPIKeys || cfg.Auth.AllowLegacyCrewHeader {
		t.Fatalf("auth defaults = %+v", cfg.Auth)
	}
}

func TestFromYAMLRejectsInvalid(t *testing.T) {
	if _, err := FromYAML([]byte("roles:\n  catalog: {}\n")); err == nil {
		t.Fatal("expected error for missing yacht id")
	}

	raw := `
yacht:
  id: y-1
actions:
  overrides:
    add_note:
      allowed_roles: ["Captain", ""]
`
	if _, err := FromYAML([]byte(raw)); err == nil {
		t.Fatal("expected error for empty role in override")
	}

	raw = `
yacht:
  id: y-1
webhooks:
  - url: ""
`
	if _, err := FromYAML([]byte(raw)); err == nil {
		t.Fatal("expected error for webhook with empty url")
	}
}
