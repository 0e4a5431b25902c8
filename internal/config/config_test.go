package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ConfigFileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Server.Addr != ":8420" || c.Store.MinConfidence != 0.7 {
		t.Errorf("defaults not applied: %+v", c)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `{
		"server": {"addr": ":9000"},
		"store": {"maxBytes": 1048576, "evictionPolicy": "lfu"},
		"intent": {"leadTimeMs": 250},
		"log": {"level": "debug", "format": "json"}
	}`)

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Server.Addr != ":9000" {
		t.Errorf("addr = %q", c.Server.Addr)
	}
	if c.Store.MaxBytes != 1048576 || c.Store.EvictionPolicy != "lfu" {
		t.Errorf("store = %+v", c.Store)
	}
	if c.LeadTime().Milliseconds() != 250 {
		t.Errorf("lead time = %v", c.LeadTime())
	}
	// Untouched fields still default.
	if c.Store.MinConfidence != 0.7 {
		t.Errorf("minConfidence = %v", c.Store.MinConfidence)
	}
}

func TestLoadRejectsBadJSON(t *testing.T) {
	path := writeConfig(t, `{not json`)
	if _, err := Load(path); err == nil {
		t.Error("invalid JSON should fail")
	}
}

func TestValidate(t *testing.T) {
	c := Default()
	c.Store.EvictionPolicy = "random"
	if err := c.Validate(); err == nil {
		t.Error("unknown policy should fail validation")
	}

	c = Default()
	c.Store.MinConfidence = 1.5
	if err := c.Validate(); err == nil {
		t.Error("out-of-range confidence should fail validation")
	}

	c = Default()
	c.Log.Format = "xml"
	if err := c.Validate(); err == nil {
		t.Error("unknown log format should fail validation")
	}
}

func TestLogger(t *testing.T) {
	c := Default()
	if c.Logger() == nil {
		t.Fatal("Logger returned nil")
	}
	c.Log.Format = "json"
	c.Log.Level = "debug"
	if c.Logger() == nil {
		t.Fatal("Logger returned nil for json/debug")
	}
}
