package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsBase(t *testing.T) {
	base := Default()
	got, err := Load(filepath.Join(t.TempDir(), "absent.json"), base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != base {
		t.Fatalf("got %+v, want base %+v", got, base)
	}
}

func TestLoadMergesOverBase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"lamp_radius": 9}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	base := Default()
	got, err := Load(path, base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.LampRadius != 9 {
		t.Fatalf("LampRadius = %d, want 9", got.LampRadius)
	}
	got.LampRadius = base.LampRadius
	if got != base {
		t.Fatalf("load changed fields beyond lamp_radius: %+v", got)
	}
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{not json`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	base := Default()
	got, err := Load(path, base)
	if err == nil {
		t.Fatal("Load accepted malformed JSON")
	}
	if got != base {
		t.Fatalf("Load returned %+v on error, want base", got)
	}
}

func TestLoadRejectsInvalidMergedConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"master_roi_width": -3}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := Load(path, Default()); err == nil {
		t.Fatal("Load accepted a config with negative width")
	}
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := Save(path, []byte(`{"min_brightness_threshold": 120}`)); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := Load(path, Default())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.MinBrightness != 120 {
		t.Fatalf("MinBrightness = %d, want 120", got.MinBrightness)
	}
}
