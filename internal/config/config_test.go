package config

import "testing"

func TestLoad(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CompactionThreshold == 0 {
		t.Errorf("Load() CompactionThreshold = %d, want nonzero default", cfg.CompactionThreshold)
	}
}

func TestGet_PanicsBeforeLoad(t *testing.T) {
	if appConfig != nil {
		t.Skip("singleton already populated by an earlier test in this process")
	}
	defer func() {
		if r := recover(); r == nil {
			t.Error("Get() before Load() did not panic")
		}
	}()
	Get()
}
