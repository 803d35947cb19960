package bridgedemo

import (
	"context"
	"flag"
	"testing"
)

func TestParseConfigdefault(t *testing.T) {
	fs := flag.NewFlagSet("bridge-demo", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.DataDir != "" {
		t.Fatalf("expected temporary data dir default, got %q", cfg.DataDir)
	}
}

func TestParseConfigDataFlag(t *testing.T) {
	fs := flag.NewFlagSet("bridge-demo", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-data", "/tmp/demo"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.DataDir != "/tmp/demo" {
		t.Fatalf("expected data dir override, got %q", cfg.DataDir)
	}
}

func TestDemoScriptConverges(t *testing.T) {
	if err := run(context.Background(), Config{DataDir: t.TempDir()}); err != nil {
		t.Fatalf("demo run: %v", err)
	}
}
