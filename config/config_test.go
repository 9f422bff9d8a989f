package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultValues(t *testing.T) {
	c := Default()
	if c.Addr != "127.0.0.1:11211" {
		t.Fatalf("unexpected default addr %q", c.Addr)
	}
	if c.MaxLevel != 7 {
		t.Fatalf("unexpected default max level %d", c.MaxLevel)
	}
	if c.SSTMaxSize != 100*1024*1024 {
		t.Fatalf("unexpected default sst max size %d", c.SSTMaxSize)
	}
}

func TestParseSize(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"4096", 4096},
		{"4K", 4 * 1024},
		{"4k", 4 * 1024},
		{"2M", 2 * 1024 * 1024},
		{"1G", 1024 * 1024 * 1024},
		{"1T", 1024 * 1024 * 1024 * 1024},
	}
	for _, c := range cases {
		got, err := parseSize(c.in)
		if err != nil {
			t.Fatalf("parseSize(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("parseSize(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestParseSizeInvalid(t *testing.T) {
	for _, in := range []string{"", "abc", "4X", "  "} {
		if _, err := parseSize(in); err == nil {
			t.Fatalf("expected error for parseSize(%q)", in)
		}
	}
}

func TestLoadOverridesDefaultsAndParsesSizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `
addr = "0.0.0.0:9999"
sst_max_size = "16M"
mem_table_max_size = "512K"
l0_compaction_trigger = 8
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Addr != "0.0.0.0:9999" {
		t.Fatalf("expected overridden addr, got %q", c.Addr)
	}
	if c.SSTMaxSize != 16*1024*1024 {
		t.Fatalf("expected sst max size 16M, got %d", c.SSTMaxSize)
	}
	if c.MemTableMaxSize != 512*1024 {
		t.Fatalf("expected mem table max size 512K, got %d", c.MemTableMaxSize)
	}
	if c.L0CompactionTrigger != 8 {
		t.Fatalf("expected l0 trigger 8, got %d", c.L0CompactionTrigger)
	}
	// fields left unset in the file keep their defaults
	if c.MaxLevel != Default().MaxLevel {
		t.Fatalf("expected default max level to survive, got %d", c.MaxLevel)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatalf("expected error loading a missing config file")
	}
}
