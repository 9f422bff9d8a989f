// Package config loads the engine's TOML configuration file, parsing
// human-readable size suffixes (K/M/G/T, binary) into byte counts.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/Priyanshu23/flashkv/errs"
)

// raw mirrors the TOML file shape; size fields are strings so they can
// carry a suffix.
type raw struct {
	Addr                string `toml:"addr"`
	WorkDir             string `toml:"work_dir"`
	MaxLevel            int    `toml:"max_level"`
	SSTMaxSize          string `toml:"sst_max_size"`
	MemTableMaxSize     string `toml:"mem_table_max_size"`
	MemTableMaxHeight   int    `toml:"mem_table_max_height"`
	ImmMemTableMaxCount int    `toml:"imm_mem_table_max_count"`
	BlockSize           string `toml:"block_size"`
	BlockRestartIntvl   int    `toml:"block_restart_interval"`
	L0CompactionTrigger int    `toml:"l0_compaction_trigger"`
	ThreadSleepMS       int    `toml:"thread_sleep_ms"`
}

// Config is the engine's resolved, byte-valued configuration.
type Config struct {
	Addr                string
	WorkDir             string
	MaxLevel            int
	SSTMaxSize          int64
	MemTableMaxSize     int64
	MemTableMaxHeight   int
	ImmMemTableMaxCount int
	BlockSize           int
	BlockRestartIntvl   int
	L0CompactionTrigger int
	ThreadSleepMS       int
}

// Default returns the reference configuration.
func Default() Config {
	return Config{
		Addr:                "127.0.0.1:11211",
		WorkDir:             "./data",
		MaxLevel:            7,
		SSTMaxSize:          100 * 1024 * 1024,
		MemTableMaxSize:     4 * 1024 * 1024,
		MemTableMaxHeight:   32,
		ImmMemTableMaxCount: 16,
		BlockSize:           4 * 1024,
		BlockRestartIntvl:   16,
		L0CompactionTrigger: 4,
		ThreadSleepMS:       500,
	}
}

// Load reads and parses the TOML file at path, filling in defaults for
// any field left unset.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errs.New(errs.Config, "config.Load", err)
	}

	var r raw
	if err := toml.Unmarshal(data, &r); err != nil {
		return Config{}, errs.New(errs.Config, "config.Load", err)
	}

	c := Default()
	if r.Addr != "" {
		c.Addr = r.Addr
	}
	if r.WorkDir != "" {
		c.WorkDir = r.WorkDir
	}
	if r.MaxLevel != 0 {
		c.MaxLevel = r.MaxLevel
	}
	if r.SSTMaxSize != "" {
		if c.SSTMaxSize, err = parseSize(r.SSTMaxSize); err != nil {
			return Config{}, err
		}
	}
	if r.MemTableMaxSize != "" {
		if c.MemTableMaxSize, err = parseSize(r.MemTableMaxSize); err != nil {
			return Config{}, err
		}
	}
	if r.MemTableMaxHeight != 0 {
		c.MemTableMaxHeight = r.MemTableMaxHeight
	}
	if r.ImmMemTableMaxCount != 0 {
		c.ImmMemTableMaxCount = r.ImmMemTableMaxCount
	}
	if r.BlockSize != "" {
		sz, err := parseSize(r.BlockSize)
		if err != nil {
			return Config{}, err
		}
		c.BlockSize = int(sz)
	}
	if r.BlockRestartIntvl != 0 {
		c.BlockRestartIntvl = r.BlockRestartIntvl
	}
	if r.L0CompactionTrigger != 0 {
		c.L0CompactionTrigger = r.L0CompactionTrigger
	}
	if r.ThreadSleepMS != 0 {
		c.ThreadSleepMS = r.ThreadSleepMS
	}

	return c, nil
}

// parseSize parses a human size like "100M" or "4096" into bytes,
// using binary multiples (1024-based) for K, M, G, T suffixes.
func parseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errs.New(errs.Config, "parseSize", fmt.Errorf("empty size"))
	}

	unit := int64(1)
	last := s[len(s)-1]
	switch last {
	case 'k', 'K':
		unit = 1024
	case 'm', 'M':
		unit = 1024 * 1024
	case 'g', 'G':
		unit = 1024 * 1024 * 1024
	case 't', 'T':
		unit = 1024 * 1024 * 1024 * 1024
	}

	numPart := s
	if unit != 1 {
		numPart = s[:len(s)-1]
	}

	n, err := strconv.ParseInt(strings.TrimSpace(numPart), 10, 64)
	if err != nil {
		return 0, errs.New(errs.Config, "parseSize", fmt.Errorf("invalid size %q: %w", s, err))
	}
	return n * unit, nil
}
