// Command kvserver runs the storage engine as a memcached-subset TCP
// server, or forces a one-off major compaction against an existing
// working directory.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Priyanshu23/flashkv/config"
	"github.com/Priyanshu23/flashkv/engine"
	"github.com/Priyanshu23/flashkv/server"
	"github.com/Priyanshu23/flashkv/store"
)

var (
	configPath      string
	workDirOverride string
)

func loadConfig() (config.Config, error) {
	if configPath == "" {
		cfg := config.Default()
		if workDirOverride != "" {
			cfg.WorkDir = workDirOverride
		}
		return cfg, nil
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if workDirOverride != "" {
		cfg.WorkDir = workDirOverride
	}
	return cfg, nil
}

func newLogger() *zap.SugaredLogger {
	l, err := zap.NewProduction()
	if err != nil {
		l = zap.NewNop()
	}
	return l.Sugar()
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the key-value server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			log := newLogger()
			defer log.Sync()

			eng, err := engine.Open(cfg, log)
			if err != nil {
				return err
			}
			defer eng.Close()

			st := store.New(eng)
			srv := server.New(cfg.Addr, st, log)
			return srv.ListenAndServe()
		},
	}
}

func newCompactCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compact",
		Short: "force one major-compaction pass against an existing working directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			log := newLogger()
			defer log.Sync()

			eng, err := engine.Open(cfg, log)
			if err != nil {
				return err
			}
			defer eng.Close()

			did, err := eng.MajorCompaction()
			if err != nil {
				return err
			}
			if did {
				fmt.Println("compaction ran")
			} else {
				fmt.Println("nothing eligible for compaction")
			}
			return nil
		},
	}
}

func main() {
	root := &cobra.Command{
		Use:   "kvserver",
		Short: "an LSM-tree key-value server",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML config file")
	root.PersistentFlags().StringVar(&workDirOverride, "work-dir", "", "override the configured working directory")

	serveCmd := newServeCmd()
	root.AddCommand(serveCmd)
	root.AddCommand(newCompactCmd())

	root.RunE = serveCmd.RunE

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
