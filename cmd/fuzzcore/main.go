/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: main.go
Description: Command-line entry point for the fuzzcore engine. Wires
config, logging, metrics, and the engine together behind a cobra root
command, following the teacher's cmd/fuzzer/main.go flag-and-viper style.
*/

package main

import (
	"fmt"
	"os"

	"github.com/kleascm/fuzzcore/pkg/fuzzlog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	configFile string
	v          = viper.New()
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "fuzzcore",
		Short:   "fuzzcore - a coverage-guided, in-process fuzzing engine core",
		Version: "0.1.0",
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "configuration file path")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newCheckCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(level, format, dir string, jsonLogs bool) (*fuzzlog.Logger, error) {
	cfg := &fuzzlog.Config{
		Level:     fuzzlog.Level(level),
		Format:    fuzzlog.FormatCustom,
		OutputDir: dir,
	}
	if jsonLogs {
		cfg.Format = fuzzlog.FormatJSON
	} else if format != "" {
		cfg.Format = fuzzlog.Format(format)
	}
	return fuzzlog.NewLogger(cfg)
}
