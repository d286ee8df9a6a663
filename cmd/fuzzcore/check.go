/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: check.go
Description: `fuzzcore check` validates configuration without running any
lanes, following the teacher's self-check command convention.
*/

package main

import (
	"fmt"

	"github.com/kleascm/fuzzcore/pkg/fuzzconfig"
	"github.com/spf13/cobra"
)

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "validate configuration and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := fuzzconfig.Load(v, configFile)
			if err != nil {
				return err
			}
			fmt.Printf("config OK: lanes=%d max_num_guards=%d favored_selection_odds=%.4f corpus_dir=%s\n",
				cfg.Lanes, cfg.MaxNumGuards, cfg.FavoredOdds, cfg.CorpusDir)
			return nil
		},
	}
	if err := fuzzconfig.BindFlags(cmd.Flags(), v); err != nil {
		panic(err)
	}
	return cmd
}
