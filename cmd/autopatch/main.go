// Copyright 2025 Autopatch Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/autopatch-io/autopatch/pkg/config"
	"github.com/autopatch-io/autopatch/pkg/knowledge"
)

var (
	configPath string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "autopatch",
		Short: "Automated vulnerability fixing and chart upgrade planning",
		Long: `autopatch scans vulnerability findings and Helm chart inventories,
suggests version upgrades, and proposes them as change requests. Multi-major
upgrades are rolled out one major at a time, each step gated on the previous
step's change request having merged.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")

	rootCmd.AddCommand(
		newScanCmd(),
		newFixCmd(),
		newHelmCmd(),
		newSLOCmd(),
		newControllerCmd(),
		newServeCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func loadKnowledge(cfg *config.Config) (*knowledge.Base, error) {
	if cfg.KnowledgeDir != "" {
		return knowledge.Load(cfg.KnowledgeDir)
	}
	return knowledge.Default()
}
