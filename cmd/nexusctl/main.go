// Copyright 2026 Nexus Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"nexus/internal/analyzer"
	"nexus/internal/budget"
	"nexus/internal/config"
	"nexus/internal/domain"
	"nexus/internal/pricing"
	"nexus/internal/quality"
	"nexus/internal/routing"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:     "nexusctl",
		Short:   "Nexus administration CLI",
		Long:    `nexusctl inspects and validates a Nexus routing configuration without starting the server.`,
		Version: version,
	}

	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(routesCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect Nexus configuration",
	}
	cmd.AddCommand(configValidateCmd())
	return cmd
}

func configValidateCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Parse and validate a TOML configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load: %w", err)
			}
			built, err := config.Build(cfg)
			if err != nil {
				return fmt.Errorf("build: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config valid: %d backend(s), %d polic(ies), monthly limit %d cents\n",
				len(built.Registry.ListAll()), len(cfg.Routing.Policies), built.MonthlyLimitCents)
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a TOML configuration file")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func routesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Inspect routing decisions",
	}
	cmd.AddCommand(routesExplainCmd())
	return cmd
}

func routesExplainCmd() *cobra.Command {
	var (
		configPath string
		model      string
		strict     bool
		vision     bool
		tools      bool
	)
	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Dry-run the reconciler pipeline against a synthetic request",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load: %w", err)
			}
			built, err := config.Build(cfg)
			if err != nil {
				return fmt.Errorf("build: %w", err)
			}

			router := routing.New(routing.Config{
				Registry:         built.Registry,
				Policies:         built.Policies,
				Aliases:          built.Aliases,
				Fallbacks:        built.Fallbacks,
				QualityStore:     quality.New(),
				BudgetState:      budget.New(built.MonthlyLimitCents, built.SoftLimitPercent, built.HardLimitAction, built.BillingCycleStartDay),
				Pricing:          pricing.New(),
				QualityThreshold: built.QualityThreshold,
			})

			req := analyzer.ChatRequest{
				Model:    model,
				Messages: []analyzer.ChatMessage{{Role: "user", Text: "nexusctl dry run"}},
			}
			tierMode := domain.TierModeFlexible
			if strict {
				tierMode = domain.TierModeStrict
			}
			_ = vision
			_ = tools

			outcome := router.Route("nexusctl-dry-run", req, tierMode, "")
			printOutcome(cmd, outcome)
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a TOML configuration file")
	cmd.Flags().StringVar(&model, "model", "", "requested model name")
	cmd.Flags().BoolVar(&strict, "strict", true, "require strict tier enforcement")
	cmd.Flags().BoolVar(&vision, "vision", false, "request vision capability (reserved)")
	cmd.Flags().BoolVar(&tools, "tools", false, "request tool-calling capability (reserved)")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}

func printOutcome(cmd *cobra.Command, outcome *routing.Outcome) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "decision: %s\n", outcome.Decision)
	if outcome.Backend != nil {
		fmt.Fprintf(out, "backend:  %s (%s, zone=%s)\n", outcome.Backend.Name, outcome.Backend.Type, outcome.Backend.PrivacyZone)
	}
	if outcome.Intent == nil {
		return
	}
	fmt.Fprintf(out, "resolved model: %s\n", outcome.Intent.ResolvedModel)
	if outcome.Intent.FallbackModelUsed != "" {
		fmt.Fprintf(out, "fallback chain entry used: %s\n", outcome.Intent.FallbackModelUsed)
	}
	if len(outcome.Intent.RejectionReasons) == 0 {
		return
	}
	fmt.Fprintln(out, "rejections:")
	for _, r := range outcome.Intent.RejectionReasons {
		fmt.Fprintf(out, "  - agent=%s reconciler=%s reason=%s (%s)\n", r.AgentID, r.ReconcilerName, r.Reason.Code(), r.Reason.Error())
	}
}
