// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app provides the entry point for the vtnserver command-line
// application.
package app

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/vtn-core/pkg/logger"
)

// NewRootCmd creates the root command for the vtnserver CLI.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "vtnserver",
		DisableAutoGenTag: true,
		Short:             "vtnserver runs the OpenADR 3.0 Virtual Top Node server",
		Long: `vtnserver runs the OpenADR 3.0 Virtual Top Node server: a REST API over
which Business Logic actors publish demand-response programs and events,
and Virtual End Nodes enroll and post reports.`,
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				logger.Errorf("error displaying help: %v", err)
			}
		},
	}

	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	if err := viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")); err != nil {
		logger.Errorf("error binding config flag: %v", err)
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.SilenceUsage = true
	return rootCmd
}
