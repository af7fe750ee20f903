package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/eringen/sanitypress"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "sanitypress",
	Short: "A server-rendered blog front end for Sanity content",
	Long: `sanitypress serves a blog whose posts and categories live in a Sanity dataset.
Configuration comes from an optional YAML file, .env files and the environment.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (optional)")
}

func loadConfig() sanitypress.SiteConfig {
	cfg, err := sanitypress.LoadConfig(configPath)
	if err != nil {
		fatal("Error loading config", err)
	}
	return cfg
}
