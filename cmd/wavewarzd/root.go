package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

const (
	flagHome    = "home"
	defaultHome = "~/.wavewarz"
)

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "wavewarzd",
		Short:         "WaveWarz battle sync daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String(flagHome, defaultHome, "directory for config and the battle cache")

	InitRootCmd(rootCmd)

	return rootCmd
}

func homeDir(cmd *cobra.Command) (string, error) {
	home, err := cmd.Flags().GetString(flagHome)
	if err != nil {
		return "", err
	}
	return expandHome(home)
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(userHome, strings.TrimPrefix(path, "~")), nil
}
