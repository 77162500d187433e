package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitwire/packages/core/config"
)

var (
	forceInit  bool
	initFormat string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a hitwire config file with the defaults",
	Long: `Write a config file to the current directory holding every default
setting, ready to edit.

Examples:
  hitwire init
  hitwire init --format json
  hitwire init --force`,
	Args: cobra.NoArgs,
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite an existing file")
	initCmd.Flags().StringVar(&initFormat, "format", "yaml", "File format: yaml, json")
}

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	var name string
	switch initFormat {
	case "yaml", "yml":
		name = config.ConfigFilenames[0]
	case "json":
		name = config.ConfigFilenames[2]
	default:
		return withExitCode(ExitUsageError, fmt.Errorf("unknown format %q (want yaml or json)", initFormat))
	}
	path := filepath.Join(cwd, name)

	if !forceInit {
		if _, err := os.Stat(path); err == nil {
			return withExitCode(ExitUsageError, fmt.Errorf("file already exists: %s (use --force to overwrite)", path))
		}
	}

	cfg := config.DefaultConfig()
	cfg.Headers = map[string]string{"Accept": "*/*"}
	if err := cfg.SaveConfig(path); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", path)
	fmt.Fprintf(cmd.OutOrStdout(), "\nNext: hitwire send http://localhost:8080/\n")
	return nil
}
