package main

import (
	"fmt"

	"github.com/fentz26/worklog/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change the daemon configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Persist one configuration value",
	Long: `Persist one configuration value to the config file.
Keys: listen, db_path, log_level, stats.window_days, stats.timezone.
A running daemon picks the change up on restart.`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

func init() {
	configCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default ~/.worklog/config.yaml)")
	configCmd.AddCommand(configShowCmd, configSetCmd)
}

func configFile() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.HomePath()
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	path, err := configFile()
	if err != nil {
		return err
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	fmt.Printf("# %s\n%s", path, data)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	path, err := configFile()
	if err != nil {
		return err
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return err
	}

	if err := cfg.Set(args[0], args[1]); err != nil {
		return err
	}
	if err := config.SaveConfig(path, cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("✓ Set %s = %s\n", args[0], args[1])
	return nil
}
