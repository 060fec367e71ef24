package cmd

import (
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/sethvargo/go-password/password"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/saturnblock/pythonplantpot/internal/log"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/config"
)

const redacted = "********"

var (
	configInitForce bool
	configShowAll   bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show and change the controller configuration",
	Long: `Show and change the controller configuration file.

A running controller reloads the file when it changes. Changes the engine cannot
run with are rejected and the previous configuration stays in effect.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the configuration",
	Example: `  # Print the configuration with secrets hidden
  plantpot config show

  # Include secrets
  plantpot config show --secrets`,
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if !configShowAll {
			cfg = redact(cfg)
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		fmt.Print(string(data))
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration",
	Long: `Write the default configuration to --config.

A random token for the HTTP API is generated. An existing file is kept unless
--force is given.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		if _, err := os.Stat(configPath); err == nil && !configInitForce {
			return fmt.Errorf("%s already exists, use --force to overwrite it", configPath)
		}

		cfg, err := initialConfig()
		if err != nil {
			return err
		}
		if err := config.Save(configPath, cfg); err != nil {
			return err
		}
		log.Info("✅ Configuration written to %s", configPath)
		log.InfoH2("HTTP API token: %s", cfg.HTTP.Token)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:               "set KEY VALUE",
	Short:             "Change one setting",
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: settingKeys,
	Example: `  # Water 100 ml every 12 hours
  plantpot config set watering.amountMl 100
  plantpot config set watering.intervalSeconds 43200`,
	RunE: func(_ *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		updated, err := applySetting(cfg, args[0], args[1])
		if err != nil {
			return err
		}
		if err := config.Save(configPath, updated); err != nil {
			return err
		}
		log.Info("✅ %s = %s", args[0], args[1])
		return nil
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit the settings interactively",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		for _, setting := range config.Settings {
			answer := setting.Get(cfg)
			prompt := &survey.Input{
				Message: setting.Help + ":",
				Default: answer,
				Help:    setting.Key,
			}
			validate := func(v interface{}) error {
				probe := cfg
				return setting.Apply(&probe, fmt.Sprint(v))
			}
			if err := survey.AskOne(prompt, &answer, survey.WithValidator(validate)); err != nil {
				return fmt.Errorf("edit canceled: %w", err)
			}
			if err := setting.Apply(&cfg, answer); err != nil {
				return err
			}
		}

		if err := config.JoinErrors(cfg.Validate()); err != nil {
			return err
		}
		if err := config.Save(configPath, cfg); err != nil {
			return err
		}
		log.Info("✅ Configuration saved to %s", configPath)
		return nil
	},
}

// applySetting returns cfg with key set to value, rejecting a result that does not validate
func applySetting(cfg config.Config, key, value string) (config.Config, error) {
	if err := cfg.Set(key, value); err != nil {
		return cfg, err
	}
	if err := config.JoinErrors(cfg.Validate()); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func initialConfig() (config.Config, error) {
	cfg := config.Default()
	token, err := password.Generate(32, 10, 0, false, true)
	if err != nil {
		return cfg, fmt.Errorf("failed to generate API token: %w", err)
	}
	cfg.HTTP.Token = token
	return cfg, nil
}

func redact(cfg config.Config) config.Config {
	for _, secret := range []*string{
		&cfg.HTTP.Token,
		&cfg.MQTT.Password,
		&cfg.Notify.Webhook.Token,
		&cfg.Notify.Email.Password,
	} {
		if *secret != "" {
			*secret = redacted
		}
	}
	return cfg
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configInitCmd, configSetCmd, configEditCmd)

	configShowCmd.Flags().BoolVar(&configShowAll, "secrets", false, "Show tokens and passwords")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing configuration")
}
