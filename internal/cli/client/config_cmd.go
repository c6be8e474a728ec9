package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// ConfigCmd creates the config parent command
func ConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or clear stored credentials",
	}

	cmd.AddCommand(ConfigShowCmd())
	cmd.AddCommand(ConfigClearCmd())

	return cmd
}

// ConfigShowCmd creates the config show command
func ConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the active credentials and where they come from",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runConfigShow(cmd, outputJSON)
		},
	}
}

// ConfigClearCmd creates the config clear command
func ConfigClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove stored credentials from the user config directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := DeleteGlobalConfig(); err != nil {
				return err
			}
			fmt.Println("Cleared stored credentials")
			return nil
		},
	}
}

func runConfigShow(cmd *cobra.Command, outputJSON bool) error {
	flagToken, _ := cmd.Flags().GetString("api-token")
	flagURL, _ := cmd.Flags().GetString("api-url")

	source, token, url := GetCredentialSource(flagToken, flagURL)
	configPath, _ := GetConfigPath()

	if outputJSON {
		output, _ := json.MarshalIndent(map[string]string{
			"source":      string(source),
			"api_url":     url,
			"api_token":   redactToken(token),
			"config_path": configPath,
		}, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Source:      %s\n", source)
	fmt.Printf("API URL:     %s\n", url)
	fmt.Printf("API token:   %s\n", redactToken(token))
	fmt.Printf("Config path: %s\n", configPath)
	return nil
}

func redactToken(token string) string {
	if token == "" {
		return "(none)"
	}
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
