package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func InitCmd() *cobra.Command {
	var apiToken string
	var apiURL string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Configure the lodestone CLI",
		Long:  "Stores the API token and URL in the user config directory after verifying them against the server.",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runInit(apiToken, apiURL, outputJSON)
		},
	}

	cmd.Flags().StringVar(&apiToken, "api-token", "", "API token (leave empty for servers without auth)")
	cmd.Flags().StringVar(&apiURL, "api-url", "", "API base URL (default: http://localhost:8080)")

	return cmd
}

func runInit(apiToken, apiURL string, outputJSON bool) error {
	_ = godotenv.Load()
	if apiToken == "" {
		apiToken = os.Getenv(envAPIToken)
	}
	if apiToken == "" && !outputJSON {
		fmt.Print("Enter API token (empty for no auth): ")
		reader := bufio.NewReader(os.Stdin)
		input, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read API token: %w", err)
		}
		apiToken = strings.TrimSpace(input)
	}

	if apiURL == "" {
		apiURL = os.Getenv(envAPIURL)
	}
	if apiURL == "" {
		apiURL = defaultAPIURL
	}

	api, err := NewAPIClientWithConfig(apiToken, apiURL)
	if err != nil {
		return fmt.Errorf("failed to create API client: %w", err)
	}

	// Hit an authenticated route so a wrong token fails here, not on first use.
	if _, err := api.Get("/v1/documents?limit=1"); err != nil {
		return fmt.Errorf("failed to verify credentials against %s: %w", apiURL, err)
	}

	if err := SaveGlobalConfig(&GlobalConfig{APIToken: apiToken, APIURL: apiURL}); err != nil {
		return err
	}

	configPath, _ := GetConfigPath()
	if outputJSON {
		output, _ := json.MarshalIndent(map[string]string{
			"config_path": configPath,
			"api_url":     apiURL,
		}, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Saved configuration to %s\n", configPath)
	fmt.Printf("API URL: %s\n", apiURL)
	return nil
}
