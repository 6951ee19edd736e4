// ABOUTME: Provider command for reader-service configuration
// ABOUTME: Stores credentials for miniflux, feedbin, freshrss, or theoldreader and tests the connection

package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/superflux/internal/provider"
)

var providerCmd = &cobra.Command{
	Use:   "provider",
	Short: "Manage the reader-service provider",
}

var providerSetCmd = &cobra.Command{
	Use:   "set <kind>",
	Short: "Configure a provider",
	Long:  "Configure the reader service to mirror read/star state to: miniflux, feedbin, freshrss, or theoldreader",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := args[0]
		baseURL, _ := cmd.Flags().GetString("url")
		token, _ := cmd.Flags().GetString("token")
		username, _ := cmd.Flags().GetString("username")
		password, _ := cmd.Flags().GetString("password")

		var pcfg provider.Config
		switch kind {
		case provider.KindMiniflux:
			if baseURL == "" || token == "" {
				return fmt.Errorf("miniflux needs --url and --token")
			}
			pcfg = provider.MinifluxConfig{BaseURL: baseURL, Token: token}
		case provider.KindFeedbin:
			if username == "" || password == "" {
				return fmt.Errorf("feedbin needs --username and --password")
			}
			pcfg = provider.FeedbinConfig{BaseURL: baseURL, Username: username, Password: password}
		case provider.KindFreshRSS, provider.KindTheOldReader:
			if baseURL == "" || username == "" || password == "" {
				return fmt.Errorf("%s needs --url, --username, and --password", kind)
			}
			pcfg = provider.GReaderConfig{Service: kind, BaseURL: baseURL, Username: username, Password: password}
		default:
			return fmt.Errorf("unknown provider %q (try miniflux, feedbin, freshrss, theoldreader)", kind)
		}

		p, err := provider.New(pcfg)
		if err != nil {
			return err
		}
		if err := p.TestConnection(cmd.Context()); err != nil {
			return fmt.Errorf("connection test failed: %w", err)
		}

		if err := cfg.SetProviderConfig(pcfg); err != nil {
			return fmt.Errorf("failed to encode provider config: %w", err)
		}
		if err := cfg.Save(); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Provider %s configured\n", green("✓"), kind)
		return nil
	},
}

var providerTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Test the configured provider",
	RunE: func(cmd *cobra.Command, args []string) error {
		pcfg, ok, err := cfg.ProviderConfig()
		if err != nil {
			return fmt.Errorf("invalid provider config: %w", err)
		}
		if !ok {
			return fmt.Errorf("no provider configured (run 'superflux provider set')")
		}

		p, err := provider.New(pcfg)
		if err != nil {
			return err
		}
		if err := p.TestConnection(cmd.Context()); err != nil {
			return fmt.Errorf("connection test failed: %w", err)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Connected to %s\n", green("✓"), pcfg.Kind())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(providerCmd)
	providerCmd.AddCommand(providerSetCmd)
	providerCmd.AddCommand(providerTestCmd)

	providerSetCmd.Flags().String("url", "", "service base URL")
	providerSetCmd.Flags().String("token", "", "API token (miniflux)")
	providerSetCmd.Flags().StringP("username", "u", "", "account username")
	providerSetCmd.Flags().StringP("password", "p", "", "account password")
}
