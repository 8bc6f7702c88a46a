package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-vision/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sercha-vision/internal/adapters/driving/oauth"
	"github.com/custodia-labs/sercha-vision/internal/connectors/google"
	"github.com/custodia-labs/sercha-vision/internal/core/domain"
)

var (
	authPrint     bool
	authNoBrowser bool
)

// openBrowser is replaced in tests.
var openBrowser = oauth.OpenBrowser

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage Drive authorisation",
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Grant Drive access and store the refresh token",
	Long: `Opens the Google consent page for the OAuth client configured under
[drive] (client_id and client_secret), waits for the redirect on a loopback
port and stores the resulting refresh token in the config file.

Use --print to show the token instead of saving it, for example to put it
in SERCHA_VISION_DRIVE_REFRESH_TOKEN.`,
	Args: cobra.NoArgs,
	RunE: runAuthLogin,
}

func init() {
	authLoginCmd.Flags().BoolVar(&authPrint, "print", false, "print the refresh token instead of saving it")
	authLoginCmd.Flags().BoolVar(&authNoBrowser, "no-browser", false, "only print the consent URL")
	authCmd.AddCommand(authLoginCmd)
	rootCmd.AddCommand(authCmd)
}

func runAuthLogin(cmd *cobra.Command, _ []string) error {
	path := configPath
	if path == "" {
		p, err := file.DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	cfg, err := file.Load(path)
	if err != nil {
		return err
	}
	if cfg.Drive.ClientID == "" || cfg.Drive.ClientSecret == "" {
		return domain.ConfigurationError("drive.client_id", "client id and secret are required to log in")
	}

	flow := &oauth.Flow{Config: google.OAuthConfig(cfg.Drive.ClientID, cfg.Drive.ClientSecret)}
	if !authNoBrowser {
		flow.Open = openBrowser
	}
	token, err := flow.Run(cmd.Context(), cmd.OutOrStdout())
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	if authPrint {
		cmd.Println(token.RefreshToken)
		return nil
	}

	cfg.Drive.RefreshToken = token.RefreshToken
	if err := file.Save(path, cfg); err != nil {
		return err
	}
	cmd.Printf("Refresh token saved to %s\n", path)
	return nil
}
