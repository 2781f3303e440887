package cmd

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/melih-ucgun/warden/internal/backend"
	"github.com/melih-ucgun/warden/internal/secrets"
)

var rootCmd = &cobra.Command{
	Use:   "warden",
	Short: "Declarative access control for your BI backend.",
	Long: `Warden reads a directory of YAML files describing connections, projects,
roles, folder access and authentication, compares them against the live
backend and applies the minimal set of changes to close the gap.`,
	SilenceUsage: true,
}

var (
	configDir    string
	envFile      string
	verboseCount int
)

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// PTerm output to Stderr (to keep Stdout clean for piping)
	pterm.SetDefaultOutput(os.Stderr)
	pterm.Success.Writer = os.Stderr
	pterm.Info.Writer = os.Stderr
	pterm.Error.Writer = os.Stderr
	pterm.Warning.Writer = os.Stderr
	pterm.DefaultHeader.Writer = os.Stderr

	rootCmd.PersistentFlags().StringVarP(&configDir, "config-dir", "c", "config", "directory holding the yaml config files")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with backend credentials and secrets")
	rootCmd.PersistentFlags().CountVarP(&verboseCount, "verbose", "v", "increase verbosity (-v for debug)")
}

// newClient builds the REST client from the environment. The .env file is
// loaded first so local runs work without exporting anything; a missing
// file is fine, CI sets real environment variables instead.
func newClient() (backend.Client, error) {
	if err := secrets.LoadDotenv(envFile); err != nil {
		return nil, err
	}

	baseURL := os.Getenv("WARDEN_API_URL")
	if baseURL == "" {
		return nil, fmt.Errorf("WARDEN_API_URL is not set")
	}
	token := os.Getenv("WARDEN_API_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("WARDEN_API_TOKEN is not set")
	}

	return backend.NewRESTClient(baseURL, token), nil
}
