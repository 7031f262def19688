package commands

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const starterConfig = `# Cerberus configuration

[project]
name = "%s"
version = "0.1.0"

# One block per reverse proxy layer.
[[proxies]]
name = "edge"
type = "nginx"
external_port = 80
internal_port = 8080
instances = 1

# One block per upstream service.
[[services]]
name = "app"
domain = "app.example.com"
upstream = "http://app:3000"

[anubis]
enabled = false
difficulty = 4
`

func newInitCommand() *cobra.Command {
	var (
		projectName string
		force       bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter configuration file",
		Long: `Write a starter configuration with one proxy, one service and the Anubis
bot filter disabled. The file passes validation as written.`,
		Example: `  # Create config.toml in the current directory
  cerberus init

  # Create a named project somewhere else
  cerberus init --name shop --config deploy/cerberus.toml

  # Replace an existing file
  cerberus init --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Debug().
				Str("config", configPath).
				Str("project", projectName).
				Bool("force", force).
				Msg("Writing starter configuration")

			if !force {
				if _, err := os.Stat(configPath); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
				}
			}

			content := fmt.Sprintf(starterConfig, projectName)
			if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", configPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&projectName, "name", "my-project", "project name")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")

	return cmd
}
