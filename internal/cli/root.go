// Package cli implements healthctl, the operator command line for the health import API.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"example.com/healthsync/internal/api"
)

const envPrefix = "HEALTHCTL"

// NewRootCommand builds the healthctl command tree. Settings resolve from
// flags, then HEALTHCTL_* environment variables, then the config file.
func NewRootCommand(out io.Writer) *cobra.Command {
	v := viper.New()
	v.SetDefault("server", "http://localhost:8080")
	v.SetDefault("timeout", 4*time.Minute)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var cfgFile string
	root := &cobra.Command{
		Use:           "healthctl",
		Short:         "Drive health data imports over the healthsync API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfigFile(v, cfgFile)
		},
	}
	root.SetOut(out)

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.healthctl/healthctl.yaml)")
	root.PersistentFlags().String("server", "", "API base URL")
	root.PersistentFlags().String("token", "", "bearer token")
	root.PersistentFlags().Duration("timeout", 0, "request timeout")
	_ = v.BindPFlag("server", root.PersistentFlags().Lookup("server"))
	_ = v.BindPFlag("token", root.PersistentFlags().Lookup("token"))
	_ = v.BindPFlag("timeout", root.PersistentFlags().Lookup("timeout"))

	client := func() *Client {
		return NewClient(v.GetString("server"), v.GetString("token"), v.GetDuration("timeout"))
	}

	root.AddCommand(
		availabilityCommand(client),
		importCommand(client),
		statusCommand(client),
		statsCommand(client),
		permissionCommand(client),
		recordsCommand(client),
	)
	return root
}

// Execute runs healthctl against os.Args.
func Execute() {
	if err := NewRootCommand(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfigFile(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", cfgFile, err)
		}
		return nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	v.AddConfigPath(filepath.Join(home, ".healthctl"))
	v.SetConfigName("healthctl")
	v.SetConfigType("yaml")
	// A missing default config file is fine.
	_ = v.ReadInConfig()
	return nil
}

func availabilityCommand(client func() *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "availability",
		Short: "Report whether the device health platform is usable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client().Availability(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
}

func importCommand(client func() *Client) *cobra.Command {
	var (
		since      time.Duration
		start, end string
		types      []string
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import health records for a time window",
		Long: `Import health records for [start, end). Without --start the window is the
last --since of data ending now. The request blocks while the user answers a
permission prompt on the device.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := buildImportRequest(time.Now(), since, start, end, types)
			if err != nil {
				return err
			}
			resp, err := client().Import(cmd.Context(), req)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), resp); err != nil {
				return err
			}
			if !resp.Success {
				return fmt.Errorf("import unsuccessful: %s", resp.Message)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&since, "since", 24*time.Hour, "window length ending now")
	cmd.Flags().StringVar(&start, "start", "", "window start (RFC3339)")
	cmd.Flags().StringVar(&end, "end", "", "window end (RFC3339, default now)")
	cmd.Flags().StringSliceVar(&types, "type", nil, "record types to import (default all)")
	return cmd
}

func buildImportRequest(now time.Time, since time.Duration, start, end string, types []string) (api.ImportRequest, error) {
	req := api.ImportRequest{End: now.UTC(), Types: types}
	if end != "" {
		parsed, err := time.Parse(time.RFC3339, end)
		if err != nil {
			return api.ImportRequest{}, fmt.Errorf("--end: %w", err)
		}
		req.End = parsed
	}
	if start != "" {
		parsed, err := time.Parse(time.RFC3339, start)
		if err != nil {
			return api.ImportRequest{}, fmt.Errorf("--start: %w", err)
		}
		req.Start = parsed
	} else {
		if since <= 0 {
			return api.ImportRequest{}, fmt.Errorf("--since must be positive")
		}
		req.Start = req.End.Add(-since)
	}
	if req.Start.After(req.End) {
		return api.ImportRequest{}, fmt.Errorf("start %s is after end %s", req.Start.Format(time.RFC3339), req.End.Format(time.RFC3339))
	}
	return req, nil
}

func statusCommand(client func() *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the running or most recent import",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client().ImportStatus(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
}

func statsCommand(client func() *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show daily and weekly rollups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client().Stats(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
}

func permissionCommand(client func() *Client) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "permission <record-type>",
		Short: "Show the read grant for one record type",
		Long: `Show the read grant the service last resolved for a record type. With
--refresh the service asks the platform first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client()
			if refresh {
				if _, err := c.CheckPermissions(cmd.Context(), args); err != nil {
					return err
				}
			}
			resp, err := c.Permission(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "re-check the grant on the platform first")
	return cmd
}

func recordsCommand(client func() *Client) *cobra.Command {
	var (
		recordType string
		cursor     string
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "records",
		Short: "List stored records, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client().Records(cmd.Context(), recordType, cursor, limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringVar(&recordType, "type", "", "record type filter")
	cmd.Flags().StringVar(&cursor, "cursor", "", "page token from a previous next_cursor")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
