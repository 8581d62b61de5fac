// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	axonius "github.com/netascode/go-axonius"
)

// app carries state shared by all subcommands.
type app struct {
	v       *viper.Viper
	cfg     Config
	logger  axonius.Logger
	jsonOut bool

	// services and schema are replaced in tests
	services func(ctx context.Context, assetType string, withFields bool) (*axonius.SavedQueries, error)
	schema   func(ctx context.Context, assetType string) (*axonius.FieldSchema, error)

	client *axonius.Client
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	a.services = a.restServices
	a.schema = a.restSchema
	return a.rootCmd()
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "axctl",
		Short: "manage Axonius saved queries",
		Long: "axctl lists, creates and edits saved queries of an Axonius instance.\n" +
			"Settings are read from $AXCTL_CONFIG or ~/.config/axctl/config.yaml and\n" +
			"AXCTL_* environment variables; flags override both.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.configure(cmd)
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if a.client != nil {
				_ = a.client.Close()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.String("url", "", "instance base URL (https://host)")
	pf.String("api-key", "", "API key")
	pf.String("api-secret", "", "API secret (prompted for when missing on a terminal)")
	pf.Bool("insecure", false, "skip TLS certificate verification")
	pf.Duration("timeout", axonius.DefaultOperationTimeout, "per request timeout")
	pf.Int("retries", axonius.DefaultMaxRetries, "retries for transient failures")
	pf.Float64("rate-limit", 0, "maximum requests per second, 0 for unlimited")
	pf.String("log-level", "warn", "log level: debug, info, warn, error, none")
	pf.StringP("asset-type", "a", axonius.AssetDevices, "asset type: "+strings.Join(axonius.ValidAssetTypes, ", "))
	pf.BoolVar(&a.jsonOut, "json", false, "print JSON instead of tables")

	for _, name := range []string{"url", "api-key", "api-secret", "insecure", "timeout", "retries", "rate-limit", "log-level", "asset-type"} {
		_ = a.v.BindPFlag(strings.ReplaceAll(name, "-", "_"), pf.Lookup(name))
	}

	root.AddCommand(
		a.savedQueryCmd(),
		a.wizardCmd(),
		a.fieldsCmd(),
		a.versionCmd(),
	)
	return root
}

func (a *app) configure(cmd *cobra.Command) error {
	cfg, err := loadConfig(a.v)
	if err != nil {
		return err
	}
	level, err := axonius.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = axonius.NewDefaultLoggerWriter(level, cmd.ErrOrStderr())
	return nil
}

// connect builds the client on first use.
func (a *app) connect() (*axonius.Client, error) {
	if a.client != nil {
		return a.client, nil
	}
	if a.cfg.URL == "" {
		return nil, fmt.Errorf("no instance URL: set --url, AXCTL_URL or url in the config file")
	}
	if a.cfg.APIKey != "" && a.cfg.APISecret == "" {
		secret, err := promptSecret(os.Stdin, os.Stderr)
		if err != nil {
			return nil, err
		}
		a.cfg.APISecret = secret
	}
	client, err := axonius.NewClient(a.cfg.URL, a.cfg.clientOptions(a.logger)...)
	if err != nil {
		return nil, err
	}
	a.client = client
	return client, nil
}

// promptSecret reads the API secret without echo when in is a terminal.
func promptSecret(in *os.File, out io.Writer) (string, error) {
	fd := int(in.Fd()) //nolint:gosec // file descriptors fit in int
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("API secret missing and stdin is not a terminal")
	}
	fmt.Fprint(out, "API secret: ")
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("read API secret: %w", err)
	}
	return strings.TrimSpace(string(secret)), nil
}

func (a *app) restSchema(ctx context.Context, assetType string) (*axonius.FieldSchema, error) {
	client, err := a.connect()
	if err != nil {
		return nil, err
	}
	return axonius.FetchFieldSchema(ctx, client, assetType)
}

func (a *app) restServices(ctx context.Context, assetType string, withFields bool) (*axonius.SavedQueries, error) {
	client, err := a.connect()
	if err != nil {
		return nil, err
	}
	if !withFields {
		return client.SavedQueries(assetType, nil)
	}
	schema, err := axonius.FetchFieldSchema(ctx, client, assetType)
	if err != nil {
		return nil, err
	}
	return client.SavedQueries(assetType, schema)
}

// service returns the saved query service for the configured asset type.
func (a *app) service(cmd *cobra.Command, withFields bool) (*axonius.SavedQueries, error) {
	return a.services(cmd.Context(), a.cfg.AssetType, withFields)
}

func (a *app) versionCmd() *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "print the axctl version, and with --remote the instance version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "axctl %s\n", version)
			if !remote {
				return nil
			}
			client, err := a.connect()
			if err != nil {
				return err
			}
			if err := client.Ping(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "instance %s (%s)\n", client.Version(), a.cfg.URL)
			return nil
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "also query the instance version")
	return cmd
}

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"
