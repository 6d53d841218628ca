package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/capsaicin/scanrules/internal/config"
	"github.com/capsaicin/scanrules/internal/encoder"
	"github.com/capsaicin/scanrules/internal/logging"
	"github.com/capsaicin/scanrules/internal/openapi"
)

func newAscifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ascify [TEXT]",
		Short: "Strip text down to its closest ASCII form",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var text string
			if len(args) == 1 {
				text = args[0]
			}
			in, err := readInput(cmd, text)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), encoder.Ascify(strings.TrimRight(in, "\r\n")))
			return nil
		},
	}
}

func newFieldValueCmd() *cobra.Command {
	var typ, defaultValue, configFile, logLevel string

	cmd := &cobra.Command{
		Use:   "field-value NAME",
		Short: "Resolve the value used for a generated request parameter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New(logLevel, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			var provider openapi.ValueProvider
			if configFile != "" {
				opts, err := config.LoadRuleOptions(configFile)
				if err != nil {
					return err
				}
				if len(opts.FieldValues) > 0 {
					provider = openapi.StaticProvider(opts.FieldValues)
				}
			}

			gen := openapi.NewValueGenerator(provider, logger)
			fmt.Fprintln(cmd.OutOrStdout(), gen.Value(args[0], typ, defaultValue))
			return nil
		},
	}

	cmd.Flags().StringVar(&typ, "type", "", "Parameter type")
	cmd.Flags().StringVar(&defaultValue, "default", "", "Value used when nothing else is configured")
	cmd.Flags().StringVarP(&configFile, "config", "c", config.Default().ConfigFile, "YAML rule options file with field_values (env: SCANRULES_CONFIG)")
	cmd.Flags().StringVar(&logLevel, "log-level", "warn", "Log level: debug|info|warn|error")
	return cmd
}
