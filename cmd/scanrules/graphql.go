package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/capsaicin/scanrules/internal/graphql"
)

func newGraphQLCmd() *cobra.Command {
	var query string

	cmd := &cobra.Command{
		Use:   "graphql",
		Short: "Extract, inject and name inline GraphQL arguments",
	}
	cmd.PersistentFlags().StringVarP(&query, "query", "q", "", "GraphQL document (default: read STDIN)")

	extract := &cobra.Command{
		Use:   "extract",
		Short: "List every inline argument address and its value",
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := readInput(cmd, query)
			if err != nil {
				return err
			}
			params, err := graphql.Extract(q)
			if err != nil {
				return err
			}

			addresses := make([]string, 0, len(params))
			for address := range params {
				addresses = append(addresses, address)
			}
			sort.Strings(addresses)
			for _, address := range addresses {
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", address, params[address])
			}
			return nil
		},
	}

	var address, value string
	inject := &cobra.Command{
		Use:   "inject",
		Short: "Replace the argument at an address with a literal",
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := readInput(cmd, query)
			if err != nil {
				return err
			}
			out, err := graphql.Inject(q, address, value)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	inject.Flags().StringVarP(&address, "address", "a", "", "Argument address, e.g. field.arg")
	inject.Flags().StringVar(&value, "value", "", "Replacement value")
	inject.MarkFlagRequired("address")

	nodeName := &cobra.Command{
		Use:   "nodename",
		Short: "Print the structural signature of a document",
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := readInput(cmd, query)
			if err != nil {
				return err
			}
			name, err := graphql.NodeName(q)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), name)
			return nil
		},
	}

	cmd.AddCommand(extract, inject, nodeName)
	return cmd
}
