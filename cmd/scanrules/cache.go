package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/capsaicin/scanrules/internal/cache"
	"github.com/capsaicin/scanrules/internal/httpmsg"
)

func newCacheCmd() *cobra.Command {
	var requestFile, responseFile string

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Classify a raw HTTP exchange as storable and cacheable or not",
		RunE: func(cmd *cobra.Command, args []string) error {
			rawReq, err := os.ReadFile(requestFile)
			if err != nil {
				return fmt.Errorf("read request: %w", err)
			}
			rawResp, err := os.ReadFile(responseFile)
			if err != nil {
				return fmt.Errorf("read response: %w", err)
			}

			req, err := httpmsg.ParseRequest(string(rawReq))
			if err != nil {
				return err
			}
			resp, err := httpmsg.ParseResponse(string(rawResp))
			if err != nil {
				return err
			}

			decision, err := cache.Classify(&httpmsg.Message{Request: req, Response: resp})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Decision: %s\n", decision.Kind())
			fmt.Fprintf(out, "Evidence: %q\n", cache.EvidenceOf(decision))
			if c, ok := decision.(cache.StorableCacheable); ok && c.Note != "" {
				fmt.Fprintf(out, "Note:     %s\n", c.Note)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&requestFile, "request", "", "File holding the raw request")
	cmd.Flags().StringVar(&responseFile, "response", "", "File holding the raw response")
	cmd.MarkFlagRequired("request")
	cmd.MarkFlagRequired("response")
	return cmd
}
