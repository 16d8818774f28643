package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ManuelReschke/BlogHub/internal/pkg/billing"
	"github.com/ManuelReschke/BlogHub/internal/pkg/env"
)

type replayOptions struct {
	url     string
	secret  string
	at      int64
	timeout time.Duration
}

func newRootCommand() *cobra.Command {
	opts := replayOptions{}
	cmd := &cobra.Command{
		Use:   "replay [event.json ...]",
		Short: "Sign provider event fixtures and post them to a running instance",
		Long: "replay signs each JSON event file with the local webhook secret the same way\n" +
			"the payment provider does and posts it to the webhook endpoint, in order.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			if opts.secret == "" {
				return fmt.Errorf("webhook secret is empty: set STRIPE_WEBHOOK_SECRET or pass --secret")
			}
			client := &http.Client{Timeout: opts.timeout}
			for _, path := range args {
				if err := replayFile(cmd.Context(), cmd.OutOrStdout(), client, opts, path); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
			}
			return nil
		},
	}

	port := env.GetEnv("APP_PORT", "4000")
	cmd.Flags().StringVar(&opts.url, "url", "http://localhost:"+port+"/webhooks/stripe", "webhook endpoint")
	cmd.Flags().StringVar(&opts.secret, "secret", env.GetEnv("STRIPE_WEBHOOK_SECRET", ""), "webhook signing secret")
	cmd.Flags().Int64Var(&opts.at, "at", 0, "signature timestamp (unix seconds, default now)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "request timeout")
	return cmd
}

func replayFile(ctx context.Context, out io.Writer, client *http.Client, opts replayOptions, path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if !json.Valid(payload) {
		return fmt.Errorf("not valid JSON")
	}

	at := time.Now()
	if opts.at > 0 {
		at = time.Unix(opts.at, 0)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, opts.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(billing.SignatureHeader, billing.SignPayload(payload, opts.secret, at))

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	fmt.Fprintf(out, "%s -> %d %s\n", path, resp.StatusCode, bytes.TrimSpace(body))
	if resp.StatusCode >= 300 {
		return fmt.Errorf("endpoint answered %d", resp.StatusCode)
	}
	return nil
}
