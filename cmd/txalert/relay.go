package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/target/txalert/config"
	"github.com/target/txalert/internal/bootstrap"
	apperrors "github.com/target/txalert/internal/errors"
	"github.com/target/txalert/internal/service/relay"
)

// Exit codes follow sysexits.h.
const (
	exitDataErr     = 65
	exitUnavailable = 69
	exitSoftware    = 70
	exitConfig      = 78
)

type relayOptions struct {
	data string
	id   string
}

func newRelayCmd() *cobra.Command {
	opts := &relayOptions{}
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Relay a single base64 encoded event",
		Long: "Decodes one event payload, renders its alert and delivers it.\n" +
			"The payload comes from --data, or from stdin when --data is omitted.\n" +
			"Prints the result as JSON.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := bootstrap.LoadConfig()
			if err != nil {
				return &exitError{code: exitConfig, err: err}
			}
			return runRelay(cmd, cfg, opts)
		},
	}
	cmd.Flags().StringVar(&opts.data, "data", "", "Base64 encoded event payload (default: read stdin)")
	cmd.Flags().StringVar(&opts.id, "id", "", "Invocation ID for log correlation (default: random)")
	return cmd
}

func runRelay(cmd *cobra.Command, cfg config.AppConfig, opts *relayOptions) error {
	ctx := cmd.Context()
	logger := bootstrap.InitLogger(cfg.Observability.SlogLevel())

	data := opts.data
	if !cmd.Flags().Changed("data") {
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return &exitError{code: exitDataErr, err: fmt.Errorf("read stdin: %w", err)}
		}
		data = strings.TrimSpace(string(b))
	}

	r, err := bootstrap.NewRelay(cfg, bootstrap.RelayDeps{Logger: logger})
	if err != nil {
		return &exitError{code: exitSoftware, err: err}
	}
	defer func() { _ = r.Close() }()

	res, err := r.Handle(ctx, relay.Invocation{ID: opts.id, Data: data})
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return &exitError{code: exitCode(err), err: err}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func exitCode(err error) int {
	switch {
	case apperrors.IsDecode(err):
		return exitDataErr
	case apperrors.IsConfiguration(err):
		return exitConfig
	case apperrors.IsDelivery(err), apperrors.IsTimeout(err), apperrors.IsCanceled(err):
		return exitUnavailable
	default:
		return exitSoftware
	}
}
