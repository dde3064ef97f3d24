package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/switchyard/internal/api"
)

// shutdownTimeout bounds how long in-flight requests get after a signal.
const shutdownTimeout = 10 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string

	// ready, when set, receives the bound address once the listener is up.
	ready func(addr string)
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the admin and ingest HTTP API",
		Long: `Start the HTTP API over the configured database.

The database is migrated on start. Events posted to /api/v1/events run
the workflow engine before the response is written. Notifications are
pushed to Redis when SWITCHYARD_REDIS_URL is set and logged otherwise.

Example:
  switchyard serve --db ./switchyard.db --addr :8080
  SWITCHYARD_REDIS_URL=redis://localhost:6379/0 switchyard serve`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default $SWITCHYARD_HTTP_ADDR or :8080)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := opts.Config()
	if err != nil {
		return err
	}
	if opts.Addr != "" {
		cfg.HTTPAddr = opts.Addr
	}
	logger := opts.Logger(cmd.ErrOrStderr())

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStack(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing stack", "error", closeErr)
		}
	}()

	handler := api.New(st.store, st.writer,
		api.WithLogger(logger),
		api.WithGatherer(st.registry),
	).Routes()

	ln, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()

	logger.Info("api listening", "addr", ln.Addr().String(), "db", cfg.DBPath)
	fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s. Press Ctrl-C to stop.\n", ln.Addr())
	if opts.ready != nil {
		opts.ready(ln.Addr().String())
	}

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitFailure, "server error", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return WrapExitError(ExitFailure, "shutdown failed", err)
	}
	logger.Info("server stopped gracefully")
	return nil
}
