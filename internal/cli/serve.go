package cli

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/0xthrpw/remand/internal/httpapi"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the offer API over HTTP",
		Long: `Serve the offer API over HTTP.

Endpoints:
  GET  /healthz
  GET  /offers
  POST /offers
  GET  /offers/{key}
  GET  /offers/{key}/assets
  POST /offers/{key}/accept
  POST /offers/{key}/rescind
  POST /offers/{key}/repay
  POST /offers/{key}/remand
  GET  /events

Example:
  remand serve --addr :8080`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer rt.Close()

			api := httpapi.New(rt.engine, rt.store, nil)
			srv := &http.Server{
				Addr:              opts.Addr,
				Handler:           api.Router(),
				ReadHeaderTimeout: 5 * time.Second,
			}

			fmt.Fprintf(cmd.OutOrStdout(), "serving on %s (store %s)\n", opts.Addr, rt.cfg.Store)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", ":8080", "listen address")

	return cmd
}
