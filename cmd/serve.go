package cmd

import (
	"fmt"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/msalah0e/mindmap/internal/apperr"
	"github.com/msalah0e/mindmap/internal/auth"
	"github.com/msalah0e/mindmap/internal/config"
	"github.com/msalah0e/mindmap/internal/docstore"
	"github.com/msalah0e/mindmap/internal/server"
	"github.com/msalah0e/mindmap/internal/ui"
)

func serveCmd() *cobra.Command {
	var (
		addr        string
		memory      bool
		requireAuth bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the hosted document store",
		Long: `Serves the local document store over HTTP so other machines can use it
as their remote backend, with a websocket feed of changes.

  mindmap serve                        # sqlite store on 127.0.0.1:7420
  MINDMAP_SECRET=... mindmap serve --addr :8080 --auth   # require signed tokens
  MINDMAP_STORE_URL=http://host:7420 mindmap map   # use it from a client`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.Load()
			if !cmd.Flags().Changed("addr") {
				addr = cfg.Server.Addr
			}
			if !cmd.Flags().Changed("auth") {
				requireAuth = cfg.Server.RequireAuth
			}

			var (
				store docstore.Store
				err   error
				where string
			)
			if memory {
				store, where = docstore.NewMemory(), "memory"
			} else {
				store, err = docstore.OpenSQLite(cfg.StorePath())
				where = cfg.StorePath()
			}
			if err != nil {
				fail(err)
			}
			defer store.Close()

			opts, err := serverOptions(cfg, store, requireAuth)
			if err != nil {
				fail(err)
			}
			srv := server.New(store, opts...)

			ui.Banner(cmd.OutOrStdout(), "document store")
			fmt.Printf("  Listening: %s\n", ui.Brand.Sprint("http://"+addr))
			fmt.Printf("  Store:     %s\n", where)
			fmt.Printf("  Auth:      %v\n\n", requireAuth)
			glog.Infof("[serve]listening on %s (store %s)\n", addr, where)

			if err := srv.ListenAndServe(cmd.Context(), addr); err != nil {
				fail(err)
			}
			fmt.Println("  Stopped.")
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	cmd.Flags().BoolVar(&memory, "memory", false, "Serve an in-memory store instead of sqlite")
	cmd.Flags().BoolVar(&requireAuth, "auth", false, "Require a signed bearer token")
	return cmd
}

// serverOptions serves accounts from store and, with requireAuth, checks
// bearer tokens. Requiring auth with the built-in secret is refused.
func serverOptions(cfg *config.Config, store docstore.Store, requireAuth bool) ([]server.Option, error) {
	accounts := auth.NewProvider(store, cfg.Auth.Secret, cfg.TokenTTL(), "")
	opts := []server.Option{server.WithAccounts(accounts)}
	if !requireAuth {
		return opts, nil
	}
	if cfg.InsecureSecret() {
		return nil, apperr.Validation("--auth needs a private signing secret; set MINDMAP_SECRET or [auth] secret in the config file")
	}
	return append(opts, server.WithVerifier(accounts.Verify)), nil
}
