package reefcli

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	reef "github.com/go-mizu/reef"
	"github.com/go-mizu/reef/internal/config"
	"github.com/go-mizu/reef/internal/obslog"
	"github.com/go-mizu/reef/middlewares/bodylimit"
	"github.com/go-mizu/reef/middlewares/cors"
	"github.com/go-mizu/reef/middlewares/requestid"
	"github.com/go-mizu/reef/pipeline"
	"github.com/go-mizu/reef/transport/httpapi"
	meshtransport "github.com/go-mizu/reef/transport/mesh"
	"github.com/spf13/cobra"
)

// NewServeCmd creates the "serve" command: it loads internal/config.Config,
// mounts build()'s bundle onto both the HTTP and mesh transports, and runs
// the server until interrupted, mirroring the teacher blueprint cli's own
// NewServe (serve.go) in shape.
func NewServeCmd(build BundleBuilder) *cobra.Command {
	var configPath string
	var httpAddr string
	var meshAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and mesh transports",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if httpAddr != "" {
				cfg.HTTP.Addr = httpAddr
			}
			if meshAddr != "" {
				cfg.Mesh.Addr = meshAddr
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			b, err := build()
			if err != nil {
				return fmt.Errorf("build bundle: %w", err)
			}

			opts := []reef.AppOption{reef.WithLogger(obslog.New(cfg.Log))}

			if cfg.Mesh.Addr != "" {
				meshServer := meshtransport.New(pipeline.Config{})
				meshServer.SetDefaultMimetype(cfg.Mesh.DefaultMimetype)
				meshServer.Mount(b)

				l, err := net.Listen("tcp", cfg.Mesh.Addr)
				if err != nil {
					return fmt.Errorf("listen mesh: %w", err)
				}
				opts = append(opts, reef.WithMeshListener(l, meshServer))
			}

			app := reef.New(opts...)
			app.Use(requestid.New(), cors.AllowAll(), bodylimit.New(bodylimit.MB(1)))
			app.Use(reef.Logger(obslog.HTTPOptions(cfg.Log)))

			if cfg.HTTP.Addr != "" {
				httpServer := httpapi.New(app.Router, pipeline.Config{})
				httpServer.ContextHeaderPrefix = cfg.HTTP.ContextHeaderPrefix
				httpServer.Mount(b, cfg.HTTP.Prefix)
				return app.Listen(cfg.HTTP.Addr)
			}

			// HTTP disabled: still drive the same signal-aware graceful
			// lifecycle so the mesh listener opens and closes correctly,
			// just with no bound HTTP port behind it.
			srv := &http.Server{Handler: app}
			signalCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return app.ServeContext(signalCtx, srv, func() error {
				<-signalCtx.Done()
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "reef.yaml", "Path to the YAML configuration file")
	cmd.Flags().StringVar(&httpAddr, "http-addr", "", "Override the configured HTTP listen address")
	cmd.Flags().StringVar(&meshAddr, "mesh-addr", "", "Override the configured mesh listen address")

	return cmd
}
