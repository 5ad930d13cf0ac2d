package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-i2p/go-cbcservice/lib/config"
	"github.com/go-i2p/go-cbcservice/lib/dispatch"
	"github.com/go-i2p/go-cbcservice/lib/mailbox"
	"github.com/go-i2p/go-cbcservice/lib/metrics"
	"github.com/go-i2p/go-cbcservice/lib/service"
	"github.com/go-i2p/go-cbcservice/lib/session"
	"github.com/go-i2p/go-cbcservice/lib/transport"
	"github.com/go-i2p/go-cbcservice/lib/util"
	"github.com/go-i2p/go-cbcservice/lib/util/signals"
	"github.com/go-i2p/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the service until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sig := signals.New()
			defer sig.Stop()
			sig.OnInterrupt(signals.Handler(cancel))

			d, err := newDaemon(config.CurrentConfig())
			if err != nil {
				return err
			}
			sig.OnReload(d.reload)
			go sig.Run(ctx)

			return d.run(ctx)
		},
	}
}

// daemon is the fully wired service process.
type daemon struct {
	cfg      config.ConfigDefaults
	registry *prometheus.Registry
	mailbox  *mailbox.Mailbox
	service  *service.Service
	server   *transport.Server

	metricsAddr net.Addr
}

func newDaemon(cfg config.ConfigDefaults) (*daemon, error) {
	table, err := session.NewTable(cfg.Service.Capacity)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	mb := mailbox.New(cfg.Service.QueueSize)

	d := &daemon{
		cfg:      cfg,
		registry: registry,
		mailbox:  mb,
		service: service.New(mb, dispatch.New(table, m), service.Config{
			MaxMessageSize: cfg.Service.MaxMessageSize,
		}, m),
	}

	if cfg.Transport.Enabled {
		srv, err := transport.NewServer(&transport.Config{
			Network:        cfg.Transport.Network,
			Address:        cfg.Transport.Address,
			MaxConnections: cfg.Transport.MaxConnections,
			RateLimit:      cfg.Transport.RateLimit,
			RateBurst:      cfg.Transport.RateBurst,
			MaxFrameSize:   transport.DefaultMaxFrameSize,
		}, mb, m)
		if err != nil {
			return nil, err
		}
		if err := applySecret(srv, cfg.Transport.SecretHash); err != nil {
			return nil, err
		}
		d.server = srv
	}

	return d, nil
}

func applySecret(srv *transport.Server, hash string) error {
	if hash == "" {
		srv.SetAuthenticator(nil)
		return nil
	}
	auth, err := transport.NewBcryptAuthenticator(hash)
	if err != nil {
		return oops.Wrapf(err, "transport.secret_hash")
	}
	srv.SetAuthenticator(auth)
	return nil
}

// run starts the listeners and serves until ctx is done.
func (d *daemon) run(ctx context.Context) error {
	if err := d.start(); err != nil {
		util.CloseAll()
		return err
	}
	return d.serve(ctx)
}

// serve runs the request loop and closes everything start opened.
func (d *daemon) serve(ctx context.Context) error {
	log.WithFields(logger.Fields{
		"at":       "cli.daemon.run",
		"capacity": d.cfg.Service.Capacity,
	}).Info("service_running")

	err := d.service.Run(ctx)
	if closeErr := util.CloseAll(); closeErr != nil {
		log.WithError(closeErr).Warn("shutdown_incomplete")
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, mailbox.ErrClosed) {
		return nil
	}
	return err
}

// start brings up the transport and metrics listeners and registers their
// shutdown with util.CloseAll.
func (d *daemon) start() error {
	util.RegisterCloser(util.CloserFunc(func() error {
		d.mailbox.Close()
		return nil
	}))

	if d.server != nil {
		if err := d.server.Start(); err != nil {
			return err
		}
		util.RegisterCloser(util.CloserFunc(d.server.Stop))

		if d.cfg.Transport.Network == "unix" {
			if err := config.RestrictFile(d.cfg.Transport.Address); err != nil {
				log.WithError(err).Warn("could_not_restrict_socket_permissions")
			}
		}
	}

	if d.cfg.Metrics.Enabled {
		if err := d.startMetrics(); err != nil {
			return err
		}
	}
	return nil
}

func (d *daemon) startMetrics() error {
	ln, err := net.Listen("tcp", d.cfg.Metrics.Address)
	if err != nil {
		return oops.Wrapf(err, "failed to listen on %s", d.cfg.Metrics.Address)
	}
	d.metricsAddr = ln.Addr()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(d.registry))
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics_server_failed")
		}
	}()

	util.RegisterCloser(util.CloserFunc(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}))

	log.WithField("address", d.metricsAddr.String()).Info("metrics_server_started")
	return nil
}

// reload re-reads the config file and applies a changed secret hash.
// Other settings need a restart.
func (d *daemon) reload() {
	if err := viper.ReadInConfig(); err != nil {
		log.WithError(err).Warn("config_reload_failed")
		return
	}
	if d.server == nil {
		return
	}

	hash := viper.GetString("transport.secret_hash")
	if hash == d.cfg.Transport.SecretHash {
		return
	}
	if err := applySecret(d.server, hash); err != nil {
		log.WithError(err).Warn("config_reload_rejected_secret")
		return
	}
	d.cfg.Transport.SecretHash = hash
	log.WithField("at", "cli.daemon.reload").Info("transport_secret_reloaded")
}
