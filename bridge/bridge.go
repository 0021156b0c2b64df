// Package bridge wires every component into one running process: the
// robot-facing TCP server, the UI-facing WebSocket server, the always-on
// OTA server, and the admin HTTP surface, sharing one registry, pose
// estimator, log sink, subscription router, event bus, PID holder, and
// audit log.
package bridge

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"

	"robobridge/audit"
	"robobridge/eventbus"
	"robobridge/firmware"
	"robobridge/httpadmin"
	"robobridge/logsink"
	"robobridge/pidconfig"
	"robobridge/pose"
	"robobridge/registry"
	"robobridge/shared"
	"robobridge/subscription"
	"robobridge/tcp_server"
	"robobridge/ws_server"
)

// Bridge owns every long-lived component shared across the TCP, WebSocket,
// OTA, and admin HTTP listeners.
type Bridge struct {
	cfg *shared.Config

	Registry *registry.Registry
	Poses    *pose.Estimator
	Logs     *logsink.Sink
	Router   *subscription.Router
	Updates  *eventbus.Bus
	PID      *pidconfig.Holder
	Audit    *audit.Log
	Staging  *firmware.Staging
	OTA      *firmware.OTAServer

	tcp   *tcp_server.Server
	ws    *ws_server.Server
	admin *httpadmin.Server
}

// New constructs a Bridge from cfg. It loads the PID config file and opens
// (or no-ops) the audit log connection; both can fail at startup.
func New(ctx context.Context, cfg *shared.Config) (*Bridge, error) {
	pid, err := pidconfig.NewHolder(cfg.PIDConfigFile)
	if err != nil {
		return nil, fmt.Errorf("bridge: load pid config: %w", err)
	}

	auditLog, err := audit.Connect(ctx, cfg.AuditMongoURI, cfg.AuditDatabase)
	if err != nil {
		return nil, fmt.Errorf("bridge: connect audit log: %w", err)
	}

	logs, err := logsink.New(cfg.LogDirectory)
	if err != nil {
		return nil, fmt.Errorf("bridge: create log sink: %w", err)
	}

	staging, err := firmware.NewStaging(cfg.TempFirmwareDir)
	if err != nil {
		return nil, fmt.Errorf("bridge: create firmware staging: %w", err)
	}

	reg := registry.New()
	poses := pose.New()
	router := subscription.New()
	updates := eventbus.New()
	ota := firmware.NewOTAServer()

	b := &Bridge{
		cfg:      cfg,
		Registry: reg,
		Poses:    poses,
		Logs:     logs,
		Router:   router,
		Updates:  updates,
		PID:      pid,
		Audit:    auditLog,
		Staging:  staging,
		OTA:      ota,

		tcp:   tcp_server.New(reg, poses, logs, router, updates, pid, auditLog),
		ws:    ws_server.New(reg, router, updates, staging, ota, pid, poses, auditLog, cfg.FrontendOrigin),
		admin: httpadmin.New("0.0.0.0:"+cfg.AdminHTTPPort, reg, poses),
	}
	return b, nil
}

// Run starts every listener and blocks until ctx is cancelled or one of
// them fails, at which point it cancels the rest and waits for them to
// unwind before returning the first error.
func (b *Bridge) Run(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return b.tcp.Run(groupCtx, "0.0.0.0:"+b.cfg.TCPPort)
	})

	group.Go(func() error {
		return runHTTP(groupCtx, "0.0.0.0:"+b.cfg.WSBridgePort, b.ws)
	})

	group.Go(func() error {
		return b.OTA.Run(groupCtx, "0.0.0.0:"+b.cfg.OTAPort)
	})

	group.Go(func() error {
		return b.admin.Run(groupCtx)
	})

	err := group.Wait()
	b.Audit.Close(context.Background())
	return err
}

// runHTTP serves handler on addr until ctx is cancelled, then shuts down
// gracefully, matching the admin HTTP surface's own Run pattern.
func runHTTP(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: handler}

	serverErr := make(chan error, 1)
	go func() {
		shared.DebugPrint("ws bridge server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- fmt.Errorf("ws bridge server: %w", err)
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	}
}
