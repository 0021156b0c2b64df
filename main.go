// Command robobridge is the entry point for the fleet bridge process.
//
// It loads configuration from the environment (via a .env file, if
// present), wires the registry, pose estimator, log sink, subscription
// router, event bus, PID holder, and audit log into a single Bridge, and
// runs its TCP, WebSocket, OTA, and admin HTTP listeners until it receives
// SIGINT or SIGTERM.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"robobridge/bridge"
	"robobridge/shared"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := godotenv.Load(".env"); err != nil {
		shared.DebugPrint("no .env file loaded: %v", err)
	}
	cfg := shared.InitConfig()

	shared.DebugPrint("robobridge is reachable on the following IPs:")
	for _, ip := range shared.GetLocalIPs() {
		shared.DebugPrint("%s", ip)
	}

	b, err := bridge.New(ctx, cfg)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize bridge: %v", err))
	}

	shared.DebugPrint("robobridge starting: tcp=%s ws=%s ota=%s admin=%s", cfg.TCPPort, cfg.WSBridgePort, cfg.OTAPort, cfg.AdminHTTPPort)

	if err := b.Run(ctx); err != nil {
		shared.DebugError(err)
		os.Exit(1)
	}

	shared.DebugPrint("robobridge shut down gracefully")
}
