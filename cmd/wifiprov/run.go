package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/wifiprov/internal/coordinator"
	"github.com/muurk/wifiprov/internal/logging"
	"github.com/muurk/wifiprov/internal/portal"
	"github.com/muurk/wifiprov/internal/ui"
)

var (
	runMock      bool
	runInterface string
	runAddr      string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect, or serve the provisioning portal until provisioned",
	Long: `Registers the configured parameters, then tries the saved Wi-Fi network.
If that fails, raises the provisioning access point and serves the portal
until credentials are submitted and the device joins the network.

Once connected, wifiprov keeps running and reconnects automatically after
link loss until interrupted.`,
	Example: `  # Run against NetworkManager on the first Wi-Fi device
  wifiprov run

  # Pick the interface explicitly
  wifiprov run --interface wlan0

  # Try the portal on a development machine without touching Wi-Fi
  wifiprov run --mock --addr :9090`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runMock, "mock", false, "Use a simulated network instead of NetworkManager")
	runCmd.Flags().StringVar(&runInterface, "interface", "", "Wi-Fi interface (default: first Wi-Fi device)")
	runCmd.Flags().StringVar(&runAddr, "addr", "", "Portal listen address (overrides config)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runAddr != "" {
		cfg.Portal.Addr = runAddr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	link, closeLink, err := openNetwork(ctx, runMock, runInterface)
	if err != nil {
		return err
	}
	defer closeLink()

	store, err := openStore(cfg, link)
	if err != nil {
		return err
	}

	p := portal.New(portal.Config{
		Addr:      cfg.Portal.Addr,
		Timeout:   cfg.Portal.Timeout,
		Advertise: cfg.Portal.Advertise,
	}, link, portal.WithSessionHook(printSession(cfg.AccessPoint.Name)))

	coord := coordinator.New(store, p, link, coordinator.WithReconnectInterval(cfg.Reconnect.MinInterval))
	defer func() { _ = coord.Close() }()

	for _, spec := range cfg.Parameters {
		param, err := coord.RegisterParameter(spec.ID, spec.Placeholder, spec.BufferSizeOrDefault())
		if err != nil {
			return fmt.Errorf("register parameter %q: %w", spec.ID, err)
		}
		logging.Debug("Parameter registered", zap.String("id", param.ID), zap.String("value", param.Value))
	}

	coord.OnConnect(func() {
		fmt.Println(ui.SuccessTitleStyle.Render(ui.SuccessMarker + " Connected"))
	})
	coord.OnDisconnect(func() {
		fmt.Println(ui.WarningTitleStyle.Render(ui.WarningMarker + " Disconnected"))
	})

	mode := "NetworkManager"
	if runMock {
		mode = "simulated"
	}
	fmt.Println(ui.NewHeader("Wi-Fi Provisioning", "wifiprov run",
		ui.Field{Key: "Network", Value: mode},
		ui.Field{Key: "Access point", Value: cfg.AccessPoint.Name},
		ui.Field{Key: "Portal", Value: cfg.Portal.Addr},
		ui.Field{Key: "Store", Value: store.Path()},
	).Render())

	if err := coord.AutoConnect(ctx, cfg.AccessPoint.Name); err != nil {
		fmt.Println(ui.NewFailureResult("Saving parameters failed", err,
			"Check that the storage directory is writable.").Render())
	}

	if ctx.Err() != nil {
		return nil
	}
	if coord.State() != coordinator.StateConnected {
		fmt.Println(ui.NewWarningResult("Not connected",
			ui.Field{Key: "State", Value: coord.State().String()},
		).Render())
	}

	<-ctx.Done()
	logging.Info("Shutting down", zap.String("state", coord.State().String()))
	return nil
}

func printSession(apName string) func(addr net.Addr) {
	return func(addr net.Addr) {
		fmt.Println(ui.NewWarningResult("Provisioning portal open",
			ui.Field{Key: "Access point", Value: apName},
			ui.Field{Key: "Listening", Value: addr.String()},
			ui.Field{Key: "Submit with", Value: "wifiprov submit --ssid <name>"},
		).Render())
	}
}
