package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/wifiprov/internal/config"
	"github.com/muurk/wifiprov/internal/configstore"
	"github.com/muurk/wifiprov/internal/coordinator"
	"github.com/muurk/wifiprov/internal/discovery"
	"github.com/muurk/wifiprov/internal/portal"
	"github.com/muurk/wifiprov/internal/portalclient"
	"github.com/muurk/wifiprov/internal/ui"
)

var (
	outputFormat string

	eraseMock      bool
	eraseInterface string
	erasePurge     bool
	eraseYes       bool

	scanTimeout time.Duration

	submitPortal   string
	submitAP       string
	submitSSID     string
	submitPassword string
	submitValues   map[string]string
	submitRetries  int

	initForce bool
)

func init() {
	showCmd.Flags().StringVar(&outputFormat, "format", "detailed", "Output format (detailed, json)")

	eraseCmd.Flags().BoolVar(&eraseMock, "mock", false, "Use a simulated network instead of NetworkManager")
	eraseCmd.Flags().StringVar(&eraseInterface, "interface", "", "Wi-Fi interface (default: first Wi-Fi device)")
	eraseCmd.Flags().BoolVar(&erasePurge, "purge", false, "Also remove the stored parameter file")
	eraseCmd.Flags().BoolVarP(&eraseYes, "yes", "y", false, "Skip the confirmation prompt")

	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", discovery.DefaultScanTimeout, "How long to listen for portals")

	submitCmd.Flags().StringVar(&submitPortal, "portal", "", "Portal base URL, e.g. http://192.168.4.1:8080 (skips discovery)")
	submitCmd.Flags().StringVar(&submitAP, "ap", "", "Only use a discovered portal for this access point")
	submitCmd.Flags().StringVar(&submitSSID, "ssid", "", "Network to join")
	submitCmd.Flags().StringVar(&submitPassword, "password", "", "Network password (empty for open networks)")
	submitCmd.Flags().StringToStringVar(&submitValues, "set", nil, "Parameter values as id=value, repeatable")
	submitCmd.Flags().IntVar(&submitRetries, "retries", portalclient.DefaultMaxRetries, "Retries while the portal is unreachable")
	_ = submitCmd.MarkFlagRequired("ssid")

	initConfigCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")

	rootCmd.AddCommand(showCmd, eraseCmd, scanCmd, submitCmd, initConfigCmd)
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show stored parameter values",
	Long: `Reads the parameter file and prints each configured parameter with its
stored value. Values stored for ids that are no longer configured are listed
as well.`,
	Example: `  wifiprov show
  wifiprov show --format json`,
	RunE: runShow,
}

// storedParameter is one row of show output
type storedParameter struct {
	ID          string `json:"id"`
	Placeholder string `json:"placeholder,omitempty"`
	Value       string `json:"value"`
	Configured  bool   `json:"configured"`
}

func runShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg, nil)
	if err != nil {
		return err
	}
	if err := store.Load(); err != nil && !configstore.IsOpenError(err) {
		return fmt.Errorf("read %s: %w", store.Path(), err)
	}

	rows := collectParameters(cfg, store)

	if outputFormat == "json" {
		data, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	fields := make([]ui.Field, 0, len(rows))
	for _, r := range rows {
		key := r.ID
		if !r.Configured {
			key += " (unconfigured)"
		}
		fields = append(fields, ui.Field{Key: key, Value: r.Value})
	}
	fmt.Println(ui.NewHeader("Stored Parameters", "wifiprov show",
		ui.Field{Key: "File", Value: store.Path()},
	).Render())
	if len(fields) == 0 {
		fmt.Println(ui.NewWarningResult("No parameters configured or stored").Render())
		return nil
	}
	fmt.Println(ui.NewSuccessResult(fmt.Sprintf("%d parameter(s)", len(fields)), fields...).Render())
	return nil
}

// collectParameters lists configured parameters in declaration order, then
// any stored entries that are not configured
func collectParameters(cfg *config.Config, store *configstore.Store) []storedParameter {
	rows := make([]storedParameter, 0, len(cfg.Parameters))
	for _, spec := range cfg.Parameters {
		value, _ := store.Lookup(spec.ID)
		rows = append(rows, storedParameter{
			ID:          spec.ID,
			Placeholder: spec.Placeholder,
			Value:       coordinator.Parameter{BufferSize: spec.BufferSizeOrDefault()}.Accept(value),
			Configured:  true,
		})
	}
	for _, e := range store.Entries() {
		if cfg.Parameter(e.ID) == nil {
			rows = append(rows, storedParameter{ID: e.ID, Value: e.Value})
		}
	}
	return rows
}

var eraseCmd = &cobra.Command{
	Use:   "erase",
	Short: "Forget stored Wi-Fi credentials",
	Long: `Forgets the saved Wi-Fi networks and drops the current link. The next
'wifiprov run' opens the provisioning portal.

Parameter values are kept unless --purge is given.`,
	Example: `  wifiprov erase
  wifiprov erase --purge --yes`,
	RunE: runErase,
}

func runErase(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if !eraseYes {
		consequences := []string{
			"Saved Wi-Fi networks are forgotten",
			"The current Wi-Fi link is dropped",
		}
		if erasePurge {
			consequences = append(consequences, "Stored parameter values are deleted")
		}
		if !ui.Confirm(os.Stdin, os.Stdout, "Erase credentials", consequences, "erase") {
			return nil
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	link, closeLink, err := openNetwork(ctx, eraseMock, eraseInterface)
	if err != nil {
		return err
	}
	defer closeLink()

	store, err := openStore(cfg, link)
	if err != nil {
		return err
	}
	p := portal.New(portal.Config{Addr: cfg.Portal.Addr}, link)
	coord := coordinator.New(store, p, link)
	defer func() { _ = coord.Close() }()

	eraseErr := coord.Erase()
	var purgeErr error
	if erasePurge {
		purgeErr = store.Purge()
	}

	if err := errors.Join(eraseErr, purgeErr); err != nil {
		fmt.Println(ui.NewFailureResult("Erase incomplete", err, "").Render())
		return err
	}

	fields := []ui.Field{{Key: "Credentials", Value: "forgotten"}}
	if erasePurge {
		fields = append(fields, ui.Field{Key: "Removed", Value: store.Path()})
	}
	fmt.Println(ui.NewSuccessResult("Erased", fields...).Render())
	return nil
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Find running provisioning portals",
	Long: `Browses mDNS for running provisioning portals and lists their
addresses. Join the device's access point first.`,
	Example: `  wifiprov scan
  wifiprov scan --timeout 10s`,
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(); err != nil {
		return err
	}

	fmt.Printf("Scanning for portals (timeout: %s)...\n\n", scanTimeout)

	scanner := discovery.NewScanner()
	scanner.Timeout = scanTimeout
	portals, err := scanner.Scan(cmd.Context())
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(portals) == 0 {
		fmt.Println(ui.NewFailureResult("No portals found", nil, `Troubleshooting:
  • Join the device's provisioning access point
  • Check that 'wifiprov run' is waiting in the portal
  • Try a longer --timeout
  • Use 'wifiprov submit --portal <url>' if mDNS is blocked`).Render())
		return nil
	}

	for _, p := range portals {
		fmt.Println(ui.NewSuccessResult(p.Instance,
			ui.Field{Key: "Access point", Value: p.AccessPoint},
			ui.Field{Key: "URL", Value: p.BaseURL()},
			ui.Field{Key: "Host", Value: p.Hostname},
		).Render())
	}
	fmt.Println("Use 'wifiprov submit --portal <url> --ssid <name>' to provision a device")
	return nil
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Send credentials and parameters to a portal",
	Long: `Submits Wi-Fi credentials and parameter values to a running portal and
waits until the device has joined the network.

Without --portal, the first portal found over mDNS is used.`,
	Example: `  # Discover the portal and submit
  wifiprov submit --ssid home --password secret --set mqtt_server=broker.local

  # Submit to a known address
  wifiprov submit --portal http://192.168.4.1:8080 --ssid home --password secret`,
	RunE: runSubmit,
}

func runSubmit(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	baseURL, err := resolvePortal(ctx)
	if err != nil {
		return err
	}

	client := portalclient.New(baseURL)
	client.MaxRetries = submitRetries

	params, err := client.Params(ctx)
	if err != nil {
		fmt.Println(ui.NewFailureResult("Portal unreachable", err, portalclient.Hint(err)).Render())
		return err
	}
	for id := range submitValues {
		if !hasParameter(params.Parameters, id) {
			fmt.Println(ui.NewWarningResult("Unknown parameter ignored by the portal",
				ui.Field{Key: "ID", Value: id},
			).Render())
		}
	}

	fmt.Printf("Submitting to %s, waiting for the device to join %q...\n", baseURL, submitSSID)
	_, err = client.Submit(ctx, portal.SaveRequest{
		SSID:     submitSSID,
		Password: submitPassword,
		Values:   submitValues,
	})
	if err != nil {
		fmt.Println(ui.NewFailureResult("Submit failed", err, portalclient.Hint(err)).Render())
		return err
	}

	fmt.Println(ui.NewSuccessResult("Device connected",
		ui.Field{Key: "Portal", Value: baseURL},
		ui.Field{Key: "SSID", Value: submitSSID},
	).Render())
	return nil
}

func resolvePortal(ctx context.Context) (string, error) {
	if submitPortal != "" {
		return submitPortal, nil
	}
	fmt.Println("Looking for a portal over mDNS...")
	p, err := discovery.NewScanner().WaitFor(ctx, submitAP)
	if err != nil {
		return "", fmt.Errorf("no portal found (use --portal to give its address): %w", err)
	}
	return p.BaseURL(), nil
}

func hasParameter(params []coordinator.Parameter, id string) bool {
	for _, p := range params {
		if p.ID == id {
			return true
		}
	}
	return false
}

var initConfigCmd = &cobra.Command{
	Use:   "init-config",
	Short: "Write an example config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			var err error
			if path, err = config.GetConfigPath(); err != nil {
				return err
			}
		}
		if _, err := os.Stat(path); err == nil && !initForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.Example().Save(path); err != nil {
			return err
		}
		fmt.Println(ui.NewSuccessResult("Config written", ui.Field{Key: "Path", Value: path}).Render())
		return nil
	},
}
