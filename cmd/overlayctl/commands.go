package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nwstad/overlayctl/internal/config"
	"github.com/nwstad/overlayctl/internal/deviceapi"
	"github.com/nwstad/overlayctl/internal/discovery"
	"github.com/nwstad/overlayctl/internal/editor"
	"github.com/nwstad/overlayctl/internal/entity"
	"github.com/nwstad/overlayctl/internal/events"
	"github.com/nwstad/overlayctl/internal/store"
)

// Configuration command flags
var (
	deviceIP     string
	devicePort   int
	deviceUser   string
	devicePass   string
	outputFormat string
	scanTimeout  int

	kindFlag     string
	identityFlag int
	removeAll    bool
	removeBulk   bool

	textFlag     string
	positionFlag string
	colorFlag    string
	fontSizeFlag int
	imagePath    string
	widgetType   string
)

func init() {
	// Common flags for device commands (persistent on root)
	rootCmd.PersistentFlags().StringVar(&deviceIP, "device", "", "Device IP address or registry nickname")
	rootCmd.PersistentFlags().IntVar(&devicePort, "port", 80, "Device HTTP port")
	rootCmd.PersistentFlags().StringVar(&deviceUser, "user", "", "Device username (overrides registry default)")
	rootCmd.PersistentFlags().StringVar(&devicePass, "pass", "", "Device password (prompted when --user is set without it)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "table", "Output format (table, json)")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(watchCmd)
}

// scanCmd discovers devices on the network
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for video devices on the network",
	Long: `Scan for video devices using mDNS/DNS-SD discovery.

Discovered devices are recorded in the local registry so later commands
can address them by nickname or pick them up automatically.`,
	Example: `  # Scan for 10 seconds (default)
  overlayctl scan

  # Quick 3-second scan
  overlayctl scan --timeout 3`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().IntVar(&scanTimeout, "timeout", 10, "Scan timeout in seconds")
}

func runScan(cmd *cobra.Command, args []string) error {
	fmt.Printf("Scanning for video devices (timeout: %ds)...\n\n", scanTimeout)

	devices, err := discovery.ScanForDevices(time.Duration(scanTimeout) * time.Second)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(devices) == 0 {
		fmt.Println("No devices found.")
		fmt.Println("\nTroubleshooting:")
		fmt.Println("  - Check that the device is powered on and on the same network")
		fmt.Println("  - Try increasing --timeout for slower networks")
		fmt.Println("  - Use --device to specify an address manually if discovery fails")
		return nil
	}

	registry, err := config.LoadRegistry()
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	fmt.Printf("Found %d device(s):\n\n", len(devices))
	for i, device := range devices {
		fmt.Printf("%d. %s\n", i+1, device.Hostname)
		fmt.Printf("   Serial:  %s\n", device.Serial)
		fmt.Printf("   IP:      %s:%d\n", device.IP, device.Port)
		fmt.Println()
		registry.TouchDevice(device.Serial, device.IP, device.Port)
	}
	if err := registry.Save(); err != nil {
		return fmt.Errorf("failed to save registry: %w", err)
	}

	fmt.Println("Use 'overlayctl probe --device <ip>' to check overlay support")
	fmt.Println("Use 'overlayctl' without arguments for the interactive console")

	return nil
}

// probeCmd checks widget/overlay support on a device
var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Probe device capabilities",
	Long: `Probe the device for widget and overlay support.

Fetches the capability descriptor for each entity family. A device that
cannot answer on a family's endpoint is reported as unsupported for the
rest of the session.`,
	RunE: runProbe,
}

func runProbe(cmd *cobra.Command, args []string) error {
	client, err := resolveClient()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	for _, s := range []*store.Store{
		store.New(client, store.WidgetProfile()),
		store.New(client, store.OverlayProfile()),
	} {
		err := s.Probe(ctx)
		fmt.Printf("%-8s %s\n", s.Kind()+"s:", s.Support())
		if err != nil {
			fmt.Printf("         %s\n", deviceapi.ShortMessage(err))
			if hint := deviceapi.TroubleshootingHint(err); hint != "" {
				fmt.Printf("         %s\n", hint)
			}
			continue
		}
		if caps := s.Capabilities(); caps != nil {
			fmt.Printf("         slots: %d", caps.MaxEntities)
			if caps.FontSizeMax > 0 {
				fmt.Printf(", font %d-%d", caps.FontSizeMin, caps.FontSizeMax)
			}
			fmt.Println()
		}
	}
	return nil
}

// listCmd lists the entities currently on the device
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List widgets and overlays on the device",
	Example: `  # List everything
  overlayctl list --device 192.168.0.90

  # JSON output for scripting
  overlayctl list --format json`,
	RunE: runList,
}

func runList(cmd *cobra.Command, args []string) error {
	client, err := resolveClient()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	var all []entity.Entity
	for _, s := range []*store.Store{
		store.New(client, store.WidgetProfile()),
		store.New(client, store.OverlayProfile()),
	} {
		if err := s.Probe(ctx); err != nil {
			if s.Support() == store.Unsupported {
				fmt.Printf("Note: %ss unsupported on this device\n", s.Kind())
				continue
			}
			fmt.Printf("Note: %s capability probe: %s\n", s.Kind(), deviceapi.ShortMessage(err))
		}
		entities, err := s.List(ctx)
		if err != nil {
			return fmt.Errorf("failed to list %ss: %w", s.Kind(), err)
		}
		all = append(all, entities...)
	}

	return printEntities(all, outputFormat)
}

// addCmd adds a new entity
var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a widget or overlay",
}

var addTextCmd = &cobra.Command{
	Use:   "text",
	Short: "Add a text overlay",
	Example: `  overlayctl add text --text "Hello" --position topLeft
  overlayctl add text --text "Camera 1" --position 0.5,-0.9 --color white --size 24`,
	RunE: runAddText,
}

var addImageCmd = &cobra.Command{
	Use:   "image",
	Short: "Add an image overlay",
	Long: `Add an image overlay referencing an image already uploaded to the
device's overlay image slots.`,
	Example: `  overlayctl add image --path /etc/overlays/logo.png --position bottomRight`,
	RunE: runAddImage,
}

var addWidgetCmd = &cobra.Command{
	Use:   "widget",
	Short: "Add a widget",
	Example: `  overlayctl add widget --type meter --position topRight
  overlayctl add widget --type linegraph --position center datasource=cpu`,
	RunE: runAddWidget,
}

func init() {
	addTextCmd.Flags().StringVar(&textFlag, "text", "", "Overlay text (required)")
	addTextCmd.Flags().StringVar(&positionFlag, "position", "topLeft", "Named anchor or x,y pair")
	addTextCmd.Flags().StringVar(&colorFlag, "color", "", "Text color")
	addTextCmd.Flags().IntVar(&fontSizeFlag, "size", 0, "Font size (clamped to device range)")
	_ = addTextCmd.MarkFlagRequired("text")

	addImageCmd.Flags().StringVar(&imagePath, "path", "", "Device-side image path (required)")
	addImageCmd.Flags().StringVar(&positionFlag, "position", "topLeft", "Named anchor or x,y pair")
	_ = addImageCmd.MarkFlagRequired("path")

	addWidgetCmd.Flags().StringVar(&widgetType, "type", "", "Widget type (required)")
	addWidgetCmd.Flags().StringVar(&positionFlag, "position", "topLeft", "Named anchor or x,y pair")
	_ = addWidgetCmd.MarkFlagRequired("type")

	addCmd.AddCommand(addTextCmd)
	addCmd.AddCommand(addImageCmd)
	addCmd.AddCommand(addWidgetCmd)
}

func runAddText(cmd *cobra.Command, args []string) error {
	pos, err := parsePositionValue(entity.KindTextOverlay, positionFlag)
	if err != nil {
		return err
	}
	extra, err := parseFieldArgs(args)
	if err != nil {
		return err
	}

	draft := entity.Entity{
		Kind:     entity.KindTextOverlay,
		Position: pos,
		Params:   map[string]any{"text": textFlag},
	}
	if colorFlag != "" {
		draft.Params["textColor"] = colorFlag
	}
	if fontSizeFlag != 0 {
		draft.Params["fontSize"] = fontSizeFlag
	}
	for k, v := range extra {
		draft.Params[k] = v
	}

	return addDraft(cmd, draft)
}

func runAddImage(cmd *cobra.Command, args []string) error {
	pos, err := parsePositionValue(entity.KindImageOverlay, positionFlag)
	if err != nil {
		return err
	}
	extra, err := parseFieldArgs(args)
	if err != nil {
		return err
	}

	draft := entity.Entity{
		Kind:     entity.KindImageOverlay,
		Position: pos,
		Params:   map[string]any{"overlayPath": imagePath},
	}
	for k, v := range extra {
		draft.Params[k] = v
	}

	return addDraft(cmd, draft)
}

func runAddWidget(cmd *cobra.Command, args []string) error {
	pos, err := parsePositionValue(entity.KindWidget, positionFlag)
	if err != nil {
		return err
	}
	extra, err := parseFieldArgs(args)
	if err != nil {
		return err
	}

	draft := entity.Entity{
		Kind:     entity.KindWidget,
		Position: pos,
		Params:   map[string]any{"type": widgetType},
	}
	for k, v := range extra {
		draft.Params[k] = v
	}

	return addDraft(cmd, draft)
}

// addDraft probes, clamps the draft against the capability descriptor, and
// adds it through the entity store.
func addDraft(cmd *cobra.Command, draft entity.Entity) error {
	client, err := resolveClient()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	s := storeFor(client, draft.Kind)
	if err := s.Probe(ctx); err != nil && s.Support() == store.Unsupported {
		return fmt.Errorf("%ss are not supported on this device: %w", s.Kind(), err)
	}

	if caps := s.Capabilities(); caps != nil {
		if size, ok := draft.Params["fontSize"].(int); ok {
			draft.Params["fontSize"] = caps.ClampFontSize(size)
		}
		if color, ok := draft.Params["textColor"].(string); ok && !caps.AllowsTextColor(color) {
			return deviceapi.NewValidationError(fmt.Sprintf("device does not allow text color %q", color))
		}
	}

	if err := s.Add(ctx, draft); err != nil {
		return fmt.Errorf("failed to add %s: %w", draft.Kind, err)
	}

	entities := s.Entities()
	fmt.Printf("Added %s (device now holds %d %s entit%s)\n",
		draft.Kind, len(entities), s.Kind(), plural(len(entities), "y", "ies"))
	return nil
}

// setCmd edits fields on an existing entity
var setCmd = &cobra.Command{
	Use:   "set field=value...",
	Short: "Update fields on an existing entity",
	Long: `Update one or more fields on an existing widget or overlay.

This is the manual apply path: changes go out immediately, but an edit
that leaves the entity structurally unchanged issues no device call.

The position field accepts a named anchor or an x,y pair.`,
	Example: `  overlayctl set --kind textOverlay --id 2 text="Hello World"
  overlayctl set --kind widget --id 1 position=bottomLeft fontSize=16`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSet,
}

func init() {
	setCmd.Flags().StringVar(&kindFlag, "kind", "", "Entity kind: widget, imageOverlay, textOverlay (required)")
	setCmd.Flags().IntVar(&identityFlag, "id", 0, "Entity identity (required)")
	_ = setCmd.MarkFlagRequired("kind")
	_ = setCmd.MarkFlagRequired("id")
}

func runSet(cmd *cobra.Command, args []string) error {
	kind, err := parseKind(kindFlag)
	if err != nil {
		return err
	}
	fields, err := parseFieldArgs(args)
	if err != nil {
		return err
	}

	client, err := resolveClient()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	s := storeFor(client, kind)
	if err := s.Probe(ctx); err != nil && s.Support() == store.Unsupported {
		return fmt.Errorf("%ss are not supported on this device: %w", s.Kind(), err)
	}
	if _, err := s.List(ctx); err != nil {
		return fmt.Errorf("failed to list %ss: %w", s.Kind(), err)
	}

	var target *entity.Entity
	for _, e := range s.Entities() {
		if e.Identity == identityFlag && e.Kind == kind {
			target = &e
			break
		}
	}
	if target == nil {
		return fmt.Errorf("no %s with identity %d on the device", kind, identityFlag)
	}

	ed := editor.New(s, *target)
	defer ed.Close()
	ed.Activate()

	for name, value := range fields {
		if name == "position" {
			raw := fmt.Sprintf("%v", value)
			pos, err := parsePositionValue(kind, raw)
			if err != nil {
				return err
			}
			if pos.Custom {
				ed.SetCoordinates(pos.X, pos.Y)
			} else {
				ed.SetAnchor(pos.Anchor)
			}
			continue
		}
		ed.Set(editor.GroupText, name, value)
	}

	if err := ed.Apply(ctx); err != nil {
		return fmt.Errorf("update failed: %w", err)
	}

	if ed.State() == editor.StateReady && entity.Equal(ed.Draft(), *target) {
		fmt.Println("No changes - nothing sent.")
		return nil
	}
	fmt.Printf("Updated %s %d.\n", kind, identityFlag)
	return nil
}

// removeCmd removes entities
var removeCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove widgets or overlays",
	Long: `Remove a single entity by identity, or all entities of a family.

--all removes entities one at a time and reports success even if some
removals fail; re-run 'overlayctl list' to verify. --bulk uses the
device's bulk primitive where the family has one (widgets).`,
	Example: `  overlayctl remove --kind textOverlay --id 2
  overlayctl remove --kind widget --all
  overlayctl remove --kind widget --all --bulk`,
	RunE: runRemove,
}

func init() {
	removeCmd.Flags().StringVar(&kindFlag, "kind", "", "Entity kind (required)")
	removeCmd.Flags().IntVar(&identityFlag, "id", 0, "Entity identity")
	removeCmd.Flags().BoolVar(&removeAll, "all", false, "Remove all entities of the family")
	removeCmd.Flags().BoolVar(&removeBulk, "bulk", false, "Use the device's bulk removal primitive (with --all)")
	_ = removeCmd.MarkFlagRequired("kind")
}

func runRemove(cmd *cobra.Command, args []string) error {
	kind, err := parseKind(kindFlag)
	if err != nil {
		return err
	}
	if !removeAll && identityFlag == 0 {
		return deviceapi.NewValidationError("specify --id or --all")
	}

	client, err := resolveClient()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	s := storeFor(client, kind)
	if err := s.Probe(ctx); err != nil && s.Support() == store.Unsupported {
		return fmt.Errorf("%ss are not supported on this device: %w", s.Kind(), err)
	}
	if _, err := s.List(ctx); err != nil {
		return fmt.Errorf("failed to list %ss: %w", s.Kind(), err)
	}

	if removeAll {
		if removeBulk {
			if err := s.RemoveAllBulk(ctx); err != nil {
				return fmt.Errorf("bulk removal failed: %w", err)
			}
		} else if err := s.RemoveAll(ctx); err != nil {
			return err
		}
		fmt.Printf("All %ss removed.\n", s.Kind())
		return nil
	}

	if err := s.Remove(ctx, identityFlag); err != nil {
		return fmt.Errorf("failed to remove %s %d: %w", kind, identityFlag, err)
	}
	fmt.Printf("Removed %s %d.\n", kind, identityFlag)
	return nil
}

// watchCmd follows the device event channel
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the device event channel",
	Long: `Connect to the device's WebSocket event channel and print events as
they arrive. Session-visibility events additionally refresh the entity
stores, the same trigger the interactive console uses.

The connection is not retried; when it drops, re-run the command.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	client, err := resolveClient()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	watcher, err := events.NewWatcher(client.BaseURL, client.Username, client.Password)
	if err != nil {
		return err
	}

	widgets := store.New(client, store.WidgetProfile())
	overlays := store.New(client, store.OverlayProfile())
	_ = widgets.Probe(ctx)
	_ = overlays.Probe(ctx)

	watcher.OnEvent(func(ev events.Event) {
		fmt.Printf("%s  %s\n", time.Now().Format("15:04:05"), ev.Topic)
	})
	watcher.OnWake(func() {
		_ = widgets.Refresh(ctx)
		_ = overlays.Refresh(ctx)
		fmt.Printf("%s  refreshed (%d widgets, %d overlays)\n",
			time.Now().Format("15:04:05"), len(widgets.Entities()), len(overlays.Entities()))
	})

	fmt.Println("Watching device events (Ctrl-C to stop)...")
	return watcher.Run(ctx)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
