package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/nwstad/overlayctl/internal/config"
	"github.com/nwstad/overlayctl/internal/deviceapi"
	"github.com/nwstad/overlayctl/internal/entity"
	"github.com/nwstad/overlayctl/internal/store"
)

// resolveClient builds a device API client from flags and the registry.
//
// Address resolution order: the --device flag (IP or registry nickname),
// then the registry when it knows exactly one device. Credentials come from
// --user/--pass, with the password prompted when --user is set without
// --pass.
func resolveClient() (*deviceapi.Client, error) {
	ip := deviceIP
	port := devicePort

	registry, err := config.LoadRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to load device registry: %w", err)
	}

	if ip != "" {
		// A nickname resolves through the registry; anything else is an address
		if d := registry.FindByNickname(ip); d != nil && d.LastIP != "" {
			ip = d.LastIP
			if d.LastPort != 0 && !rootCmd.PersistentFlags().Changed("port") {
				port = d.LastPort
			}
		}
	} else {
		if len(registry.Devices) == 1 {
			for _, d := range registry.Devices {
				if d.LastIP != "" {
					ip = d.LastIP
					if d.LastPort != 0 {
						port = d.LastPort
					}
				}
			}
		}
		if ip == "" {
			return nil, fmt.Errorf("no device specified: use --device <ip|nickname> or 'overlayctl scan' first")
		}
	}

	client := deviceapi.NewClient(ip, port)

	username := deviceUser
	if username == "" && registry.Preferences != nil && registry.Preferences.DefaultAuth != nil {
		username = registry.Preferences.DefaultAuth.Username
	}
	if username != "" {
		password := devicePass
		if password == "" && rootCmd.PersistentFlags().Changed("user") {
			password, err = promptPassword(fmt.Sprintf("Password for %s@%s: ", username, ip))
			if err != nil {
				return nil, err
			}
		}
		client.SetAuth(username, password)
	}

	return client, nil
}

// promptPassword reads a password from the terminal without echo.
func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(raw), nil
}

// storeFor returns the entity store for a kind flag value.
func storeFor(client *deviceapi.Client, kind entity.Kind) *store.Store {
	if kind == entity.KindWidget {
		return store.New(client, store.WidgetProfile())
	}
	return store.New(client, store.OverlayProfile())
}

// parseKind maps a --kind flag value to an entity kind.
func parseKind(s string) (entity.Kind, error) {
	switch s {
	case "widget":
		return entity.KindWidget, nil
	case "imageOverlay", "image":
		return entity.KindImageOverlay, nil
	case "textOverlay", "text":
		return entity.KindTextOverlay, nil
	default:
		return "", deviceapi.NewValidationError(fmt.Sprintf("unknown kind %q (want widget, imageOverlay, or textOverlay)", s))
	}
}

// parseFieldArgs parses "field=value" command arguments. Values that parse
// as JSON keep their JSON type; everything else is a string. A value that
// looks like JSON but is malformed is a validation error - surfaced here,
// before any network call.
func parseFieldArgs(args []string) (map[string]any, error) {
	fields := make(map[string]any, len(args))
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, deviceapi.NewValidationError(fmt.Sprintf("expected field=value, got %q", arg))
		}

		switch {
		case strings.HasPrefix(raw, "{") || strings.HasPrefix(raw, "["):
			var v any
			if err := json.Unmarshal([]byte(raw), &v); err != nil {
				return nil, deviceapi.NewValidationError(fmt.Sprintf("field %s: malformed JSON: %v", name, err))
			}
			fields[name] = v
		default:
			if v, err := strconv.ParseFloat(raw, 64); err == nil {
				fields[name] = v
			} else if raw == "true" || raw == "false" {
				fields[name] = raw == "true"
			} else {
				fields[name] = raw
			}
		}
	}
	return fields, nil
}

// parsePositionValue parses a --position flag: a named anchor or "x,y".
func parsePositionValue(kind entity.Kind, raw string) (entity.Position, error) {
	if raw == "" {
		return entity.Position{}, nil
	}

	if x, y, ok := strings.Cut(raw, ","); ok {
		fx, errX := strconv.ParseFloat(strings.TrimSpace(x), 64)
		fy, errY := strconv.ParseFloat(strings.TrimSpace(y), 64)
		if errX != nil || errY != nil {
			return entity.Position{}, deviceapi.NewValidationError(fmt.Sprintf("invalid coordinate pair %q", raw))
		}
		return entity.AtCoordinates(fx, fy), nil
	}

	if !entity.IsAnchor(kind, raw) {
		return entity.Position{}, deviceapi.NewValidationError(
			fmt.Sprintf("unknown anchor %q for %s (valid: %s, or x,y)", raw, kind, strings.Join(entity.AnchorsFor(kind), ", ")))
	}
	return entity.AtAnchor(raw), nil
}

// printEntities renders an entity list in the selected output format.
func printEntities(entities []entity.Entity, format string) error {
	switch format {
	case "json":
		payload := make([]map[string]any, len(entities))
		for i, e := range entities {
			payload[i] = store.EncodeEntity(e, true)
			payload[i]["kind"] = e.Kind.String()
		}
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil

	default:
		if len(entities) == 0 {
			fmt.Println("No entities.")
			return nil
		}
		fmt.Printf("%-5s %-14s %-14s %s\n", "ID", "KIND", "POSITION", "PARAMS")
		for _, e := range entities {
			fmt.Printf("%-5d %-14s %-14s %s\n", e.Identity, e.Kind, e.Position, summarizeParams(e.Params))
		}
		return nil
	}
}

func summarizeParams(params map[string]any) string {
	if len(params) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	// Stable, text first since it is what people look for
	sort.Slice(keys, func(i, j int) bool {
		if (keys[i] == "text") != (keys[j] == "text") {
			return keys[i] == "text"
		}
		return keys[i] < keys[j]
	})

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, params[k]))
	}
	return strings.Join(parts, " ")
}
