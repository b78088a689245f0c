package providers

import (
	"context"
	"net"
	"os"
	"runtime"
	"strings"
	"sync/atomic"

	"github.com/GriffinCanCode/scriptbridge/internal/config"
	"github.com/GriffinCanCode/scriptbridge/internal/types"
	"golang.org/x/text/language"
)

var abiNames = map[string][]string{
	"arm64": {"arm64-v8a"},
	"arm":   {"armeabi-v7a", "armeabi"},
	"amd64": {"x86_64"},
	"386":   {"x86"},
}

// Host events published by device stubs
const (
	EventShareText              = "device-share-text"
	EventExitApp                = "device-exit-app"
	EventNotificationPermission = "device-notification-permission"
)

// Device answers single round-trip device and environment queries.
type Device struct {
	cfg       config.DeviceConfig
	publisher Publisher
	keepAwake atomic.Bool
	shared    atomic.Pointer[string]

	// overridable in tests
	interfaces func() ([]net.Interface, error)
	addrs      func(net.Interface) ([]net.Addr, error)
	getenv     func(string) string
}

// NewDevice creates a device provider. publisher may be nil.
func NewDevice(cfg config.DeviceConfig, publisher Publisher) *Device {
	return &Device{
		cfg:        cfg,
		publisher:  publisher,
		interfaces: net.Interfaces,
		addrs:      func(i net.Interface) ([]net.Addr, error) { return i.Addrs() },
		getenv:     os.Getenv,
	}
}

// Definition returns service metadata
func (d *Device) Definition() types.Service {
	tool := func(id, name, desc, returns string, params ...types.Parameter) types.Tool {
		if params == nil {
			params = []types.Parameter{}
		}
		return types.Tool{ID: "device." + id, Name: name, Description: desc, Parameters: params, Returns: returns}
	}

	return types.Service{
		ID:           "device",
		Name:         "Device Service",
		Description:  "Device and environment queries",
		Category:     types.CategoryDevice,
		Capabilities: []string{"network", "locale", "display", "power", "share"},
		Tools: []types.Tool{
			tool("getWIFIIPV4Address", "WiFi IPv4 Address", "First non-loopback IPv4 address", "string"),
			tool("getDeviceName", "Device Name", "Configured device name or hostname", "string"),
			tool("getSupportedAbis", "Supported ABIs", "Native ABIs of this host", "array"),
			tool("getSystemLocales", "System Locales", "Preferred locale, e.g. zh_cn", "string"),
			tool("getWindowSize", "Window Size", "Window width and height", "object"),
			tool("isNotificationsEnabled", "Notifications Enabled", "Whether notifications are allowed", "boolean"),
			tool("screenKeepAwake", "Keep Screen Awake", "Hold the screen awake flag", "boolean"),
			tool("screenUnkeepAwake", "Release Screen Awake", "Release the screen awake flag", "boolean"),
			tool("shareText", "Share Text", "Hand text to the host share surface", "boolean",
				types.Parameter{Name: "text", Type: "string", Description: "Text to share", Required: true}),
			tool("exitApp", "Exit App", "Ask the host to close the app", "boolean"),
			tool("openNotificationPermissionActivity", "Open Notification Permission", "Ask the host to prompt for notifications", "boolean"),
		},
	}
}

// Execute runs a device query
func (d *Device) Execute(ctx context.Context, toolID string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	switch toolID {
	case "device.getWIFIIPV4Address":
		return stringResult(d.IPv4Address())
	case "device.getDeviceName":
		return stringResult(d.Name())
	case "device.getSupportedAbis":
		return success(map[string]interface{}{"result": supportedABIs()})
	case "device.getSystemLocales":
		return stringResult(d.Locale())
	case "device.getWindowSize":
		return success(map[string]interface{}{"width": d.cfg.WindowWidth, "height": d.cfg.WindowHeight})
	case "device.isNotificationsEnabled":
		return success(map[string]interface{}{"result": d.cfg.NotificationsEnabled})
	case "device.screenKeepAwake":
		d.keepAwake.Store(true)
		return success(map[string]interface{}{"result": true})
	case "device.screenUnkeepAwake":
		d.keepAwake.Store(false)
		return success(map[string]interface{}{"result": true})
	case "device.shareText":
		text, err := types.GetString(params, "text", true)
		if err != nil {
			return failure(err.Error())
		}
		d.shared.Store(&text)
		d.publish(EventShareText, appCtx, map[string]interface{}{"text": text})
		return success(map[string]interface{}{"result": true})
	case "device.exitApp":
		d.publish(EventExitApp, appCtx, map[string]interface{}{})
		return success(map[string]interface{}{"result": true})
	case "device.openNotificationPermissionActivity":
		d.publish(EventNotificationPermission, appCtx, map[string]interface{}{"enabled": d.cfg.NotificationsEnabled})
		return success(map[string]interface{}{"result": true})
	default:
		return unknownTool(toolID)
	}
}

// KeepAwake reports whether the screen awake flag is held
func (d *Device) KeepAwake() bool {
	return d.keepAwake.Load()
}

// SharedText returns the last text handed to shareText
func (d *Device) SharedText() string {
	if p := d.shared.Load(); p != nil {
		return *p
	}
	return ""
}

func (d *Device) publish(name string, appCtx *types.Context, body map[string]interface{}) {
	if d.publisher == nil {
		return
	}
	if appCtx != nil {
		body["plugin_id"] = appCtx.PluginID
	}
	_ = d.publisher.Emit(name, body)
}

// IPv4Address returns the first IPv4 address of an up, non-loopback
// interface, preferring wireless ones. Empty when there is none.
func (d *Device) IPv4Address() string {
	ifaces, err := d.interfaces()
	if err != nil {
		return ""
	}

	var fallback string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := d.addrs(iface)
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			ip := ipnet.IP.To4()
			if ip == nil || ip.IsLinkLocalUnicast() {
				continue
			}
			if isWireless(iface.Name) {
				return ip.String()
			}
			if fallback == "" {
				fallback = ip.String()
			}
		}
	}
	return fallback
}

// Name returns the configured device name, falling back to the hostname
func (d *Device) Name() string {
	if d.cfg.Name != "" {
		return d.cfg.Name
	}
	host, err := os.Hostname()
	if err != nil {
		return ""
	}
	return host
}

// Locale returns the preferred locale as lowercase language_region
func (d *Device) Locale() string {
	candidates := d.cfg.Locales
	if len(candidates) == 0 {
		for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
			if v := d.getenv(key); v != "" {
				candidates = append(candidates, v)
			}
		}
	}
	for _, c := range candidates {
		if locale, ok := normalizeLocale(c); ok {
			return locale
		}
	}
	return "en_us"
}

// normalizeLocale turns zh_CN.UTF-8, zh-Hans-CN or en-US into zh_cn or en_us
func normalizeLocale(raw string) (string, bool) {
	if i := strings.IndexAny(raw, ".@"); i >= 0 {
		raw = raw[:i]
	}
	raw = strings.ReplaceAll(raw, "_", "-")
	if raw == "" || raw == "C" || raw == "POSIX" {
		return "", false
	}

	tag, err := language.Parse(raw)
	if err != nil {
		return "", false
	}
	base, _ := tag.Base()
	region, confidence := tag.Region()
	if confidence == language.No {
		return strings.ToLower(base.String()), true
	}
	return strings.ToLower(base.String() + "_" + region.String()), true
}

func supportedABIs() []string {
	if abis, ok := abiNames[runtime.GOARCH]; ok {
		return append([]string{}, abis...)
	}
	return []string{runtime.GOARCH}
}

func isWireless(name string) bool {
	return strings.HasPrefix(name, "wl") || strings.HasPrefix(name, "en0")
}
