package config

import (
	"flag"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all daemon configuration.
type Config struct {
	Addr            string
	DBPath          string
	DevicesRoot     string
	ScanInterval    time.Duration
	EnableTestDevs  bool
	Debug           bool
	DHCPClientPath  string
	MDNSRestartCmd  string
	JournalMaxRows  int
	ReportEventRows int
}

// Load parses command line flags and environment variables to populate
// Config. Flags take precedence over environment variables.
func Load() *Config {
	cfg := &Config{}

	cfg.Addr = getEnv("LINKD_ADDR", ":8089")
	cfg.DBPath = getEnv("LINKD_DB", defaultDBPath())
	cfg.DevicesRoot = getEnv("LINKD_DEVICES_ROOT", "/org/freedesktop/linkd/Devices")
	scanSecs := getEnvInt("LINKD_SCAN_INTERVAL", 10)
	cfg.EnableTestDevs = getEnvBool("LINKD_TEST_DEVICES", false)
	cfg.DHCPClientPath = getEnv("LINKD_DHCP_CLIENT", "/sbin/udhcpc")
	cfg.MDNSRestartCmd = getEnv("LINKD_MDNS_RESTART", "/usr/sbin/avahi-daemon --kill")

	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP status/control address")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the SQLite link-event journal")
	flag.StringVar(&cfg.DevicesRoot, "devices-root", cfg.DevicesRoot, "Root of device object paths")
	flag.IntVar(&scanSecs, "scan-interval", scanSecs, "Seconds between wireless scans")
	flag.BoolVar(&cfg.EnableTestDevs, "enable-test-devices", cfg.EnableTestDevs, "Allow synthetic test devices")
	flag.BoolVar(&cfg.Debug, "debug", false, "Enable verbose debug logging")
	flag.StringVar(&cfg.DHCPClientPath, "dhcp-client", cfg.DHCPClientPath, "Path to the external DHCP client")
	flag.StringVar(&cfg.MDNSRestartCmd, "mdns-restart", cfg.MDNSRestartCmd, "Command restarting the mDNS responder")
	flag.IntVar(&cfg.JournalMaxRows, "journal-max", 20000, "Row cap of the link-event journal")
	flag.IntVar(&cfg.ReportEventRows, "report-events", 50, "Journal rows included in the diagnostics report")

	flag.Parse()

	cfg.ScanInterval = time.Duration(scanSecs) * time.Second
	return cfg
}

func defaultDBPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "linkd.db"
	}
	return filepath.Join(dir, "linkd", "journal.db")
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
