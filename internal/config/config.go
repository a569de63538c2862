// Package config loads daemon configuration with precedence
// CLI flags > environment > TOML file > built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/pflag"

	"github.com/sweeney/link-indicator/internal/gpio"
	"github.com/sweeney/link-indicator/internal/logic"
	"github.com/sweeney/link-indicator/internal/mqtt"
	"github.com/sweeney/link-indicator/internal/source"
	"github.com/sweeney/link-indicator/internal/storage"
)

// EnvPrefix prefixes environment overrides, e.g. LINK_INDICATOR_SOURCE.
const EnvPrefix = "LINK_INDICATOR_"

// Storage layouts.
const (
	LayoutFixed = "fixed"
	LayoutTail  = "tail"
)

// Config is the complete daemon configuration.
type Config struct {
	Source      string `toml:"source"`
	LowBattery  bool   `toml:"low_battery"`
	HeartbeatMs int64  `toml:"heartbeat_ms"`

	LED     LEDConfig     `toml:"led"`
	Button  ButtonConfig  `toml:"button"`
	Storage StorageConfig `toml:"storage"`
	MQTT    MQTTConfig    `toml:"mqtt"`
	BLE     BLEConfig     `toml:"ble"`
	HTTP    HTTPConfig    `toml:"http"`
}

type LEDConfig struct {
	Chip      string `toml:"chip"`
	Pin       int    `toml:"pin"`
	ActiveLow bool   `toml:"active_low"`
}

type ButtonConfig struct {
	Chip     string `toml:"chip"`
	Pin      int    `toml:"pin"`
	HoldMs   int64  `toml:"hold_ms"`
	SampleMs int64  `toml:"sample_ms"`
}

// StorageConfig locates the region the hold-button clear erases. The
// fixed layout uses Start and Size; the tail layout uses the last Pages
// pages of FlashSize.
type StorageConfig struct {
	Enabled   bool   `toml:"enabled"`
	Image     string `toml:"image"`
	FlashSize int64  `toml:"flash_size"`
	PageSize  int64  `toml:"page_size"`
	Layout    string `toml:"layout"`
	Start     int64  `toml:"start"`
	Size      int64  `toml:"size"`
	Pages     int64  `toml:"pages"`
}

// MQTTConfig configures the broker connection. An empty Broker disables MQTT.
type MQTTConfig struct {
	Broker     string `toml:"broker"`
	ClientID   string `toml:"client_id"`
	OutboxSize int    `toml:"outbox_size"`
}

type BLEConfig struct {
	LocalName string `toml:"local_name"`
}

type HTTPConfig struct {
	Addr string `toml:"addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Source:      string(source.KindSimulator),
		LowBattery:  true,
		HeartbeatMs: 15 * 60 * 1000,
		LED: LEDConfig{
			Chip: gpio.DefaultChip,
			Pin:  gpio.DefaultPinLED,
		},
		Button: ButtonConfig{
			Chip:     gpio.DefaultChip,
			Pin:      gpio.DefaultPinButton,
			HoldMs:   storage.DefaultHold.Milliseconds(),
			SampleMs: storage.DefaultSample.Milliseconds(),
		},
		Storage: StorageConfig{
			Enabled:   true,
			Image:     "/var/lib/link-indicator/flash.bin",
			FlashSize: storage.DefaultFlashSize,
			PageSize:  storage.DefaultPageSize,
			Layout:    LayoutTail,
			Start:     storage.DefaultFixedStart,
			Size:      storage.DefaultFixedSize,
			Pages:     storage.DefaultTailPages,
		},
		MQTT: MQTTConfig{
			Broker:     "tcp://localhost:1883",
			ClientID:   "link-indicator",
			OutboxSize: mqtt.DefaultOutboxSize,
		},
		HTTP: HTTPConfig{Addr: ":80"},
	}
}

// Load builds the configuration from defaults, the TOML file at path (if
// path is non-empty), environment overrides and the flags in fs that were
// set on the command line. fs may be nil.
func Load(path string, fs *pflag.FlagSet) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse TOML config: %w", err)
		}
	}

	changed := make(map[string]bool)
	if fs != nil {
		fs.Visit(func(f *pflag.Flag) { changed[f.Name] = true })
	}

	for _, s := range settings {
		if changed[s.flag] {
			continue
		}
		if v, ok := os.LookupEnv(envKey(s.flag)); ok && v != "" {
			if err := s.set(&cfg, v); err != nil {
				return cfg, fmt.Errorf("%s: %w", envKey(s.flag), err)
			}
		}
	}

	var flagErr error
	if fs != nil {
		fs.Visit(func(f *pflag.Flag) {
			s, ok := settingFor(f.Name)
			if !ok || flagErr != nil {
				return
			}
			if err := s.set(&cfg, f.Value.String()); err != nil {
				flagErr = fmt.Errorf("--%s: %w", f.Name, err)
			}
		})
	}
	return cfg, flagErr
}

// Validate reports the first problem with the configuration.
func (c Config) Validate() error {
	if _, err := source.ParseKind(c.Source); err != nil {
		return err
	}
	if c.HeartbeatMs < 0 {
		return errors.New("heartbeat_ms must not be negative")
	}
	if c.LED.Pin < 0 {
		return errors.New("led.pin must not be negative")
	}
	if c.Source == string(source.KindMQTT) && c.MQTT.Broker == "" {
		return errors.New("source mqtt requires mqtt.broker")
	}
	if c.MQTT.Broker != "" && c.MQTT.OutboxSize <= 0 {
		return errors.New("mqtt.outbox_size must be positive")
	}
	if !c.Storage.Enabled {
		return nil
	}
	if c.Button.Pin < 0 {
		return errors.New("button.pin must not be negative")
	}
	if c.Button.SampleMs <= 0 || c.Button.HoldMs <= 0 {
		return errors.New("button.hold_ms and button.sample_ms must be positive")
	}
	if c.Button.HoldMs < c.Button.SampleMs {
		return errors.New("button.hold_ms must be at least button.sample_ms")
	}
	if c.Storage.Image == "" {
		return errors.New("storage.image must be set")
	}
	if c.Storage.FlashSize <= 0 || c.Storage.FlashSize >= 1<<32 {
		return fmt.Errorf("storage.flash_size %d out of range", c.Storage.FlashSize)
	}
	if c.Storage.PageSize <= 0 || c.Storage.PageSize > c.Storage.FlashSize {
		return fmt.Errorf("storage.page_size %d out of range", c.Storage.PageSize)
	}
	switch c.Storage.Layout {
	case LayoutFixed:
		if c.Storage.Start < 0 || c.Storage.Size <= 0 {
			return errors.New("storage.start and storage.size must be set for the fixed layout")
		}
		if c.Storage.Start+c.Storage.Size > c.Storage.FlashSize {
			return fmt.Errorf("storage region 0x%X+0x%X exceeds %d-byte flash", c.Storage.Start, c.Storage.Size, c.Storage.FlashSize)
		}
	case LayoutTail:
		if c.Storage.Pages <= 0 || c.Storage.Pages*c.Storage.PageSize > c.Storage.FlashSize {
			return fmt.Errorf("storage.pages %d out of range", c.Storage.Pages)
		}
	default:
		return fmt.Errorf("unknown storage.layout %q (want %s or %s)", c.Storage.Layout, LayoutFixed, LayoutTail)
	}
	r := c.Region()
	if err := r.Validate(); err != nil {
		return err
	}
	if int64(r.End()) > c.Storage.FlashSize || r.End() < r.Start {
		return fmt.Errorf("storage region %s exceeds %d-byte flash", r, c.Storage.FlashSize)
	}
	return nil
}

// Decoder returns the state decoder for this deployment.
func (c Config) Decoder() logic.Decoder {
	return logic.Decoder{LowBattery: c.LowBattery}
}

// Kind returns the producer. Call after Validate.
func (c Config) Kind() source.Kind {
	return source.Kind(c.Source)
}

// Region returns the storage region to clear.
func (c Config) Region() storage.Region {
	s := c.Storage
	if s.Layout == LayoutFixed {
		return storage.FixedRegion(uint32(s.Start), uint32(s.Size), uint32(s.PageSize))
	}
	return storage.TailRegion(uint32(s.FlashSize), uint32(s.PageSize), uint32(s.Pages))
}

// StorageRun returns the hold-button clear settings.
func (c Config) StorageRun() storage.Config {
	return storage.Config{
		Region: c.Region(),
		Hold:   time.Duration(c.Button.HoldMs) * time.Millisecond,
		Sample: time.Duration(c.Button.SampleMs) * time.Millisecond,
	}
}

// Heartbeat returns the heartbeat interval; zero disables it.
func (c Config) Heartbeat() time.Duration {
	return time.Duration(c.HeartbeatMs) * time.Millisecond
}

func envKey(flag string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}

// setting ties a flag name to a config field.
type setting struct {
	flag   string
	usage  string
	isBool bool
	set    func(c *Config, v string) error
	get    func(c Config) string
}

func settingFor(name string) (setting, bool) {
	for _, s := range settings {
		if s.flag == name {
			return s, true
		}
	}
	return setting{}, false
}

func strSetting(flag, usage string, p func(c *Config) *string) setting {
	return setting{
		flag:  flag,
		usage: usage,
		set:   func(c *Config, v string) error { *p(c) = v; return nil },
		get:   func(c Config) string { return *p(&c) },
	}
}

func boolSetting(flag, usage string, p func(c *Config) *bool) setting {
	return setting{
		flag:   flag,
		usage:  usage,
		isBool: true,
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return err
			}
			*p(c) = b
			return nil
		},
		get: func(c Config) string { return strconv.FormatBool(*p(&c)) },
	}
}

func int64Setting(flag, usage string, p func(c *Config) *int64) setting {
	return setting{
		flag:  flag,
		usage: usage,
		set: func(c *Config, v string) error {
			// Base 0 accepts 0x-prefixed flash addresses.
			n, err := strconv.ParseInt(v, 0, 64)
			if err != nil {
				return err
			}
			*p(c) = n
			return nil
		},
		get: func(c Config) string { return strconv.FormatInt(*p(&c), 10) },
	}
}

func intSetting(flag, usage string, p func(c *Config) *int) setting {
	return setting{
		flag:  flag,
		usage: usage,
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return err
			}
			*p(c) = n
			return nil
		},
		get: func(c Config) string { return strconv.Itoa(*p(&c)) },
	}
}

var settings = []setting{
	strSetting("source", "state producer: simulator, mqtt or ble", func(c *Config) *string { return &c.Source }),
	boolSetting("low-battery", "render the low-battery pattern", func(c *Config) *bool { return &c.LowBattery }),
	int64Setting("heartbeat-ms", "heartbeat interval in ms (0 = disabled)", func(c *Config) *int64 { return &c.HeartbeatMs }),
	strSetting("led-chip", "GPIO chip for the LED", func(c *Config) *string { return &c.LED.Chip }),
	intSetting("led-pin", "GPIO line for the LED", func(c *Config) *int { return &c.LED.Pin }),
	boolSetting("led-active-low", "LED lights when the line is driven low", func(c *Config) *bool { return &c.LED.ActiveLow }),
	intSetting("button-pin", "GPIO line for the clear button", func(c *Config) *int { return &c.Button.Pin }),
	boolSetting("storage-clear", "check the clear button at startup", func(c *Config) *bool { return &c.Storage.Enabled }),
	strSetting("storage-image", "flash image file", func(c *Config) *string { return &c.Storage.Image }),
	strSetting("storage-layout", "region layout: fixed or tail", func(c *Config) *string { return &c.Storage.Layout }),
	strSetting("broker", "MQTT broker address (empty = disabled)", func(c *Config) *string { return &c.MQTT.Broker }),
	strSetting("ble-name", "BLE local name", func(c *Config) *string { return &c.BLE.LocalName }),
	strSetting("http", "HTTP status server address (empty = disabled)", func(c *Config) *string { return &c.HTTP.Addr }),
}

// RegisterFlags adds a flag per overridable setting to fs, with the
// built-in defaults as help text.
func RegisterFlags(fs *pflag.FlagSet) {
	def := Default()
	for _, s := range settings {
		if s.isBool {
			fs.Bool(s.flag, s.get(def) == "true", s.usage)
			continue
		}
		fs.String(s.flag, s.get(def), s.usage)
	}
}
