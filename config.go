package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	// BindAddress is the address the server listens on (e.g. "0.0.0.0:8080")
	BindAddress string `yaml:"bind_address"`
	// SerialPort is the path to the module's serial port (e.g. "/dev/ttyUSB0")
	SerialPort string `yaml:"serial_port"`
	// BaudRate is the baud rate for serial communication with the module (e.g. 115200)
	BaudRate int `yaml:"baud_rate"`
	// SerialBackend selects the serial library: "bugst" or "tarm"
	SerialBackend string `yaml:"serial_backend"`
	// LogLevel sets the logging level (e.g. "debug", "info", "warn", "error")
	LogLevel string `yaml:"log_level"`
	// ATTimeout bounds the wait for a command terminator
	ATTimeout time.Duration `yaml:"at_timeout"`
	// WifiSSID is the access point joined at startup; empty skips joining
	WifiSSID string `yaml:"wifi_ssid"`
	// WifiPassword is the access point passphrase
	WifiPassword string `yaml:"wifi_password"`
	// NSQAddress is the nsqd TCP address inbound data is published to; empty disables forwarding
	NSQAddress string `yaml:"nsq_address"`
	// NSQTopic is the topic inbound data is published on
	NSQTopic string `yaml:"nsq_topic"`
}

// ConfigOption is a function that modifies a Config
type ConfigOption func(*Config) error

// LoadConfig creates a new config by applying the given options in order
func LoadConfig(opts ...ConfigOption) (*Config, error) {
	config := &Config{}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}

	return config, nil
}

// WithDefaults applies default configuration values
func WithDefaults() ConfigOption {
	return func(c *Config) error {
		c.BindAddress = "0.0.0.0:8080"
		c.SerialPort = "/dev/ttyUSB0"
		c.BaudRate = 115200
		c.SerialBackend = "bugst"
		c.LogLevel = "info"
		c.ATTimeout = 20 * time.Second
		c.NSQTopic = "espgw.inbound"
		return nil
	}
}

// WithFile overlays the values set in a YAML file. An empty path is
// ignored.
func WithFile(path string) ConfigOption {
	return func(c *Config) error {
		if path == "" {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(content, c); err != nil {
			return fmt.Errorf("parse config file %s: %w", path, err)
		}
		return nil
	}
}

// WithEnv loads configuration from environment variables
func WithEnv() ConfigOption {
	return func(c *Config) error {
		if addr := os.Getenv("BIND_ADDRESS"); addr != "" {
			c.BindAddress = addr
		}

		if serial := os.Getenv("SERIAL_PORT"); serial != "" {
			c.SerialPort = serial
		}

		if baud := os.Getenv("BAUD_RATE"); baud != "" {
			if b, err := strconv.Atoi(baud); err == nil {
				c.BaudRate = b
			}
		}

		if backend := os.Getenv("SERIAL_BACKEND"); backend != "" {
			c.SerialBackend = backend
		}

		if level := os.Getenv("LOG_LEVEL"); level != "" {
			c.LogLevel = level
		}

		if timeout := os.Getenv("AT_TIMEOUT"); timeout != "" {
			if d, err := time.ParseDuration(timeout); err == nil {
				c.ATTimeout = d
			}
		}

		if ssid := os.Getenv("WIFI_SSID"); ssid != "" {
			c.WifiSSID = ssid
		}

		if password := os.Getenv("WIFI_PASSWORD"); password != "" {
			c.WifiPassword = password
		}

		if addr := os.Getenv("NSQ_ADDRESS"); addr != "" {
			c.NSQAddress = addr
		}

		if topic := os.Getenv("NSQ_TOPIC"); topic != "" {
			c.NSQTopic = topic
		}

		return nil
	}
}

// WithFlags loads configuration from command-line flags
func WithFlags(fSet *flag.FlagSet) ConfigOption {
	return func(c *Config) error {
		fSet.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "bind-address":
				c.BindAddress = f.Value.String()
			case "serial-port":
				c.SerialPort = f.Value.String()
			case "baud-rate":
				if b, err := strconv.Atoi(f.Value.String()); err == nil {
					c.BaudRate = b
				}
			case "serial-backend":
				c.SerialBackend = f.Value.String()
			case "log-level":
				c.LogLevel = f.Value.String()
			case "at-timeout":
				if d, err := time.ParseDuration(f.Value.String()); err == nil {
					c.ATTimeout = d
				}
			case "wifi-ssid":
				c.WifiSSID = f.Value.String()
			case "wifi-password":
				c.WifiPassword = f.Value.String()
			case "nsq-address":
				c.NSQAddress = f.Value.String()
			case "nsq-topic":
				c.NSQTopic = f.Value.String()
			}
		})
		return nil
	}
}
