package main

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		c, err := LoadConfig(WithDefaults())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.BaudRate != 115200 || c.SerialBackend != "bugst" || c.ATTimeout != 20*time.Second {
			t.Errorf("unexpected defaults: %+v", c)
		}
	})

	t.Run("File overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "espgw.yaml")
		content := "serial_port: /dev/ttyAMA0\nserial_backend: tarm\nat_timeout: 5s\nwifi_ssid: lab\nnsq_address: 127.0.0.1:4150\n"
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}

		c, err := LoadConfig(WithDefaults(), WithFile(path))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.SerialPort != "/dev/ttyAMA0" || c.SerialBackend != "tarm" || c.WifiSSID != "lab" {
			t.Errorf("file values not applied: %+v", c)
		}
		if c.ATTimeout != 5*time.Second {
			t.Errorf("expected 5s timeout, got %v", c.ATTimeout)
		}
		if c.BindAddress != "0.0.0.0:8080" {
			t.Errorf("expected default bind address kept, got %q", c.BindAddress)
		}
	})

	t.Run("Missing file", func(t *testing.T) {
		_, err := LoadConfig(WithFile(filepath.Join(t.TempDir(), "missing.yaml")))
		if err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("Environment overrides file", func(t *testing.T) {
		t.Setenv("SERIAL_PORT", "/dev/ttyS1")
		t.Setenv("AT_TIMEOUT", "3s")
		t.Setenv("NSQ_TOPIC", "modem")

		c, err := LoadConfig(WithDefaults(), WithEnv())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.SerialPort != "/dev/ttyS1" || c.ATTimeout != 3*time.Second || c.NSQTopic != "modem" {
			t.Errorf("environment not applied: %+v", c)
		}
	})

	t.Run("Only flags that were set", func(t *testing.T) {
		fSet := flag.NewFlagSet("espgw", flag.ContinueOnError)
		fSet.String("serial-port", "/dev/ttyUSB0", "")
		fSet.String("wifi-ssid", "", "")
		fSet.Duration("at-timeout", time.Second, "")
		if err := fSet.Parse([]string{"-wifi-ssid", "office", "-at-timeout", "2s"}); err != nil {
			t.Fatal(err)
		}

		c, err := LoadConfig(WithDefaults(), WithFlags(fSet))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.WifiSSID != "office" || c.ATTimeout != 2*time.Second {
			t.Errorf("flags not applied: %+v", c)
		}
		if c.SerialPort != "/dev/ttyUSB0" {
			t.Errorf("expected unset flag ignored, got %q", c.SerialPort)
		}
	})
}
