package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"i4.energy/across/espgw/modem"
)

var errModemStopped = errors.New("modem read loop stopped")

func main() {
	configFile := flag.String("config", "", "Path to a YAML configuration file")
	flag.String("serial-port", "/dev/ttyUSB0", "Serial port the ESP8266 is attached to")
	flag.Int("baud-rate", 115200, "Baud rate for serial communication")
	flag.String("serial-backend", "bugst", "Serial library to use (bugst, tarm)")
	flag.String("bind-address", "0.0.0.0:8080", "Bind address for the HTTP server")
	flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Duration("at-timeout", 20*time.Second, "Time to wait for a command to complete")
	flag.String("wifi-ssid", "", "Access point to join at startup")
	flag.String("wifi-password", "", "Access point passphrase")
	flag.String("nsq-address", "", "nsqd address inbound data is published to")
	flag.String("nsq-topic", "espgw.inbound", "Topic for inbound data")
	flag.Parse()

	config, err := LoadConfig(WithDefaults(), WithFile(*configFile), WithEnv(), WithFlags(flag.CommandLine))
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(config.LogLevel)

	if err := run(config, logger); err != nil {
		logger.Error("Gateway stopped", "error", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

func newDialer(config *Config) modem.Dialer {
	if config.SerialBackend == "tarm" {
		return modem.TarmDialer{PortName: config.SerialPort, BaudRate: config.BaudRate}
	}
	return modem.SerialDialer{PortName: config.SerialPort, BaudRate: config.BaudRate}
}

func run(config *Config, logger *slog.Logger) error {
	var producer Publisher
	if config.NSQAddress != "" {
		p, err := DialNSQ(config.NSQAddress, logger.With("component", "nsq"))
		if err != nil {
			return err
		}
		producer = p
	}

	forwardCtx, stopForward := context.WithCancel(context.Background())
	defer stopForward()
	forwarder := NewForwarder(producer, config.NSQTopic, logger.With("component", "forwarder"))
	go forwarder.Run(forwardCtx)

	inbox, buf := NewInbox(modem.ResultBufferLen, forwarder.Enqueue)

	modemConfig, err := modem.NewConfigBuilder().
		WithATTimeout(config.ATTimeout).
		WithInitTimeout(30 * time.Second).
		WithLogger(logger).
		WithDataHandler(inbox.Handle, buf).
		WithDialer(newDialer(config)).
		Build()
	if err != nil {
		return fmt.Errorf("create modem config: %w", err)
	}

	m, err := modem.New(context.Background(), modemConfig)
	if err != nil {
		return fmt.Errorf("create modem: %w", err)
	}
	inbox.Attach(m)

	if config.WifiSSID != "" {
		if err := m.JoinAP(context.Background(), config.WifiSSID, config.WifiPassword); err != nil {
			logger.Error("Failed to join access point", "error", err, "ssid", config.WifiSSID)
		} else if ip, err := m.LocalIP(context.Background()); err == nil {
			logger.Info("Joined access point", "ssid", config.WifiSSID, "ip", ip)
		}
	}

	logger.Info("Starting ESP8266 gateway", "port", config.SerialPort, "multiplexed", m.Multiplexed())

	httpServer := &http.Server{
		Addr: config.BindAddress,
		Handler: &Server{
			Logger: logger.With("component", "server"),
			Modem:  m,
		},
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	var runErr error
	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", "signal", sig)
	case <-m.Done():
		runErr = errModemStopped
		if err := m.Err(); err != nil {
			runErr = fmt.Errorf("%w: %w", errModemStopped, err)
		}
	case err := <-serveErr:
		runErr = fmt.Errorf("http server: %w", err)
	}

	logger.Info("Closing modem connection")
	if err := m.Close(); err != nil {
		logger.Error("Failed to close modem", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("Closing HTTP server")
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return runErr
}
