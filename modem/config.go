package modem

import (
	"log/slog"
	"time"
)

const (
	// ResultBufferLen is the capacity of the response buffer; a longer
	// response ends in ErrOverflow.
	ResultBufferLen = 500

	defaultATTimeout         = 20 * time.Second
	defaultInitTimeout       = 30 * time.Second
	defaultResetDelay        = 6 * time.Second
	defaultDisconnectTimeout = time.Second
	defaultPassthroughGuard  = time.Second
)

// DataFunc is called from the read loop when inbound data was delivered.
//
// For payload received in command mode, n bytes of link conn were copied
// to the start of the destination buffer. The handler may swap the buffer
// with ReplaceBuffer; otherwise the next delivery overwrites it. In
// passthrough mode n is the number of bytes waiting in the passthrough
// ring and conn is 0.
//
// The handler runs on the read loop and must not call Exec.
type DataFunc func(conn, n int)

// Config holds the settings used by New. Build one with NewConfigBuilder.
type Config struct {
	dialer            Dialer
	logger            *slog.Logger
	onData            DataFunc
	buffer            []byte
	ringSize          int
	atTimeout         time.Duration
	initTimeout       time.Duration
	resetDelay        time.Duration
	disconnectTimeout time.Duration
	passthroughGuard  time.Duration
}

func (c *Config) validate() error {
	if c.dialer == nil {
		return ErrNoDialer
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.ringSize <= 0 {
		c.ringSize = ResultBufferLen
	}
	if c.atTimeout <= 0 {
		c.atTimeout = defaultATTimeout
	}
	if c.initTimeout <= 0 {
		c.initTimeout = defaultInitTimeout
	}
	if c.resetDelay <= 0 {
		c.resetDelay = defaultResetDelay
	}
	if c.disconnectTimeout <= 0 {
		c.disconnectTimeout = defaultDisconnectTimeout
	}
	if c.passthroughGuard <= 0 {
		c.passthroughGuard = defaultPassthroughGuard
	}
}

// ConfigBuilder assembles a Config.
type ConfigBuilder struct {
	config Config
}

func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{}
}

// WithDialer sets how the transport is opened. Required.
func (b *ConfigBuilder) WithDialer(d Dialer) *ConfigBuilder {
	b.config.dialer = d
	return b
}

func (b *ConfigBuilder) WithLogger(l *slog.Logger) *ConfigBuilder {
	b.config.logger = l
	return b
}

// WithDataHandler sets the inbound data callback and the first
// destination buffer. Payload is dropped when no buffer is given.
func (b *ConfigBuilder) WithDataHandler(fn DataFunc, buf []byte) *ConfigBuilder {
	b.config.onData = fn
	b.config.buffer = buf
	return b
}

// WithRingSize sets the capacity of the passthrough ring.
func (b *ConfigBuilder) WithRingSize(n int) *ConfigBuilder {
	b.config.ringSize = n
	return b
}

// WithATTimeout bounds the wait for a command terminator.
func (b *ConfigBuilder) WithATTimeout(d time.Duration) *ConfigBuilder {
	b.config.atTimeout = d
	return b
}

// WithInitTimeout bounds the initialization sequence run by New.
func (b *ConfigBuilder) WithInitTimeout(d time.Duration) *ConfigBuilder {
	b.config.initTimeout = d
	return b
}

// WithResetDelay sets how long the module is left to reboot after AT+RST.
func (b *ConfigBuilder) WithResetDelay(d time.Duration) *ConfigBuilder {
	b.config.resetDelay = d
	return b
}

// WithDisconnectTimeout bounds the wait for "WIFI DISCONNECT" after
// AT+CWQAP.
func (b *ConfigBuilder) WithDisconnectTimeout(d time.Duration) *ConfigBuilder {
	b.config.disconnectTimeout = d
	return b
}

// WithPassthroughGuard sets the silence kept after the "+++" escape.
func (b *ConfigBuilder) WithPassthroughGuard(d time.Duration) *ConfigBuilder {
	b.config.passthroughGuard = d
	return b
}

func (b *ConfigBuilder) Build() (Config, error) {
	c := b.config
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	c.setDefaults()
	return c, nil
}
