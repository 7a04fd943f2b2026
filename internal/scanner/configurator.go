package scanner

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/nerrad567/autoscan-core/internal/driver"
)

const (
	// DefaultCradleModel is the model number reported by charging cradles.
	DefaultCradleModel = "CR0078-SC10007WR"

	defaultPrefixAttribute = 99
	defaultFormatAttribute = 235
	defaultFormatValue     = "4"
	defaultListTimeout     = 5 * time.Second
	defaultQueueSize       = 16

	// maxPrefix is the last printable ASCII character.
	maxPrefix = '~'
)

// DeviceSetup is the part of the driver the configurator drives.
type DeviceSetup interface {
	Devices(ctx context.Context) ([]driver.DeviceInfo, error)
	SetAttribute(ctx context.Context, scannerID uint32, attr driver.Attribute) error
}

// ConfiguratorOptions controls prefix assignment and device setup.
type ConfiguratorOptions struct {
	// PrefixBase is the prefix given to the first non-cradle device.
	// Default: 'A'.
	PrefixBase rune

	// CradleModel identifies cradles. Default: DefaultCradleModel.
	CradleModel string

	// PrefixAttribute receives the prefix character code and
	// FormatAttribute is set to FormatValue so scan data carries it.
	PrefixAttribute int
	FormatAttribute int
	FormatValue     string

	// DeviceAttributes are written to every scanner after the prefix;
	// CradleAttributes to every cradle.
	DeviceAttributes []driver.Attribute
	CradleAttributes []driver.Attribute

	QueueSize int

	// ListTimeout bounds the device list request. Default: 5s.
	ListTimeout time.Duration
}

// Configurator rebuilds the registry from the driver's device list.
type Configurator struct {
	driver   DeviceSetup
	registry *Registry
	opts     ConfiguratorOptions
	logger   Logger
}

// NewConfigurator creates a Configurator. Zero options take defaults.
func NewConfigurator(drv DeviceSetup, registry *Registry, opts ConfiguratorOptions) *Configurator {
	if opts.PrefixBase == 0 {
		opts.PrefixBase = 'A'
	}
	if opts.CradleModel == "" {
		opts.CradleModel = DefaultCradleModel
	}
	if opts.PrefixAttribute == 0 {
		opts.PrefixAttribute = defaultPrefixAttribute
	}
	if opts.FormatAttribute == 0 {
		opts.FormatAttribute = defaultFormatAttribute
	}
	if opts.FormatValue == "" {
		opts.FormatValue = defaultFormatValue
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.ListTimeout <= 0 {
		opts.ListTimeout = defaultListTimeout
	}

	return &Configurator{
		driver:   drv,
		registry: registry,
		opts:     opts,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger.
func (c *Configurator) SetLogger(logger Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// Rebuild discards the registry and builds it again from the devices
// currently attached. It returns the new devices; their workers are not
// started.
//
// If the device list cannot be read the registry is left empty.
func (c *Configurator) Rebuild(ctx context.Context) ([]*Device, error) {
	listCtx, cancel := context.WithTimeout(ctx, c.opts.ListTimeout)
	infos, err := c.driver.Devices(listCtx)
	cancel()

	c.registry.Clear()

	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}

	var devices []*Device
	next := c.opts.PrefixBase

	for _, info := range infos {
		if info.Model == c.opts.CradleModel {
			c.logger.Info("configuring cradle", "scanner_id", info.ID, "serial", info.Serial)
			c.push(ctx, info.ID, c.opts.CradleAttributes)
			continue
		}

		if next > maxPrefix {
			c.logger.Warn("no routing prefix left, device ignored",
				"scanner_id", info.ID, "model", info.Model)
			continue
		}

		prefix := next
		next++

		attrs := make([]driver.Attribute, 0, 2+len(c.opts.DeviceAttributes))
		attrs = append(attrs,
			driver.Attribute{ID: c.opts.PrefixAttribute, Type: "B", Value: strconv.Itoa(int(prefix))},
			driver.Attribute{ID: c.opts.FormatAttribute, Type: "B", Value: c.opts.FormatValue},
		)
		attrs = append(attrs, c.opts.DeviceAttributes...)
		c.push(ctx, info.ID, attrs)

		c.logger.Info("configured scanner",
			"scanner_id", info.ID,
			"model", info.Model,
			"prefix", string(prefix),
		)
		devices = append(devices, newDevice(info.ID, prefix, info.Model, c.opts.QueueSize))
	}

	c.registry.Replace(devices)
	return devices, nil
}

// push writes attrs in order. Failures are logged; the device keeps
// whatever it had.
func (c *Configurator) push(ctx context.Context, scannerID uint32, attrs []driver.Attribute) {
	for _, a := range attrs {
		if err := c.driver.SetAttribute(ctx, scannerID, a); err != nil {
			c.logger.Error("setting device attribute failed",
				"scanner_id", scannerID,
				"attribute", a.ID,
				"error", err,
			)
		}
	}
}
