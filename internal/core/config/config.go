// Package config loads the overlay and server settings from YAML.
package config

import (
	stderrors "errors"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/zeusync/indicator/internal/core/geom"
	"github.com/zeusync/indicator/internal/core/indicator"
	"github.com/zeusync/indicator/internal/core/widget"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Log        LogConfig                    `yaml:"log"`
	Server     ServerConfig                 `yaml:"server"`
	Canvas     CanvasConfig                 `yaml:"canvas"`
	Widgets    WidgetConfig                 `yaml:"widgets"`
	Indicators map[string]IndicatorTemplate `yaml:"indicators"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	Path           string        `yaml:"path"`
	Session        string        `yaml:"session"`
	TickRate       time.Duration `yaml:"tick_rate"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	SendBuffer     int           `yaml:"send_buffer"`
	Retention      int           `yaml:"retention"`
	ResyncInterval time.Duration `yaml:"resync_interval"`
}

type Size struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

func (s Size) Vec() geom.Vec2 { return geom.V2(s.Width, s.Height) }

type CanvasConfig struct {
	Viewport           Size   `yaml:"viewport"`
	ArrowSize          Size   `yaml:"arrow_size"`
	ArrowPool          int    `yaml:"arrow_pool"`
	DrawInOrder        bool   `yaml:"draw_in_order"`
	DefaultWidgetClass string `yaml:"default_widget_class"`
}

type WidgetConfig struct {
	Concurrency int               `yaml:"concurrency"`
	Templates   []widget.Template `yaml:"templates"`
}

// IndicatorTemplate is a named descriptor preset. Fields left out of the
// YAML keep the defaults of a freshly created descriptor.
type IndicatorTemplate struct {
	indicator.State `yaml:",inline"`
}

func (t *IndicatorTemplate) UnmarshalYAML(node *yaml.Node) error {
	state := indicator.DefaultState()
	if err := node.Decode(&state); err != nil {
		return err
	}
	t.State = state
	return nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Server: ServerConfig{
			Addr:           ":8080",
			Path:           "/indicators",
			TickRate:       time.Second / 30,
			WriteTimeout:   5 * time.Second,
			SendBuffer:     256,
			Retention:      4096,
			ResyncInterval: 250 * time.Millisecond,
		},
		Canvas: CanvasConfig{
			Viewport:  Size{Width: 1920, Height: 1080},
			ArrowSize: Size{Width: 24, Height: 24},
			ArrowPool: 10,
		},
		Widgets: WidgetConfig{Concurrency: 4},
	}
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := yaml.NewDecoder(r).Decode(cfg); err != nil && !stderrors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads and parses the file at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open config %s", path)
	}
	defer f.Close()
	cfg, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return ErrInvalidAddr
	}
	if c.Server.TickRate <= 0 {
		return errors.Wrapf(ErrInvalidTickRate, "%s", c.Server.TickRate)
	}
	if c.Canvas.Viewport.Width <= 0 || c.Canvas.Viewport.Height <= 0 {
		return errors.Wrapf(ErrInvalidViewport, "%gx%g", c.Canvas.Viewport.Width, c.Canvas.Viewport.Height)
	}
	if c.Canvas.ArrowPool <= 0 {
		return errors.Wrapf(ErrInvalidArrowPool, "%d", c.Canvas.ArrowPool)
	}
	seen := make(map[string]struct{}, len(c.Widgets.Templates))
	for _, t := range c.Widgets.Templates {
		if t.Class == "" {
			return ErrEmptyWidgetClass
		}
		if _, ok := seen[t.Class]; ok {
			return errors.Wrapf(ErrDuplicateWidget, "%q", t.Class)
		}
		seen[t.Class] = struct{}{}
	}
	return nil
}

// Catalog returns the widget templates keyed by class.
func (c *Config) Catalog() widget.Catalog {
	cat := make(widget.Catalog, len(c.Widgets.Templates))
	for _, t := range c.Widgets.Templates {
		cat[t.Class] = t
	}
	return cat
}

// NewIndicator builds a descriptor from the named template, anchored at anchor.
func (c *Config) NewIndicator(name string, anchor indicator.Anchor) (*indicator.Descriptor, error) {
	t, ok := c.Indicators[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownTemplate, "%q", name)
	}
	state := t.State
	state.Anchor = anchor
	return indicator.FromState(state), nil
}
