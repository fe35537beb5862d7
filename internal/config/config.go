package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/abgdnv/producthub/internal/cache"
	"github.com/abgdnv/producthub/pkg/config"
	"github.com/abgdnv/producthub/pkg/config/configloader"
)

var _ configloader.Validator = (*Config)(nil)

const (
	defaultSearchLimit = 1000
	defaultQuery       = "iphone"
)

type Config struct {
	HTTPServer config.HTTPConfig       `koanf:"server"`
	Log        config.LogConfig        `koanf:"log"`
	PProf      config.PProfConfig      `koanf:"pprof"`
	Telemetry  config.TelemetryConfig  `koanf:"telemetry"`
	Shutdown   config.ShutdownConfig   `koanf:"shutdown"`
	Resilience config.ResilienceConfig `koanf:"resilience"`
	Catalog    CatalogConfig           `koanf:"catalog"`
}

// CatalogConfig describes the remote catalog service and how its results are presented.
type CatalogConfig struct {
	Client       config.HTTPClientConfig `koanf:",squash"`
	SearchLimit  int                     `koanf:"searchlimit"`
	PageSize     int                     `koanf:"pagesize"`
	InitialQuery *string                 `koanf:"initialquery"`
	RefreshDelay time.Duration           `koanf:"refreshdelay"`
}

// Query returns the search run at startup.
func (c *CatalogConfig) Query() string {
	if c.InitialQuery == nil {
		return defaultQuery
	}
	return *c.InitialQuery
}

func (c *Config) String() string {
	var b strings.Builder
	b.WriteString(c.HTTPServer.String())
	b.WriteString(c.Log.String())
	b.WriteString(c.PProf.String())
	b.WriteString(c.Telemetry.String())
	b.WriteString(c.Shutdown.String())
	b.WriteString(c.Resilience.String())

	b.WriteString("\n--- Catalog Service ---\n")
	b.WriteString(fmt.Sprintf("  catalog.url: %s\n", c.Catalog.Client.URL))
	b.WriteString(fmt.Sprintf("  catalog.timeout: %s\n", c.Catalog.Client.Timeout))
	b.WriteString(fmt.Sprintf("  catalog.searchlimit: %d\n", c.Catalog.SearchLimit))
	b.WriteString(fmt.Sprintf("  catalog.pagesize: %d\n", c.Catalog.PageSize))
	b.WriteString(fmt.Sprintf("  catalog.initialquery: %q\n", c.Catalog.Query()))
	b.WriteString(fmt.Sprintf("  catalog.refreshdelay: %s\n", c.Catalog.RefreshDelay))

	return b.String()
}

// Validate checks if the configuration values are valid and fills in defaults.
func (c *Config) Validate() error {
	if err := c.HTTPServer.Validate(); err != nil {
		return err
	}
	if err := c.Log.Validate(); err != nil {
		return err
	}
	if err := c.PProf.Validate(); err != nil {
		return err
	}
	if err := c.Telemetry.Validate(); err != nil {
		return err
	}
	if err := c.Shutdown.Validate(); err != nil {
		return err
	}
	if err := c.Resilience.Validate(); err != nil {
		return err
	}
	if err := c.Catalog.Validate(); err != nil {
		return err
	}
	// a write is one remote call plus a settle delay plus a full refresh
	if budget := 2*c.Catalog.Client.Timeout + c.Catalog.RefreshDelay; c.HTTPServer.Timeout.Write <= budget {
		return fmt.Errorf("server.timeout.write (%v) must exceed twice catalog.timeout plus catalog.refreshdelay (%v)",
			c.HTTPServer.Timeout.Write, budget)
	}
	return nil
}

func (c *CatalogConfig) Validate() error {
	if err := c.Client.Validate(); err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	if c.SearchLimit < 0 {
		return fmt.Errorf("catalog.searchlimit must not be negative: %d", c.SearchLimit)
	}
	if c.SearchLimit == 0 {
		c.SearchLimit = defaultSearchLimit
	}
	if c.PageSize < 0 {
		return fmt.Errorf("catalog.pagesize must not be negative: %d", c.PageSize)
	}
	if c.PageSize == 0 {
		c.PageSize = cache.DefaultPageSize
	}
	if c.RefreshDelay < 0 {
		return fmt.Errorf("catalog.refreshdelay must not be negative: %v", c.RefreshDelay)
	}
	return nil
}
