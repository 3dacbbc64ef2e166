package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTools()
	c.normalizeWorkflow()
	if err := c.normalizeIngest(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StorageDir, err = expandPath(c.Paths.StorageDir); err != nil {
		return fmt.Errorf("paths.storage_dir: %w", err)
	}
	if c.Paths.PipelineDir, err = expandPath(c.Paths.PipelineDir); err != nil {
		return fmt.Errorf("paths.pipeline_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.IndexPath) == "" {
		c.Paths.IndexPath = defaultIndexPath
	}
	if c.Paths.IndexPath, err = expandPath(c.Paths.IndexPath); err != nil {
		return fmt.Errorf("paths.index_path: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("ADACTA_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeTools() {
	c.Tools.PdftotextBin = strings.TrimSpace(c.Tools.PdftotextBin)
	if c.Tools.PdftotextBin == "" {
		c.Tools.PdftotextBin = defaultPdftotextBin
	}
	c.Tools.ConvertBin = strings.TrimSpace(c.Tools.ConvertBin)
	if c.Tools.ConvertBin == "" {
		c.Tools.ConvertBin = defaultConvertBin
	}
	if c.Tools.ThumbnailHeight <= 0 {
		c.Tools.ThumbnailHeight = defaultThumbnailHeight
	}
	if c.Tools.CommandTimeout < 0 {
		c.Tools.CommandTimeout = 0
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Workflow.MaxAttempts < 0 {
		c.Workflow.MaxAttempts = 0
	}
	if c.Workflow.RetryBackoff < 0 {
		c.Workflow.RetryBackoff = 0
	}
}

func (c *Config) normalizeIngest() error {
	var err error
	if strings.TrimSpace(c.Ingest.Dir) == "" {
		c.Ingest.Dir = defaultIngestDir
	}
	if c.Ingest.Dir, err = expandPath(c.Ingest.Dir); err != nil {
		return fmt.Errorf("ingest.dir: %w", err)
	}
	if c.Ingest.SettleSeconds <= 0 {
		c.Ingest.SettleSeconds = defaultIngestSettle
	}
	exts := make([]string, 0, len(c.Ingest.Extensions))
	seen := make(map[string]struct{}, len(c.Ingest.Extensions))
	for _, ext := range c.Ingest.Extensions {
		normalized := strings.ToLower(strings.TrimSpace(ext))
		if normalized == "" {
			continue
		}
		if !strings.HasPrefix(normalized, ".") {
			normalized = "." + normalized
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		exts = append(exts, normalized)
	}
	if len(exts) == 0 {
		exts = []string{".pdf"}
	}
	c.Ingest.Extensions = exts
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
