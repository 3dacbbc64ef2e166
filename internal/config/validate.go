package config

import (
	"errors"
	"fmt"
	"sort"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateTools(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.StorageDir == "" {
		return errors.New("paths.storage_dir must be set")
	}
	if c.Paths.PipelineDir == "" {
		return errors.New("paths.pipeline_dir must be set")
	}
	if c.Paths.StorageDir == c.Paths.PipelineDir {
		return errors.New("paths.storage_dir and paths.pipeline_dir must differ")
	}
	if c.Ingest.Enabled && c.Ingest.Dir == c.Paths.StorageDir {
		return errors.New("ingest.dir must not be paths.storage_dir")
	}
	return nil
}

func (c *Config) validateTools() error {
	if c.Tools.PdftotextBin == "" {
		return errors.New("tools.pdftotext_bin must be set")
	}
	if c.Tools.ConvertBin == "" {
		return errors.New("tools.convert_bin must be set")
	}
	if c.Tools.ThumbnailHeight <= 0 {
		return errors.New("tools.thumbnail_height must be positive")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	return ensurePositiveMap(map[string]int{
		"workflow.queue_poll_interval":  c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
	})
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
