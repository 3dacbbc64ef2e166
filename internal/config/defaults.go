package config

const (
	defaultStorageDir         = "~/.local/share/adacta/storage"
	defaultPipelineDir        = "~/.local/share/adacta/pipeline"
	defaultLogDir             = "~/.local/share/adacta/logs"
	defaultIndexPath          = "~/.local/share/adacta/index.db"
	defaultIngestDir          = "~/.local/share/adacta/ingest"
	defaultAPIBind            = "127.0.0.1:7590"
	defaultPdftotextBin       = "pdftotext"
	defaultConvertBin         = "convert"
	defaultThumbnailHeight    = 1024
	defaultCommandTimeout     = 120
	defaultQueuePollInterval  = 5
	defaultErrorRetryInterval = 10
	defaultIngestSettle       = 2
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StorageDir:  defaultStorageDir,
			PipelineDir: defaultPipelineDir,
			LogDir:      defaultLogDir,
			IndexPath:   defaultIndexPath,
			APIBind:     defaultAPIBind,
		},
		Tools: Tools{
			PdftotextBin:    defaultPdftotextBin,
			ConvertBin:      defaultConvertBin,
			ThumbnailHeight: defaultThumbnailHeight,
			CommandTimeout:  defaultCommandTimeout,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
		},
		Ingest: Ingest{
			Dir:           defaultIngestDir,
			SettleSeconds: defaultIngestSettle,
			Extensions:    []string{".pdf"},
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
