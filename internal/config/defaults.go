package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/shirabe/data/db/documents.db"
	}
	if cfg.Storage.CachePath == "" {
		cfg.Storage.CachePath = "/usr/local/var/shirabe/data/cache/embeddings.db"
	}
	if cfg.Producer.Dimensions == 0 {
		cfg.Producer.Dimensions = 384
	}
	if cfg.Producer.TimeoutSeconds == 0 {
		cfg.Producer.TimeoutSeconds = 30
	}
	if cfg.Producer.RatePerSecond == 0 {
		cfg.Producer.RatePerSecond = 10
	}
	if cfg.Producer.Burst == 0 {
		cfg.Producer.Burst = 5
	}
	if cfg.Coordinator.Workers == 0 {
		cfg.Coordinator.Workers = 4
	}
	if cfg.Coordinator.MaxRetries == 0 {
		cfg.Coordinator.MaxRetries = 3
	}
	if cfg.Coordinator.InitialBackoffMS == 0 {
		cfg.Coordinator.InitialBackoffMS = 200
	}
	if cfg.Coordinator.MaxBackoffMS == 0 {
		cfg.Coordinator.MaxBackoffMS = 5000
	}
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 10
	}
	if cfg.Search.MaxLimit == 0 {
		cfg.Search.MaxLimit = 100
	}
	if cfg.Search.PreviewLength == 0 {
		cfg.Search.PreviewLength = 150
	}
	if cfg.Search.ExplanationTerms == 0 {
		cfg.Search.ExplanationTerms = 5
	}
	if cfg.Corpus.Extensions == nil {
		cfg.Corpus.Extensions = []string{".txt", ".md"}
	}
}
