// Package main is the Shirabe CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/shirabe/internal/cache"
	"github.com/hyperjump/shirabe/internal/cli"
	"github.com/hyperjump/shirabe/internal/config"
	"github.com/hyperjump/shirabe/internal/coordinator"
	"github.com/hyperjump/shirabe/internal/corpus"
	"github.com/hyperjump/shirabe/internal/fingerprint"
	"github.com/hyperjump/shirabe/internal/index"
	"github.com/hyperjump/shirabe/internal/models"
	"github.com/hyperjump/shirabe/internal/producer"
	"github.com/hyperjump/shirabe/internal/search"
	"github.com/hyperjump/shirabe/internal/server"
	"github.com/hyperjump/shirabe/internal/storage"
	"github.com/hyperjump/shirabe/internal/watcher"
	"github.com/hyperjump/shirabe/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/shirabe/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used, so that "shirabe server" from the project dir uses the project's
// config. Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "search":
		runSearch()
	case "sync":
		runSync()
	case "delete":
		runDelete()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("shirabe version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (state transitions, watcher events, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	// Warm start: rebuild the index from cached vectors, then reconcile the
	// corpus directory. Unchanged documents cost no producer calls.
	if err := components.Coordinator.Rebuild(ctx); err != nil {
		logger.Warn("index rebuild failed, continuing with empty index", zap.Error(err))
	}
	if cfg.Corpus.Directory != "" {
		loader := corpus.NewLoader(cfg.Corpus.Directory, cfg.Corpus.Extensions)
		go func() {
			inputs, err := loader.Load()
			if err != nil {
				logger.Warn("corpus load failed", zap.Error(err))
				return
			}
			failed, err := components.Coordinator.SyncAll(ctx, inputs)
			if err != nil {
				logger.Warn("corpus sync interrupted", zap.Error(err))
			}
			logger.Info("corpus synced", zap.Int("documents", len(inputs)), zap.Int("failed", failed))
		}()
	}

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	var watchSvc *watcher.Watcher
	if cfg.Corpus.Watch && cfg.Corpus.Directory != "" {
		loader := corpus.NewLoader(cfg.Corpus.Directory, cfg.Corpus.Extensions)
		coord := components.Coordinator
		watchOpts := []watcher.Option{}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		watchSvc = watcher.New(
			cfg.Corpus.Directory,
			cfg.Corpus.Extensions,
			func(path string) {
				input, err := loader.LoadFile(path)
				if err != nil {
					logger.Warn("watch load file failed", zap.String("path", path), zap.Error(err))
					return
				}
				if err := coord.SyncDocument(context.Background(), input); err != nil {
					logger.Warn("watch sync failed", zap.String("path", path), zap.Error(err))
				}
			},
			func(path string) {
				if err := coord.RemoveDocument(context.Background(), corpus.DocID(path)); err != nil {
					logger.Warn("watch remove failed", zap.String("path", path), zap.Error(err))
				}
			},
			watchOpts...,
		)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
	}

	srv := server.NewServer(
		components.Engine,
		components.Coordinator,
		components.Storage,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if watchSvc != nil {
		watchSvc.Stop()
	}
	watchCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(shutdownCtx)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves any flags (and their values) that appear after the
// query to the front of the slice so that flag.Parse() sees them. Go's flag
// package stops at the first non-flag argument.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: shirabe search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  shirabe search machine learning
  shirabe search "machine learning"       # same as above
  shirabe search --top-k 20 your query
  shirabe search --output json "query"    # structured JSON for other apps
`)
}

func runSearch() {
	searchArgs := searchArgsReorder(os.Args[2:])

	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPathFlag := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage when server is not running)")
	topK := fs.Int("top-k", 0, "number of results (0 = server default)")
	outputFormat := fs.String("output", "text", "output format: text (human-readable) or json (parseable)")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgs)

	queryStr := buildSearchQuery(fs.Args())
	if queryStr == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}

	format := cli.OutputText
	switch *outputFormat {
	case "json":
		format = cli.OutputJSON
	case "text":
		format = cli.OutputText
	default:
		fmt.Printf("Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}

	searchQuery := &models.SearchQuery{Query: queryStr, TopK: *topK}

	if *serverURL != "" {
		response, err := searchViaHTTP(*serverURL, searchQuery)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Direct storage access (when server is not running).
	cfg, _, err := loadConfig(*configPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	if err := components.Coordinator.Rebuild(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Index rebuild failed: %v\n", err)
		os.Exit(1)
	}
	response, err := components.Engine.Search(ctx, searchQuery)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func searchViaHTTP(serverURL string, query *models.SearchQuery) (*models.SearchResponse, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/search", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

func runSync() {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	if err := components.Coordinator.Rebuild(ctx); err != nil {
		fmt.Printf("Index rebuild failed: %v\n", err)
		os.Exit(1)
	}

	// Positional argument overrides the configured corpus directory,
	// and may also name a single file.
	root := cfg.Corpus.Directory
	if fs.NArg() > 0 {
		root = fs.Arg(0)
	}
	if root == "" {
		fmt.Println("Usage: shirabe sync [flags] <file-or-directory>")
		os.Exit(1)
	}

	info, err := os.Stat(root)
	if err != nil {
		fmt.Printf("Failed to stat path: %v\n", err)
		os.Exit(1)
	}
	loader := corpus.NewLoader(root, cfg.Corpus.Extensions)
	if !info.IsDir() {
		input, err := loader.LoadFile(root)
		if err != nil {
			fmt.Printf("Failed to read file: %v\n", err)
			os.Exit(1)
		}
		if err := components.Coordinator.SyncDocument(ctx, input); err != nil {
			fmt.Printf("Sync failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Document synced: %s\n", input.ID)
		return
	}

	inputs, err := loader.Load()
	if err != nil {
		fmt.Printf("Failed to load corpus: %v\n", err)
		os.Exit(1)
	}
	failed, err := components.Coordinator.SyncAll(ctx, inputs)
	if err != nil {
		fmt.Printf("Sync interrupted: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Synced %d document(s) from %s (%d failed, will retry next pass)\n", len(inputs)-failed, root, failed)
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: shirabe delete [flags] <document-id>")
		os.Exit(1)
	}
	docID := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	if err := components.Coordinator.RemoveDocument(context.Background(), docID); err != nil {
		fmt.Printf("Deletion failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Document deleted: %s\n", docID)
}

// statusResponse is the shape of GET /api/v1/status response.
type statusResponse struct {
	Documents      int64          `json:"documents"`
	IndexSize      int            `json:"index_size"`
	States         map[string]int `json:"states,omitempty"`
	DiskUsageBytes *int64         `json:"disk_usage_bytes,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status statusResponse
	if *serverURL != "" {
		res, err := statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = *res
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		logger, err := utils.NewLogger(cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger, cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
			os.Exit(1)
		}
		defer components.Close()
		ctx := context.Background()
		if err := components.Coordinator.Rebuild(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Index rebuild failed: %v\n", err)
			os.Exit(1)
		}
		docCount, err := components.Storage.CountDocuments(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Count documents failed: %v\n", err)
			os.Exit(1)
		}
		status = statusResponse{
			Documents: docCount,
			IndexSize: components.Engine.IndexSize(),
			States:    components.Coordinator.StateCounts(),
		}
		diskBytes, err := storage.DiskUsageBytes(cfg.Storage.DatabasePath, cfg.Storage.CachePath)
		if err == nil {
			status.DiskUsageBytes = &diskBytes
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("documents:        %d   # count of stored documents\n", status.Documents)
		fmt.Printf("index_size:       %d   # count of vectors in similarity index\n", status.IndexSize)
		if status.DiskUsageBytes != nil {
			fmt.Printf("disk_usage_bytes: %d   # database + vector cache on disk\n", *status.DiskUsageBytes)
		}
		if len(status.States) > 0 {
			fmt.Println()
			fmt.Println("# document states")
			for _, state := range []string{"up_to_date", "regenerating", "stale", "unknown"} {
				if n, ok := status.States[state]; ok {
					fmt.Printf("%-16s %d\n", state+":", n)
				}
			}
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

// Components holds initialized services.
type Components struct {
	Storage     storage.Storage
	Cache       cache.Cache
	Index       *index.Index
	Producer    producer.Producer
	Coordinator *coordinator.Coordinator
	Engine      *search.Engine
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Cache != nil {
		_ = c.Cache.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	cacheOpts := []cache.SQLiteCacheOption{}
	if debug {
		cacheOpts = append(cacheOpts, cache.WithLogger(logger))
	}
	vc, err := cache.NewSQLiteCache(cfg.Storage.CachePath, cacheOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector cache: %w", err)
	}

	idxOpts := []index.Option{}
	if debug {
		idxOpts = append(idxOpts, index.WithLogger(logger))
	}
	idx, err := index.New(cfg.Producer.Dimensions, idxOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize similarity index: %w", err)
	}

	var prod producer.Producer
	if cfg.Producer.Endpoint != "" {
		prod = producer.NewHTTPProducer(
			cfg.Producer.Endpoint,
			cfg.Producer.Dimensions,
			time.Duration(cfg.Producer.TimeoutSeconds)*time.Second,
			cfg.Producer.RatePerSecond,
			cfg.Producer.Burst,
		)
	} else {
		if logger != nil {
			logger.Info("no producer endpoint configured, using deterministic mock vectors")
		}
		prod = producer.NewMockProducer(cfg.Producer.Dimensions)
	}

	coordOpts := []coordinator.Option{}
	if debug {
		coordOpts = append(coordOpts, coordinator.WithLogger(logger))
	}
	coord := coordinator.New(store, vc, fingerprint.NewStore(vc), idx, prod, coordinator.Options{
		Workers:        cfg.Coordinator.Workers,
		MaxRetries:     uint64(cfg.Coordinator.MaxRetries),
		InitialBackoff: time.Duration(cfg.Coordinator.InitialBackoffMS) * time.Millisecond,
		MaxBackoff:     time.Duration(cfg.Coordinator.MaxBackoffMS) * time.Millisecond,
	}, coordOpts...)

	engineOpts := []search.Option{}
	if debug {
		engineOpts = append(engineOpts, search.WithLogger(logger))
	}
	engine := search.NewEngine(store, prod, idx, &cfg.Search, engineOpts...)

	return &Components{
		Storage:     store,
		Cache:       vc,
		Index:       idx,
		Producer:    prod,
		Coordinator: coord,
		Engine:      engine,
	}, nil
}

func printUsage() {
	fmt.Println(`shirabe - Local semantic search with a durable vector cache

Usage:
  shirabe server [flags]           Start the HTTP server
  shirabe search [flags] <query>   Search documents
  shirabe sync [flags] [path]      Sync a file or directory into the index
  shirabe delete [flags] <id>      Delete a document
  shirabe status [flags]           Show document/index/cache status
  shirabe version                  Show version
  shirabe help                     Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/shirabe/config.yaml)
  --debug            Enable debug logging (state transitions, watcher events, etc.)

Search Flags:
  --config string    Config file path (for direct storage mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") to use direct storage when server is not running.
  --top-k int        Number of results (0 = server default)
  --output string    Output format: text or json (default: text)

Sync Flags:
  --config string    Config file path

Status Flags:
  --config string    Config file path (for direct storage mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for direct storage.
  --output string    Output format: text or json (default: text)

Examples:
  shirabe server
  shirabe search "machine learning algorithms"
  shirabe search --output json "query"   # structured JSON for other apps
  shirabe sync ./docs
  shirabe delete doc-123
  shirabe status
  shirabe status --output json`)
}
