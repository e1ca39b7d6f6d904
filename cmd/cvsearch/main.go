// Package main is the cvsearch CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/cvsearch/internal/cli"
	"github.com/hyperjump/cvsearch/internal/config"
	"github.com/hyperjump/cvsearch/internal/models"
	"github.com/hyperjump/cvsearch/internal/server"
	"github.com/hyperjump/cvsearch/internal/watcher"
	"github.com/hyperjump/cvsearch/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/cvsearch/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default, a config.yaml in the
// current directory takes precedence so that running from a project checkout uses the
// project's config. Returns the config and the path actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, err := config.Load(fallback)
				if err != nil {
					return nil, "", err
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
	case "ingest":
		runIngest()
	case "delete":
		runDelete()
	case "status":
		runStatus()
	case "watch":
		runWatch()
	case "version", "--version", "-v":
		fmt.Printf("cvsearch version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// direct loads the config and opens every component in-process, for commands run with
// --server "". The caller must Close the result.
func direct(ctx context.Context, configPath string) (*Components, *config.Config, *zap.Logger) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fail("Failed to load config: %v", err)
	}
	logger, err := utils.NewCLILogger(cfg.Debug)
	if err != nil {
		fail("Failed to create logger: %v", err)
	}
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		fail("Failed to initialize: %v", err)
	}
	return components, cfg, logger
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fail("Failed to load config: %v", err)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fail("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("config loaded", zap.String("config_path", resolvedConfigPath), zap.Bool("debug", debugMode))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	roots := existingDirectories(cfg.Watch.Directories, logger)
	watchSvc := watcher.NewWatcher(components.Indexer, roots, cfg.Ingest.Extensions, cfg.Watch.RecursiveOrDefault(),
		watcher.WithLogger(logger),
		watcher.WithExclude(cfg.Ingest.Exclude))
	if err := watchSvc.Start(ctx); err != nil {
		logger.Fatal("failed to start watcher", zap.Error(err))
	}
	defer watchSvc.Stop()
	go syncWatchedDirectories(ctx, components, roots, logger)

	srv := server.NewServer(components.Engine, components.Indexer, components.Catalog, components.Store, cfg, logger,
		server.WithWatch(watchSvc),
		server.WithConfigPath(resolvedConfigPath))
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", zap.Error(err))
		}
	}

	logger.Info("shutting down")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

// existingDirectories drops configured watch roots that are missing so that one stale
// entry does not keep the server from starting.
func existingDirectories(dirs []string, logger *zap.Logger) []string {
	var out []string
	for _, d := range dirs {
		info, err := os.Stat(d)
		if err != nil || !info.IsDir() {
			logger.Warn("skipping watch directory", zap.String("path", d), zap.Error(err))
			continue
		}
		out = append(out, d)
	}
	return out
}

// syncWatchedDirectories catches up on changes made while the server was down.
// Unchanged files are skipped by the indexer.
func syncWatchedDirectories(ctx context.Context, c *Components, roots []string, logger *zap.Logger) {
	for _, root := range roots {
		report, err := c.Indexer.IngestDirectory(ctx, root)
		if err != nil {
			logger.Warn("initial sync failed", zap.String("root", root), zap.Error(err))
			continue
		}
		logger.Info("initial sync done",
			zap.String("root", root),
			zap.Int("ingested", report.Succeeded),
			zap.Int("unchanged", report.Skipped),
			zap.Int("failed", report.Failed))
	}
}

// optionalFloat is a float flag that remembers whether it was set.
type optionalFloat struct {
	value *float64
}

func (f *optionalFloat) String() string {
	if f.value == nil {
		return ""
	}
	return strconv.FormatFloat(*f.value, 'g', -1, 64)
}

func (f *optionalFloat) Set(s string) error {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	f.value = &v
	return nil
}

// optionalInt is an int flag that remembers whether it was set.
type optionalInt struct {
	value *int
}

func (f *optionalInt) String() string {
	if f.value == nil {
		return ""
	}
	return strconv.Itoa(*f.value)
}

func (f *optionalInt) Set(s string) error {
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	f.value = &v
	return nil
}

func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: cvsearch search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Documents are ranked by alpha * mean similarity + (1 - alpha) * coverage of the top k chunks.
  • Raise --k to let more chunks vote; documents matching many of them gain coverage.
  • Lower --alpha to favour breadth of matching over the strength of individual matches.
  • Use --source keyword for lexical matching on exact skills and titles.

Examples:
  cvsearch search senior golang engineer with kubernetes
  cvsearch search --k 30 --alpha 0.7 "data engineer spark airflow"
  cvsearch search --source keyword --output compact terraform
  cvsearch search --server "" python                # without a running server
`)
}

// buildSearchQuery joins positional args so multi-word queries work with or without quotes.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves flags that follow the query to the front, since flag.Parse
// stops at the first positional argument.
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

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, `server URL; "" searches the local index directly`)
	var k optionalInt
	fs.Var(&k, "k", "number of chunks retrieved, at least 1 (default from config)")
	var alpha optionalFloat
	fs.Var(&alpha, "alpha", "weight of mean similarity vs coverage, in [0,1] (default from config)")
	limit := fs.Int("limit", 0, "number of documents shown (default from config)")
	offset := fs.Int("offset", 0, "skip this many ranked documents")
	minScore := fs.Float64("min-score", 0, "hide documents scoring below this (default from config)")
	source := fs.String("source", "", "chunk source: semantic or keyword (default from config)")
	output := fs.String("output", "text", "output format: text, compact or json")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	queryStr := buildSearchQuery(fs.Args())
	if queryStr == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseFormat(*output)
	if err != nil {
		fail("%v", err)
	}
	query := &models.SearchQuery{
		Query:    queryStr,
		K:        k.value,
		Alpha:    alpha.value,
		Limit:    *limit,
		Offset:   *offset,
		MinScore: *minScore,
		Source:   *source,
	}

	ctx := context.Background()
	var response *models.SearchResponse
	if *serverURL != "" {
		response, err = newAPIClient(*serverURL).Search(ctx, query)
	} else {
		components, _, _ := direct(ctx, *configPath)
		defer components.Close()
		response, err = components.Engine.Search(ctx, query)
	}
	if err != nil {
		if isNoIndex(err) {
			fail("No index yet: ingest a résumé folder first (cvsearch ingest <dir>).")
		}
		fail("Search failed: %v", err)
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func isNoIndex(err error) bool {
	if errors.Is(err, models.ErrCollectionNotFound) {
		return true
	}
	var apiErr *apiError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound && apiErr.Message == "no index yet"
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, `server URL; "" ingests into the local index directly`)
	output := fs.String("output", "text", "output format: text, compact or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: cvsearch ingest [flags] <directory-or-file>")
		os.Exit(1)
	}
	format, err := cli.ParseFormat(*output)
	if err != nil {
		fail("%v", err)
	}
	path, err := filepath.Abs(fs.Arg(0))
	if err != nil {
		fail("Invalid path: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	var report *models.IngestReport
	if *serverURL != "" {
		report, err = newAPIClient(*serverURL).Ingest(ctx, path)
	} else {
		components, _, _ := direct(ctx, *configPath)
		defer components.Close()
		report, err = ingestDirect(ctx, components, path)
	}
	if err != nil {
		fail("Ingest failed: %v", err)
	}
	if err := cli.WriteIngestReport(os.Stdout, report, format); err != nil {
		fail("Output failed: %v", err)
	}
	if report.Failed > 0 && report.Succeeded == 0 && report.Skipped == 0 {
		os.Exit(1)
	}
}

func ingestDirect(ctx context.Context, c *Components, path string) (*models.IngestReport, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return c.Indexer.IngestDirectory(ctx, path)
	}
	report := &models.IngestReport{Root: path}
	start := time.Now()
	report.Add(c.Indexer.IngestFile(ctx, path))
	report.Duration = time.Since(start)
	return report, nil
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, `server URL; "" deletes from the local index directly`)
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: cvsearch delete [flags] <document-id>")
		os.Exit(1)
	}
	docID := fs.Arg(0)

	ctx := context.Background()
	var err error
	if *serverURL != "" {
		err = newAPIClient(*serverURL).Delete(ctx, docID)
	} else {
		components, _, _ := direct(ctx, *configPath)
		defer components.Close()
		err = components.Indexer.DeleteDocument(ctx, docID)
	}
	if err != nil {
		fail("Deletion failed: %v", err)
	}
	fmt.Printf("Document deleted: %s\n", docID)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, `server URL; "" reads the local index directly`)
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseFormat(*output)
	if err != nil {
		fail("%v", err)
	}
	ctx := context.Background()
	var status map[string]interface{}
	if *serverURL != "" {
		status, err = newAPIClient(*serverURL).Status(ctx)
	} else {
		components, cfg, _ := direct(ctx, *configPath)
		defer components.Close()
		status, err = server.NewServer(components.Engine, components.Indexer, components.Catalog, components.Store, cfg, nil).Status(ctx)
	}
	if err != nil {
		fail("Status failed: %v", err)
	}
	if err := cli.WriteStatus(os.Stdout, status, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func runWatch() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: cvsearch watch <add|remove|list> [path]")
		fmt.Println("  cvsearch watch add <path>     Watch a résumé folder and ingest what it holds")
		fmt.Println("  cvsearch watch remove <path>  Stop watching a folder")
		fmt.Println("  cvsearch watch list           List watched folders")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	syncExisting := fs.Bool("sync", true, "ingest files already in the folder (add only)")
	_ = fs.Parse(os.Args[3:])

	client := newAPIClient(*serverURL)
	ctx := context.Background()
	switch sub {
	case "add", "remove":
		if fs.NArg() < 1 {
			fail("Usage: cvsearch watch %s <path>", sub)
		}
		path, err := filepath.Abs(fs.Arg(0))
		if err != nil {
			fail("Invalid path: %v", err)
		}
		if sub == "add" {
			if err := client.WatchAdd(ctx, path, *syncExisting); err != nil {
				fail("Add failed: %v", err)
			}
			fmt.Printf("Added: %s\n", path)
			return
		}
		if err := client.WatchRemove(ctx, path); err != nil {
			fail("Remove failed: %v", err)
		}
		fmt.Printf("Removed: %s\n", path)
	case "list":
		dirs, err := client.WatchList(ctx)
		if err != nil {
			fail("List failed: %v", err)
		}
		for _, d := range dirs {
			fmt.Println(d)
		}
	default:
		fail("Unknown watch subcommand: %s", sub)
	}
}

func printUsage() {
	fmt.Println(`cvsearch - rank résumés against a job description

Usage:
  cvsearch server [flags]                 Start the HTTP server (and folder watcher)
  cvsearch search [flags] <query>         Rank documents for a query
  cvsearch ingest [flags] <dir-or-file>   Ingest a résumé folder or a single file
  cvsearch delete [flags] <id>            Delete a document from the index
  cvsearch status [flags]                 Show catalog, index and config status
  cvsearch watch <add|remove|list>        Manage watched folders
  cvsearch version                        Show version
  cvsearch help                           Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/cvsearch/config.yaml, or ./config.yaml)
  --debug            Enable debug logging

Search Flags:
  --server string    Server URL (default: http://localhost:8080). Use --server "" to search the local index.
  --config string    Config file path (used with --server "")
  --k int            Number of chunks retrieved (default 20, at most max_k)
  --alpha float      Weight of mean similarity vs coverage (default 0.9)
  --limit int        Number of documents shown
  --offset int       Skip this many ranked documents
  --min-score float  Hide documents scoring below this
  --source string    semantic or keyword
  --output string    text, compact or json

Ingest, Delete and Status Flags:
  --server string    Server URL (default: http://localhost:8080). Use --server "" for direct access.
  --config string    Config file path (used with --server "")
  --output string    text, compact or json (ingest, status)

Watch Flags:
  --server string    Server URL (default: http://localhost:8080)
  --sync             Ingest files already in the folder (add only, default true)

Examples:
  cvsearch server
  cvsearch ingest ~/recruiting/2024
  cvsearch search "senior golang engineer, kubernetes, postgres"
  cvsearch search --k 30 --alpha 0.7 --output json "data engineer"
  cvsearch status --output json
  cvsearch watch add ~/recruiting/inbox`)
}
