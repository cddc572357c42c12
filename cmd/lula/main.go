// Package main is the lula CLI entry point.
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
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/lula/internal/cli"
	"github.com/hyperjump/lula/internal/config"
	"github.com/hyperjump/lula/internal/convert"
	"github.com/hyperjump/lula/internal/discovery"
	"github.com/hyperjump/lula/internal/extract"
	"github.com/hyperjump/lula/internal/fileid"
	"github.com/hyperjump/lula/internal/keyword"
	"github.com/hyperjump/lula/internal/models"
	"github.com/hyperjump/lula/internal/recovery"
	"github.com/hyperjump/lula/internal/server"
	"github.com/hyperjump/lula/internal/storage"
	"github.com/hyperjump/lula/internal/watcher"
	"github.com/hyperjump/lula/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "recover":
		runRecover()
	case "scan":
		runScan()
	case "convert":
		runConvert()
	case "watch":
		runWatch()
	case "serve", "server":
		runServe()
	case "search":
		runSearch()
	case "list":
		runList()
	case "show":
		runShow()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("lula version %s\n", version)
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

// setup loads the config and builds the logger shared by most commands.
func setup(configPath string, debug bool) (*config.Config, string, *zap.Logger) {
	cfg, resolved, err := config.LoadOrDefault(configPath)
	if err != nil {
		fail("Failed to load config: %v", err)
	}
	logger, err := utils.NewLogger(cfg.Debug || debug)
	if err != nil {
		fail("Failed to create logger: %v", err)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved))
	return cfg, resolved, logger
}

func parseFormat(s string) cli.OutputFormat {
	format, err := cli.ParseFormat(s)
	if err != nil {
		fail("%v", err)
	}
	return format
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// Components holds initialized services.
type Components struct {
	Storage storage.Storage
	Index   keyword.Index
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Index != nil {
		_ = c.Index.Close()
	}
}

func initializeComponents(cfg *config.Config) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	idx, err := keyword.NewBleveIndex(cfg.Storage.IndexPath)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}
	return &Components{Storage: store, Index: idx}, nil
}

func newRecoverer(cfg *config.Config, c *Components, logger *zap.Logger) *recovery.Recoverer {
	return recovery.New(cfg.Recovery.OutputDir,
		recovery.WithLogger(logger),
		recovery.WithStorage(c.Storage),
		recovery.WithIndex(c.Index),
		recovery.WithWorkers(cfg.Recovery.Workers),
		recovery.WithCopyRTF(cfg.Recovery.CopyRTFOrDefault()),
		recovery.WithAttachments(cfg.Recovery.IndexAttachments),
	)
}

// liveStickiesDir is the Stickies container of the current user.
func liveStickiesDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home directory: %w", err)
	}
	return discovery.StickiesDir(home), nil
}

// noteFromBundle describes a bundle seen outside a scan, e.g. by the watcher.
func noteFromBundle(bundle string) discovery.Note {
	return discovery.Note{
		Name:       extract.BundleName(bundle),
		BundlePath: bundle,
		RTFPath:    extract.BundleText(bundle),
	}
}

func runRecover() {
	fs := flag.NewFlagSet("recover", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	volumes := fs.String("volumes", "", "volumes root to scan for backups (default from config)")
	outputDir := fs.String("output-dir", "", "directory for recovered notes (default from config)")
	live := fs.Bool("live", false, "recover the current user's Stickies instead of scanning backups")
	workers := fs.Int("workers", 0, "notes converted at once (default from config)")
	noCopy := fs.Bool("no-copy-rtf", false, "do not copy TXT.rtf next to the recovered text")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := parseFormat(*outputFormat)

	cfg, _, logger := setup(*configPath, *debug)
	defer logger.Sync()
	if *volumes != "" {
		cfg.Recovery.VolumesRoot = *volumes
	}
	if *outputDir != "" {
		abs, err := filepath.Abs(*outputDir)
		if err != nil {
			fail("Invalid output directory: %v", err)
		}
		cfg.Recovery.OutputDir = abs
	}
	if *workers > 0 {
		cfg.Recovery.Workers = *workers
	}
	if *noCopy {
		copyRTF := false
		cfg.Recovery.CopyRTF = &copyRTF
	}

	ctx, stop := signalContext()
	defer stop()

	scanner := discovery.NewScanner(cfg.Recovery.VolumesRoot, discovery.WithLogger(logger))
	var notes []discovery.Note
	if *live {
		dir, err := liveStickiesDir()
		if err != nil {
			fail("Failed to locate Stickies: %v", err)
		}
		notes = scanner.Notes([]string{dir})
	} else {
		res, err := scanner.Scan(ctx)
		if err != nil {
			fail("Failed to scan %s: %v", cfg.Recovery.VolumesRoot, err)
		}
		notes = res.Notes
	}
	if len(notes) == 0 {
		fmt.Fprintln(os.Stderr, "No Stickies notes found")
		return
	}
	logger.Info("recovering notes", zap.Int("notes", len(notes)), zap.String("output_dir", cfg.Recovery.OutputDir))

	components, err := initializeComponents(cfg)
	if err != nil {
		fail("Failed to initialize: %v", err)
	}
	defer components.Close()

	run, err := newRecoverer(cfg, components, logger).Run(ctx, notes)
	if run != nil {
		if werr := cli.WriteRun(os.Stdout, run, format); werr != nil {
			fail("Output failed: %v", werr)
		}
	}
	if err != nil {
		components.Close()
		fail("Recovery failed: %v", err)
	}
}

func runScan() {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	volumes := fs.String("volumes", "", "volumes root to scan for backups (default from config)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := parseFormat(*outputFormat)

	cfg, _, logger := setup(*configPath, *debug)
	defer logger.Sync()
	root := cfg.Recovery.VolumesRoot
	if *volumes != "" {
		root = *volumes
	}
	ctx, stop := signalContext()
	defer stop()

	res, err := discovery.NewScanner(root, discovery.WithLogger(logger)).Scan(ctx)
	if err != nil {
		fail("Failed to scan %s: %v", root, err)
	}
	if err := cli.WriteScan(os.Stdout, res, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func runConvert() {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	debug := fs.Bool("debug", false, "log conversion anomalies")
	quiet := fs.Bool("quiet", false, "do not print a summary")
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() != 2 {
		fmt.Println("Usage: lula convert [flags] <input.rtf|note.rtfd> <output.txt>")
		os.Exit(1)
	}

	logger, err := utils.NewLogger(*debug)
	if err != nil {
		fail("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	report, err := convert.New(convert.WithLogger(logger)).ConvertFile(fs.Arg(0), fs.Arg(1))
	if err != nil {
		fail("Failed to convert: %v", err)
	}
	if !*quiet {
		fmt.Printf("Converted %s -> %s (%d characters, %s)\n",
			report.InputPath, report.OutputPath, report.Runes, report.Duration.Round(time.Microsecond))
		if report.Stats.Malformed() {
			fmt.Println("warning: input was malformed; recovered what was readable")
		}
	}
}

func runWatch() {
	args := os.Args[2:]
	if len(args) > 0 {
		switch args[0] {
		case "add", "remove", "list":
			runWatchClient(args[0], args[1:])
			return
		}
	}

	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(args)

	cfg, _, logger := setup(*configPath, *debug)
	defer logger.Sync()
	dirs := watchDirectories(cfg, fs.Args(), logger)
	if len(dirs) == 0 {
		fail("Nothing to watch: no Stickies directory found")
	}

	components, err := initializeComponents(cfg)
	if err != nil {
		fail("Failed to initialize: %v", err)
	}
	defer components.Close()

	ctx, stop := signalContext()
	defer stop()
	w := newWatcher(ctx, cfg, dirs, newRecoverer(cfg, components, logger), logger)
	if err := w.Start(ctx); err != nil {
		fail("Failed to start watcher: %v", err)
	}
	w.SyncExisting()
	logger.Info("watching Stickies", zap.Strings("directories", w.Directories()))

	<-ctx.Done()
	logger.Info("Shutting down...")
	w.Stop()
}

// watchDirectories picks what to watch: explicit args, then the config,
// then the current user's Stickies container if it exists.
func watchDirectories(cfg *config.Config, args []string, logger *zap.Logger) []string {
	if len(args) > 0 {
		dirs := make([]string, 0, len(args))
		for _, a := range args {
			abs, err := filepath.Abs(a)
			if err != nil {
				fail("Invalid directory %s: %v", a, err)
			}
			dirs = append(dirs, abs)
		}
		return dirs
	}
	if len(cfg.Watch.Directories) > 0 {
		return cfg.Watch.Directories
	}
	dir, err := liveStickiesDir()
	if err != nil {
		logger.Warn("no live Stickies directory", zap.Error(err))
		return nil
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil
	}
	return []string{dir}
}

func newWatcher(ctx context.Context, cfg *config.Config, dirs []string, rec *recovery.Recoverer, logger *zap.Logger) *watcher.Watcher {
	return watcher.NewWatcher(
		dirs,
		func(bundle string) {
			note, err := rec.RecoverFile(ctx, noteFromBundle(bundle))
			if err != nil {
				logger.Warn("watch recover failed", zap.String("bundle", bundle), zap.Error(err))
				return
			}
			logger.Info("note recovered", zap.String("name", note.Name), zap.String("text_path", note.TextPath))
		},
		func(bundle string) {
			if err := rec.Forget(ctx, bundle); err != nil {
				logger.Warn("watch forget failed", zap.String("bundle", bundle), zap.Error(err))
			}
		},
		watcher.WithLogger(logger),
		watcher.WithDebounce(time.Duration(cfg.Watch.DebounceMS)*time.Millisecond),
	)
}

func runServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	noWatch := fs.Bool("no-watch", false, "do not watch Stickies directories")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, logger := setup(*configPath, *debug)
	defer logger.Sync()

	components, err := initializeComponents(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx, stop := signalContext()
	defer stop()

	var watchSvc server.WatchService
	if !*noWatch {
		if dirs := watchDirectories(cfg, nil, logger); len(dirs) > 0 {
			w := newWatcher(ctx, cfg, dirs, newRecoverer(cfg, components, logger), logger)
			if err := w.Start(ctx); err != nil {
				logger.Fatal("Failed to start watcher", zap.Error(err))
			}
			defer w.Stop()
			w.SyncExisting()
			watchSvc = w
		}
	}

	srv := server.NewServer(components.Storage, components.Index, cfg, logger, watchSvc, resolvedConfigPath)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", zap.Error(err))
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(shutdownCtx)
}

func runSearch() {
	searchArgs := searchArgsReorder(os.Args[2:])
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultPath, "config file path (direct mode)")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = open the index directly)")
	limit := fs.Int("limit", models.DefaultSearchLimit, "number of results")
	fuzzy := fs.Bool("fuzzy", false, "enable fuzzy matching for typo tolerance")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgs)
	format := parseFormat(*outputFormat)

	query := &models.SearchQuery{Query: buildSearchQuery(fs.Args()), Limit: *limit, Fuzzy: *fuzzy}
	if err := query.Validate(); err != nil {
		printSearchUsage(fs)
		os.Exit(1)
	}

	var search func(q *models.SearchQuery) (*models.SearchResponse, error)
	if *serverURL != "" {
		// The server holds the index lock; ask it instead of opening the index.
		search = func(q *models.SearchQuery) (*models.SearchResponse, error) {
			return searchViaHTTP(*serverURL, q)
		}
	} else {
		cfg, _, logger := setup(*configPath, false)
		defer logger.Sync()
		components, err := initializeComponents(cfg)
		if err != nil {
			fail("Failed to initialize: %v", err)
		}
		defer components.Close()
		search = func(q *models.SearchQuery) (*models.SearchResponse, error) {
			return searchDirect(context.Background(), components, q)
		}
	}

	response, err := search(query)
	if err != nil {
		fail("Search failed: %v", err)
	}
	// Retry with typo tolerance when an exact search finds nothing.
	if !query.Fuzzy && response.Total == 0 {
		query.Fuzzy = true
		if fuzzyResponse, fuzzyErr := search(query); fuzzyErr == nil && fuzzyResponse.Total > 0 {
			response = fuzzyResponse
		}
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fail("Output failed: %v", err)
	}
}

// searchDirect runs a search against an index opened by this process.
func searchDirect(ctx context.Context, c *Components, q *models.SearchQuery) (*models.SearchResponse, error) {
	start := time.Now()
	hits, err := c.Index.Search(ctx, q.Query, q.Limit, q.Fuzzy)
	if err != nil {
		return nil, err
	}
	resp := &models.SearchResponse{Query: q.Query, Fuzzy: q.Fuzzy}
	for _, hit := range hits {
		note, err := c.Storage.GetNote(ctx, hit.ID)
		if err != nil {
			continue
		}
		note.Text = ""
		resp.Results = append(resp.Results, &models.SearchResult{
			Note:       note,
			Score:      hit.Score,
			Highlights: hit.Highlights,
			Rank:       len(resp.Results) + 1,
		})
	}
	resp.Total = len(resp.Results)
	resp.QueryTime = time.Since(start).Milliseconds()
	return resp, nil
}

func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: lula search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  lula search grocery list
  lula search --fuzzy recipie
  lula search --server "" --output json passwords
`)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves flags that follow the query to the front so that
// flag.Parse sees them; the flag package stops at the first non-flag argument.
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

func runList() {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultPath, "config file path")
	status := fs.String("status", "", "only notes with this status: recovered or failed")
	offset := fs.Int("offset", 0, "skip this many notes")
	limit := fs.Int("limit", 50, "number of notes")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := parseFormat(*outputFormat)

	cfg, _, logger := setup(*configPath, false)
	defer logger.Sync()
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		fail("Failed to open manifest: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	noteStatus := models.NoteStatus(*status)
	notes, err := store.ListNotes(ctx, noteStatus, *offset, *limit)
	if err != nil {
		fail("List failed: %v", err)
	}
	total, err := store.CountNotes(ctx, noteStatus)
	if err != nil {
		fail("Count failed: %v", err)
	}
	if err := cli.WriteNotes(os.Stdout, notes, total, format); err != nil {
		fail("Output failed: %v", err)
	}
}

// noteIDFromArg accepts a note ID or the path of the note's bundle.
func noteIDFromArg(arg string) string {
	if fileid.Valid(arg) {
		return arg
	}
	if abs, err := filepath.Abs(arg); err == nil {
		return fileid.NoteID(abs)
	}
	return arg
}

func runShow() {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() != 1 {
		fmt.Println("Usage: lula show [flags] <note-id|bundle.rtfd>")
		os.Exit(1)
	}
	format := parseFormat(*outputFormat)

	cfg, _, logger := setup(*configPath, false)
	defer logger.Sync()
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		fail("Failed to open manifest: %v", err)
	}
	defer store.Close()

	note, err := store.GetNote(context.Background(), noteIDFromArg(fs.Arg(0)))
	if errors.Is(err, storage.ErrNotFound) {
		store.Close()
		fail("Note not found: %s", fs.Arg(0))
	}
	if err != nil {
		store.Close()
		fail("Show failed: %v", err)
	}
	if err := cli.WriteNote(os.Stdout, note, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultPath, "config file path (direct mode)")
	serverURL := fs.String("server", "", "server URL (empty = read the manifest directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := parseFormat(*outputFormat)

	var status *models.Status
	if *serverURL != "" {
		st, err := statusViaHTTP(*serverURL)
		if err != nil {
			fail("Status failed: %v", err)
		}
		status = st
	} else {
		cfg, _, logger := setup(*configPath, false)
		defer logger.Sync()
		components, err := initializeComponents(cfg)
		if err != nil {
			fail("Failed to initialize: %v", err)
		}
		defer components.Close()
		st, err := server.BuildStatus(context.Background(), components.Storage, components.Index)
		if err != nil {
			components.Close()
			fail("Status failed: %v", err)
		}
		diskBytes, err := storage.DiskUsageBytes(cfg.Storage.DatabasePath, cfg.Storage.IndexPath, cfg.Recovery.OutputDir)
		if err == nil {
			st.DiskUsageBytes = &diskBytes
		}
		status = st
	}
	if err := cli.WriteStatus(os.Stdout, status, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func printUsage() {
	fmt.Println(`lula - recover Stickies notes as plain text

Usage:
  lula recover [flags]                 Find notes in Time Machine backups and recover them
  lula scan [flags]                    Show backups, user folders and notes without recovering
  lula convert <input> <output>        Convert one RTF file or .rtfd bundle to plain text
  lula watch [flags] [dir...]          Recover notes as they change
  lula watch <add|remove|list> [path]  Manage directories watched by a running server
  lula serve [flags]                   Start the HTTP API (and watcher)
  lula search [flags] <query>          Search recovered notes
  lula list [flags]                    List recovered notes
  lula show [flags] <id|bundle>        Show one recovered note
  lula status [flags]                  Show manifest and index totals
  lula version                         Show version
  lula help                            Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/lula/config.yaml)
  --debug            Enable debug logging
  --output string    Output format: text or json (default: text)

Recover Flags:
  --volumes string     Volumes root to scan (default: /Volumes)
  --output-dir string  Directory for recovered notes (default: ~/Desktop/lula-notes)
  --live               Recover the current user's Stickies instead of backups
  --workers int        Notes converted at once
  --no-copy-rtf        Do not keep a copy of each note's RTF

Search Flags:
  --server string    Server URL (default: http://localhost:8080). Use --server "" to open the index directly.
  --limit int        Number of results (default: 10)
  --fuzzy            Enable fuzzy matching for typo tolerance

Examples:
  lula recover
  lula recover --live --output-dir ~/notes
  lula convert TXT.rtf note.txt
  lula search "grocery list"
  lula status --output json
  lula watch add ~/Library/Containers/com.apple.stickies/Data/Library/Stickies`)
}
