// vapixprobe - VAPIX device API test tool
// Generates, stores, and dispatches JSON request presets against
// intercom devices, with digest auth and batch sequencing.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/vapixprobe/vapixprobe/internal/analyzer"
	"github.com/vapixprobe/vapixprobe/internal/config"
	"github.com/vapixprobe/vapixprobe/internal/generator"
	"github.com/vapixprobe/vapixprobe/internal/preset"
	"github.com/vapixprobe/vapixprobe/internal/report"
	"github.com/vapixprobe/vapixprobe/internal/requester"
	"github.com/vapixprobe/vapixprobe/internal/runlog"
	"github.com/vapixprobe/vapixprobe/internal/runner"
	"github.com/vapixprobe/vapixprobe/internal/settings"
	"github.com/vapixprobe/vapixprobe/internal/ui"
	"github.com/vapixprobe/vapixprobe/internal/web"
	"github.com/vapixprobe/vapixprobe/pkg/types"
)

var (
	version = "1.0.0"

	// Global flags
	configFile string
	verbose    bool
	quiet      bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "vapixprobe",
		Short: "vapixprobe - VAPIX device API test tool",
		Long: `vapixprobe exercises the JSON HTTP APIs of intercom devices.

It generates request presets (including adversarial mutations of known-good
payloads), sends them with digest authentication, and sequences batch runs
with per-request logging and response drift analysis.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "vapixprobe.yaml", "Path to config file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Errors only")

	rootCmd.AddCommand(
		newGenerateCmd(),
		newSendCmd(),
		newRunCmd(),
		newServeCmd(),
		newVersionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogging() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	if quiet {
		level = slog.LevelError
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// validateTarget checks the device address and credentials before any
// request is built.
func validateTarget(ip, username string) error {
	if ip == "" {
		return fmt.Errorf("device IP is required (flag --ip or config device.ip)")
	}
	if _, err := netip.ParseAddr(ip); err != nil {
		return fmt.Errorf("invalid device IP %q: %w", ip, err)
	}
	if username == "" {
		return fmt.Errorf("username is required (flag --user or config device.username)")
	}
	return nil
}

// resolvePassword takes the flag value or falls back to the
// environment so the password stays out of shell history.
func resolvePassword(flagValue string) []byte {
	if flagValue != "" {
		return []byte(flagValue)
	}
	if env := os.Getenv("VAPIXPROBE_PASSWORD"); env != "" {
		return []byte(env)
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("vapixprobe version %s\n", version)
		},
	}
}

func newGenerateCmd() *cobra.Command {
	var (
		outputDir   string
		catalogFile string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Regenerate the payload tree and preset catalog",
		Long: `Wipes and rebuilds the payload directory: one preset per endpoint and
wire encoding, plus adversarial mutations of every reference payload.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if outputDir == "" {
				outputDir = cfg.Paths.PayloadRoot
			}
			if catalogFile == "" {
				catalogFile = filepath.Join(outputDir, "presets.json")
			}

			gen := generator.New(&generator.Options{
				PayloadRoot: outputDir,
				CatalogFile: catalogFile,
			})
			summary, err := gen.Run()
			if err != nil {
				return fmt.Errorf("generate presets: %w", err)
			}

			fmt.Printf("Generated %d presets (%d normal, %d no_data, %d invalid, %d wrong_type, %d fuzz)\n",
				summary.Total(), summary.Normal, summary.NoData, summary.Invalid, summary.WrongType, summary.Fuzz)
			fmt.Printf("Payloads: %s\nCatalog:  %s\n", outputDir, catalogFile)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Payload output directory (default: config paths.payload_root)")
	cmd.Flags().StringVar(&catalogFile, "catalog", "", "Preset catalog file (default: <output>/presets.json)")
	return cmd
}

func newSendCmd() *cobra.Command {
	var (
		ip           string
		username     string
		password     string
		presetName   string
		endpoint     string
		jsonFile     string
		simpleFormat bool
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a single request",
		Long: `Sends one request, either from a stored preset (--preset) or composed
ad hoc from --endpoint and --json-file. The outcome is printed and
appended to a per-preset log file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			// Flag beats config beats the last-used session values.
			session := settings.NewStore(&settings.StoreOptions{Path: cfg.Paths.Settings}).Load()
			ip = firstNonEmpty(ip, cfg.Device.IP, session.IP)
			username = firstNonEmpty(username, cfg.Device.Username, session.Username)
			if err := validateTarget(ip, username); err != nil {
				return err
			}

			job := requester.Job{
				IP:           ip,
				Endpoint:     endpoint,
				JSONFile:     jsonFile,
				SimpleFormat: simpleFormat,
				Credentials: requester.Credentials{
					Username: username,
					Password: resolvePassword(password),
				},
			}

			logName := "adhoc"
			if presetName != "" {
				store := preset.NewStore(&preset.StoreOptions{
					Path: filepath.Join(cfg.Paths.PayloadRoot, "presets.json"),
				})
				p, ok := store.FindByName(presetName)
				if !ok {
					return fmt.Errorf("preset %q not found", presetName)
				}
				job.Endpoint = p.Endpoint
				job.JSONFile = p.JSONFile
				job.SimpleFormat = p.SimpleFormat
				job.PresetName = p.Name
				logName = p.Name
			}
			if job.Endpoint == "" {
				return fmt.Errorf("either --preset or --endpoint is required")
			}

			job.Log = runlog.New(&runlog.Options{
				Dir:  cfg.Paths.LogDir,
				Name: logName,
			})

			dispatcher, err := newDispatcher(cfg)
			if err != nil {
				return err
			}
			defer dispatcher.Shutdown()

			done := make(chan types.Outcome, 1)
			if err := dispatcher.Dispatch(job, func(o types.Outcome) { done <- o }); err != nil {
				return fmt.Errorf("dispatch: %w", err)
			}
			outcome := <-done

			fmt.Printf("[%s]\n%s\n", outcome.Tag, outcome.Text)
			fmt.Printf("\nLog: %s\n", job.Log.Path())

			saveSession(cfg, settings.Settings{
				IP:           ip,
				Username:     username,
				Endpoint:     job.Endpoint,
				JSONFile:     job.JSONFile,
				SimpleFormat: job.SimpleFormat,
			})

			if outcome.Tag == types.TagErr {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&ip, "ip", "", "Device IP address")
	cmd.Flags().StringVarP(&username, "user", "u", "", "Device username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Device password (or VAPIXPROBE_PASSWORD)")
	cmd.Flags().StringVar(&presetName, "preset", "", "Stored preset to send")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "Endpoint path for an ad-hoc request")
	cmd.Flags().StringVar(&jsonFile, "json-file", "", "Payload file relative to the payload root")
	cmd.Flags().BoolVar(&simpleFormat, "simple-format", false, "Append format=simple to the request URL")
	return cmd
}

func newRunCmd() *cobra.Command {
	var (
		ip           string
		username     string
		password     string
		planFile     string
		presetNames  []string
		mode         string
		interval     string
		reportFormat string
		noTUI        bool
		serveAddr    string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a batch of presets in order",
		Long: `Runs presets strictly one at a time against a device, either from a
YAML plan file (--plan) or from --presets / --mode selection over the
stored catalog. Writes a combined request log and a report.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			batchName := runlog.BatchName
			pause := cfg.Runner.Interval

			store := preset.NewStore(&preset.StoreOptions{
				Path: filepath.Join(cfg.Paths.PayloadRoot, "presets.json"),
			})

			names := presetNames
			if planFile != "" {
				plan, err := runner.LoadPlan(planFile)
				if err != nil {
					return err
				}
				batchName = plan.Name
				names = plan.Presets
				if ip == "" {
					ip = plan.Device.IP
				}
				if username == "" {
					username = plan.Device.Username
				}
				if plan.TestMode != "" && mode == "" {
					mode = plan.TestMode
				}
				if d, err := plan.PauseInterval(); err == nil && d > 0 {
					pause = d
				}
			}
			if interval != "" {
				d, err := parseInterval(interval)
				if err != nil {
					return err
				}
				pause = d
			}
			if len(names) == 0 {
				if mode == "" {
					mode = string(types.ModeAll)
				}
				for _, p := range store.Filter(types.TestMode(mode), "") {
					names = append(names, p.Name)
				}
			} else {
				names = runner.FilterNames(store, names, types.TestMode(mode))
			}
			if len(names) == 0 {
				return fmt.Errorf("no presets selected; run generate first or pass --presets")
			}

			session := settings.NewStore(&settings.StoreOptions{Path: cfg.Paths.Settings}).Load()
			ip = firstNonEmpty(ip, cfg.Device.IP, session.IP)
			username = firstNonEmpty(username, cfg.Device.Username, session.Username)
			if err := validateTarget(ip, username); err != nil {
				return err
			}

			dispatcher, err := newDispatcher(cfg)
			if err != nil {
				return err
			}
			defer dispatcher.Shutdown()

			logWriter := runlog.New(&runlog.Options{
				Dir:   cfg.Paths.LogDir,
				Name:  batchName,
				Batch: len(names) > 1,
			})

			var drift *analyzer.Analyzer
			if cfg.Runner.EnableDrift {
				drift = analyzer.New()
			}

			var liveServer *web.Server
			if serveAddr != "" {
				liveServer = web.NewServer(store)
				go func() {
					if err := liveServer.Start(serveAddr); err != nil {
						slog.Error("results server stopped", slog.String("error", err.Error()))
					}
				}()
				defer liveServer.Stop()
				liveServer.StartBatch(batchName, ip, len(names))
				slog.Info("live results at", slog.String("addr", serveAddr))
			}

			batchReport := report.New(batchName, ip)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigChan
				slog.Warn("interrupt received, draining in-flight request")
				cancel()
			}()

			var program *tea.Program
			uiDone := make(chan struct{})
			if !noTUI && !quiet {
				monitor := ui.NewMonitor(batchName, ip, len(names), cancel)
				program = ui.NewProgram(monitor)
				go func() {
					program.Run()
					close(uiDone)
				}()
			} else {
				close(uiDone)
			}

			seq, err := runner.New(&runner.Options{
				Dispatcher: dispatcher,
				Presets:    store,
				Interval:   pause,
				Analyzer:   drift,
				Log:        logWriter,
				OnProgress: func(p runner.Progress) {
					batchReport.AddProgress(p)
					if liveServer != nil {
						liveServer.RecordProgress(p)
					}
					if program != nil {
						program.Send(ui.ProgressMsg(p))
					} else if p.Outcome != nil {
						fmt.Printf("[%d/%d] %-4s %s (%d)\n", p.Completed, p.Total, p.Outcome.Tag, p.PresetName, p.Outcome.StatusCode)
					} else if p.Skipped {
						fmt.Printf("[%d/%d] skip %s (%s)\n", p.Completed, p.Total, p.PresetName, p.Note)
					}
				},
			})
			if err != nil {
				return err
			}

			result, err := seq.Run(ctx, names, runner.Target{
				IP:       ip,
				Username: username,
				Password: resolvePassword(password),
			})
			if liveServer != nil {
				liveServer.FinishBatch(result)
			}
			if program != nil {
				program.Send(ui.DoneMsg{Result: result})
			}
			<-uiDone
			if err != nil {
				return fmt.Errorf("batch run: %w", err)
			}

			batchReport.SetResult(result)
			format := reportFormat
			if format == "" {
				format = cfg.Output.ReportFormat
			}
			reportPath, err := report.NewManager(cfg.Paths.ReportDir).Generate(batchReport, format)
			if err != nil {
				return err
			}

			fmt.Printf("\nBatch %s: %d/%d completed, %d ok / %d warn / %d err, %d skipped\n",
				batchName, result.Completed, result.Total,
				result.Counts[types.TagOK], result.Counts[types.TagWarn], result.Counts[types.TagErr],
				len(result.Skipped))
			fmt.Printf("Log:    %s\nReport: %s\n", logWriter.Path(), reportPath)

			saveSession(cfg, settings.Settings{IP: ip, Username: username, TestMode: types.TestMode(mode)})

			if result.Cancelled {
				os.Exit(130)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&ip, "ip", "", "Device IP address")
	cmd.Flags().StringVarP(&username, "user", "u", "", "Device username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Device password (or VAPIXPROBE_PASSWORD)")
	cmd.Flags().StringVar(&planFile, "plan", "", "YAML plan file")
	cmd.Flags().StringSliceVar(&presetNames, "presets", nil, "Preset names to run, in order")
	cmd.Flags().StringVar(&mode, "mode", "", "Narrow the selection: all, happy, or unhappy")
	cmd.Flags().StringVar(&interval, "interval", "", "Pause between requests (e.g. 500ms)")
	cmd.Flags().StringVar(&reportFormat, "report", "", "Report format: json or markdown")
	cmd.Flags().BoolVar(&noTUI, "no-tui", false, "Plain line output instead of the full-screen monitor")
	cmd.Flags().StringVar(&serveAddr, "serve", "", "Also serve live results over HTTP at this address (e.g. :8090)")
	return cmd
}

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve live batch results over HTTP",
		Long: `Starts the results server: preset catalog, batch status, and a live
websocket feed with an embedded results page.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			store := preset.NewStore(&preset.StoreOptions{
				Path: filepath.Join(cfg.Paths.PayloadRoot, "presets.json"),
			})

			server := web.NewServer(store)

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigChan
				server.Stop()
			}()

			slog.Info("results server listening", slog.String("addr", addr))
			return server.Start(addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8090", "Listen address")
	return cmd
}

func newDispatcher(cfg *config.Config) (*requester.Dispatcher, error) {
	client := requester.NewClient(&requester.ClientOptions{
		Timeout:         cfg.Device.Timeout,
		SkipTLSVerify:   cfg.Device.InsecureSkipVerify,
		MaxConnsPerHost: cfg.Runner.Workers,
	})

	pool, err := requester.NewWorkerPool(&requester.WorkerPoolOptions{Size: cfg.Runner.Workers})
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	return requester.NewDispatcher(&requester.DispatcherOptions{
		Transport:   client,
		Pool:        pool,
		PayloadRoot: cfg.Paths.PayloadRoot,
		Scheme:      cfg.Device.Scheme,
	})
}

func saveSession(cfg *config.Config, s settings.Settings) {
	store := settings.NewStore(&settings.StoreOptions{Path: cfg.Paths.Settings})
	prev := store.Load()
	if s.IP == "" {
		s.IP = prev.IP
	}
	if s.Username == "" {
		s.Username = prev.Username
	}
	if s.Geometry == nil {
		s.Geometry = prev.Geometry
	}
	store.Save(s)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseInterval(s string) (d time.Duration, err error) {
	d, err = time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid interval %q", s)
	}
	return d, nil
}
