// Package cli implements the volt command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	volt "github.com/voltagegpu/volt-go"
	"github.com/voltagegpu/volt-go/events"
	"github.com/voltagegpu/volt-go/internal/output"
)

// App holds the process-wide state shared by every command: IO streams,
// global flags and the lazily built client.
type App struct {
	In     io.Reader
	Out    io.Writer
	Err    io.Writer
	Getenv func(string) string

	jsonOut    bool
	apiKey     string
	baseURL    string
	configPath string
	timeout    time.Duration
	verbose    bool
	natsURL    string
	trace      bool

	logger    *zap.Logger
	printer   *output.Printer
	client    *volt.Client
	publisher *events.NATSPublisher
	tracer    *sdktrace.TracerProvider
}

// NewApp returns an App bound to the process streams and environment.
func NewApp() *App {
	return &App{
		In:     os.Stdin,
		Out:    os.Stdout,
		Err:    os.Stderr,
		Getenv: os.Getenv,
	}
}

// Execute runs the CLI and returns the process exit code.
func Execute(ctx context.Context, app *App, args []string) int {
	root := NewRootCommand(app)
	root.SetArgs(args)
	root.SetIn(app.In)
	root.SetOut(app.Out)
	root.SetErr(app.Err)

	err := root.ExecuteContext(ctx)
	app.close()
	if err != nil {
		app.printerOrDefault().Error(err)
		return 1
	}
	return 0
}

// NewRootCommand builds the command tree.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "volt",
		Short:         "Manage VoltageGPU pods, templates, SSH keys and machines",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.setup()
		},
	}

	f := root.PersistentFlags()
	f.BoolVar(&app.jsonOut, "json", false, "output JSON instead of tables")
	f.StringVar(&app.apiKey, "api-key", "", "API key (overrides VOLT_API_KEY and the config file)")
	f.StringVar(&app.baseURL, "base-url", "", "API base URL")
	f.StringVar(&app.configPath, "config", "", "config file path (default ~/.volt/config.yaml)")
	f.DurationVar(&app.timeout, "timeout", 30*time.Second, "per-request timeout")
	f.BoolVarP(&app.verbose, "verbose", "v", false, "verbose logging to stderr")
	f.StringVar(&app.natsURL, "nats-url", "", "publish pod lifecycle events to this NATS server")
	f.BoolVar(&app.trace, "trace", false, "print request spans to stderr")

	root.AddCommand(
		newPodsCommand(app),
		newTemplatesCommand(app),
		newSSHKeysCommand(app),
		newMachinesCommand(app),
		newAccountCommand(app),
		newConfigCommand(app),
		newVersionCommand(app),
	)
	return root
}

func (a *App) setup() error {
	level := zapcore.WarnLevel
	opts := []zap.Option{zap.ErrorOutput(zapcore.AddSync(a.Err))}
	if a.verbose {
		level = zapcore.DebugLevel
		opts = append(opts, zap.AddCaller())
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(a.Err),
		level,
	)
	a.logger = zap.New(core, opts...)
	a.printer = output.New(a.Out, a.jsonOut, output.WithErrorWriter(a.Err))
	return nil
}

func (a *App) configFile() string {
	if a.configPath != "" {
		return a.configPath
	}
	return volt.DefaultConfigPath()
}

// Client builds the API client on first use.
func (a *App) Client() (*volt.Client, error) {
	if a.client != nil {
		return a.client, nil
	}

	env := volt.DefaultEnvSource()
	env.Getenv = a.Getenv
	opts := []volt.Option{
		volt.WithCredentialSources(env, volt.FileSource{Path: a.configFile()}),
		volt.WithTimeout(a.timeout),
		volt.WithLogger(a.logger),
		volt.WithUserAgent("volt-cli/" + volt.Version),
	}
	if a.apiKey != "" {
		opts = append(opts, volt.WithAPIKey(a.apiKey))
	}
	if a.baseURL != "" {
		opts = append(opts, volt.WithBaseURL(a.baseURL))
	}

	if a.trace {
		exp, err := stdouttrace.New(stdouttrace.WithWriter(a.Err), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("init trace exporter: %w", err)
		}
		a.tracer = sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
		opts = append(opts, volt.WithTracerProvider(a.tracer))
	}

	if a.natsURL != "" {
		pub, err := events.NewNATSPublisher(a.natsURL, events.DefaultSubjectPrefix,
			events.WithName("volt-cli"),
			events.WithLogger(a.logger))
		if err != nil {
			return nil, err
		}
		a.publisher = pub
		opts = append(opts, volt.WithEventPublisher(pub))
	}

	c, err := volt.NewClient(opts...)
	if err != nil {
		return nil, err
	}
	a.client = c
	return c, nil
}

func (a *App) printerOrDefault() *output.Printer {
	if a.printer != nil {
		return a.printer
	}
	return output.New(a.Out, a.jsonOut, output.WithErrorWriter(a.Err))
}

func (a *App) close() {
	if a.client != nil {
		_ = a.client.Close()
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("failed to close nats publisher", zap.Error(err))
		}
	}
	if a.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.tracer.Shutdown(ctx)
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// usageError reports bad command-line input the same way the SDK reports
// invalid requests.
func usageError(field, format string, args ...any) error {
	return &volt.Error{Code: volt.CodeValidation, Message: fmt.Sprintf(format, args...), Field: field}
}
