package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gwctl/gwctl/pkg/gwctl/auth"
	"github.com/gwctl/gwctl/pkg/gwctl/client"
	"github.com/gwctl/gwctl/pkg/gwctl/config"
	"github.com/gwctl/gwctl/pkg/gwctl/keyset"
	"github.com/gwctl/gwctl/pkg/gwctl/logging"
	"github.com/gwctl/gwctl/pkg/gwctl/management"
	"github.com/gwctl/gwctl/pkg/gwctl/output"
	"github.com/gwctl/gwctl/pkg/gwctl/registry"
	"github.com/gwctl/gwctl/pkg/gwctl/token"
)

const defaultEnvFile = ".env"

// Config seeds the root command. Zero values fall back to the process
// defaults; tests use the function fields to avoid real sleeps and browsers.
type Config struct {
	Context      context.Context
	ConfigPath   string
	DataDir      string
	OutputWriter io.Writer
	ErrWriter    io.Writer
	Now          func() time.Time
	Sleep        func(ctx context.Context, d time.Duration) error
	OpenBrowser  auth.BrowserOpener
}

type runtimeState struct {
	configPath           string
	dataDir              string
	cfg                  *config.Config
	apiURLOverride       string
	jwksTTLSeconds       int
	tokenStorageOverride string
	envFile              string
	outputFormat         string
	nonInteractive       bool
	verbose              bool
	quiet                bool
	writer               io.Writer
	errWriter            io.Writer
	log                  *zap.SugaredLogger
	now                  func() time.Time
	sleep                func(ctx context.Context, d time.Duration) error
	browser              auth.BrowserOpener
	http                 *resty.Client
}

type runtimeKey struct{}

func DefaultConfig() Config {
	return Config{
		OutputWriter: os.Stdout,
		ErrWriter:    os.Stderr,
	}
}

func NewRootCommand(cfg Config) *cobra.Command {
	rt := &runtimeState{
		configPath: cfg.ConfigPath,
		dataDir:    cfg.DataDir,
		writer:     cfg.OutputWriter,
		errWriter:  cfg.ErrWriter,
		now:        cfg.Now,
		sleep:      cfg.Sleep,
		browser:    cfg.OpenBrowser,
	}

	root := &cobra.Command{
		Use:           "gwctl",
		Short:         "Gateway operator CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := rt.loadEnvFile(cmd.Flags().Changed("env-file")); err != nil {
				return err
			}
			if rt.writer == nil {
				rt.writer = os.Stdout
			}
			if rt.errWriter == nil {
				rt.errWriter = os.Stderr
			}
			if rt.now == nil {
				rt.now = time.Now
			}
			if rt.browser == nil {
				rt.browser = auth.OpenBrowser
			}
			if rt.outputFormat == "" {
				rt.outputFormat = os.Getenv("GWCTL_OUTPUT")
			}
			if !rt.nonInteractive {
				rt.nonInteractive = strings.EqualFold(os.Getenv("GWCTL_NON_INTERACTIVE"), "true")
			}
			rt.log = logging.New(logging.Options{Verbose: rt.verbose, Quiet: rt.quiet, Writer: rt.errWriter}).Sugar()
			if rt.dataDir == "" {
				rt.dataDir = config.DefaultDir()
			}
			if rt.configPath == "" {
				rt.configPath = config.DefaultConfigPath()
			}

			if cmd.Name() == "version" || cmd.Name() == "completion" {
				return nil
			}
			return rt.EnsureConfigLoaded()
		},
	}

	root.PersistentFlags().StringVar(&rt.configPath, "config", rt.configPath, "Path to config file (default $GWCTL_CONFIG or ~/.gwctl/config.yaml)")
	root.PersistentFlags().StringVar(&rt.apiURLOverride, "api-url", "", "API base URL override")
	root.PersistentFlags().IntVar(&rt.jwksTTLSeconds, "jwks-ttl", 0, "Key set cache TTL in seconds (default 3600)")
	root.PersistentFlags().StringVar(&rt.tokenStorageOverride, "token-storage", "", "Credential storage: keychain or file")
	root.PersistentFlags().StringVar(&rt.envFile, "env-file", defaultEnvFile, "dotenv file loaded before reading the environment")
	root.PersistentFlags().StringVarP(&rt.outputFormat, "output", "o", "", "Output format: table, json, yaml")
	root.PersistentFlags().BoolVarP(&rt.verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().BoolVarP(&rt.quiet, "quiet", "q", false, "Only log warnings and errors")
	root.PersistentFlags().BoolVar(&rt.nonInteractive, "non-interactive", false, "Never open a browser")

	base := cfg.Context
	if base == nil {
		base = context.Background()
	}
	root.SetContext(context.WithValue(base, runtimeKey{}, rt))

	root.AddCommand(
		NewAuthCommand(),
		NewConfigCommand(),
		NewInstanceCommand(),
		NewCompletionCommand(),
		NewVersionCommand(),
	)

	return root
}

func getRuntime(cmd *cobra.Command) (*runtimeState, error) {
	rt, ok := cmd.Context().Value(runtimeKey{}).(*runtimeState)
	if !ok || rt == nil {
		return nil, errors.New("runtime not initialized")
	}
	return rt, nil
}

// loadEnvFile applies the dotenv file without overriding variables already set.
// A missing default file is fine; a missing explicit one is not.
func (rt *runtimeState) loadEnvFile(explicit bool) error {
	if rt.envFile == "" {
		return nil
	}
	if _, err := os.Stat(rt.envFile); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read env file: %w", err)
	}
	if err := godotenv.Load(rt.envFile); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", rt.envFile, err)
	}
	return nil
}

func (rt *runtimeState) EnsureConfigLoaded() error {
	if rt.cfg != nil {
		return nil
	}
	cfg, err := config.LoadOrDefault(rt.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", rt.configPath, err)
	}
	rt.cfg = cfg
	return nil
}

func (rt *runtimeState) Writer() io.Writer {
	if rt.writer != nil {
		return rt.writer
	}
	return os.Stdout
}

func (rt *runtimeState) Logger() *zap.SugaredLogger {
	return logging.OrNop(rt.log)
}

func (rt *runtimeState) OutputFormat() (output.Format, error) {
	if rt.outputFormat != "" {
		return output.ParseFormat(rt.outputFormat)
	}
	if rt.cfg != nil && rt.cfg.Settings.OutputFormat != "" {
		return output.ParseFormat(rt.cfg.Settings.OutputFormat)
	}
	return output.FormatTable, nil
}

func (rt *runtimeState) APIURL() (string, error) {
	return config.ResolveAPIURL(rt.apiURLOverride, rt.cfg)
}

func (rt *runtimeState) httpClient() (*resty.Client, error) {
	if rt.http != nil {
		return rt.http, nil
	}
	opts := client.HTTPOptions{Logger: rt.Logger()}
	if rt.cfg != nil {
		opts.CAFile = rt.cfg.CAFile
		opts.InsecureSkipTLS = rt.cfg.InsecureSkipTLSVerify
	}
	rc, err := client.NewHTTP(opts)
	if err != nil {
		return nil, err
	}
	rt.http = rc
	return rc, nil
}

func (rt *runtimeState) APIClient() (*client.Client, error) {
	apiURL, err := rt.APIURL()
	if err != nil {
		return nil, err
	}
	rc, err := rt.httpClient()
	if err != nil {
		return nil, err
	}
	opts := []client.Option{client.WithHTTPClient(rc), client.WithLogger(rt.Logger())}
	if rt.cfg != nil {
		opts = append(opts, client.WithEndpoints(rt.cfg.Endpoints.StartLogin, rt.cfg.Endpoints.CheckLogin))
	}
	return client.New(apiURL, opts...)
}

func (rt *runtimeState) KeyCache() (*keyset.Cache, error) {
	rc, err := rt.httpClient()
	if err != nil {
		return nil, err
	}
	opts := keyset.Options{
		Path:       config.JWKSCachePath(rt.dataDir),
		TTL:        config.ResolveJWKSTTL(rt.jwksTTLSeconds, rt.cfg),
		Logger:     rt.Logger(),
		Now:        rt.now,
		HTTPClient: rc,
	}
	if rt.cfg != nil {
		opts.JWKSPath = rt.cfg.JWKS.Path
	}
	return keyset.New(opts)
}

func (rt *runtimeState) Validator() (*token.Validator, error) {
	cache, err := rt.KeyCache()
	if err != nil {
		return nil, err
	}
	return token.NewValidator(cache, token.WithLogger(rt.Logger()), token.WithClock(rt.now)), nil
}

func (rt *runtimeState) CredentialStore() (auth.CredentialStore, error) {
	return auth.NewStore(config.ResolveTokenStorage(rt.tokenStorageOverride, rt.cfg), rt.dataDir, rt.Logger())
}

func (rt *runtimeState) Registry() *registry.Registry {
	return &registry.Registry{Path: config.InstancesPath(rt.dataDir), Logger: rt.Logger()}
}

func (rt *runtimeState) Management() (*management.Client, error) {
	rc, err := rt.httpClient()
	if err != nil {
		return nil, err
	}
	return management.New(rc, rt.Logger())
}

func (rt *runtimeState) InstanceKeys() *auth.InstanceKeyStore {
	return &auth.InstanceKeyStore{Service: auth.KeyringService}
}

// Browser returns nil when the verification URL should only be printed.
func (rt *runtimeState) Browser() auth.BrowserOpener {
	if rt.nonInteractive || auth.BrowserDisabled() {
		return nil
	}
	return rt.browser
}
