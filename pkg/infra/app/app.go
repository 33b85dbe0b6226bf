// Package app provides application bootstrapping with Cobra, Viper, and Pflag.
//
// This package provides a unified way to:
//   - Define the CLI command with Cobra
//   - Load configuration from files, environment variables, and flags using Viper
//   - Run the service with a context cancelled on SIGINT or SIGTERM
//
// Usage:
//
//	application := app.NewApp(
//	    app.WithName("sentinel-faq"),
//	    app.WithDescription("SmartTask FAQ service"),
//	    app.WithOptions(opts),
//	    app.WithRunFunc(run),
//	)
//	application.Run()
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"

	"github.com/kart-io/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/kart-io/sentinel-faq/pkg/infra/app/cliflag"
)

// envPattern matches ${VAR} and $VAR references in config values.
var envPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// App is the main application structure.
type App struct {
	name        string
	shortDesc   string
	description string
	options     CliOptions
	runFunc     RunFunc
	cmd         *cobra.Command
	viper       *viper.Viper
	noVersion   bool
	noConfig    bool
}

// RunFunc is the application's run function. ctx is cancelled when the
// process receives SIGINT or SIGTERM.
type RunFunc func(ctx context.Context) error

// Option configures an App.
type Option func(*App)

// WithName sets the application name.
func WithName(name string) Option {
	return func(a *App) {
		a.name = name
	}
}

// WithShortDescription sets the short description.
func WithShortDescription(desc string) Option {
	return func(a *App) {
		a.shortDesc = desc
	}
}

// WithDescription sets the long description.
func WithDescription(desc string) Option {
	return func(a *App) {
		a.description = desc
	}
}

// WithOptions sets the CLI options.
func WithOptions(opts CliOptions) Option {
	return func(a *App) {
		a.options = opts
	}
}

// WithRunFunc sets the run function.
func WithRunFunc(run RunFunc) Option {
	return func(a *App) {
		a.runFunc = run
	}
}

// WithNoVersion disables version flag.
func WithNoVersion() Option {
	return func(a *App) {
		a.noVersion = true
	}
}

// WithNoConfig disables config file loading.
func WithNoConfig() Option {
	return func(a *App) {
		a.noConfig = true
	}
}

// NewApp creates a new application instance.
func NewApp(opts ...Option) *App {
	a := &App{
		name:  filepath.Base(os.Args[0]),
		viper: viper.New(),
	}

	for _, opt := range opts {
		opt(a)
	}

	a.buildCommand()
	return a
}

// buildCommand creates the cobra command.
func (a *App) buildCommand() {
	cmd := &cobra.Command{
		Use:   a.name,
		Short: a.shortDesc,
		Long:  a.description,
		RunE:  a.runCommand,
		Args:  cobra.NoArgs,
		// 出错时不打印 usage，需要时用 --help 查看
		SilenceUsage: true,
	}

	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)
	cmd.Flags().SortFlags = true

	a.addGlobalFlags(cmd)

	if a.options != nil {
		fss := a.options.Flags()
		fss.AddTo(cmd.Flags())

		cmd.SetUsageFunc(func(c *cobra.Command) error {
			fmt.Fprintf(c.OutOrStderr(), "Usage:\n  %s\n", c.UseLine())
			cliflag.PrintSections(c.OutOrStderr(), fss, 0)
			return nil
		})
		cmd.SetHelpFunc(func(c *cobra.Command, _ []string) {
			fmt.Fprintf(c.OutOrStdout(), "%s\n\nUsage:\n  %s\n", c.Long, c.UseLine())
			cliflag.PrintSections(c.OutOrStdout(), fss, 0)
		})
	}

	a.cmd = cmd
}

// addGlobalFlags adds global flags to the command.
func (a *App) addGlobalFlags(cmd *cobra.Command) {
	if !a.noConfig {
		cmd.PersistentFlags().StringP("config", "c", "", "Path to config file")
	}

	if !a.noVersion {
		version.AddFlags(cmd.PersistentFlags())
	}

	cmd.PersistentFlags().BoolP("help", "h", false, "Help for "+a.name)
}

// runCommand is the main run function for the command.
func (a *App) runCommand(cmd *cobra.Command, _ []string) error {
	if !a.noVersion {
		version.PrintAndExitIfRequested()
	}

	if !a.noConfig {
		if err := a.loadConfig(cmd); err != nil {
			return err
		}
	}

	if a.options != nil {
		if err := a.options.Complete(); err != nil {
			return err
		}
		if err := a.options.Validate(); err != nil {
			return err
		}
	}

	if a.runFunc == nil {
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return a.runFunc(ctx)
}

// loadConfig loads configuration from file, environment, and flags.
// Precedence, highest first: changed flags, environment, config file,
// flag defaults.
func (a *App) loadConfig(cmd *cobra.Command) error {
	v := a.viper
	configFile, _ := cmd.Flags().GetString("config")

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(a.name)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, "."+a.name))
		}
		v.AddConfigPath("/etc/" + a.name)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		// 没有配置文件时仅使用 flag 默认值和环境变量
	}

	expandEnvVars(v)

	v.SetEnvPrefix(EnvPrefix(a.name))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if a.options == nil {
		return nil
	}

	// 记录命令行显式设置的 flag，反序列化后重新应用以保证优先级
	var reapply []func() error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			reapply = append(reapply, snapshotFlag(cmd.Flags(), f))
		}
	})

	if err := v.Unmarshal(a.options); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for _, fn := range reapply {
		if err := fn(); err != nil {
			return err
		}
	}

	return nil
}

// snapshotFlag captures the command line value of f and returns a function
// that restores it. Slice flags append on Set, so they are replaced instead.
func snapshotFlag(fs *pflag.FlagSet, f *pflag.Flag) func() error {
	name := f.Name
	if sv, ok := f.Value.(pflag.SliceValue); ok {
		vals := append([]string(nil), sv.GetSlice()...)
		return func() error {
			if err := sv.Replace(vals); err != nil {
				return fmt.Errorf("failed to re-apply flag %s: %w", name, err)
			}
			return nil
		}
	}
	val := f.Value.String()
	return func() error {
		if err := fs.Set(name, val); err != nil {
			return fmt.Errorf("failed to re-apply flag %s: %w", name, err)
		}
		return nil
	}
}

// EnvPrefix returns the environment variable prefix for an application
// name, e.g. "sentinel-faq" becomes "SENTINEL_FAQ".
func EnvPrefix(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

// expandEnvVars expands ${VAR} and $VAR references in string config values.
// Unset variables are left untouched.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		expanded := envPattern.ReplaceAllStringFunc(strVal, func(match string) string {
			var varName string
			if strings.HasPrefix(match, "${") {
				varName = match[2 : len(match)-1]
			} else {
				varName = match[1:]
			}
			if envVal, ok := os.LookupEnv(varName); ok {
				return envVal
			}
			return match
		})
		if expanded != strVal {
			v.Set(key, expanded)
		}
	}
}

// Execute runs the command with the given arguments and returns its error.
func (a *App) Execute(ctx context.Context, args []string) error {
	a.cmd.SetArgs(args)
	return a.cmd.ExecuteContext(ctx)
}

// Run executes the application with os.Args and exits on failure.
func (a *App) Run() {
	if err := a.cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Command returns the cobra command.
func (a *App) Command() *cobra.Command {
	return a.cmd
}
