package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/sentinel-faq/pkg/infra/app/cliflag"
)

type testServerOptions struct {
	Addr    string        `mapstructure:"addr"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type testOptions struct {
	Server  *testServerOptions `mapstructure:"server"`
	Origins []string           `mapstructure:"origins"`

	completed   bool
	validateErr error
}

func newTestOptions() *testOptions {
	return &testOptions{
		Server:  &testServerOptions{Addr: ":8000", Timeout: time.Second},
		Origins: []string{"*"},
	}
}

func (o *testOptions) Flags() (fss cliflag.NamedFlagSets) {
	fs := fss.FlagSet("server")
	fs.StringVar(&o.Server.Addr, "server.addr", o.Server.Addr, "listen address")
	fs.DurationVar(&o.Server.Timeout, "server.timeout", o.Server.Timeout, "timeout")
	fss.FlagSet("misc").StringSliceVar(&o.Origins, "origins", o.Origins, "origins")
	return fss
}

func (o *testOptions) Complete() error {
	o.completed = true
	return nil
}

func (o *testOptions) Validate() error { return o.validateErr }

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test-app.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestApp_ConfigFileAndFlagPrecedence(t *testing.T) {
	t.Setenv("TEST_APP_ADDR", ":9999")
	cfg := writeConfig(t, "server:\n  addr: ${TEST_APP_ADDR}\n  timeout: 5s\norigins:\n  - https://a.example\n")

	opts := newTestOptions()
	var ran bool
	a := NewApp(
		WithName("test-app"),
		WithOptions(opts),
		WithNoVersion(),
		WithRunFunc(func(ctx context.Context) error {
			ran = true
			assert.NotNil(t, ctx.Done())
			return nil
		}),
	)

	err := a.Execute(context.Background(), []string{"-c", cfg, "--server.timeout=7s", "--origins=https://b.example"})
	require.NoError(t, err)

	assert.True(t, ran)
	assert.True(t, opts.completed)
	assert.Equal(t, ":9999", opts.Server.Addr)
	assert.Equal(t, 7*time.Second, opts.Server.Timeout)
	assert.Equal(t, []string{"https://b.example"}, opts.Origins)
}

func TestApp_NoConfigFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	opts := newTestOptions()
	a := NewApp(WithName("test-app-missing"), WithOptions(opts), WithNoVersion())

	require.NoError(t, a.Execute(context.Background(), nil))
	assert.Equal(t, ":8000", opts.Server.Addr)
	assert.Equal(t, time.Second, opts.Server.Timeout)
}

func TestApp_ValidateErrorStopsRun(t *testing.T) {
	opts := newTestOptions()
	opts.validateErr = errors.New("bad options")

	a := NewApp(
		WithName("test-app"),
		WithOptions(opts),
		WithNoVersion(),
		WithNoConfig(),
		WithRunFunc(func(context.Context) error {
			t.Fatal("run must not be called")
			return nil
		}),
	)
	a.Command().SilenceErrors = true

	err := a.Execute(context.Background(), nil)
	assert.EqualError(t, err, "bad options")
}

func TestApp_RunErrorPropagates(t *testing.T) {
	want := errors.New("boom")
	a := NewApp(WithName("x"), WithNoVersion(), WithNoConfig(), WithRunFunc(func(context.Context) error {
		return want
	}))
	a.Command().SilenceErrors = true

	assert.ErrorIs(t, a.Execute(context.Background(), nil), want)
}

func TestEnvPrefix(t *testing.T) {
	assert.Equal(t, "SENTINEL_FAQ", EnvPrefix("sentinel-faq"))
	assert.Equal(t, "APP", EnvPrefix("app"))
}
