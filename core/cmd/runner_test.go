package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/topupbot/core/config"
	"github.com/m3rciful/topupbot/core/metrics"
	coretelegram "github.com/m3rciful/topupbot/core/telegram"
)

type fakeConfig struct{ core *coreconfig.Config }

func (f fakeConfig) CoreConfig() *coreconfig.Config { return f.core }

type fakeApp struct {
	startCalls int
	healthErr  error
}

func (a *fakeApp) TelegramRunOptions() (coretelegram.RunOptions, error) {
	return coretelegram.RunOptions{
		OnStart: func(context.Context, coretelegram.Runtime) error {
			a.startCalls++
			return nil
		},
	}, nil
}

func (a *fakeApp) Health(context.Context) error { return a.healthErr }

func baseOptions(app *fakeApp, loadedPath *string) Options {
	return Options{
		DefaultConfigPath: "default.yaml",
		LoadConfig: func(path string) (ConfigCarrier, error) {
			*loadedPath = path
			return fakeConfig{core: &coreconfig.Config{Metrics: coreconfig.MetricsConfig{Listen: ":0"}}}, nil
		},
		Bootstrap:      func(ConfigCarrier) (TelegramApp, error) { return app, nil },
		ShutdownLogger: func() error { return nil },
		RunTelegram: func(ctx context.Context, opts coretelegram.RunOptions) error {
			if err := opts.OnStart(ctx, coretelegram.Runtime{}); err != nil {
				return err
			}
			return opts.OnStop(ctx, coretelegram.Runtime{})
		},
	}
}

func TestRunWiresLifecycleAndOps(t *testing.T) {
	app := &fakeApp{healthErr: errors.New("db down")}
	var path, listen string
	var healthResult error
	opts := baseOptions(app, &path)
	opts.ServeOps = func(ctx context.Context, addr string, health metrics.HealthFunc) error {
		listen = addr
		if health != nil {
			healthResult = health(ctx)
		}
		return nil
	}

	require.NoError(t, Run(opts))
	assert.Equal(t, "default.yaml", path)
	assert.Equal(t, ":0", listen)
	assert.EqualError(t, healthResult, "db down")
	assert.Equal(t, 1, app.startCalls)
}

func TestRunConfigPathPrecedence(t *testing.T) {
	t.Setenv("TOPUP_CONFIG", "env.yaml")
	app := &fakeApp{}
	var path string
	opts := baseOptions(app, &path)
	opts.ConfigEnvVar = "TOPUP_CONFIG"
	opts.ServeOps = func(context.Context, string, metrics.HealthFunc) error { return nil }

	require.NoError(t, Run(opts))
	assert.Equal(t, "env.yaml", path)

	opts.ConfigPath = "flag.yaml"
	require.NoError(t, Run(opts))
	assert.Equal(t, "flag.yaml", path)
}

func TestRunOpsFailureStopsBot(t *testing.T) {
	app := &fakeApp{}
	var path string
	opts := baseOptions(app, &path)
	opts.ServeOps = func(context.Context, string, metrics.HealthFunc) error {
		return errors.New("address in use")
	}
	opts.RunTelegram = func(ctx context.Context, _ coretelegram.RunOptions) error {
		<-ctx.Done()
		return nil
	}

	err := Run(opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address in use")
}

func TestRunRequiresLoaders(t *testing.T) {
	assert.Error(t, Run(Options{}))
	assert.Error(t, Run(Options{LoadConfig: func(string) (ConfigCarrier, error) { return nil, nil }}))
}
