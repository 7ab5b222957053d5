package functions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/stricklysoft-functions/internal/testutil"
	"github.com/StricklySoft/stricklysoft-functions/internal/testutil/fixtures"
	"github.com/StricklySoft/stricklysoft-functions/pkg/config"
	sserr "github.com/StricklySoft/stricklysoft-functions/pkg/errors"
	"github.com/StricklySoft/stricklysoft-functions/pkg/session"
)

func TestAppConfig_Validate(t *testing.T) {
	t.Parallel()

	desc := config.Descriptor{}

	tests := []struct {
		name string
		cfg  AppConfig
	}{
		{"missing name", AppConfig{Descriptor: desc}},
		{"missing descriptor", AppConfig{Name: fixtures.FunctionName}},
		{"both path and descriptor", AppConfig{
			Name:           fixtures.FunctionName,
			DescriptorPath: "descriptor.json",
			Descriptor:     desc,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewApp(tt.cfg)
			testutil.RequireErrorCode(t, err, sserr.CodeValidation)
		})
	}
}

func TestApp_BootstrapWiresRegistry(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, fixtures.TestDescriptorJSON)

	reg := app.Registry()
	require.NotNil(t, reg)
	assert.True(t, reg.Frozen())
	assert.IsType(t, &session.MemoryManager{}, reg.SessionManager())
	assert.Len(t, reg.Issuers(), 1)
	assert.Len(t, reg.Authenticators(), 1)
}

func TestApp_BootstrapRunsOnce(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, `{}`)

	err := app.Bootstrap(context.Background())
	testutil.RequireErrorCode(t, err, sserr.CodeConfiguration)
}

func TestApp_BootstrapFromDescriptorFile(t *testing.T) {
	t.Parallel()

	path := testutil.TempConfigFile(t, fixtures.TestDescriptorJSON, ".json")
	app, err := NewApp(AppConfig{Name: fixtures.FunctionName, DescriptorPath: path})
	require.NoError(t, err)

	require.NoError(t, app.Bootstrap(context.Background()))
	assert.NotNil(t, app.Registry())
}

func TestApp_BootstrapFailsOnMissingFile(t *testing.T) {
	t.Parallel()

	app, err := NewApp(AppConfig{
		Name:           fixtures.FunctionName,
		DescriptorPath: "testdata/does-not-exist.json",
	})
	require.NoError(t, err)

	err = app.Bootstrap(context.Background())
	require.Error(t, err)
	assert.Nil(t, app.Registry())
}

func TestApp_HMACAddonOnlyWhenDeclared(t *testing.T) {
	t.Parallel()

	t.Run("declared", func(t *testing.T) {
		t.Parallel()
		app := newTestApp(t, fixtures.TestHMACDescriptorJSON)
		assert.Len(t, app.Registry().Authenticators(), 1)
	})

	t.Run("not declared", func(t *testing.T) {
		t.Parallel()
		// Without an HMAC section the add-on is not registered at all,
		// so bootstrap succeeds with no authenticators.
		app := newTestApp(t, `{}`)
		assert.Empty(t, app.Registry().Authenticators())
	})
}

func TestApp_ControllerBeforeBootstrap(t *testing.T) {
	t.Parallel()

	app, err := NewApp(AppConfig{Name: fixtures.FunctionName, Descriptor: config.Descriptor{}})
	require.NoError(t, err)

	_, err = app.Controller(ControllerConfig{Function: fixtures.FunctionName})
	testutil.RequireErrorCode(t, err, sserr.CodeConfiguration)
}
