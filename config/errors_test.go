package config

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigErrorFormatting(t *testing.T) {
	tests := []struct {
		name string
		err  *ConfigError
		want string
	}{
		{
			name: "missing",
			err:  NewMissingFieldError("app.name"),
			want: "config missing: app.name is required (set FETCH_APP_NAME or add app.name to a config file)",
		},
		{
			name: "invalid with options",
			err:  NewInvalidFieldError("transport.kind", `invalid value "x"`, []string{"native", "resty"}),
			want: `config invalid: transport.kind invalid value "x" (must be one of: native, resty)`,
		},
		{
			name: "invalid without options",
			err:  NewInvalidFieldError("client.timeout", "must not be negative", nil),
			want: "config invalid: client.timeout must not be negative",
		},
		{
			name: "source",
			err:  NewSourceError("config.yaml", fs.ErrPermission),
			want: "config source: config.yaml could not be loaded: permission denied",
		},
		{
			name: "bare",
			err:  &ConfigError{Message: "bad"},
			want: "config: bad",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestConfigErrorMatching(t *testing.T) {
	missing := error(NewMissingFieldError("app.name"))
	assert.ErrorIs(t, missing, ErrMissing)
	assert.NotErrorIs(t, missing, ErrInvalid)

	invalid := error(NewInvalidFieldError("log.level", "bad", nil))
	assert.ErrorIs(t, invalid, ErrInvalid)

	source := error(NewSourceError("inline config #1", fs.ErrNotExist))
	assert.ErrorIs(t, source, ErrSource)
	assert.ErrorIs(t, source, fs.ErrNotExist, "the cause is unwrapped")
	assert.False(t, errors.Is(source, ErrMissing))
}

func TestEnvName(t *testing.T) {
	assert.Equal(t, "FETCH_CLIENT_RETRY_COUNT", envName(testKeyRetryCount))
}
