package cmd

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"filedrop/internal/auth"
)

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"session expired", auth.ErrSessionExpired, ExitCodeAuthRequired},
		{"refresh failed", auth.ErrRefreshFailed, ExitCodeAuthRequired},
		{"wrapped refresh failure", fmt.Errorf("request: %w", auth.ErrRefreshFailed), ExitCodeAuthRequired},
		{"exchange failed", auth.ErrExchangeFailed, ExitCodeAuthFailed},
		{"state mismatch", auth.ErrStateMismatch, ExitCodeAuthFailed},
		{"missing code", auth.ErrMissingCode, ExitCodeAuthFailed},
		{"generic error", errors.New("boom"), ExitCodeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, getExitCode(tt.err))
		})
	}
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", formatSize(512))
	assert.Equal(t, "1.0 KB", formatSize(1024))
	assert.Equal(t, "1.5 MB", formatSize(1536*1024))
}
