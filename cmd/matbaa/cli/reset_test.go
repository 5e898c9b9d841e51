package cli

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResetRequiresConfirmFlag(t *testing.T) {
	cli := NewResetCLI(nil, nil, discardLogger())
	err := cli.Run(context.Background(), nil)
	require.ErrorIs(t, err, ErrResetNotConfirmed)
}

func TestResetRejectsUnknownFlags(t *testing.T) {
	cli := NewResetCLI(nil, nil, discardLogger())
	err := cli.Run(context.Background(), []string{"--bogus"})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrResetNotConfirmed)
}
