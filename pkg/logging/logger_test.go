package logging

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/mdobak/go-xerrors"
)

func TestLogger(t *testing.T) {

	logger := NewLogger(slog.LevelDebug, nil)

	logger.Info("info test")
	logger.Warn("warn test")
	logger.Debug("debug test")
	logger.Infof("formatted %s", "info")
}

func TestError(t *testing.T) {

	logger := NewLogger(slog.LevelDebug, nil)

	err := errors.New("an error occurred")

	logger.Error(err)
	logger.Error(xerrors.New("an error with a stack trace"))
}
