package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger. Production uses the JSON encoder, anything
// else the human-readable development encoder.
func New(environment string) (*zap.Logger, error) {
	var zapConfig zap.Config
	if environment == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	// Needed so entries carry the calling function.
	zapConfig.EncoderConfig.FunctionKey = "func"

	return zapConfig.Build(zap.AddCaller())
}

// NewConsole builds the logger of the operator console. It writes to stderr
// and stays at warn level unless verbose is set, so it never competes with
// the interactive output.
func NewConsole(environment string, verbose bool) (*zap.Logger, error) {
	zapConfig := zap.NewDevelopmentConfig()
	if environment == "production" {
		zapConfig = zap.NewProductionConfig()
	}
	zapConfig.EncoderConfig.FunctionKey = "func"
	zapConfig.OutputPaths = []string{"stderr"}
	zapConfig.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return zapConfig.Build()
}
