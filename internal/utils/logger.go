package utils

import "go.uber.org/zap"

// EnvLocal is the APP_ENV value of a developer machine.
const EnvLocal = "local"

func NewLogger(env string) (*zap.Logger, error) {
	if env == EnvLocal {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
