package server

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port string `envconfig:"SERVER_PORT" default:"8080"`
	// OperatorTokenHash is a bcrypt hash of the token required on write
	// endpoints. Empty disables write access entirely.
	OperatorTokenHash string `envconfig:"OPERATOR_TOKEN_HASH"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
