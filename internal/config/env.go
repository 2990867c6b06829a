package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Env holds process settings read from the environment.
type Env struct {
	MachineFile string `envconfig:"ESPRESSO_CONFIG"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	LogDev   bool   `envconfig:"LOG_DEV" default:"false"`

	APIPort int `envconfig:"API_PORT" default:"0"`

	MQTTEnabled  bool   `envconfig:"MQTT_ENABLED" default:"false"`
	MQTTURL      string `envconfig:"MQTT_URL" default:"tcp://localhost:1883"`
	MQTTClientID string `envconfig:"MQTT_CLIENT_ID" default:"espressoline"`
	MQTTUsername string `envconfig:"MQTT_USERNAME"`

	PGEnabled bool   `envconfig:"PG_ENABLED" default:"false"`
	PGHost    string `envconfig:"PGHOST" default:"localhost"`
	PGPort    int    `envconfig:"PGPORT" default:"5432"`
	PGUser    string `envconfig:"PGUSER" default:"espresso"`
	PGDB      string `envconfig:"PGDATABASE" default:"espresso"`
	PGSSLMode string `envconfig:"PGSSLMODE" default:"disable"`

	// Resolved through the *_FILE convention, not envconfig.
	MQTTPassword string `ignored:"true"`
	PGPassword   string `ignored:"true"`
	APIUser      string `ignored:"true"`
	APIPassword  string `ignored:"true"`
}

// LoadEnv reads Env and resolves its secrets.
func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process("", &env); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	secrets, err := ResolveSecrets("PGPASSWORD", "MQTT_PASSWORD", "API_USER", "API_PASS")
	if err != nil {
		return nil, err
	}
	env.PGPassword = secrets["PGPASSWORD"]
	env.MQTTPassword = secrets["MQTT_PASSWORD"]
	env.APIUser = secrets["API_USER"]
	env.APIPassword = secrets["API_PASS"]

	return &env, nil
}
