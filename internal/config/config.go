package config

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/levenlabs/go-lflag"

	"microgrid_twin/internal/log"
)

// Config holds process-level settings parsed from flags.
type Config struct {
	ListenAddr   string
	TickInterval time.Duration
	ProfilePath  string
	Seed         uint64
	MaxRuns      int

	SensorCSV    string
	SensorEntity string

	MQTTBroker   string
	MQTTTopic    string
	MQTTClientID string

	KafkaBrokers []string
	KafkaTopic   string

	Profile Profile
}

// Configured registers the process flags. The returned Config is populated
// once lflag.Configure runs.
func Configured() *Config {
	c := &Config{}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	listenAddr := lflag.String("http-listen", ":"+port, "HTTP server listen address")
	tick := lflag.Duration("tick-interval", 100*time.Millisecond, "How often the engine is advanced")
	profile := lflag.String("profile", "", "Path to a YAML/JSON/TOML rig profile")
	seed := lflag.Int("seed", 0, "Random seed for noise; 0 seeds from the clock")
	maxRuns := lflag.Int("max-runs", 16, "Number of runs kept in the history")
	sensorCSV := lflag.String("sensor-csv", "", "Home Assistant CSV export replayed as the current sensor")
	sensorEntity := lflag.String("sensor-entity", "", "entity_id to keep from the sensor CSV")
	mqttBroker := lflag.String("mqtt-broker", "", "MQTT broker URL (e.g. tcp://localhost:1883); empty disables MQTT")
	mqttTopic := lflag.String("mqtt-topic", "microgrid/telemetry", "MQTT topic for telemetry samples")
	mqttClientID := lflag.String("mqtt-client-id", "microgrid-twin", "MQTT client id")
	kafkaBrokers := lflag.String("kafka-brokers", "", "comma-delimited Kafka brokers; empty disables Kafka")
	kafkaTopic := lflag.String("kafka-topic", "microgrid.telemetry", "Kafka topic for telemetry samples")

	lflag.Do(func() {
		c.ListenAddr = *listenAddr
		c.TickInterval = *tick
		c.ProfilePath = *profile
		if *seed > 0 {
			c.Seed = uint64(*seed)
		}
		c.MaxRuns = *maxRuns
		c.SensorCSV = *sensorCSV
		c.SensorEntity = *sensorEntity
		c.MQTTBroker = *mqttBroker
		c.MQTTTopic = *mqttTopic
		c.MQTTClientID = *mqttClientID
		c.KafkaBrokers = SplitList(*kafkaBrokers)
		c.KafkaTopic = *kafkaTopic

		p, err := LoadProfile(c.ProfilePath)
		if err != nil {
			log.Ctx(context.Background()).Error("failed to load profile", "path", c.ProfilePath, "error", err)
			os.Exit(1)
		}
		c.Profile = p
	})

	return c
}

// SplitList splits a comma-delimited flag value, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
