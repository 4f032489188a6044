package onboard

import (
	"fmt"
	"io/ioutil"
	"time"

	"github.com/Masterminds/semver"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v2"
)

const (
	CONFIG_VERSION = "~1"
)

type PIDConfig struct {
	Angle    Gains `yaml:"angle"`
	Velocity Gains `yaml:"velocity"`
	Current  Gains `yaml:"current"`
}

type MQTTConfig struct {
	Broker         string `yaml:"broker"`
	ClientID       string `yaml:"client_id"`
	TargetTopic    string `yaml:"target_topic"`
	TelemetryTopic string `yaml:"telemetry_topic"`
}

// ActuatorConfig is the on-disk description of one actuator.
type ActuatorConfig struct {
	Version           string      `yaml:"version"`
	GearRatio         float64     `yaml:"gear_ratio"`
	CurrentLimit      float64     `yaml:"current_limit"`
	DebounceThreshold float64     `yaml:"debounce_threshold"`
	CycleHz           float64     `yaml:"cycle_hz"`
	LineLimit         int         `yaml:"line_limit"`
	LooseNumbers      bool        `yaml:"loose_numbers"`
	TelemetryEvery    int         `yaml:"telemetry_every"`
	PID               PIDConfig   `yaml:"pid"`
	Plant             PlantConfig `yaml:"plant"`
	MQTT              MQTTConfig  `yaml:"mqtt"`
}

func DefaultConfig() ActuatorConfig {
	return ActuatorConfig{
		Version:           "1.0.0",
		GearRatio:         6,
		CurrentLimit:      1.5,
		DebounceThreshold: 0.0001,
		CycleHz:           1000,
		LineLimit:         DEFAULT_LINE_LIMIT,
		LooseNumbers:      true,
		TelemetryEvery:    50,
		PID: PIDConfig{
			Angle:    Gains{P: 0.2, Min: -200, Max: 200},
			Velocity: Gains{P: 0.05, I: 0.2, Min: -5, Max: 5},
			Current:  Gains{P: 0.6, I: 100, Min: -12, Max: 12},
		},
		Plant: DefaultPlant(),
		MQTT: MQTTConfig{
			ClientID:       "gofoc",
			TargetTopic:    "foc/target/out_deg",
			TelemetryTopic: "foc/telemetry",
		},
	}
}

// LoadConfig reads a YAML file over the defaults. Keys missing from the file
// keep their default value.
func LoadConfig(filename string) (config ActuatorConfig, err error) {
	config = DefaultConfig()

	raw, err := ioutil.ReadFile(filename)
	if err != nil {
		return config, errors.Wrap(err, "unable to read config")
	}

	if err = yaml.Unmarshal(raw, &config); err != nil {
		return config, errors.Wrap(err, "unable to unmarshal config")
	}

	return config, config.Validate()
}

// Validate reports every problem with the configuration at once.
func (c ActuatorConfig) Validate() (err error) {
	version, verr := semver.NewVersion(c.Version)
	if verr != nil {
		err = multierr.Append(err, fmt.Errorf("invalid version %q: %v", c.Version, verr))
	} else {
		constraint, _ := semver.NewConstraint(CONFIG_VERSION)
		if !constraint.Check(version) {
			err = multierr.Append(err, fmt.Errorf("unable to work with version %s - require %s", c.Version, CONFIG_VERSION))
		}
	}

	if c.GearRatio <= 0 {
		err = multierr.Append(err, fmt.Errorf("invalid gear ratio: %g", c.GearRatio))
	}
	if c.CurrentLimit <= 0 {
		err = multierr.Append(err, fmt.Errorf("invalid current limit: %g", c.CurrentLimit))
	}
	if c.DebounceThreshold < 0 {
		err = multierr.Append(err, fmt.Errorf("invalid debounce threshold: %g", c.DebounceThreshold))
	}
	// rates above 1GHz truncate to a zero period
	if !(c.CycleHz > 0) || c.Period() <= 0 {
		err = multierr.Append(err, fmt.Errorf("invalid cycle rate: %g", c.CycleHz))
	}
	if c.LineLimit <= 0 {
		err = multierr.Append(err, fmt.Errorf("invalid line limit: %d", c.LineLimit))
	}
	if c.TelemetryEvery < 0 {
		err = multierr.Append(err, fmt.Errorf("invalid telemetry interval: %d", c.TelemetryEvery))
	}

	for name, g := range map[string]Gains{
		"angle":    c.PID.Angle,
		"velocity": c.PID.Velocity,
		"current":  c.PID.Current,
	} {
		if g.limited() && g.Min >= g.Max {
			err = multierr.Append(err, fmt.Errorf("invalid %s limits: min %g >= max %g", name, g.Min, g.Max))
		}
	}

	return multierr.Append(err, c.Plant.Validate())
}

func (c ActuatorConfig) Period() time.Duration {
	return time.Duration(float64(time.Second) / c.CycleHz)
}

func (c ActuatorConfig) Gear() GearRatio {
	return GearRatio(c.GearRatio)
}

func (c ActuatorConfig) InterpreterOptions() InterpreterOptions {
	return InterpreterOptions{
		LineLimit:    c.LineLimit,
		LooseNumbers: c.LooseNumbers,
	}
}
