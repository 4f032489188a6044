package main

import (
	"context"
	"crypto/rand"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/asdine/storm/v3"
	"github.com/caarlos0/env/v6"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli"

	"github.com/CodedInternet/gofoc/comms"
	"github.com/CodedInternet/gofoc/journal"
	"github.com/CodedInternet/gofoc/onboard"
	"github.com/CodedInternet/gofoc/onboard/hardware"
)

type EnvConfig struct {
	JWT_ISSUER string `env:"JWT_ISSUER" envDefault:"DEV"`
	JWT_SECRET string `env:"JWT_SECRET"`
	DEBUG      bool   `env:"DEBUG" envDefault:"false"`
	LOG_LEVEL  string `env:"LOG_LEVEL" envDefault:"info"`
	SRCDIR     string `env:"SRCDIR" envDefault:"."`
	DB_PATH    string `env:"DB_PATH" envDefault:"./tmp/dev.db"`

	DB        *storm.DB
	Actuator  *onboard.Actuator
	Conductor *comms.Conductor
	Journal   *journal.Journal

	jwtSecret []byte
}

var (
	ENV *EnvConfig
)

func init() {
	ENV = new(EnvConfig)
	if err := env.Parse(ENV); err != nil {
		panic(err)
	}

	setupLogging()

	ENV.jwtSecret = []byte(ENV.JWT_SECRET)
	if len(ENV.jwtSecret) == 0 {
		ENV.jwtSecret = make([]byte, 32)
		if _, err := rand.Read(ENV.jwtSecret); err != nil {
			panic(err)
		}
		log.Warn().Msg("JWT_SECRET not set, issued tokens will not survive a restart")
	}
}

func setupLogging() {
	level, err := zerolog.ParseLevel(ENV.LOG_LEVEL)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if ENV.DEBUG {
		level = zerolog.DebugLevel
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.StampMilli})
	}
	zerolog.SetGlobalLevel(level)
}

func main() {
	app := cli.NewApp()
	app.Name = "gofoc"
	app.Usage = "run a single axis FOC actuator"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config",
			Usage: "actuator config file, defaults to $SRCDIR/actuator.yaml",
		},
		cli.StringFlag{
			Name:  "http",
			Value: "0.0.0.0:8080",
			Usage: "http server listening address",
		},
		cli.StringFlag{
			Name:  "serial",
			Usage: "serial port for the command line, empty to disable",
		},
		cli.IntFlag{
			Name:  "baud",
			Value: 115200,
			Usage: "serial baud rate",
		},
		cli.StringFlag{
			Name:  "mqtt",
			Usage: "mqtt broker address, overrides the config",
		},
		cli.BoolFlag{
			Name:  "shell",
			Usage: "start the interactive shell",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("gofoc stopped")
	}
}

func loadConfig(filename string) (onboard.ActuatorConfig, error) {
	if filename == "" {
		filename = filepath.Join(ENV.SRCDIR, "actuator.yaml")
		if _, err := os.Stat(filename); os.IsNotExist(err) {
			log.Info().Str("config", filename).Msg("no config file, using defaults")
			return onboard.DefaultConfig(), nil
		}
	}

	log.Info().Str("config", filename).Msg("loading config")
	return onboard.LoadConfig(filename)
}

func run(c *cli.Context) error {
	config, err := loadConfig(c.String("config"))
	if err != nil {
		return err
	}
	if broker := c.String("mqtt"); broker != "" {
		config.MQTT.Broker = broker
	}

	db, err := openDb(ENV.DB_PATH)
	if err != nil {
		return errors.Wrap(err, "unable to open database")
	}
	defer db.Close() // close database when finished
	ENV.DB = db

	var transport *hardware.SerialTransport
	if address := c.String("serial"); address != "" {
		transport, err = hardware.OpenSerial(address, c.Int("baud"))
		if err != nil {
			return err
		}
		defer transport.Close()
		log.Info().Str("port", address).Int("baud", c.Int("baud")).Msg("serial command line open")
	}

	if err = setupDevice(config, transport); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	spawn := func(f func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f()
		}()
	}

	spawn(func() {
		if err := ENV.Actuator.Runner.Run(ctx); err != nil {
			log.Error().Err(err).Msg("control loop stopped")
		}
	})
	spawn(func() { ENV.Journal.Run(ctx) })
	spawn(func() { ENV.Conductor.UpdateClients(ctx) })

	if config.MQTT.Broker != "" {
		bridge := comms.NewBridge(config.MQTT, ENV.Actuator.Inbox)
		if err = bridge.Connect(); err != nil {
			log.Error().Err(err).Msg("mqtt unavailable")
		} else {
			sink := ENV.Conductor.AddSink()
			spawn(func() { bridge.Run(ctx, sink) })
		}
	}

	if c.Bool("shell") {
		shell := newShell()
		go func() {
			shell.Run()
			stop()
		}()
	}

	server := &http.Server{
		Addr:    c.String("http"),
		Handler: newRouter(),
	}
	spawn(func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		server.Shutdown(shutdown)
	})

	log.Info().Str("addr", server.Addr).Msg("listening")
	if err = server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		stop()
		wg.Wait()
		return err
	}

	wg.Wait()
	log.Info().Msg("stopped")
	return nil
}

// setupDevice wires the actuator, journal and conductor into ENV. transport
// may be nil.
func setupDevice(config onboard.ActuatorConfig, transport *hardware.SerialTransport) (err error) {
	hw, _ := onboard.SimulatedHardware(config)

	var bt hardware.ByteTransport
	if transport != nil {
		bt = transport
	}

	ENV.Actuator, err = onboard.NewActuator(config, hw, bt)
	if err != nil {
		return err
	}

	ENV.Journal, err = journal.New(ENV.DB, config.Gear())
	if err != nil {
		return err
	}
	ENV.Actuator.Setpoint.Subscribe(ENV.Journal.Record)

	ENV.Conductor = comms.NewConductor(ENV.Actuator.Interpreter, ENV.Actuator.Inbox)
	ENV.Actuator.Runner.Subscribe(ENV.Conductor.Publish)

	return nil
}

func openDb(dbFile string) (db *storm.DB, err error) {
	dir := filepath.Dir(dbFile)
	if _, err = os.Stat(dir); os.IsNotExist(err) {
		if err = os.MkdirAll(dir, 0755); err != nil {
			return
		}
	}

	db, err = storm.Open(dbFile)
	if err != nil {
		return
	}

	// call inits for each type
	if err := db.Init(&Operator{}); err != nil {
		db.Close()
		return nil, err
	}

	return
}
