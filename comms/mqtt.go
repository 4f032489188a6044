package comms

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/CodedInternet/gofoc/onboard"
)

const (
	MQTT_TIMEOUT    = 5 * time.Second
	MQTT_QUIESCE_MS = 250
)

// Bridge connects the actuator to an MQTT broker. Output angles published on
// the target topic go to the inbox, telemetry goes out on the telemetry topic.
type Bridge struct {
	client mqtt.Client
	config onboard.MQTTConfig
	inbox  *onboard.Inbox
}

func NewBridge(config onboard.MQTTConfig, inbox *onboard.Inbox) *Bridge {
	b := &Bridge{
		config: config,
		inbox:  inbox,
	}

	opts := mqtt.NewClientOptions().
		AddBroker(config.Broker).
		SetClientID(config.ClientID).
		SetConnectTimeout(MQTT_TIMEOUT).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetOnConnectHandler(b.onConnect).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warn().Err(err).Str("broker", config.Broker).Msg("mqtt connection lost")
		})
	b.client = mqtt.NewClient(opts)

	return b
}

// Connect starts the connection. With retry enabled the broker does not need
// to be reachable yet; the subscription is made once it is.
func (b *Bridge) Connect() error {
	token := b.client.Connect()
	if token.WaitTimeout(MQTT_TIMEOUT) && token.Error() != nil {
		return errors.Wrapf(token.Error(), "unable to connect to %s", b.config.Broker)
	}
	return nil
}

func (b *Bridge) onConnect(client mqtt.Client) {
	log.Info().Str("broker", b.config.Broker).Str("topic", b.config.TargetTopic).Msg("mqtt connected")
	token := client.Subscribe(b.config.TargetTopic, 1, b.handleTarget)
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			log.Error().Err(err).Str("topic", b.config.TargetTopic).Msg("mqtt subscribe failed")
		}
	}()
}

func (b *Bridge) handleTarget(_ mqtt.Client, msg mqtt.Message) {
	payload := strings.TrimSpace(string(msg.Payload()))
	outDeg, err := strconv.ParseFloat(payload, 64)
	if err != nil || math.IsNaN(outDeg) || math.IsInf(outDeg, 0) {
		log.Warn().Str("topic", msg.Topic()).Str("payload", payload).Msg("ignoring mqtt target")
		return
	}

	b.inbox.Deliver(outDeg)
}

// Run publishes everything arriving on sink until ctx is done, then
// disconnects.
func (b *Bridge) Run(ctx context.Context, sink Sink) {
	defer b.client.Disconnect(MQTT_QUIESCE_MS)

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-sink:
			if !b.client.IsConnectionOpen() {
				continue
			}
			b.client.Publish(b.config.TelemetryTopic, 0, false, msg)
		}
	}
}
