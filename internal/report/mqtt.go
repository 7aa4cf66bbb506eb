package report

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"tailwind/internal/model"
)

// MQTTPublisher pushes the telemetry snapshot to an MQTT topic at the
// reporter cadence. Connection loss is handled by the client's auto
// reconnect; publishes while offline are dropped, not queued.
type MQTTPublisher struct {
	cfg    model.ReportConfig
	port   ControlPort
	client mqtt.Client

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewMQTTPublisher configures the client without connecting.
func NewMQTTPublisher(cfg model.ReportConfig, port ControlPort) *MQTTPublisher {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTT.Broker, cfg.MQTT.Port))
	opts.SetClientID(cfg.MQTT.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.OnConnect = func(c mqtt.Client) {
		log.Info().Str("broker", cfg.MQTT.Broker).Msg("mqtt connected")
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		log.Warn().Err(err).Msg("mqtt connection lost")
	}

	return &MQTTPublisher{
		cfg:    cfg,
		port:   port,
		client: mqtt.NewClient(opts),
		stop:   make(chan struct{}),
	}
}

// Start connects in the background and begins the publish loop.
func (p *MQTTPublisher) Start() {
	p.client.Connect() // retries internally until Stop

	p.wg.Add(1)
	go p.loop()
}

func (p *MQTTPublisher) loop() {
	defer p.wg.Done()
	ticker := time.NewTicker(time.Duration(p.cfg.UpdateRateMs) * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			if !p.client.IsConnected() {
				continue
			}
			snap, ok := p.port.Snapshot()
			if !ok {
				continue
			}
			payload, err := json.Marshal(snap)
			if err != nil {
				log.Debug().Err(err).Msg("mqtt marshal failed")
				continue
			}
			p.client.Publish(p.cfg.MQTT.Topic, 0, false, payload)
		}
	}
}

// Stop ends the publish loop and disconnects.
func (p *MQTTPublisher) Stop() {
	select {
	case <-p.stop:
	default:
		close(p.stop)
	}
	p.wg.Wait()
	p.client.Disconnect(250)
}
