package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"tailwind/internal/model"
	"tailwind/internal/motor"
	"tailwind/internal/report"
	"tailwind/internal/torque"
)

// System manages the lifecycle of the controller and its reporting tasks.
// It constructs everything from the loaded configuration.
type System struct {
	cfg        *model.Config
	Controller *Controller
	Server     *report.Server
	MQTT       *report.MQTTPublisher
	Recorder   *report.Recorder

	adc  *torque.SerialADC // nil in debug mode
	link motor.Link

	started   bool
	startLock sync.Mutex
}

// NewSystem builds a System from configuration. In debug mode simulated
// sensors and a simulated motor link replace the hardware.
func NewSystem(cfg *model.Config) (*System, error) {
	s := &System{cfg: cfg}

	var adcReader torque.ADCReader
	if cfg.Control.Debug {
		adcReader = torque.SimADC(cfg.Torque)
		s.link = motor.NewSimLink(cfg.Battery.FullVoltage - 2.0)
		log.Info().Msg("debug mode: simulated sensors and motor link")
	} else {
		adc, err := torque.OpenSerialADC(cfg.Torque.Device, cfg.Torque.Baud)
		if err != nil {
			return nil, fmt.Errorf("torque adc: %w", err)
		}
		s.adc = adc
		adcReader = adc.Reader()

		link, err := motor.OpenSerialLink(cfg.Motor.Device, cfg.Motor.Baud, 200*time.Millisecond)
		if err != nil {
			_ = adc.Close()
			return nil, fmt.Errorf("motor link: %w", err)
		}
		s.link = link
	}

	s.Controller = NewController(cfg, adcReader, s.link)
	s.Server = report.NewServer(cfg.Report, s.Controller)
	if cfg.Report.MQTT.Broker != "" {
		s.MQTT = report.NewMQTTPublisher(cfg.Report, s.Controller)
	}
	if cfg.Report.RideLogPath != "" {
		rec, err := report.NewRecorder(cfg.Report, s.Controller)
		if err != nil {
			log.Warn().Err(err).Msg("ride recorder disabled")
		} else {
			s.Recorder = rec
		}
	}
	return s, nil
}

// StartAll starts the control task first, then the reporting tasks.
func (s *System) StartAll(ctx context.Context) error {
	s.startLock.Lock()
	defer s.startLock.Unlock()
	if s.started {
		return nil
	}

	s.Controller.Start(ctx)
	s.Server.Start()
	if s.MQTT != nil {
		s.MQTT.Start()
	}
	if s.Recorder != nil {
		s.Recorder.Start()
	}
	s.started = true
	return nil
}

// StopAll stops reporters, then the control task, then the hardware links.
func (s *System) StopAll() {
	s.startLock.Lock()
	defer s.startLock.Unlock()
	if !s.started {
		return
	}

	if s.Recorder != nil {
		s.Recorder.Stop()
	}
	if s.MQTT != nil {
		s.MQTT.Stop()
	}
	s.Server.Stop()
	s.Controller.Stop()

	if err := s.link.Close(); err != nil {
		log.Warn().Err(err).Msg("close motor link")
	}
	if s.adc != nil {
		if err := s.adc.Close(); err != nil {
			log.Warn().Err(err).Msg("close adc")
		}
	}
	s.started = false
}
