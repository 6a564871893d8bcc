package bms

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/redis/go-redis/v9"
)

// Service wires the control core to its collaborators: Redis for persisted
// settings, MQTT for remote commands and telemetry, the transport for the
// BMU link and the relay output.
type Service struct {
	config *ServiceConfig
	logger *Logger

	redis    *redis.Client
	mqtt     mqtt.Client
	settings SettingsStore

	transport Transport
	relay     Relay
	reader    *Reader
	watchdog  *Watchdog

	commandBeat *Heartbeat

	ctx    context.Context
	cancel context.CancelFunc
}

func NewService(config *ServiceConfig, transport Transport, logger *Logger) (*Service, error) {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Service{
		config:      config,
		logger:      logger,
		transport:   transport,
		commandBeat: NewHeartbeat(),
		ctx:         ctx,
		cancel:      cancel,
	}

	s.redis = redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%d", config.RedisServerAddress, config.RedisServerPort),
	})
	if err := s.redis.Ping(ctx).Err(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	s.settings = NewRedisSettings(s.redis)

	clientID := config.MQTTClientID
	if clientID == "" {
		clientID = s.deviceClientID(ctx)
	}

	opts := mqtt.NewClientOptions().
		AddBroker(config.MQTTBrokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			s.logger.Warnf("MQTT connection lost: %v", err)
		}).
		SetOnConnectHandler(func(_ mqtt.Client) {
			// Runs on every reconnect too, restoring subscriptions.
			s.subscribeCommands()
		})
	s.mqtt = mqtt.NewClient(opts)

	if config.RelayGPIOPath != "" {
		s.relay = NewGPIORelay(config.RelayGPIOPath)
	} else {
		s.relay = NewLogRelay(logger)
	}

	flags := ControlFlags{
		LimitPercent:      loadChargeLimit(ctx, s.settings, logger),
		MasterSwitchOn:    config.MasterSwitchOn,
		RemoteModeEnabled: config.RemoteModeEnabled,
	}

	s.reader = NewReader(ctx, logger, transport, s.relay, s, s.settings, flags)

	s.watchdog = NewWatchdog(logger, timeWatchdogStale)
	s.watchdog.Observe("acquisition", s.reader.Heartbeat())
	s.watchdog.Observe("commands", s.commandBeat)

	return s, nil
}

// deviceClientID derives the MQTT client identity from the persisted device
// identity, with a static fallback for unprovisioned units.
func (s *Service) deviceClientID(ctx context.Context) string {
	id, err := s.settings.Get(ctx, settingDeviceID)
	if err != nil || id == "" {
		return "stormbee-charge"
	}
	return "stormbee-" + id
}

func (s *Service) Start() error {
	if token := s.mqtt.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	s.watchdog.Start()
	s.reader.Start()
	go s.housekeeping()

	s.logger.Infof("service started (limit=%d%%, master=%t, remote=%t)",
		s.reader.Flags().LimitPercent, s.config.MasterSwitchOn, s.config.RemoteModeEnabled)
	return nil
}

func (s *Service) Stop() {
	s.cancel()
	s.reader.Stop()
	s.watchdog.Stop()
	if s.mqtt != nil && s.mqtt.IsConnected() {
		s.mqtt.Disconnect(250)
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Warnf("error closing Redis connection: %v", err)
		}
	}
	s.logger.Infof("service stopped")
}

// Reader exposes the acquisition core to local interfaces (dashboard,
// switch input handlers).
func (s *Service) Reader() *Reader {
	return s.reader
}

// subscribeCommands registers the remote command handlers. Invalid payloads
// are rejected inside the Apply* methods; the command protocol has no
// acknowledgment channel so rejection is silent towards the sender.
func (s *Service) subscribeCommands() {
	handlers := map[string]mqtt.MessageHandler{
		topicSetLimit: func(_ mqtt.Client, msg mqtt.Message) {
			s.commandBeat.Beat()
			s.reader.ApplySetLimit(string(msg.Payload()))
		},
		topicSetPower: func(_ mqtt.Client, msg mqtt.Message) {
			s.commandBeat.Beat()
			s.reader.ApplySetPower(string(msg.Payload()))
		},
	}

	for topic, handler := range handlers {
		if token := s.mqtt.Subscribe(topic, 0, handler); token.Wait() && token.Error() != nil {
			s.logger.Errorf("failed to subscribe to %s: %v", topic, token.Error())
			continue
		}
		s.logger.Infof("subscribed to %s", topic)
	}
}

// Publish implements Publisher over the MQTT client.
func (s *Service) Publish(topic string, payload []byte) error {
	token := s.mqtt.Publish(topic, 0, false, payload)
	if token.WaitTimeout(time.Second) && token.Error() != nil {
		return token.Error()
	}
	return nil
}

// housekeeping is the shared context's own loop: it keeps the command-side
// heartbeat alive while no commands arrive (the MQTT client's callbacks are
// event driven, a quiet broker is not a stall) and surfaces broker state
// changes.
func (s *Service) housekeeping() {
	ticker := time.NewTicker(timeHousekeeping)
	defer ticker.Stop()

	connected := true
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.commandBeat.Beat()
			if up := s.mqtt.IsConnected(); up != connected {
				connected = up
				s.logger.Infof("MQTT broker connected=%t", up)
			}
		}
	}
}
