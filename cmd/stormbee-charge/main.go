package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Microguy31/StormBee-Charge-Controller/bms"
)

func main() {
	// Parse command line flags
	config := &bms.ServiceConfig{}

	// Redis configuration
	flag.StringVar(&config.RedisServerAddress, "redis-server", "127.0.0.1", "Redis server address")
	var redisPort uint
	flag.UintVar(&redisPort, "redis-port", 6379, "Redis server port")

	// MQTT configuration
	flag.StringVar(&config.MQTTBrokerURL, "mqtt-broker", "tcp://127.0.0.1:1883", "MQTT broker URL")
	flag.StringVar(&config.MQTTClientID, "mqtt-client-id", "", "MQTT client ID (default derived from device identity)")

	// BMU link configuration
	flag.StringVar(&config.SerialDevice, "device", "/dev/ttyUSB0", "Serial device of the BMU bridge")
	flag.IntVar(&config.SerialBaud, "baud", 9600, "Serial baud rate")

	// Relay configuration
	flag.StringVar(&config.RelayGPIOPath, "relay-gpio", "", "Sysfs value path of the relay GPIO (empty for log-only relay)")

	// Control configuration
	flag.BoolVar(&config.MasterSwitchOn, "master-switch", true, "Initial master switch state")
	flag.BoolVar(&config.RemoteModeEnabled, "remote-mode", true, "Honor remote force-off commands")
	flag.IntVar(&config.LogLevel, "log", 3, "Log level (0=NONE, 1=ERROR, 2=WARN, 3=INFO, 4=DEBUG)")

	flag.Parse()

	config.RedisServerPort = uint16(redisPort)

	logger := bms.NewLogger(log.New(os.Stdout, "", log.LstdFlags), bms.LogLevel(config.LogLevel))

	transport, err := bms.NewSerialTransport(config.SerialDevice, config.SerialBaud, logger)
	if err != nil {
		logger.Fatalf("Failed to open BMU link: %v", err)
	}

	service, err := bms.NewService(config, transport, logger)
	if err != nil {
		logger.Fatalf("Failed to create charge service: %v", err)
	}

	if err := service.Start(); err != nil {
		logger.Fatalf("Failed to start charge service: %v", err)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	service.Stop()
	transport.Close()
}
