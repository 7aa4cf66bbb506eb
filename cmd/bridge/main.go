// Package main is a standalone host<->motor serial relay for direct tool
// access to the motor controller, without loading the full configuration.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"tailwind/internal/motor"
	"tailwind/internal/util"
)

func main() {
	hostDev := flag.String("host", "/dev/ttyUSB0", "host-facing serial device")
	hostBaud := flag.Int("hostbaud", 115200, "host baudrate")
	motorDev := flag.String("motor", "/dev/ttyS1", "motor controller serial device")
	motorBaud := flag.Int("motorbaud", 115200, "motor baudrate")
	flag.Parse()

	util.SetupLogger(false)

	b, err := motor.OpenBridge(*hostDev, *hostBaud, *motorDev, *motorBaud)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open bridge ports")
	}
	b.Start()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	b.Stop()
}
