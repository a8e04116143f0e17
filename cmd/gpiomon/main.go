//go:build linux

// Copyright © 2026 rppal-go contributors.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// gpiomon watches GPIO lines for edges and prints each event as it
// arrives. Lines are given as BCM numbers:
//
//	gpiomon -edge both 17 27
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/andrewdavidmackenzie/rppal/gpio"
)

func main() {
	edge := flag.String("edge", "both", "edge to watch: rising, falling or both")
	pull := flag.String("pull", "off", "pull resistor: up, down or off")
	timeout := flag.Duration("timeout", 0, "exit after this long without an event (0 waits forever)")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [options] line...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	trigger, err := parseEdge(*edge)
	if err != nil {
		log.Fatal(err)
	}

	g, err := gpio.New()
	if err != nil {
		log.WithError(err).Fatal("opening GPIO")
	}
	defer g.Close()
	log.WithFields(log.Fields{
		"soc":  g.DeviceInfo().SoC,
		"base": fmt.Sprintf("%#x", g.DeviceInfo().PeripheralBase),
	}).Debug("GPIO open")

	var pins []*gpio.InputPin
	for _, arg := range flag.Args() {
		n, err := strconv.ParseUint(arg, 10, 8)
		if err != nil {
			log.Fatalf("invalid line number %q", arg)
		}
		p := g.Get(uint8(n))
		if p == nil {
			log.Fatalf("line %d is not available", n)
		}
		in := inputWithPull(p, *pull)
		if err := in.SetInterrupt(trigger, nil); err != nil {
			log.WithError(err).Fatalf("arming line %d", n)
		}
		pins = append(pins, in)
	}
	defer func() {
		for _, p := range pins {
			p.Close()
		}
	}()

	interrupted := make(chan struct{})
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		close(interrupted)
		// Disarming wakes the blocked poll so the deferred cleanup
		// can run.
		for _, p := range pins {
			p.ClearInterrupt()
		}
	}()

	wait := *timeout
	if wait == 0 {
		wait = -1
	}
	for {
		pin, level, err := g.PollInterrupts(pins, false, wait)
		if err != nil {
			log.WithError(err).Fatal("polling")
		}
		if pin == nil {
			select {
			case <-interrupted:
				log.Debug("interrupted")
			default:
				log.Infof("no event within %v", *timeout)
			}
			return
		}
		fmt.Printf("%s %s %s\n", time.Now().Format(time.RFC3339Nano), pin, level)
	}
}

func parseEdge(s string) (gpio.Trigger, error) {
	switch s {
	case "rising":
		return gpio.RisingEdge, nil
	case "falling":
		return gpio.FallingEdge, nil
	case "both":
		return gpio.BothEdges, nil
	}
	return gpio.NoTrigger, fmt.Errorf("unknown edge %q", s)
}

func inputWithPull(p *gpio.Pin, pull string) *gpio.InputPin {
	switch pull {
	case "up":
		return p.InputPullUp()
	case "down":
		return p.InputPullDown()
	default:
		return p.Input()
	}
}
