//go:build linux

// Copyright © 2026 rppal-go contributors.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package gpio_test

import (
	"fmt"
	"log"
	"time"

	"github.com/andrewdavidmackenzie/rppal/gpio"
)

// Blink an LED connected to GPIO23.
func Example() {
	g, err := gpio.New()
	if err != nil {
		log.Fatal(err)
	}
	defer g.Close()

	led := g.Get(23).OutputLow()
	defer led.Close()

	for i := 0; i < 5; i++ {
		led.Toggle()
		time.Sleep(500 * time.Millisecond)
	}
}

// Wait for a button press on GPIO17 with the pull-up enabled.
func ExampleInputPin_PollInterrupt() {
	g, err := gpio.New()
	if err != nil {
		log.Fatal(err)
	}
	defer g.Close()

	button := g.Get(17).InputPullUp()
	defer button.Close()

	if err := button.SetInterrupt(gpio.FallingEdge, nil); err != nil {
		log.Fatal(err)
	}
	level, ok, err := button.PollInterrupt(false, 10*time.Second)
	if err != nil {
		log.Fatal(err)
	}
	if ok {
		fmt.Println("pressed:", level)
	}
}

// Count edges with an asynchronous callback.
func ExampleInputPin_SetInterrupt() {
	g, err := gpio.New()
	if err != nil {
		log.Fatal(err)
	}
	defer g.Close()

	pin := g.Get(27).Input()
	defer pin.Close()

	edges := make(chan gpio.Level, 16)
	err = pin.SetInterrupt(gpio.BothEdges, func(l gpio.Level) {
		edges <- l
	})
	if err != nil {
		log.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		fmt.Println(<-edges)
	}
}
