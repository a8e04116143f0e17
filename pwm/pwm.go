// Copyright © 2026 rppal-go contributors.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package pwm drives the Raspberry Pi's hardware PWM channels through the
// sysfs PWM interface. Channel 0 is available on GPIO12/GPIO18 and channel
// 1 on GPIO13/GPIO19, once the pin is switched to the matching alternate
// function and the pwm overlay is enabled in /boot/config.txt.
package pwm

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Polarity sets which level the active part of the duty cycle drives.
type Polarity uint8

const (
	Normal Polarity = iota
	Inverse
)

func (p Polarity) String() string {
	if p == Inverse {
		return "inversed"
	}
	return "normal"
}

const chipPath = "/sys/class/pwm/pwmchip0"

// Pwm is an exported hardware PWM channel. Period and pulse width are
// expressed as durations with nanosecond resolution.
type Pwm struct {
	channel uint8
	dir     string
	period  time.Duration
}

// New exports the given channel and configures its period and pulse width.
// The channel starts disabled; call Enable once configured.
func New(channel uint8, period, pulseWidth time.Duration, polarity Polarity) (*Pwm, error) {
	if _, err := os.Stat(chipPath); err != nil {
		return nil, fmt.Errorf("PWM chip not available (is the pwm overlay enabled?): %w", err)
	}
	p := &Pwm{
		channel: channel,
		dir:     fmt.Sprintf("%s/pwm%d", chipPath, channel),
	}
	if _, err := os.Stat(p.dir); err != nil {
		if err := writeAttr(chipPath+"/export", strconv.Itoa(int(channel))); err != nil {
			return nil, fmt.Errorf("exporting PWM channel %d: %w", channel, err)
		}
	}
	// udev needs a moment to adjust permissions on the newly exported
	// channel, so retry instead of failing on the first EACCES.
	if err := p.writeRetry("polarity", polarity.String()); err != nil {
		p.unexport()
		return nil, err
	}
	if err := p.SetPeriod(period); err != nil {
		p.unexport()
		return nil, err
	}
	if err := p.SetPulseWidth(pulseWidth); err != nil {
		p.unexport()
		return nil, err
	}
	return p, nil
}

// NewWithFrequency exports a channel configured by frequency in hertz and
// duty cycle in the range [0.0, 1.0].
func NewWithFrequency(channel uint8, frequency, dutyCycle float64, polarity Polarity) (*Pwm, error) {
	period, pulse := frequencyToPeriod(frequency, dutyCycle)
	return New(channel, period, pulse, polarity)
}

func frequencyToPeriod(frequency, dutyCycle float64) (period, pulseWidth time.Duration) {
	if frequency <= 0 {
		return 0, 0
	}
	if dutyCycle < 0 {
		dutyCycle = 0
	} else if dutyCycle > 1 {
		dutyCycle = 1
	}
	period = time.Duration(1e9 / frequency)
	pulseWidth = time.Duration(float64(period) * dutyCycle)
	return period, pulseWidth
}

// SetPeriod changes the period. The kernel rejects a period shorter than
// the configured pulse width, so the pulse width may need lowering first.
func (p *Pwm) SetPeriod(period time.Duration) error {
	if err := p.writeRetry("period", strconv.FormatInt(period.Nanoseconds(), 10)); err != nil {
		return err
	}
	p.period = period
	return nil
}

// SetPulseWidth changes the active part of the cycle.
func (p *Pwm) SetPulseWidth(pulseWidth time.Duration) error {
	return p.writeRetry("duty_cycle", strconv.FormatInt(pulseWidth.Nanoseconds(), 10))
}

// SetFrequency reconfigures period and pulse width from a frequency in
// hertz and a duty cycle in [0.0, 1.0].
func (p *Pwm) SetFrequency(frequency, dutyCycle float64) error {
	period, pulse := frequencyToPeriod(frequency, dutyCycle)
	// Zero the pulse width first so the new period is never shorter than
	// the old pulse width.
	if err := p.SetPulseWidth(0); err != nil {
		return err
	}
	if err := p.SetPeriod(period); err != nil {
		return err
	}
	return p.SetPulseWidth(pulse)
}

// Enable starts the output.
func (p *Pwm) Enable() error {
	return p.writeRetry("enable", "1")
}

// Disable stops the output.
func (p *Pwm) Disable() error {
	return p.writeRetry("enable", "0")
}

// Enabled reports whether the output is running.
func (p *Pwm) Enabled() (bool, error) {
	b, err := os.ReadFile(p.dir + "/enable")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(string(b)) == "1", nil
}

// Close disables the output and unexports the channel.
func (p *Pwm) Close() error {
	if err := p.Disable(); err != nil {
		return err
	}
	return p.unexport()
}

func (p *Pwm) unexport() error {
	return writeAttr(chipPath+"/unexport", strconv.Itoa(int(p.channel)))
}

func (p *Pwm) writeRetry(attr, value string) error {
	var err error
	for i := 0; i < 30; i++ {
		err = writeAttr(p.dir+"/"+attr, value)
		if err == nil || !os.IsPermission(err) {
			return err
		}
		time.Sleep(10 * time.Millisecond)
	}
	return err
}

func writeAttr(path, value string) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	_, werr := f.WriteString(value)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	return werr
}
