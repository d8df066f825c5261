package esploader

import (
	"time"

	"github.com/custodia-labs/idfflash/internal/core/ports/driven"
)

// resetStrategy puts the chip into download mode.
type resetStrategy struct {
	name string
	run  func(port driven.SerialPort, sleep func(time.Duration)) error
}

// lineStep drives DTR and RTS, then waits.
type lineStep struct {
	dtr, rts bool
	wait     time.Duration
}

func runSteps(port driven.SerialPort, sleep func(time.Duration), steps []lineStep) error {
	for _, s := range steps {
		if err := port.SetDTR(s.dtr); err != nil {
			return err
		}
		if err := port.SetRTS(s.rts); err != nil {
			return err
		}
		if s.wait > 0 {
			sleep(s.wait)
		}
	}
	return nil
}

// classicReset drives the two-transistor auto-reset circuit found on most
// development boards: RTS pulls EN low and DTR pulls GPIO0 low.
func classicReset(delay time.Duration) resetStrategy {
	return resetStrategy{
		name: "classic",
		run: func(port driven.SerialPort, sleep func(time.Duration)) error {
			return runSteps(port, sleep, []lineStep{
				{dtr: false, rts: true, wait: 100 * time.Millisecond},
				{dtr: true, rts: false, wait: delay},
				{dtr: false, rts: false},
			})
		},
	}
}

// usbJTAGSerialReset drives the reset logic of the built-in USB-Serial-JTAG
// peripheral, which decodes the line states itself.
func usbJTAGSerialReset() resetStrategy {
	return resetStrategy{
		name: "usb-jtag-serial",
		run: func(port driven.SerialPort, sleep func(time.Duration)) error {
			return runSteps(port, sleep, []lineStep{
				{dtr: false, rts: false, wait: 100 * time.Millisecond},
				{dtr: true, rts: false, wait: 100 * time.Millisecond},
				{dtr: false, rts: true, wait: 100 * time.Millisecond},
				{dtr: false, rts: false},
			})
		},
	}
}

// defaultStrategies is cycled through across connection attempts.
func defaultStrategies() []resetStrategy {
	return []resetStrategy{
		classicReset(50 * time.Millisecond),
		classicReset(550 * time.Millisecond),
		usbJTAGSerialReset(),
	}
}

// hardReset pulses EN low with GPIO0 released so the chip boots normally.
func hardReset(port driven.SerialPort, sleep func(time.Duration)) error {
	return runSteps(port, sleep, []lineStep{
		{dtr: false, rts: true, wait: 100 * time.Millisecond},
		{dtr: false, rts: false},
	})
}
