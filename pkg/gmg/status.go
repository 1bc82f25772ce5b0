package gmg

import (
	"encoding/hex"
	"math"
	"strconv"

	"github.com/pkg/errors"
)

// STATUS response layout, as hex character offsets into the payload.
// 16-bit fields are little endian: low byte at the offset, high byte at offset+2.
const (
	offsetCurrentGrillTemp = 4
	offsetCurrentFoodTemp  = 8
	offsetDesiredGrillTemp = 12
	offsetLowPelletAlarm   = 48
	offsetDesiredFoodTemp  = 56
	offsetState            = 61

	// minStatusSize is the number of payload bytes needed to reach the state digit.
	minStatusSize = offsetState/2 + 1

	lowPelletAlarmValue = 128

	// Raw food probe readings at or above this mean no probe is attached.
	foodProbeDisconnected = 557

	// SentinelTemperature is reported for the desired temperatures whenever the grill is not on.
	SentinelTemperature = 10.0
)

// PowerState is the grill's power state as reported in a status payload.
type PowerState int

const (
	PowerOff PowerState = iota
	PowerOn
	PowerFanMode
	PowerUnknown
)

func (p PowerState) String() string {
	switch p {
	case PowerOff:
		return "off"
	case PowerOn:
		return "on"
	case PowerFanMode:
		return "fan mode"
	default:
		return "unknown"
	}
}

// Status is a decoded status payload. Temperatures are in degrees Celsius.
// A Status is never modified after DecodeStatus returns it.
type Status struct {
	State                PowerState
	IsOn                 bool
	FanModeActive        bool
	CurrentGrillTemp     float64
	DesiredGrillTemp     float64
	CurrentFoodTemp      float64
	DesiredFoodTemp      float64
	LowPelletAlarmActive bool

	// Hex is the raw payload, kept for diagnostics.
	Hex string
}

// DecodeStatus parses the payload of a CommandGetStatus response.
func DecodeStatus(payload []byte) (*Status, error) {
	if len(payload) < minStatusSize {
		return nil, errors.Wrapf(ErrTruncated, "got %d bytes, need at least %d", len(payload), minStatusSize)
	}

	h := hex.EncodeToString(payload)
	state := parseState(h[offsetState])

	s := &Status{
		State:                state,
		IsOn:                 state == PowerOn,
		FanModeActive:        state == PowerFanMode,
		CurrentGrillTemp:     FahrenheitToCelsius(float64(readUint16(h, offsetCurrentGrillTemp))),
		CurrentFoodTemp:      FahrenheitToCelsius(float64(currentFoodTemp(h))),
		DesiredGrillTemp:     SentinelTemperature,
		DesiredFoodTemp:      SentinelTemperature,
		LowPelletAlarmActive: readUint16(h, offsetLowPelletAlarm) == lowPelletAlarmValue,
		Hex:                  h,
	}

	if s.IsOn {
		s.DesiredGrillTemp = FahrenheitToCelsius(float64(readUint16(h, offsetDesiredGrillTemp)))
		s.DesiredFoodTemp = FahrenheitToCelsius(float64(readUint16(h, offsetDesiredFoodTemp)))
	}

	return s, nil
}

// FahrenheitToCelsius converts a temperature reading from the grill.
func FahrenheitToCelsius(f float64) float64 {
	return (f - 32) * 5 / 9
}

// CelsiusToFahrenheit converts to the whole degrees Fahrenheit the grill accepts.
func CelsiusToFahrenheit(c float64) int {
	return int(math.Round(c*9/5 + 32))
}

func parseState(c byte) PowerState {
	if c < '0' || c > '9' {
		return PowerUnknown
	}

	switch c - '0' {
	case 0:
		return PowerOff
	case 1:
		return PowerOn
	case 2:
		return PowerFanMode
	default:
		return PowerUnknown
	}
}

func currentFoodTemp(h string) uint16 {
	v := readUint16(h, offsetCurrentFoodTemp)
	if v >= foodProbeDisconnected {
		return 0
	}
	return v
}

func readUint16(h string, offset int) uint16 {
	return uint16(readByte(h, offset)) | uint16(readByte(h, offset+2))<<8
}

func readByte(h string, offset int) uint8 {
	// h comes from hex.EncodeToString so the pair always parses.
	v, _ := strconv.ParseUint(h[offset:offset+2], 16, 8)
	return uint8(v)
}
