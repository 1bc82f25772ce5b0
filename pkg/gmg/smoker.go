package gmg

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	ModelDanielBoone = "Daniel Boone"
	ModelJimBowie    = "Jim Bowie"
	ModelUnknown     = "Unknown"

	firmwareOffset = 11
)

// Smoker identifies a grill on the network.
type Smoker struct {
	DeviceID    string
	DeviceModel string
	Firmware    string
	IPAddress   string
	Status      *Status
}

// UUID returns a stable identifier derived from the device id.
func (s *Smoker) UUID() uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(s.DeviceID))
}

// ParseModel maps a CommandGetModel response to a model name and firmware version.
// Unknown models report the whole response as the firmware.
func ParseModel(raw string) (model, firmware string) {
	if len(raw) < 4 {
		return ModelUnknown, raw
	}

	switch raw[2:4] {
	case "DB":
		model = ModelDanielBoone
	case "JB":
		model = ModelJimBowie
	default:
		return ModelUnknown, raw
	}

	if len(raw) > firmwareOffset {
		firmware = raw[firmwareOffset:]
	}
	return model, firmware
}

// FetchSmoker assembles the identity of the grill the client talks to,
// discovering it first when needed.
func FetchSmoker(ctx context.Context, c *Client) (*Smoker, error) {
	model, firmware, err := c.ModelAndFirmware(ctx)
	if err != nil {
		return nil, err
	}

	id, err := c.ID(ctx)
	if err != nil {
		return nil, err
	}

	status, err := c.Status(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fetching smoker")
	}

	return &Smoker{
		DeviceID:    id,
		DeviceModel: model,
		Firmware:    firmware,
		IPAddress:   c.Host(),
		Status:      status,
	}, nil
}
