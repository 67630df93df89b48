package serialmux

import (
	"fmt"
	"strconv"
	"strings"

	"go.bug.st/serial"
)

// DefaultBaudRate is the link speed of the robot's sensor/motor board.
const DefaultBaudRate = 115200

// DefaultMode is the framing used by the board firmware.
const DefaultMode = "115200,8N1"

// PortOptions describes the serial framing of the telemetry link.
type PortOptions struct {
	BaudRate int    `json:"baud_rate"`
	DataBits int    `json:"data_bits"`
	StopBits int    `json:"stop_bits"`
	Parity   string `json:"parity"`
}

// ParseMode reads the usual "<baud>,<data><parity><stop>" notation, e.g.
// "115200,8N1" or "57600,7E2". A bare baud rate keeps the 8N1 framing.
func ParseMode(s string) (PortOptions, error) {
	baud, frame, hasFrame := strings.Cut(strings.TrimSpace(s), ",")
	rate, err := strconv.Atoi(baud)
	if err != nil || rate <= 0 {
		return PortOptions{}, fmt.Errorf("invalid baud rate in %q", s)
	}
	opts := PortOptions{BaudRate: rate}
	if !hasFrame {
		return opts.Normalize()
	}
	if len(frame) != 3 {
		return PortOptions{}, fmt.Errorf("invalid framing %q: want e.g. 8N1", frame)
	}
	if opts.DataBits, err = strconv.Atoi(frame[:1]); err != nil {
		return PortOptions{}, fmt.Errorf("invalid data bits in %q", frame)
	}
	opts.Parity = frame[1:2]
	if opts.StopBits, err = strconv.Atoi(frame[2:]); err != nil {
		return PortOptions{}, fmt.Errorf("invalid stop bits in %q", frame)
	}
	return opts.Normalize()
}

// Normalize validates the options and fills in 8N1 at DefaultBaudRate for
// unset fields.
func (o PortOptions) Normalize() (PortOptions, error) {
	opts := o
	if opts.BaudRate <= 0 {
		opts.BaudRate = DefaultBaudRate
	}
	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}
	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", opts.StopBits)
	}

	switch strings.ToUpper(strings.TrimSpace(opts.Parity)) {
	case "", "N", "NONE":
		opts.Parity = "N"
	case "E", "EVEN":
		opts.Parity = "E"
	case "O", "ODD":
		opts.Parity = "O"
	default:
		return opts, fmt.Errorf("unsupported parity %q: expected N, E, or O", opts.Parity)
	}
	return opts, nil
}

func (o PortOptions) String() string {
	return fmt.Sprintf("%d,%d%s%d", o.BaudRate, o.DataBits, o.Parity, o.StopBits)
}

// SerialMode converts the options into the go.bug.st/serial mode.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}
	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
		StopBits: serial.OneStopBit,
		Parity:   serial.NoParity,
	}
	if opts.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}
	switch opts.Parity {
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	}
	return mode, nil
}

// OpenPort opens the telemetry link at path and wraps it in a SerialMux.
// When the port cannot be opened the error lists the ports that exist.
func OpenPort(path string, opts PortOptions) (*SerialMux[serial.Port], error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		if ports, lerr := serial.GetPortsList(); lerr == nil && len(ports) > 0 {
			return nil, fmt.Errorf("open %s: %w (available: %s)", path, err, strings.Join(ports, ", "))
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return NewSerialMux[serial.Port](port), nil
}
