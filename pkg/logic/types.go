package logic

import "time"

// Segment is a contiguous run of logic samples from a capture source.
// Each byte holds one sample; bit k is the level of channel k.
// There is no bit packing across samples.
type Segment struct {
	SampleRate int
	Start      uint64 // absolute sample number of Data[0]
	Number     int
	Data       []byte
}

// End returns the absolute sample number one past the last sample.
func (s *Segment) End() uint64 {
	return s.Start + uint64(len(s.Data))
}

type AnnClass int

const (
	AnnStart AnnClass = iota
	AnnStop
	AnnAck
	AnnNack
	AnnCommand
	AnnData
	AnnBit
	AnnWarn
	AnnInfo
	AnnBinary
	AnnBitrate
)

var annClassNames = map[AnnClass]string{
	AnnStart:   "start",
	AnnStop:    "stop",
	AnnAck:     "ack",
	AnnNack:    "nack",
	AnnCommand: "command",
	AnnData:    "data",
	AnnBit:     "bit",
	AnnWarn:    "warn",
	AnnInfo:    "info",
	AnnBinary:  "binary",
	AnnBitrate: "bitrate",
}

func (c AnnClass) String() string {
	if s, ok := annClassNames[c]; ok {
		return s
	}
	return "unknown"
}

// Annotation is a typed, sample-bounded decode result emitted to outputs.
// Texts is ordered longest to shortest so renderers can pick what fits.
type Annotation struct {
	SessionID int       `json:"session_id"`
	Decoder   string    `json:"decoder"`
	Class     AnnClass  `json:"class"`
	ClassName string    `json:"class_name"`
	Start     uint64    `json:"start"`
	End       uint64    `json:"end"`
	Texts     []string  `json:"texts"`
	Value     *int      `json:"value,omitempty"`
	Data      []byte    `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type PacketType string

const (
	PacketStart   PacketType = "START"
	PacketStop    PacketType = "STOP"
	PacketAck     PacketType = "ACK"
	PacketNack    PacketType = "NACK"
	PacketCommand PacketType = "COMMAND"
	PacketData    PacketType = "DATA"
	PacketBits    PacketType = "BITS"
)

// Bit is a single reconstructed bit with its sample bounds.
type Bit struct {
	Value byte
	Start uint64
	End   uint64
}

// Packet is a protocol-level event handed from a bit/frame reconstructor
// to its semantic processor.
type Packet struct {
	SessionID int
	Type      PacketType
	Start     uint64
	End       uint64
	Value     byte
	Bits      []Bit
	Timestamp time.Time
}
