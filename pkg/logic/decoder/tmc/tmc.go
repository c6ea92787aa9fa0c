// Package tmc decodes the Titan Micro serial bus used by TM1636/37/38
// LED driver chips. The bus runs on 2 wires (CLK, DIO) or 3 wires
// (CLK, DIO, STB). It resembles I2C but has no slave address and
// transmits data bytes least significant bit first.
package tmc

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pulselab/strobe/pkg/logic"
	"github.com/pulselab/strobe/pkg/logic/decoder"
	"github.com/pulselab/strobe/pkg/logic/wait"
	"github.com/rs/zerolog"
)

type Bus string

const (
	BusWire2 Bus = "wire2"
	BusWire3 Bus = "wire3"
)

type state int

const (
	stateFindStart state = iota
	stateFindData
	stateFindAck
)

var (
	ErrNoSampleRate   = fmt.Errorf("tmc: cannot decode without sample rate")
	ErrMissingChannel = fmt.Errorf("tmc: both CLK and DIO channels required")
)

type Options struct {
	SessionID  int
	SampleRate int
	CLK        int
	DIO        int
	STB        int // -1 when not captured; disables 3-wire detection
	Radix      logic.Radix
}

// Decoder reconstructs TMC bus traffic as bits, bytes and bus conditions.
// The first byte after a START is a COMMAND, subsequent bytes are DATA.
// Reconstructed packets go to the packet channel for semantic processing,
// annotations go to the emitter as they are recognized.
type Decoder struct {
	opts    Options
	em      decoder.Emitter
	packets chan logic.Packet
	logger  zerolog.Logger
	ctx     context.Context

	scanner    *wait.Scanner
	startConds []wait.Cond
	dataConds  []wait.Cond
	ackConds   []wait.Cond

	state     state
	bus       Bus
	pduStart  uint64
	pduBits   int
	ssByte    uint64
	ssAck     uint64
	byteCount int
	bitCount  int
	dataByte  byte
	bits      []logic.Bit
}

func NewDecoder(ctx context.Context, opts Options, em decoder.Emitter, packets chan logic.Packet, logger zerolog.Logger) (*Decoder, error) {
	if opts.SampleRate <= 0 {
		return nil, ErrNoSampleRate
	}
	if opts.CLK < 0 || opts.DIO < 0 {
		return nil, ErrMissingChannel
	}

	d := &Decoder{
		opts:    opts,
		em:      em,
		packets: packets,
		logger:  logger,
		ctx:     ctx,
		scanner: wait.NewScanner(),
	}

	// START conditions: a falling STB with CLK in either state opens a
	// 3-wire transaction, a falling DIO with CLK high opens a 2-wire one.
	d.startConds = []wait.Cond{
		{opts.CLK: wait.High, opts.STB: wait.Falling},
		{opts.CLK: wait.Low, opts.STB: wait.Falling},
		{opts.CLK: wait.High, opts.DIO: wait.Falling},
	}
	// Inside a transaction: STOP via rising STB (3-wire) or rising DIO
	// with CLK high (2-wire), otherwise bits clock in on rising CLK.
	d.dataConds = []wait.Cond{
		{opts.STB: wait.Rising},
		{opts.CLK: wait.High, opts.DIO: wait.Rising},
		{opts.CLK: wait.Rising},
	}
	d.ackConds = []wait.Cond{
		{opts.CLK: wait.Falling},
	}

	d.Reset()
	return d, nil
}

func (d *Decoder) Reset() {
	d.scanner.Reset()
	d.state = stateFindStart
	d.bus = ""
	d.pduStart = 0
	d.pduBits = 0
	d.ssByte = 0
	d.ssAck = 0
	d.byteCount = 0
	d.clearData()
}

func (d *Decoder) clearData() {
	d.bitCount = 0
	d.dataByte = 0
	d.bits = nil
}

func (d *Decoder) Process(seg *logic.Segment) error {
	for i, cur := range seg.Data {
		sn := seg.Start + uint64(i)
		dio := (cur >> uint(d.opts.DIO)) & 1

		switch d.state {
		case stateFindStart:
			m := d.scanner.Match(cur, d.startConds)
			switch {
			case m.Is(0) || m.Is(1):
				d.bus = BusWire3
				d.handleStart(sn)
			case m.Is(2):
				d.bus = BusWire2
				d.handleStart(sn)
			}

		case stateFindData:
			m := d.scanner.Match(cur, d.dataConds)
			switch {
			case m.Is(0) || m.Is(1):
				d.handleStop(sn)
			case m.Is(2):
				d.handleData(sn, dio)
			}

		case stateFindAck:
			if d.scanner.Match(cur, d.ackConds).Is(0) {
				d.handleAck(sn, dio)
			}
		}
	}
	return nil
}

func (d *Decoder) handleStart(sn uint64) {
	d.pduStart = sn
	d.pduBits = 0
	d.byteCount = 0
	d.sendPacket(logic.Packet{Type: logic.PacketStart, Start: sn, End: sn})
	d.annotate(logic.AnnStart, sn, sn, protocolTexts[logic.AnnStart], nil, nil)
	d.clearData()
	d.state = stateFindData
	d.logger.Debug().Str("decoder", "tmc").Str("bus", string(d.bus)).Uint64("samplenum", sn).Msg("start condition")
}

func (d *Decoder) handleData(sn uint64, dio byte) {
	d.pduBits++
	if d.bitCount == 0 {
		d.ssByte = sn
	}
	switch d.bus {
	case BusWire3:
		d.handleDataWire3(sn, dio)
	default:
		d.handleDataWire2(sn, dio)
	}
}

// handleDataWire2 runs at every rising CLK edge. Bits are accumulated
// LSB first; the ninth clock pulse is the ACK slot. A bit's end sample
// is only known once the next clock edge arrives, so bits are annotated
// one edge behind.
func (d *Decoder) handleDataWire2(sn uint64, dio byte) {
	d.bits = append([]logic.Bit{{Value: dio, Start: sn, End: sn}}, d.bits...)
	if d.bitCount > 0 {
		d.bits[1].End = sn
		if d.bitCount <= 8 {
			d.annotateBit(d.bits[1])
		}
	}
	d.bitCount++
	if d.bitCount <= 8 {
		d.dataByte >>= 1
		d.dataByte |= dio << 7
		return
	}

	// Ninth clock pulse: the byte is complete.
	ss, es := d.ssByte, sn
	d.bits = d.bits[len(d.bits)-8:] // drop the superfluous ACK slot bit
	reverseBits(d.bits)
	d.emitByte(ss, es)
	d.clearData()
	d.ssAck = sn
	d.byteCount++
	d.state = stateFindAck
}

func (d *Decoder) handleAck(sn uint64, dio byte) {
	ss, es := d.ssAck, sn
	class, ptype := logic.AnnAck, logic.PacketAck
	if dio == 1 {
		class, ptype = logic.AnnNack, logic.PacketNack
	}
	d.sendPacket(logic.Packet{Type: ptype, Start: ss, End: es})
	d.annotate(class, ss, es, protocolTexts[class], nil, nil)
	d.state = stateFindData
}

// handleDataWire3 runs at every rising CLK edge. Bytes flush on the
// first edge past the eighth bit and at STOP.
func (d *Decoder) handleDataWire3(sn uint64, dio byte) {
	if d.bitCount >= 8 {
		d.flushByteWire3(sn)
		d.clearData()
		d.ssByte = sn
	}
	d.bits = append([]logic.Bit{{Value: dio, Start: sn, End: sn}}, d.bits...)
	d.dataByte >>= 1
	d.dataByte |= dio << 7
	if d.bitCount > 0 {
		d.bits[1].End = sn
	}
	d.bitCount++
}

func (d *Decoder) flushByteWire3(sn uint64) {
	if len(d.bits) == 0 {
		return
	}
	d.bits[0].End = sn
	for _, b := range d.bits {
		d.annotateBit(b)
	}
	ss, es := d.ssByte, sn
	reverseBits(d.bits)
	d.emitByte(ss, es)
	d.byteCount++
}

// emitByte publishes the assembled byte. Bits must already be in
// transmission (LSB first) order.
func (d *Decoder) emitByte(ss, es uint64) {
	class, ptype := logic.AnnData, logic.PacketData
	if d.byteCount == 0 {
		class, ptype = logic.AnnCommand, logic.PacketCommand
	}

	bits := make([]logic.Bit, len(d.bits))
	copy(bits, d.bits)
	d.sendPacket(logic.Packet{Type: logic.PacketBits, Start: ss, End: es, Bits: bits})
	d.sendPacket(logic.Packet{Type: ptype, Start: ss, End: es, Value: d.dataByte})

	value := int(d.dataByte)
	d.annotate(logic.AnnBinary, ss, es, nil, &value, []byte{d.dataByte})
	d.annotate(class, ss, es,
		composeTexts(protocolTexts[class], logic.FormatValue(d.dataByte, d.opts.Radix)),
		&value, nil)
}

func (d *Decoder) handleStop(sn uint64) {
	d.emitBitrate(sn)
	if d.bus == BusWire3 {
		d.flushByteWire3(sn)
	}
	d.sendPacket(logic.Packet{Type: logic.PacketStop, Start: sn, End: sn})
	d.annotate(logic.AnnStop, sn, sn, protocolTexts[logic.AnnStop], nil, nil)
	d.clearData()
	d.state = stateFindStart
	d.logger.Debug().
		Str("decoder", "tmc").
		Uint64("samplenum", sn).
		Int("pdu_bits", d.pduBits).
		Dur("pdu", logic.SamplesToDuration(d.opts.SampleRate, sn-d.pduStart)).
		Msg("stop condition")
}

// emitBitrate reports the effective bit rate between START and STOP of
// the transaction just finished, spanning the last byte.
func (d *Decoder) emitBitrate(sn uint64) {
	if sn < d.pduStart+2 || d.pduBits == 0 {
		return
	}
	elapsed := float64(sn-d.pduStart-1) / float64(d.opts.SampleRate)
	bitrate := int(float64(d.pduBits) / elapsed)
	value := bitrate
	d.annotate(logic.AnnBitrate, d.ssByte, sn,
		[]string{logic.BitrateToString(bitrate)}, &value, nil)
}

func (d *Decoder) annotateBit(b logic.Bit) {
	d.annotate(logic.AnnBit, b.Start, b.End, []string{strconv.Itoa(int(b.Value))}, nil, nil)
}

func (d *Decoder) annotate(class logic.AnnClass, ss, es uint64, texts []string, value *int, data []byte) {
	d.em.Annotate(logic.Annotation{
		SessionID: d.opts.SessionID,
		Decoder:   "tmc",
		Class:     class,
		ClassName: class.String(),
		Start:     ss,
		End:       es,
		Texts:     texts,
		Value:     value,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

func (d *Decoder) sendPacket(p logic.Packet) {
	p.SessionID = d.opts.SessionID
	p.Timestamp = time.Now().UTC()
	select {
	case <-d.ctx.Done():
	case d.packets <- p:
	}
}

func reverseBits(bits []logic.Bit) {
	for i, j := 0, len(bits)-1; i < j; i, j = i+1, j-1 {
		bits[i], bits[j] = bits[j], bits[i]
	}
}
