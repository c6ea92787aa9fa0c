package tmc

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/pulselab/strobe/pkg/logic"
	"github.com/pulselab/strobe/pkg/logic/decoder"
	"github.com/rs/zerolog"
)

// TM163x command byte dispatch, selected by bits 7:6.
const (
	cmdTypeData    = 0x01 // data command setting
	cmdTypeControl = 0x02 // display control command
	cmdTypeAddress = 0x03 // address command setting
)

const (
	dataCmdRead      = 0x02
	dataCmdFixedAddr = 0x04
	dataCmdTestMode  = 0x08
)

// Highest display register address across the supported chips; TM1637
// stops at 0x05, TM1638 at 0x0F.
const maxDisplayAddress = 0x0f

// Display pulse width (brightness duty cycle) for control command bits 2:0.
var pulseWidths = [8]string{"1/16", "2/16", "4/16", "10/16", "11/16", "12/16", "13/16", "14/16"}

// Processor interprets reconstructed TMC packets into chip-level meaning:
// register writes, addressing mode, display on/off and brightness.
type Processor struct {
	packets   chan logic.Packet
	em        decoder.Emitter
	writeAPI  api.WriteAPI
	logger    zerolog.Logger
	sessionID int

	sawCommand bool
	writeMode  bool
	autoAddr   bool
	haveAddr   bool
	address    int
	pduBytes   int
}

func NewProcessor(sessionID int, packets chan logic.Packet, em decoder.Emitter, writeAPI api.WriteAPI, logger zerolog.Logger) *Processor {
	return &Processor{
		packets:   packets,
		em:        em,
		writeAPI:  writeAPI,
		logger:    logger,
		sessionID: sessionID,
		writeMode: true,
		autoAddr:  true,
	}
}

func (p *Processor) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case pkt := <-p.packets:
			metrics := make(map[string]interface{})
			p.handlePacket(pkt, metrics)

			if len(metrics) > 0 {
				go p.writeAPI.WritePoint(influxdb2.NewPoint("tmc.packet.processed",
					map[string]string{
						"decoder": "tmc",
					},
					metrics, time.Now()))
			}
		}
	}
}

func (p *Processor) handlePacket(pkt logic.Packet, metrics map[string]interface{}) {
	switch pkt.Type {
	case logic.PacketStart:
		p.sawCommand = false
		p.pduBytes = 0
		incMap(metrics, "pdu_start")

	case logic.PacketCommand:
		p.sawCommand = true
		p.pduBytes++
		p.handleCommand(pkt, metrics)

	case logic.PacketData:
		p.pduBytes++
		p.handleData(pkt, metrics)

	case logic.PacketNack:
		p.warn(pkt, "NACK from device")
		incMap(metrics, "nack")

	case logic.PacketAck:
		incMap(metrics, "ack")

	case logic.PacketStop:
		p.logger.Debug().
			Int("session", p.sessionID).
			Int("bytes", p.pduBytes).
			Str("decoder", "tmc").
			Msg("transaction complete")
		metrics["pdu_bytes"] = p.pduBytes
		incMap(metrics, "pdu_stop")

	case logic.PacketBits:
		// Bit-level packets carry no chip semantics.
	}
}

func (p *Processor) handleCommand(pkt logic.Packet, metrics map[string]interface{}) {
	v := pkt.Value

	switch v >> 6 {
	case cmdTypeData:
		p.writeMode = v&dataCmdRead == 0
		p.autoAddr = v&dataCmdFixedAddr == 0

		op := "write display data"
		if !p.writeMode {
			op = "read key scan"
		}
		mode := "auto-increment address"
		if !p.autoAddr {
			mode = "fixed address"
		}
		suffix := ""
		if v&dataCmdTestMode != 0 {
			suffix = ", test mode"
			p.warn(pkt, "test mode enabled")
		}

		p.info(pkt, fmt.Sprintf("Data command: %s, %s%s", op, mode, suffix), "Data command", "DC")
		incMap(metrics, "data_command")

		p.logger.Debug().
			Bool("write", p.writeMode).
			Bool("auto_increment", p.autoAddr).
			Str("decoder", "tmc").
			Msg("data command")

	case cmdTypeControl:
		on := v&0x08 != 0
		if on {
			duty := pulseWidths[v&0x07]
			p.info(pkt, fmt.Sprintf("Display control: on, pulse width %s", duty), "Display on", "On")
		} else {
			p.info(pkt, "Display control: off", "Display off", "Off")
		}
		incMap(metrics, "display_control")

		p.logger.Debug().
			Bool("display_on", on).
			Int("pulse_width", int(v&0x07)).
			Str("decoder", "tmc").
			Msg("display control")

	case cmdTypeAddress:
		addr := int(v & 0x3f)
		p.address = addr
		p.haveAddr = true
		if addr > maxDisplayAddress {
			p.warn(pkt, fmt.Sprintf("Display address %#04x out of range", addr))
			incMap(metrics, "address_out_of_range")
		} else {
			p.info(pkt, fmt.Sprintf("Address command: GRID%d", addr+1), "Address", "Addr")
		}
		incMap(metrics, "address_command")

	default:
		p.warn(pkt, fmt.Sprintf("Unrecognized command %#04x", v))
		incMap(metrics, "unknown_command")
	}
}

func (p *Processor) handleData(pkt logic.Packet, metrics map[string]interface{}) {
	if !p.sawCommand {
		p.warn(pkt, "Data byte before any command")
		incMap(metrics, "data_before_command")
		return
	}

	if p.writeMode && p.haveAddr {
		p.info(pkt, fmt.Sprintf("Segment data for GRID%d", p.address+1), "Segments", "Seg")
		if p.autoAddr {
			p.address++
		}
	}
	incMap(metrics, "data_byte")
}

func (p *Processor) info(pkt logic.Packet, texts ...string) {
	p.em.Annotate(logic.Annotation{
		SessionID: p.sessionID,
		Decoder:   "tmc",
		Class:     logic.AnnInfo,
		ClassName: logic.AnnInfo.String(),
		Start:     pkt.Start,
		End:       pkt.End,
		Texts:     texts,
		Timestamp: time.Now().UTC(),
	})
}

func (p *Processor) warn(pkt logic.Packet, text string) {
	p.em.Annotate(logic.Annotation{
		SessionID: p.sessionID,
		Decoder:   "tmc",
		Class:     logic.AnnWarn,
		ClassName: logic.AnnWarn.String(),
		Start:     pkt.Start,
		End:       pkt.End,
		Texts:     []string{text},
		Timestamp: time.Now().UTC(),
	})
}

func incMap(m map[string]interface{}, key string) {
	val := m[key]
	if v, ok := val.(int); ok {
		m[key] = v + 1
	} else {
		m[key] = 1
	}
}
