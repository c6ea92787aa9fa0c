package output

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/pulselab/strobe/pkg/logic"
	"github.com/pulselab/strobe/pkg/strobe/config"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const receiveChannels = 8

// JSONUDPOutput sends length-prefixed JSON annotation datagrams to a set
// of destinations.
type JSONUDPOutput struct {
	dests    []config.OutputDestination
	recvChan chan *logic.Annotation
	metrics  api.WriteAPI
}

func NewJSONUDPOutput(dests []config.OutputDestination, metrics api.WriteAPI) *JSONUDPOutput {
	return &JSONUDPOutput{
		dests:    dests,
		recvChan: make(chan *logic.Annotation, receiveChannels),
		metrics:  metrics,
	}
}

func (s *JSONUDPOutput) Receive() chan<- *logic.Annotation {
	return s.recvChan
}

func (s *JSONUDPOutput) Start(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)

	const numSenders int = 4

	destAddrs := make([]*net.UDPAddr, 0, len(s.dests))
	for _, dest := range s.dests {

		ips, err := net.LookupIP(dest.Host)
		if err != nil {
			return err
		}
		if len(ips) == 0 {
			return fmt.Errorf("no IPs returned for %s", dest.Host)
		}

		destAddr := &net.UDPAddr{IP: ips[0], Port: dest.Port}
		destAddrs = append(destAddrs, destAddr)
		log.Info().IPAddr("dest_ip", destAddr.IP).Int("port", dest.Port).Msg("annotation output starting")
	}

	for i := 0; i < numSenders; i++ {
		eg.Go(func() error {

			conn, err := net.ListenUDP("udp", nil)
			if err != nil {
				return err
			}
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case ann := <-s.recvChan:

					encoded, err := json.Marshal(ann)
					if err != nil {
						log.Warn().Err(err).Msg("error marshaling annotation")
						continue
					}

					var msgBuf bytes.Buffer
					if err := binary.Write(&msgBuf, binary.LittleEndian, uint16(len(encoded))); err != nil {
						log.Warn().Err(err).Msg("error encoding header size")
						continue
					}
					if _, err := msgBuf.Write(encoded); err != nil {
						log.Warn().Err(err).Msg("error writing encoded message")
						continue
					}

					success := true
					var bytesWritten int
					for _, destAddr := range destAddrs {
						bytesWritten, err = conn.WriteToUDP(msgBuf.Bytes(), destAddr)
						if err != nil {
							log.Error().Err(err).Msg("error writing")
							success = false
						}
					}

					go s.metrics.WritePoint(influxdb2.NewPoint("annotation.sent",
						map[string]string{
							"decoder": ann.Decoder,
							"class":   ann.ClassName,
							"session": strconv.Itoa(ann.SessionID),
						},
						map[string]interface{}{
							"bytes_written":  bytesWritten,
							"encoded_length": len(encoded),
							"sent": func() int {
								if success {
									return 1
								}
								return 0
							}(),
							"dropped": func() int {
								if success {
									return 0
								}
								return 1
							}(),
						}, time.Now()))
				}
			}
		})
	}

	return eg.Wait()
}
