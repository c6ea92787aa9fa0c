package output

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/pulselab/strobe/pkg/logic"
	"github.com/rs/zerolog/log"
)

// NATSOutput publishes annotations as JSON to per-decoder subjects:
// <prefix>.<decoder>.<class>.
type NATSOutput struct {
	url           string
	subjectPrefix string
	recvChan      chan *logic.Annotation
}

func NewNATSOutput(url, subjectPrefix string) *NATSOutput {
	return &NATSOutput{
		url:           url,
		subjectPrefix: subjectPrefix,
		recvChan:      make(chan *logic.Annotation, receiveChannels),
	}
}

func (n *NATSOutput) Receive() chan<- *logic.Annotation {
	return n.recvChan
}

func (n *NATSOutput) Start(ctx context.Context) error {
	nc, err := nats.Connect(n.url)
	if err != nil {
		return err
	}
	defer nc.Drain()

	log.Info().Str("url", n.url).Str("subject_prefix", n.subjectPrefix).Msg("nats output starting")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ann := <-n.recvChan:
			encoded, err := json.Marshal(ann)
			if err != nil {
				log.Warn().Err(err).Msg("error marshaling annotation")
				continue
			}

			subject := fmt.Sprintf("%s.%s.%s", n.subjectPrefix, ann.Decoder, ann.ClassName)
			if err := nc.Publish(subject, encoded); err != nil {
				log.Warn().Err(err).Str("subject", subject).Msg("error publishing annotation")
			}
		}
	}
}
