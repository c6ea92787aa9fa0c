package tmc

import (
	"fmt"
	"sort"

	"github.com/pulselab/strobe/pkg/logic"
)

// Annotation label variants, longest to shortest. Renderers pick the
// longest one that fits the zoom level.
var protocolTexts = map[logic.AnnClass][]string{
	logic.AnnStart:   {"Start", "S"},
	logic.AnnStop:    {"Stop", "P"},
	logic.AnnAck:     {"ACK", "A"},
	logic.AnnNack:    {"NACK", "N"},
	logic.AnnCommand: {"Command", "Cmd", "C"},
	logic.AnnData:    {"Data", "D"},
	logic.AnnBit:     {"Bit", "B"},
	logic.AnnWarn:    {"Warnings", "Warn", "W"},
}

// composeTexts enriches labels with a rendered value and appends the two
// shortest bare labels as fallbacks, sorted longest first.
func composeTexts(labels []string, value string) []string {
	texts := make([]string, 0, len(labels)+2)
	for _, label := range labels {
		texts = append(texts, fmt.Sprintf("%s: %s", label, value))
	}
	if len(labels) > 2 {
		texts = append(texts, labels[len(labels)-2:]...)
	} else {
		texts = append(texts, labels...)
	}
	sort.Slice(texts, func(i, j int) bool {
		return len(texts[i]) > len(texts[j])
	})
	return texts
}
