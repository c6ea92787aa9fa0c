package wait

import (
	"reflect"
	"testing"
)

func TestScannerMatch(t *testing.T) {
	const (
		clk = 0
		dio = 1
	)

	conds := []Cond{
		{clk: High, dio: Falling},
		{clk: Rising},
		{dio: Either},
	}

	type step struct {
		sample byte
		want   []int
	}

	tests := []struct {
		name  string
		steps []step
	}{{
		"no edges on first sample",
		[]step{
			{0b01, []int{}},
		},
	}, {
		"clock rising",
		[]step{
			{0b00, []int{}},
			{0b01, []int{1}},
		},
	}, {
		"dio falling with clk high",
		[]step{
			{0b11, []int{}},
			{0b01, []int{0, 2}},
		},
	}, {
		"dio rising matches either only",
		[]step{
			{0b01, []int{}},
			{0b11, []int{2}},
		},
	}, {
		"level holds do not rematch edges",
		[]step{
			{0b00, []int{}},
			{0b01, []int{1}},
			{0b01, []int{}},
		},
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScanner()
			for i, step := range tt.steps {
				m := s.Match(step.sample, conds)
				got := []int{}
				for c := range conds {
					if m.Is(c) {
						got = append(got, c)
					}
				}
				if !reflect.DeepEqual(got, step.want) {
					t.Errorf("step %d: matched = %v, want %v", i, got, step.want)
				}
			}
		})
	}
}

func TestScannerCarriesStateAcrossCalls(t *testing.T) {
	s := NewScanner()
	conds := []Cond{{0: Rising}}

	if m := s.Match(0, conds); m.Any() {
		t.Errorf("first sample matched = %v, want none", m)
	}
	if m := s.Match(1, conds); !m.Is(0) {
		t.Errorf("rising edge not matched")
	}

	s.Reset()
	if m := s.Match(1, conds); m.Any() {
		t.Errorf("matched after reset = %v, want none", m)
	}
}

func TestUnmappedChannelNeverMatches(t *testing.T) {
	s := NewScanner()
	conds := []Cond{{-1: Falling}, {0: High}}

	s.Match(1, conds)
	m := s.Match(1, conds)
	if m.Is(0) {
		t.Errorf("condition on unmapped channel matched")
	}
	if !m.Is(1) {
		t.Errorf("level condition did not match")
	}
}
