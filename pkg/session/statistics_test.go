// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"errors"
	"strings"
	"testing"

	"github.com/radicalsystems/mistctl/pkg/protocol"
)

func TestStatisticsUpdate(t *testing.T) {
	s := NewStatistics()

	ping := protocol.NewPing()
	s.Update(ping, nil, nil)
	s.Update(ping, nil, []protocol.ValidationError{{Type: protocol.AnomalyOutOfRange}, {Type: protocol.AnomalyInvalidDate}})
	s.Update(nil, errors.New("bad frame"), nil)

	snap := s.Snapshot()
	if snap.Frames != 3 || snap.Messages != 2 || snap.DecodeErrors != 1 || snap.Anomalies != 2 {
		t.Errorf("frames/messages/errors/anomalies = %d/%d/%d/%d, want 3/2/1/2",
			snap.Frames, snap.Messages, snap.DecodeErrors, snap.Anomalies)
	}
	if snap.Elapsed <= 0 {
		t.Errorf("Elapsed = %v", snap.Elapsed)
	}

	out := s.String()
	for _, want := range []string{"=== Statistics", "Total Frames:", "Decode Errors:", "Anomalies:"} {
		if !strings.Contains(out, want) {
			t.Errorf("String() missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Read Errors:") {
		t.Error("String() shows zero read errors")
	}

	s.Reset()
	if snap := s.Snapshot(); snap.Frames != 0 || snap.DecodeErrors != 0 {
		t.Errorf("after Reset: %+v", snap)
	}
}
