// Copyright (C) 2020-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package health

import (
	"context"
	"testing"
	"time"

	"github.com/luxfi/ids"
)

type fakeEngineView struct {
	height uint64
	hash   ids.ID
}

func (f *fakeEngineView) HeadHeight() uint64 { return f.height }
func (f *fakeEngineView) HeadHash() ids.ID    { return f.hash }

func TestConsensusCheck_HealthyWhileAdvancing(t *testing.T) {
	view := &fakeEngineView{height: 1}
	check := NewConsensusCheck(view, 50*time.Millisecond)

	view.height = 2
	report, err := check.HealthCheck(context.Background())
	if err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
	r := report.(Report)
	if !r.Healthy {
		t.Fatalf("expected healthy report after height advanced, got %+v", r)
	}
}

func TestConsensusCheck_UnhealthyWhenStalled(t *testing.T) {
	view := &fakeEngineView{height: 1}
	check := NewConsensusCheck(view, 10*time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	report, err := check.HealthCheck(context.Background())
	if err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
	r := report.(Report)
	if r.Healthy {
		t.Fatalf("expected unhealthy report after head stalled, got %+v", r)
	}
	if len(r.Checks) != 1 || r.Checks[0].Error == "" {
		t.Fatalf("expected a single failing check with an error message, got %+v", r.Checks)
	}
}

func TestConsensusCheck_ImplementsChecker(t *testing.T) {
	var _ Checker = NewConsensusCheck(&fakeEngineView{}, time.Second)
}
