package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"rew2streammagic/internal/eq"
	"rew2streammagic/internal/logger"
	"rew2streammagic/internal/streammagic"
)

type fakeDevice struct {
	connectErr error
	info       streammagic.Info
	infoErr    error
	applyErr   error
	discErr    error

	connectCalls    int
	infoCalls       int
	applyCalls      int
	disconnectCalls int
	applied         eq.UserEQ
}

func (f *fakeDevice) Connect(ctx context.Context) error {
	f.connectCalls++
	return f.connectErr
}

func (f *fakeDevice) Info(ctx context.Context) (streammagic.Info, error) {
	f.infoCalls++
	return f.info, f.infoErr
}

func (f *fakeDevice) SetEqualizer(ctx context.Context, userEQ eq.UserEQ) error {
	f.applyCalls++
	f.applied = userEQ
	return f.applyErr
}

func (f *fakeDevice) Disconnect() error {
	f.disconnectCalls++
	return f.discErr
}

func testLog() *logger.Logger {
	return logger.Get(logger.ErrorLevel)
}

func testEQ() eq.UserEQ {
	gain := 3.0
	return eq.UserEQ{Bands: []eq.Band{
		{Index: 0, Filter: eq.Peaking, Freq: 100, Gain: &gain},
	}}
}

func trailContains(out Outcome, stage Stage, substr string) bool {
	for _, e := range out.Trail {
		if e.Stage == stage && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

func TestApplyHappyPath(t *testing.T) {
	dev := &fakeDevice{info: streammagic.Info{APIVersion: "1.9", Model: "CXN100"}}
	out := New(dev, "1.9", testLog()).Apply(context.Background(), testEQ())

	if !out.Success {
		t.Fatalf("expected success, trail: %+v", out.Trail)
	}
	if dev.applyCalls != 1 {
		t.Fatalf("expected one apply call, got %d", dev.applyCalls)
	}
	if len(dev.applied.Bands) != 1 {
		t.Fatalf("expected the band list to reach the device")
	}
	if dev.disconnectCalls != 1 {
		t.Fatalf("expected disconnect after success, got %d calls", dev.disconnectCalls)
	}
}

func TestApplyConnectFailureStopsEarly(t *testing.T) {
	dev := &fakeDevice{
		connectErr: fmt.Errorf("%w: no route", streammagic.ErrUnreachable),
	}
	out := New(dev, "1.9", testLog()).Apply(context.Background(), testEQ())

	if out.Success {
		t.Fatal("expected failure")
	}
	if dev.infoCalls != 0 || dev.applyCalls != 0 {
		t.Fatalf("neither info nor apply may run after a connect failure (info=%d apply=%d)",
			dev.infoCalls, dev.applyCalls)
	}
	if dev.disconnectCalls != 0 {
		t.Fatal("no connection was made, nothing to disconnect")
	}
	if !trailContains(out, StageConnect, "unreachable") {
		t.Fatalf("expected unreachable category in trail: %+v", out.Trail)
	}
}

func TestApplyVersionTooOldStillDisconnects(t *testing.T) {
	dev := &fakeDevice{info: streammagic.Info{APIVersion: "1.8"}}
	out := New(dev, "1.9", testLog()).Apply(context.Background(), testEQ())

	if out.Success {
		t.Fatal("expected failure for version below floor")
	}
	if dev.applyCalls != 0 {
		t.Fatal("apply must not run when the version gate fails")
	}
	if dev.disconnectCalls != 1 {
		t.Fatalf("orderly disconnect must run on the version-gate path, got %d calls", dev.disconnectCalls)
	}
	if !trailContains(out, StageNegotiate, `"1.8"`) || !trailContains(out, StageNegotiate, `"1.9"`) {
		t.Fatalf("trail must log floor vs reported version: %+v", out.Trail)
	}
}

func TestApplyFailureIsAllOrNothing(t *testing.T) {
	dev := &fakeDevice{
		info:     streammagic.Info{APIVersion: "2.0"},
		applyErr: fmt.Errorf("%w: invalid band", streammagic.ErrRejected),
	}
	out := New(dev, "1.9", testLog()).Apply(context.Background(), testEQ())

	if out.Success {
		t.Fatal("a failed apply fails the whole session")
	}
	if dev.applyCalls != 1 {
		t.Fatalf("expected exactly one apply attempt, got %d", dev.applyCalls)
	}
	if dev.disconnectCalls != 1 {
		t.Fatal("orderly disconnect must run on the apply-failure path")
	}
}

func TestApplyDisconnectErrorKeepsSuccess(t *testing.T) {
	dev := &fakeDevice{
		info:    streammagic.Info{APIVersion: "1.9"},
		discErr: errors.New("close handshake lost"),
	}
	out := New(dev, "1.9", testLog()).Apply(context.Background(), testEQ())

	if !out.Success {
		t.Fatal("a failed disconnect after a successful apply is cosmetic")
	}
	if !trailContains(out, StageDisconnect, "disconnect failed") {
		t.Fatalf("expected a disconnect warning in the trail: %+v", out.Trail)
	}
}

func TestApplyCancelledContextNoted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dev := &fakeDevice{
		connectErr: fmt.Errorf("%w: %v", streammagic.ErrTransport, context.Canceled),
	}
	out := New(dev, "1.9", testLog()).Apply(ctx, testEQ())

	if out.Success {
		t.Fatal("expected failure")
	}
	if !trailContains(out, StageConnect, "cancelled") {
		t.Fatalf("expected cancellation note in trail: %+v", out.Trail)
	}
}

func TestApplyMalformedReportedVersionFailsGate(t *testing.T) {
	dev := &fakeDevice{info: streammagic.Info{APIVersion: "unknown"}}
	out := New(dev, "1.9", testLog()).Apply(context.Background(), testEQ())

	if out.Success {
		t.Fatal("an unparseable reported version must fail the gate")
	}
	if dev.disconnectCalls != 1 {
		t.Fatal("orderly disconnect must still run")
	}
}
