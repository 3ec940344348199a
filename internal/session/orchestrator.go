// Package session drives one connect/negotiate/apply/disconnect interaction
// with a device. Every failure is absorbed into the returned Outcome; nothing
// here propagates an error to the caller.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"rew2streammagic/internal/eq"
	"rew2streammagic/internal/logger"
	"rew2streammagic/internal/streammagic"
)

// Device is the control surface the orchestrator needs from a device client.
type Device interface {
	Connect(ctx context.Context) error
	Info(ctx context.Context) (streammagic.Info, error)
	SetEqualizer(ctx context.Context, userEQ eq.UserEQ) error
	Disconnect() error
}

// Stage tags a trail entry with the protocol phase that produced it.
type Stage string

const (
	StageConnect    Stage = "connect"
	StageInfo       Stage = "info"
	StageNegotiate  Stage = "negotiate"
	StageApply      Stage = "apply"
	StageDisconnect Stage = "disconnect"
)

// TrailEntry is one human-diagnostic line of the session record.
type TrailEntry struct {
	Stage   Stage
	Message string
}

// Outcome is the result of one session attempt. There is no partial success:
// either the whole band list was applied or Success is false.
type Outcome struct {
	Success bool
	Trail   []TrailEntry
}

// Orchestrator owns the lifecycle of a single device session.
type Orchestrator struct {
	device     Device
	minVersion string
	log        *logger.Logger
}

// New returns an orchestrator applying settings through device, gated on the
// device reporting at least minVersion.
func New(device Device, minVersion string, log *logger.Logger) *Orchestrator {
	return &Orchestrator{device: device, minVersion: minVersion, log: log}
}

// Apply runs the full session: connect, query info, check the version floor,
// submit the band list, disconnect. The disconnect runs on every path that
// reached a connection, including failures; a disconnect error after a
// successful apply is logged but does not flip the outcome.
func (o *Orchestrator) Apply(ctx context.Context, userEQ eq.UserEQ) (out Outcome) {
	sessionID := uuid.NewString()

	record := func(stage Stage, format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		out.Trail = append(out.Trail, TrailEntry{Stage: stage, Message: msg})
		o.log.Infow(msg, "stage", string(stage), "session", sessionID)
	}

	if err := o.device.Connect(ctx); err != nil {
		record(StageConnect, "connect failed (%s): %v", categorize(err), err)
		noteCancellation(ctx, StageConnect, record)
		return out
	}
	record(StageConnect, "connected")

	defer func() {
		if err := o.device.Disconnect(); err != nil {
			o.log.Warnw("disconnect failed", "session", sessionID, "err", err)
			out.Trail = append(out.Trail, TrailEntry{
				Stage:   StageDisconnect,
				Message: fmt.Sprintf("disconnect failed: %v", err),
			})
			return
		}
		out.Trail = append(out.Trail, TrailEntry{Stage: StageDisconnect, Message: "disconnected"})
	}()

	info, err := o.device.Info(ctx)
	if err != nil {
		record(StageInfo, "info query failed (%s): %v", categorize(err), err)
		noteCancellation(ctx, StageInfo, record)
		return out
	}
	record(StageInfo, "device %s (%s), api %s", info.Name, info.Model, info.APIVersion)

	if !versionAtLeast(info.APIVersion, o.minVersion) {
		record(StageNegotiate, "device api version %q below required %q",
			info.APIVersion, o.minVersion)
		return out
	}
	record(StageNegotiate, "api version %s accepted (floor %s)", info.APIVersion, o.minVersion)

	if err := o.device.SetEqualizer(ctx, userEQ); err != nil {
		record(StageApply, "apply failed (%s): %v", categorize(err), err)
		noteCancellation(ctx, StageApply, record)
		return out
	}
	record(StageApply, "applied %d equalizer bands", len(userEQ.Bands))

	out.Success = true
	return out
}

// noteCancellation adds a trail marker when the failure was an operator
// cancel rather than a device-side problem.
func noteCancellation(ctx context.Context, stage Stage, record func(Stage, string, ...any)) {
	if errors.Is(ctx.Err(), context.Canceled) {
		record(stage, "session cancelled by operator")
	}
}

// categorize maps a normalized transport error onto the diagnostic category
// used in the trail.
func categorize(err error) string {
	switch {
	case errors.Is(err, streammagic.ErrUnreachable):
		return "unreachable"
	case errors.Is(err, streammagic.ErrTimeout):
		return "timeout"
	case errors.Is(err, streammagic.ErrRejected):
		return "rejected"
	default:
		return "transport-error"
	}
}
