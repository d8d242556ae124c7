// Package engine composes sched, trial, trajectory, display, fixation,
// record, continuous, and syncmark into the two live sessions the mode
// controller drives: a per-trial session (spec.md §5's tick ordering) and
// a continuous-mode session. Grounded on the teacher's hardware/cpu tick
// loop shape carried through sched, composed here the way riot/peripherals
// compose several chip packages behind one Instance rather than one
// monolithic VCS object.
package engine

import (
	"github.com/cxlab/cxdriver/device"
	"github.com/cxlab/cxdriver/trial"
)

// MailboxEyeFeed adapts a mailbox's buffered eye-sample channel to
// device.EyeTracker, bridging the mailbox's DeliverEyeSample/NextEyeSample
// naming (spec.md §6) to the interface's GetNextSample contract.
type MailboxEyeFeed struct {
	mb   mailboxEyeSource
	kind device.RecordType
}

// mailboxEyeSource is the narrow slice of *mailbox.Mailbox this adapter
// needs, kept as an interface so engine does not import mailbox just for
// this one call.
type mailboxEyeSource interface {
	NextEyeSample(flush bool) (device.EyeSample, bool, bool)
}

// NewMailboxEyeFeed builds a MailboxEyeFeed over mb, reporting kind as its
// RecordType.
func NewMailboxEyeFeed(mb mailboxEyeSource, kind device.RecordType) *MailboxEyeFeed {
	return &MailboxEyeFeed{mb: mb, kind: kind}
}

func (f *MailboxEyeFeed) GetNextSample(flush bool) (device.EyeSample, bool, bool) {
	return f.mb.NextEyeSample(flush)
}

func (f *MailboxEyeFeed) RecordType() device.RecordType { return f.kind }

var _ device.EyeTracker = (*MailboxEyeFeed)(nil)

// eyePos collapses a binocular/monocular sample to the single gaze-point
// vector the fixation and trajectory engines check against: the mean of
// whichever eyes are reporting.
func eyePos(s device.EyeSample) trial.Vec2 {
	var sum trial.Vec2
	var n float64
	if s.LeftHasEye {
		sum.H += s.LeftPos[0]
		sum.V += s.LeftPos[1]
		n++
	}
	if s.RightHasEye {
		sum.H += s.RightPos[0]
		sum.V += s.RightPos[1]
		n++
	}
	if n == 0 {
		return trial.Vec2{}
	}
	return trial.Vec2{H: sum.H / n, V: sum.V / n}
}

// eyeVel is eyePos's velocity counterpart.
func eyeVel(s device.EyeSample) trial.Vec2 {
	var sum trial.Vec2
	var n float64
	if s.LeftHasEye {
		sum.H += s.LeftVel[0]
		sum.V += s.LeftVel[1]
		n++
	}
	if s.RightHasEye {
		sum.H += s.RightVel[0]
		sum.V += s.RightVel[1]
		n++
	}
	if n == 0 {
		return trial.Vec2{}
	}
	return trial.Vec2{H: sum.H / n, V: sum.V / n}
}
