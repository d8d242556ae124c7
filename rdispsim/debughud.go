//go:build debughud

package rdispsim

import (
	"fmt"

	"github.com/inkyblackness/imgui-go/v4"

	"github.com/cxlab/cxdriver/device"
)

// hud is an optional imgui debug overlay, built only under the debughud
// tag, showing the last rendered frame's on-target count and the
// duplicate-frame queue depth. Grounded on the teacher's sdlimgui manager
// pattern: a single imgui context owned by the display, drawn once per
// render call.
type hud struct {
	ctx *imgui.Context
}

func newHUD() *hud {
	return &hud{ctx: imgui.CreateContext(nil)}
}

func (h *hud) destroy() {
	if h.ctx != nil {
		h.ctx.Destroy()
	}
}

func (h *hud) draw(s *Sim, frame []device.FrameRecord) {
	imgui.NewFrame()

	onCount := 0
	for _, rec := range frame {
		if rec.On {
			onCount++
		}
	}

	imgui.BeginV("rdispsim debug", nil, imgui.WindowFlagsAlwaysAutoResize)
	imgui.Text(fmt.Sprintf("targets on: %d / %d", onCount, len(frame)))
	imgui.Text(fmt.Sprintf("injected duplicate events: %d", len(s.injectedDups)))
	imgui.Text(fmt.Sprintf("frame period: %.4fs", s.framePeriod))
	imgui.End()

	imgui.Render()
}
