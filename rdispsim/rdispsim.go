// Package rdispsim is the reference remote-display simulator: an SDL
// window and OpenGL context rendering the same frame-lead animation
// protocol a real frame-accurate network display would receive, so the
// rest of the system can be developed and bench-tested without the
// physical display hardware.
//
// Grounded on the teacher's gui/sdl (window lifecycle, fpsLimiter-style
// update loop) and gui/sdlimgui/gl32.go (go-gl/gl/v3.2-core/gl buffer
// setup, GL init/log-vendor idiom).
package rdispsim

import (
	"fmt"
	"math"

	"github.com/go-gl/gl/v3.2-core/gl"
	"github.com/veandco/go-sdl2/sdl"

	"github.com/cxlab/cxdriver/device"
	"github.com/cxlab/cxdriver/logger"
)

// Sim is a software stand-in for device.RemoteDisplay backed by a real
// SDL window and GL context, so its rendering can be watched during bench
// development.
type Sim struct {
	log *logger.Logger

	window    *sdl.Window
	glContext sdl.GLContext

	widthPix, heightPix int
	framePeriod         float64

	distanceCm, widthCm, heightCm float64

	bkgR, bkgG, bkgB uint8
	flashSize        float64
	flashDur         float64

	targets []device.TargetDef
	loaded  bool

	current, pending []device.FrameRecord
	started          bool

	injectedDups []dupEvent
}

type dupEvent struct {
	frameIdx int
	count    int
}

// New opens an SDL window of the given pixel dimensions and a GL 3.2 core
// context, ready to satisfy device.RemoteDisplay.
func New(title string, widthPix, heightPix int, framePeriod float64, log *logger.Logger) (*Sim, error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, fmt.Errorf("rdispsim: sdl init: %w", err)
	}

	sdl.GLSetAttribute(sdl.GL_CONTEXT_PROFILE_MASK, sdl.GL_CONTEXT_PROFILE_CORE)
	sdl.GLSetAttribute(sdl.GL_CONTEXT_MAJOR_VERSION, 3)
	sdl.GLSetAttribute(sdl.GL_CONTEXT_MINOR_VERSION, 2)

	window, err := sdl.CreateWindow(title, sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		int32(widthPix), int32(heightPix), sdl.WINDOW_OPENGL)
	if err != nil {
		return nil, fmt.Errorf("rdispsim: create window: %w", err)
	}

	glContext, err := window.GLCreateContext()
	if err != nil {
		return nil, fmt.Errorf("rdispsim: create GL context: %w", err)
	}

	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("rdispsim: gl init: %w", err)
	}
	if log != nil {
		log.Logf(logger.Allow, "rdispsim", "vendor: %s", gl.GoStr(gl.GetString(gl.VENDOR)))
		log.Logf(logger.Allow, "rdispsim", "renderer: %s", gl.GoStr(gl.GetString(gl.RENDERER)))
	}

	s := &Sim{
		log:         log,
		window:      window,
		glContext:   glContext,
		widthPix:    widthPix,
		heightPix:   heightPix,
		framePeriod: framePeriod,
		distanceCm:  57,
		widthCm:     40,
		heightCm:    30,
	}
	gl.Viewport(0, 0, int32(widthPix), int32(heightPix))
	return s, nil
}

// Close tears down the GL context and window.
func (s *Sim) Close() {
	if s.glContext != nil {
		sdl.GLDeleteContext(s.glContext)
	}
	if s.window != nil {
		s.window.Destroy()
	}
}

func (s *Sim) Reinit() error {
	s.targets = nil
	s.loaded = false
	s.current = nil
	s.pending = nil
	s.started = false
	return nil
}

func (s *Sim) AddTarget(def device.TargetDef) error {
	s.targets = append(s.targets, def)
	return nil
}

func (s *Sim) LoadTargets() error {
	s.loaded = true
	return nil
}

func (s *Sim) StartAnimation(frame0, frame1 []device.FrameRecord, flashOnFrame0 bool) bool {
	if !s.loaded {
		return false
	}
	s.current = frame0
	s.pending = frame1
	s.started = true
	s.render(frame0, flashOnFrame0)
	return true
}

func (s *Sim) UpdateAnimation(frameN []device.FrameRecord, flashOnNextUpdate bool) (bool, int) {
	if !s.started {
		return false, 0
	}
	s.current = s.pending
	s.pending = frameN
	s.render(s.current, flashOnNextUpdate)
	return true, 1
}

// InjectDuplicateFrame queues a simulated duplicate-frame event for the
// next NumDuplicateFrames/DuplicateFrameEventInfo poll, letting bench
// tests exercise display.Pipeline's duplicate-tolerance path without a
// real flaky display link.
func (s *Sim) InjectDuplicateFrame(frameIdx, count int) {
	s.injectedDups = append(s.injectedDups, dupEvent{frameIdx, count})
}

func (s *Sim) NumDuplicateFrames() int { return len(s.injectedDups) }

func (s *Sim) DuplicateFrameEventInfo(i int) (int, int) {
	if i < 0 || i >= len(s.injectedDups) {
		return 0, 0
	}
	e := s.injectedDups[i]
	return e.frameIdx, e.count
}

func (s *Sim) StopAnimation() error {
	s.started = false
	return nil
}

func (s *Sim) FramePeriod() float64 { return s.framePeriod }

func (s *Sim) ScreenWidthPix() int  { return s.widthPix }
func (s *Sim) ScreenHeightPix() int { return s.heightPix }

// ScreenWidthDeg converts the physical screen width and viewing distance
// into a visual-angle subtense in degrees.
func (s *Sim) ScreenWidthDeg() float64 {
	return screenWidthDeg(s.widthCm, s.distanceCm)
}

// screenWidthDeg is the pure visual-angle conversion behind ScreenWidthDeg,
// factored out so it can be exercised without an open SDL window.
func screenWidthDeg(widthCm, distanceCm float64) float64 {
	return 2 * math.Atan(widthCm/(2*distanceCm)) * 180 / math.Pi
}

func (s *Sim) Geometry() (distance, width, height float64) {
	return s.distanceCm, s.widthCm, s.heightCm
}

func (s *Sim) SetGeometry(distance, width, height float64) {
	s.distanceCm, s.widthCm, s.heightCm = distance, width, height
}

func (s *Sim) SetBkgColor(r, g, b uint8) {
	s.bkgR, s.bkgG, s.bkgB = r, g, b
}

func (s *Sim) SetSyncFlashParams(size, dur float64) {
	s.flashSize, s.flashDur = size, dur
}

// degToNDC converts a degree offset from screen center into normalized
// device coordinates [-1, 1], given the screen's degree subtense.
func (s *Sim) degToNDC(deg float64) float32 {
	return degToNDC(deg, s.ScreenWidthDeg()/2)
}

// degToNDC is the pure degree-to-NDC conversion behind (*Sim).degToNDC.
func degToNDC(deg, halfDeg float64) float32 {
	if halfDeg == 0 {
		return 0
	}
	return float32(deg / halfDeg)
}

// render clears the window to the background color, draws every on
// target's window position as a point, and presents. flash paints a
// corner sync-flash swatch the same size/duration as SetSyncFlashParams
// configured, for a photodiode trigger to pick up on a real monitor.
func (s *Sim) render(frame []device.FrameRecord, flash bool) {
	gl.ClearColor(float32(s.bkgR)/255, float32(s.bkgG)/255, float32(s.bkgB)/255, 1)
	gl.Clear(gl.COLOR_BUFFER_BIT)

	gl.PointSize(6)
	gl.Begin(gl.POINTS)
	gl.Color3f(1, 1, 1)
	for _, rec := range frame {
		if !rec.On {
			continue
		}
		gl.Vertex2f(s.degToNDC(rec.HWin), s.degToNDC(rec.VWin))
	}
	gl.End()

	if flash && s.flashSize > 0 {
		half := float32(s.flashSize)
		gl.Begin(gl.QUADS)
		gl.Color3f(1, 1, 1)
		gl.Vertex2f(-1, 1)
		gl.Vertex2f(-1+half, 1)
		gl.Vertex2f(-1+half, 1-half)
		gl.Vertex2f(-1, 1-half)
		gl.End()
	}

	s.window.GLSwap()
}

var _ device.RemoteDisplay = (*Sim)(nil)
