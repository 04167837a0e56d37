// Package engine drives the deferred renderer: it runs frames, applies resize and effect
// requests between them and coordinates the tick, render and window threads.
package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/logger"
	"github.com/Carmen-Shannon/oxy-deferred/engine/profiler"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/pass"
	"github.com/Carmen-Shannon/oxy-deferred/engine/scene"
	"github.com/Carmen-Shannon/oxy-deferred/engine/window"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// size is a queued resize request.
type size struct {
	width, height int
}

// engine implements the Engine interface.
// Coordinates engine, render, and window threads.
type engine struct {
	mu *sync.Mutex

	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates

	running atomic.Bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	window      window.Window
	windowClose sync.Once
	renderer    renderer.Renderer
	scene       scene.Scene

	profiler         *profiler.Profiler
	profilingEnabled atomic.Bool

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)
	renderCallback func(deltaTime float32)

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped

	// requests queued from any goroutine, applied before the next frame; latest wins
	pendingResize *size
	pendingEffect string

	frameNumber uint64
	elapsed     time.Duration
	lastErr     error
}

// Engine is the main entry point for the engine.
// It orchestrates the engine loop, render loop, and window management.
type Engine interface {
	// Window returns the underlying window, or nil for a headless engine.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Renderer returns the renderer the engine drives.
	Renderer() renderer.Renderer

	// Scene returns the scene being rendered, or nil.
	Scene() scene.Scene

	// SetScene replaces the scene being rendered. The scene's camera and light feed every
	// following frame. Pass nil to render an empty G-buffer.
	//
	// Parameters:
	//   - s: the Scene to render
	SetScene(s scene.Scene)

	// Profiler returns the profiler ticked once per frame.
	Profiler() *profiler.Profiler

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in frames per second.
	// The scene is updated and the tick callback is called at this rate.
	//
	// Parameters:
	//   - fps: target frames per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick.
	// Use this for game logic, input processing, and animation updates.
	//
	// Parameters:
	//   - callback: function to call at the configured tick rate, receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called after each rendered frame.
	//
	// Parameters:
	//   - callback: function to call each render frame, receiving the delta time in seconds
	SetRenderCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// RequestResize queues a new output size. Safe to call from any goroutine.
	// Requests are coalesced and the latest is applied before the next frame.
	// Sizes with a non-positive dimension, as reported for a minimized window, are ignored.
	//
	// Parameters:
	//   - width: the new width in pixels
	//   - height: the new height in pixels
	RequestResize(width, height int)

	// RequestEffect queues an effect selection. Safe to call from any goroutine.
	// Requests are coalesced and the latest is applied before the next frame; an unknown
	// name is logged and leaves the active effect unchanged.
	//
	// Parameters:
	//   - name: the effect name
	RequestEffect(name string)

	// RenderFrame applies queued requests, then renders one frame: BeginFrame, every pass in
	// order with a backend flush after each pass that needs one, EndFrame.
	//
	// Parameters:
	//   - deltaTime: time since the previous frame in seconds
	//
	// Returns:
	//   - error: the first resize, pass or backend error of the frame
	RenderFrame(deltaTime float32) error

	// Frames returns the number of frames rendered successfully.
	Frames() uint64

	// Err returns the error that stopped the render loop, if any.
	Err() error

	// Run starts the engine loops and blocks until the window closes or Quit is called.
	Run()

	// Quit signals all engine goroutines to stop and shuts down the engine.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

// NewEngine creates a new Engine driving the given renderer.
// The renderer is required and NewEngine panics if it is nil.
// Options are applied directly to the engine struct via the option-builder pattern.
//
// Parameters:
//   - r: the renderer to drive
//   - options: functional options for engine configuration (window, scene, profiling, tick rate, etc.)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(r renderer.Renderer, options ...EngineBuilderOption) Engine {
	if r == nil {
		panic("engine: NewEngine requires a non-nil Renderer")
	}

	e := &engine{
		mu:              &sync.Mutex{},
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		renderer:        r,
		profiler:        profiler.NewProfiler(),
		engineTickRate:  time.Second / 60,
	}

	for _, opt := range options {
		opt(e)
	}

	if e.scene != nil {
		r.SetScene(e.scene)
	}

	if e.window != nil {
		e.window.SetResizeCallback(e.RequestResize)
		e.window.SetKeyDownCallback(e.handleKey)
		e.window.SetScrollCallback(func(delta float32) {
			if s := e.Scene(); s != nil {
				if ctrl := s.Camera().Controller(); ctrl != nil {
					ctrl.Zoom(delta)
				}
			}
		})
	}

	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) Scene() scene.Scene {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scene
}

func (e *engine) SetScene(s scene.Scene) {
	e.mu.Lock()
	e.scene = s
	e.mu.Unlock()
	e.renderer.SetScene(s)
}

func (e *engine) Profiler() *profiler.Profiler {
	return e.profiler
}

func (e *engine) RequestResize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pendingResize = &size{width: width, height: height}
}

func (e *engine) RequestEffect(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pendingEffect = name
}

// handleKey selects an effect with the number keys, in registration order.
func (e *engine) handleKey(keyCode uint32) {
	if e.orbit(keyCode) {
		return
	}
	idx := common.DigitIndex(keyCode)
	if idx < 0 {
		return
	}
	names := e.renderer.Effects()
	if idx < len(names) {
		e.RequestEffect(names[idx])
	}
}

// orbit moves the scene camera for arrow keys. It reports whether the key was consumed.
func (e *engine) orbit(keyCode uint32) bool {
	s := e.Scene()
	if s == nil || s.Camera().Controller() == nil {
		return false
	}
	ctrl := s.Camera().Controller()
	switch keyCode {
	case common.KeyLeft:
		ctrl.OrbitLeft()
	case common.KeyRight:
		ctrl.OrbitRight()
	case common.KeyUp:
		ctrl.OrbitUp()
	case common.KeyDown:
		ctrl.OrbitDown()
	default:
		return false
	}
	return true
}

// applyRequests hands queued requests to the renderer. It runs between frames only.
func (e *engine) applyRequests() error {
	e.mu.Lock()
	resize, effect, s := e.pendingResize, e.pendingEffect, e.scene
	e.pendingResize, e.pendingEffect = nil, ""
	e.mu.Unlock()

	if resize != nil {
		if err := e.renderer.Resize(resize.width, resize.height); err != nil {
			return errors.Wrapf(err, "resize to %dx%d", resize.width, resize.height)
		}
		if s != nil {
			s.Camera().SetAspect(float32(resize.width) / float32(resize.height))
		}
		if e.window != nil {
			logger.Log().Debug("window resized", zap.Int("width", resize.width), zap.Int("height", resize.height))
		}
	}

	if effect != "" && effect != e.renderer.ActiveEffect() {
		if err := e.renderer.SetActiveEffect(effect); err != nil {
			logger.Log().Warn("effect request ignored", zap.String("effect", effect), zap.Error(err))
		} else if e.window != nil {
			e.window.SetTitle(effect)
		}
	}
	return nil
}

func (e *engine) RenderFrame(deltaTime float32) error {
	if err := e.applyRequests(); err != nil {
		return err
	}

	if s := e.Scene(); s != nil && s.Active() {
		cam := s.Camera()
		if err := e.renderer.SetCamera(cam.View(), cam.Projection()); err != nil {
			return errors.Wrapf(err, "camera of scene %q", s.Name())
		}
		if l := s.Light(); l != nil && l.Enabled() {
			e.renderer.SetLight(l.Position())
		}
	}

	delta := time.Duration(float64(deltaTime) * float64(time.Second))
	e.mu.Lock()
	f := pass.Frame{
		Number:  e.frameNumber + 1,
		Delta:   delta,
		Elapsed: e.elapsed + delta,
	}
	e.mu.Unlock()

	r := e.renderer
	if err := r.BeginFrame(f); err != nil {
		return errors.Wrapf(err, "begin frame %d", f.Number)
	}
	for i := 0; ; i++ {
		res, err := r.RunPass(i)
		if err != nil {
			return errors.CombineErrors(errors.Wrapf(err, "frame %d", f.Number), r.EndFrame())
		}
		if res == pass.Finished {
			break
		}
		if err := r.Flush(); err != nil {
			return errors.CombineErrors(errors.Wrapf(err, "flush after pass %d of frame %d", i, f.Number), r.EndFrame())
		}
	}
	if err := r.EndFrame(); err != nil {
		return errors.Wrapf(err, "end frame %d", f.Number)
	}

	e.mu.Lock()
	e.frameNumber = f.Number
	e.elapsed = f.Elapsed
	e.mu.Unlock()

	if e.profilingEnabled.Load() {
		e.profiler.Tick()
	}
	return nil
}

func (e *engine) Frames() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frameNumber
}

func (e *engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// Run launches the engine goroutines. With a window it pumps window messages on the calling
// goroutine until the window closes; headless it blocks until Quit.
func (e *engine) Run() {
	e.running.Store(true)
	e.handle()

	if e.window != nil {
		// The message loop only returns once the window is gone, so a quit coming from the
		// render goroutine or from Quit has to close the window from the main goroutine.
		e.window.SetUpdateCallback(func() {
			select {
			case <-e.quitChannel:
				e.wg.Wait()
				e.closeWindow()
			default:
			}
		})
		e.window.ProcessMessages()
		e.signalQuit()
	}
	e.wg.Wait()
	e.closeWindow()
}

// closeWindow closes the window once the render goroutine has stopped using its surface.
func (e *engine) closeWindow() {
	if e.window == nil {
		return
	}
	e.windowClose.Do(func() {
		if err := e.window.Close(); err != nil {
			logger.Log().Warn("close window", zap.Error(err))
		}
	})
}

// Quit signals all engine goroutines to stop and shuts down the engine.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
// Uses sync.Once to ensure the channel is only closed once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		e.running.Store(false)
		close(e.quitChannel)
	})
}

// handle launches the engine, render, and quit goroutines.
// Each goroutine is tracked by the engine's WaitGroup.
func (e *engine) handle() {
	e.wg.Add(3)
	go e.handleEngine()
	go e.handleRender()
	go e.handleQuit()
}

// handleEngine runs the fixed-rate engine tick loop in its own goroutine.
// Updates the scene and fires the tick callback at the configured tick rate, and listens for
// dynamic rate changes via tickRateChannel. Exits when the quit channel is closed.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			if s := e.Scene(); s != nil && s.Active() {
				s.Update(dt)
			}
			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// handleRender runs the uncapped (or frame-limited) render loop in its own goroutine.
// A frame error stops the engine; it is kept for Err.
// Recovers from panics to avoid crashing the process and signals quit on recovery.
func (e *engine) handleRender() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			logger.Log().Error("render goroutine recovered from panic", zap.Any("panic", r))
			e.setErr(errors.Newf("render goroutine panic: %v", r))
			e.signalQuit()
		}
	}()

	lastRender := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		default:
			now := time.Now()
			dt := float32(now.Sub(lastRender).Seconds())
			lastRender = now

			if err := e.RenderFrame(dt); err != nil {
				logger.Log().Error("frame failed", zap.Error(err))
				e.setErr(err)
				e.signalQuit()
				return
			}

			if e.renderCallback != nil {
				e.renderCallback(dt)
			}

			// Frame rate limiting
			if e.renderFrameLimit > 0 {
				elapsed := time.Since(lastRender)
				if remaining := e.renderFrameLimit - elapsed; remaining > 0 {
					time.Sleep(remaining)
				}
			}
		}
	}
}

// handleQuit blocks until the quit channel is closed, then decrements the WaitGroup.
func (e *engine) handleQuit() {
	defer e.wg.Done()
	<-e.quitChannel
}

func (e *engine) setErr(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastErr = err
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled.Store(true)
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled.Store(false)
}

// SetTickRate sets the engine tick rate in frames per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Duration(float64(time.Second) / fps)

	if e.running.Load() {
		// Non-blocking send - if channel is full, replace the pending value
		select {
		case e.tickRateChannel <- newRate:
		default:
			select {
			case <-e.tickRateChannel:
			default:
			}
			e.tickRateChannel <- newRate
		}
	} else {
		e.engineTickRate = newRate
	}
}

// SetTickCallback registers the function called each engine tick.
func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

// SetRenderCallback registers the function called each render frame.
func (e *engine) SetRenderCallback(callback func(deltaTime float32)) {
	e.renderCallback = callback
}

// SetRenderFrameLimit sets an optional render frame rate cap.
// Pass 0 to uncap the render loop.
func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}
