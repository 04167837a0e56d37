// Package scene holds the objects, camera and light of a rendered view and supplies the
// visible objects to the G-buffer pass.
package scene

import (
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/camera"
	"github.com/Carmen-Shannon/oxy-deferred/engine/game_object"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/logger"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gbuffer"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// Scene manages a registry of GameObjects with a Camera and a point Light.
// It implements gbuffer.Scene: the G-buffer pass asks it for the objects visible
// through the camera and it culls them against the view frustum.
// Scenes can be hot-swapped via the Active flag to switch between different views or levels.
// Thread-safe for concurrent access.
type Scene interface {
	gbuffer.Scene

	// Name returns the scene's identifier.
	Name() string

	// SetName sets the scene's identifier.
	SetName(name string)

	// Active returns whether this scene is currently active for rendering.
	Active() bool

	// SetActive sets whether this scene is active for rendering.
	SetActive(active bool)

	// Camera returns the scene's camera.
	Camera() camera.Camera

	// SetCamera replaces the scene's camera.
	//
	// Parameters:
	//   - cam: the new camera
	SetCamera(cam camera.Camera)

	// Light returns the scene's point light.
	Light() light.Light

	// SetLight replaces the scene's point light.
	//
	// Parameters:
	//   - l: the new light
	SetLight(l light.Light)

	// Count returns the number of GameObjects in the scene's registry.
	//
	// Returns:
	//   - int: count of registered GameObjects
	Count() int

	// Add adds a GameObject to the scene. Objects without an ID are assigned one.
	// Objects without a Model are kept and updated but never drawn.
	//
	// Parameters:
	//   - obj: the GameObject to add
	//
	// Returns:
	//   - uint64: the assigned object ID
	Add(obj game_object.GameObject) uint64

	// Get retrieves a GameObject by its ID.
	// Returns nil if not found.
	//
	// Parameters:
	//   - id: the object's unique ID
	//
	// Returns:
	//   - game_object.GameObject: the object or nil
	Get(id uint64) game_object.GameObject

	// Remove removes a GameObject from the registry by ID.
	//
	// Parameters:
	//   - id: the object's unique ID
	//
	// Returns:
	//   - bool: true if the object was registered
	Remove(id uint64) bool

	// Clear removes all objects from the scene.
	// Does not release the objects' models.
	Clear()

	// CullingDisabled returns whether frustum culling is explicitly disabled for this scene.
	//
	// Returns:
	//   - bool: true if culling is disabled
	CullingDisabled() bool

	// SetCullingDisabled enables or disables frustum culling for this scene.
	//
	// Parameters:
	//   - disabled: true to disable culling, false to enable it
	SetCullingDisabled(disabled bool)

	// Update advances the camera, the light and every object by deltaTime.
	// Object updates fan out across the scene's worker pool and are joined before Update returns.
	//
	// Parameters:
	//   - deltaTime: elapsed time since the last update in seconds
	Update(deltaTime float32)

	// Visible returns the number of objects passed to the callback by the last VisitVisible call.
	Visible() int
}

// scene is the implementation of the Scene interface.
type scene struct {
	mu *sync.RWMutex

	name            string
	active          bool
	cam             camera.Camera
	pointLight      light.Light
	registry        map[uint64]game_object.GameObject
	nextID          uint64
	cullingDisabled bool
	visible         atomic.Int64

	// updatePool manages a bounded set of reusable goroutines for the parallel object
	// update phase. Workers persist across frames, avoiding per-frame goroutine spawn/teardown overhead.
	updatePool    worker.DynamicWorkerPool
	updateWorkers int
}

// Ensure scene implements Scene interface.
var _ Scene = &scene{}

// NewScene creates a new Scene with the given camera. The camera is required and NewScene
// panics if it is nil.
//
// Parameters:
//   - name: the name of the scene
//   - cam: the camera to attach (must not be nil)
//   - options: functional options to further configure the scene
//
// Returns:
//   - Scene: the newly created scene
func NewScene(name string, cam camera.Camera, options ...SceneBuilderOption) Scene {
	if cam == nil {
		panic("scene: NewScene requires a non-nil Camera")
	}

	s := &scene{
		mu:            &sync.RWMutex{},
		name:          name,
		active:        true,
		cam:           cam,
		pointLight:    light.NewLight(),
		registry:      make(map[uint64]game_object.GameObject),
		nextID:        1,
		updateWorkers: max(runtime.NumCPU()-1, 1),
	}

	for _, option := range options {
		option(s)
	}

	// Initialize the pool after options so WithUpdateWorkers can override the default.
	// Queue size of 256 accommodates one task per worker chunk with headroom.
	s.updatePool = worker.NewDynamicWorkerPool(s.updateWorkers, 256, 1*time.Second)

	return s
}

func (s *scene) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

func (s *scene) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
}

func (s *scene) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *scene) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

func (s *scene) Camera() camera.Camera {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cam
}

func (s *scene) SetCamera(cam camera.Camera) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cam = cam
}

func (s *scene) Light() light.Light {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pointLight
}

func (s *scene) SetLight(l light.Light) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pointLight = l
}

func (s *scene) CullingDisabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cullingDisabled
}

func (s *scene) SetCullingDisabled(disabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cullingDisabled = disabled
}

func (s *scene) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.registry)
}

func (s *scene) Add(obj game_object.GameObject) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.add(obj)
}

// add registers obj. Caller must hold s.mu write lock.
func (s *scene) add(obj game_object.GameObject) uint64 {
	if obj.ID() == 0 {
		obj.SetID(s.nextID)
	}
	s.nextID = max(s.nextID, obj.ID()+1)
	s.registry[obj.ID()] = obj

	logger.Named("scene").Debug("object added",
		zap.String("scene", s.name),
		zap.Uint64("id", obj.ID()),
		zap.String("object", obj.Name()),
	)
	return obj.ID()
}

func (s *scene) Get(id uint64) game_object.GameObject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry[id]
}

func (s *scene) Remove(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.registry[id]; !exists {
		return false
	}
	delete(s.registry, id)
	return true
}

func (s *scene) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registry = make(map[uint64]game_object.GameObject)
}

// sortedObjects returns the registered objects in ID order. Caller must hold s.mu.
func (s *scene) sortedObjects() []game_object.GameObject {
	ids := make([]uint64, 0, len(s.registry))
	for id := range s.registry {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	objs := make([]game_object.GameObject, len(ids))
	for i, id := range ids {
		objs[i] = s.registry[id]
	}
	return objs
}

func (s *scene) Update(deltaTime float32) {
	s.mu.RLock()
	cam, l := s.cam, s.pointLight
	objs := s.sortedObjects()
	workers := s.updateWorkers
	s.mu.RUnlock()

	if cam != nil {
		cam.Update()
	}
	if l != nil {
		l.Update(deltaTime)
	}
	if len(objs) == 0 {
		return
	}

	// Submit one chunk of objects per worker. A WaitGroup provides the per-frame barrier
	// since pool.Wait() blocks until workers idle-exit which is unsuitable for frame-rate workloads.
	chunk := (len(objs) + workers - 1) / workers
	var wg sync.WaitGroup
	taskID := 0
	for start := 0; start < len(objs); start += chunk {
		batch := objs[start:min(start+chunk, len(objs))]
		wg.Add(1)
		s.updatePool.SubmitTask(worker.Task{
			ID: taskID,
			Do: func() (any, error) {
				defer wg.Done()
				for _, obj := range batch {
					if obj.Enabled() {
						obj.Update(deltaTime)
					}
				}
				return nil, nil
			},
		})
		taskID++
	}
	wg.Wait()
}

func (s *scene) VisitVisible(viewProj mgl32.Mat4, fn func(gbuffer.Object) error) error {
	s.mu.RLock()
	objs := s.sortedObjects()
	culling := !s.cullingDisabled
	s.mu.RUnlock()

	frustum := common.ExtractFrustum(viewProj)
	visible := 0
	defer func() { s.visible.Store(int64(visible)) }()

	for _, obj := range objs {
		if !obj.Enabled() || obj.Mesh() == nil {
			continue
		}
		if culling {
			center, radius := obj.BoundingSphere()
			if !frustum.SphereVisible(center, radius) {
				continue
			}
		}
		visible++
		if err := fn(obj); err != nil {
			return err
		}
	}
	return nil
}

func (s *scene) Visible() int {
	return int(s.visible.Load())
}
