package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/hexlattice/meshpool/geom"
	"github.com/hexlattice/meshpool/internal/glmesh"
	"github.com/hexlattice/meshpool/internal/terrain"
	"github.com/hexlattice/meshpool/mesh"
	"github.com/hexlattice/meshpool/pool"
)

const logFlags = log.Ltime | log.Lshortfile

const (
	gridSide     = 6   // chunks per world axis
	chunkSpacing = 9.0 // world units between chunk origins
	chunkRadius  = 4.0
	chunkHeight  = 2.5
	churnEvery   = 30 // frames between chunk mutations
)

var runtimeLogger *log.Logger = log.New(io.Discard, "", 0)

func init() {
	// OpenGL contexts are tied to specific OS threads - pin to just one.
	runtime.LockOSThread()
	log.SetFlags(logFlags)

	if os.Getenv("MESHPOOL_DEBUG_RUNTIME") == "1" {
		runtimeLogger = log.New(os.Stdout, "[runtime] ", log.Ltime|log.Lmsgprefix)
	}
}

func makeTitle(fps float64, avgFrameTime float64, stats pool.Stats) string {
	return fmt.Sprintf("Meshpool (%.1f FPS, %.2fms/frame, %d chunks, %d triangles, %d containers, %d snapshots, %d queued)",
		fps,
		avgFrameTime,
		stats.Chunks,
		stats.TotalTriangles,
		stats.Containers+stats.IsolatedContainers,
		stats.Snapshots,
		stats.QueuedContainers,
	)
}

func main() {
	configPath := flag.String("config", "", "path to a YAML pool config (defaults apply when empty)")
	flag.Parse()

	cfg, err := pool.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load pool config: %v", err)
	}

	if err := glfw.Init(); err != nil {
		log.Fatalf("Failed to initialize GLFW: %v", err)
	}
	defer glfw.Terminate()

	// Configure GLFW window hints - use OpenGL 4.1.
	glfw.DefaultWindowHints()
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)

	window, err := glfw.CreateWindow(
		1280, // width
		960,  // height
		"Meshpool",
		nil, nil,
	)
	if err != nil {
		log.Fatalf("Failed to create window: %v", err)
	}
	window.MakeContextCurrent()

	if err := gl.Init(); err != nil {
		log.Fatalf("Failed to initialize OpenGL: %v", err)
	}
	gl.Enable(gl.DEPTH_TEST)

	p := pool.New(glmesh.Factory)
	if err := p.Init(cfg); err != nil {
		log.Fatalf("Failed to initialize pool: %v", err)
	}

	// The presenter is the scene attachment point: baked container meshes
	// replace whatever was presented for that container before.
	presented := make(map[pool.ContainerID]*glmesh.Mesh)
	p.SetPresenter(func(id pool.ContainerID, blob mesh.Renderable) {
		presented[id] = blob.(*glmesh.Mesh)
	})

	world := newWorld(p, seed())
	world.populate()

	shaders := glmesh.NewShaderManager()

	frameCount, frameTimeSum, totalFrames := 0, 0.0, 0
	lastFPSUpdate := time.Now()

	// Main loop.
	for !window.ShouldClose() {
		frameStart := time.Now()

		totalFrames++
		if totalFrames%churnEvery == 0 {
			world.churn()
		}
		p.Tick()

		w, h := window.GetFramebufferSize()
		gl.Viewport(0, 0, int32(w), int32(h))
		gl.ClearColor(1, 1, 1, 1)
		gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)

		angle := glfw.GetTime() * 0.3
		shaders.SetTransform(viewMatrix(angle, float64(w)/float64(h)))
		for _, m := range presented {
			m.Draw()
		}

		window.SwapBuffers()
		glfw.PollEvents()

		frameTime := time.Since(frameStart).Seconds() * 1000.0 // ms
		frameTimeSum += frameTime

		frameCount++
		now := time.Now()
		if now.Sub(lastFPSUpdate) >= time.Second {
			fps := float64(frameCount) / now.Sub(lastFPSUpdate).Seconds()
			avgFrameTime := frameTimeSum / float64(frameCount)
			frameCount, frameTimeSum = 0, 0.0
			lastFPSUpdate = now

			stats := p.Stats()
			window.SetTitle(makeTitle(fps, avgFrameTime, stats))

			runtimeLogger.Printf("%.1f FPS (%.2f ms/frame), %d chunks, %d tris, %d verts, %d snapshots (%d failed), %d self-heals, %d relocations",
				fps, avgFrameTime, stats.Chunks, stats.TotalTriangles, stats.TotalVertices,
				stats.Snapshots, stats.SnapshotFailures, stats.SelfHeals, stats.Relocations)
			p.PrintStats()
		}

		if totalFrames%100 == 0 { // periodically validate pool integrity
			if err := p.Validate(); err != nil {
				log.Fatalf("Pool integrity invalid: %v", err)
			}
		}
	}
}

// world owns the demo's chunk churn: a grid of plateau chunks that get
// regenerated, unloaded, and re-added over time to exercise the pool.
type world struct {
	p       *pool.Pool
	r       *rand.Rand
	keys    []pool.ChunkKey
	origins map[pool.ChunkKey]geom.Vec3
	seeds   map[pool.ChunkKey]int64
	missing map[pool.ChunkKey]bool
}

func newWorld(p *pool.Pool, s int64) *world {
	return &world{
		p:       p,
		r:       rand.New(rand.NewSource(s)),
		origins: make(map[pool.ChunkKey]geom.Vec3),
		seeds:   make(map[pool.ChunkKey]int64),
		missing: make(map[pool.ChunkKey]bool),
	}
}

func (w *world) populate() {
	half := float64(gridSide-1) / 2
	for gx := 0; gx < gridSide; gx++ {
		for gz := 0; gz < gridSide; gz++ {
			key := pool.ChunkKey(fmt.Sprintf("chunk-%d-%d", gx, gz))
			origin := geom.Vec3{
				X: (float64(gx) - half) * chunkSpacing,
				Z: (float64(gz) - half) * chunkSpacing,
			}
			w.keys = append(w.keys, key)
			w.origins[key] = origin
			w.seeds[key] = w.r.Int63()
			vertices, triangles := chunkGeometry(w.seeds[key], origin)
			if err := w.p.AddOrReplaceChunk(key, vertices, triangles, w.optionsFor(gx*gridSide+gz)); err != nil {
				log.Fatalf("Failed to place chunk %s: %v", key, err)
			}
		}
	}
}

// churn mutates one chunk per call: re-adds a missing chunk, unloads one, or
// regenerates one with a fresh seed.
func (w *world) churn() {
	key := w.keys[w.r.Intn(len(w.keys))]
	idx := w.r.Intn(len(w.keys))

	switch {
	case w.missing[key]:
		delete(w.missing, key)
		w.seeds[key] = w.r.Int63()
		vertices, triangles := chunkGeometry(w.seeds[key], w.origins[key])
		if err := w.p.AddOrReplaceChunk(key, vertices, triangles, w.optionsFor(idx)); err != nil {
			log.Printf("Re-adding chunk %s failed: %v", key, err)
		}
	case w.r.Float64() < 0.25:
		w.p.UnloadChunk(key)
		w.missing[key] = true
	default:
		w.seeds[key] = w.r.Int63()
		vertices, triangles := chunkGeometry(w.seeds[key], w.origins[key])
		if err := w.p.AddOrReplaceChunk(key, vertices, triangles, w.optionsFor(idx)); err != nil {
			log.Printf("Replacing chunk %s failed: %v", key, err)
		}
	}
}

// optionsFor spreads chunks across fidelity classes and storage modes so the
// demo exercises the scarce prefix and the isolated registry.
func (w *world) optionsFor(i int) pool.Options {
	opts := pool.Options{FlatShaded: true}
	switch {
	case i%11 == 10:
		opts.Isolated = true
		opts.Fidelity = pool.FidelityFine
	case i%7 == 6:
		opts.Fidelity = pool.FidelityPrecise
	case i%3 == 0:
		opts.Fidelity = pool.FidelityStandard
	default:
		opts.Fidelity = pool.FidelityCoarse
	}
	return opts
}

func chunkGeometry(seed int64, origin geom.Vec3) ([]geom.Vec3, [][3]int) {
	return terrain.Chunk(seed, origin, chunkRadius, chunkHeight)
}

// viewMatrix builds a slowly orbiting, tilted orthographic view of the world,
// in OpenGL column-major order.
func viewMatrix(angle, aspect float64) [16]float32 {
	worldExtent := float64(gridSide) * chunkSpacing * 0.75
	k := float32(1 / worldExtent)
	kx := k
	if aspect > 1 {
		kx = k / float32(aspect)
	}

	c, s := float32(math.Cos(angle)), float32(math.Sin(angle))
	const tilt = 0.6
	ct, st := float32(math.Cos(tilt)), float32(math.Sin(tilt))

	// RotX(tilt) * RotY(angle), scaled per axis.
	return [16]float32{
		kx * c, k * st * s, k * -ct * s, 0,
		0, k * ct, k * st, 0,
		kx * s, k * -st * c, k * ct * c, 0,
		0, -0.2, 0, 1,
	}
}

func seed() int64 {
	seedStr := os.Getenv("MESHPOOL_SEED")
	now := time.Now().Unix()
	if seedStr == "" {
		return now
	}
	s, err := strconv.ParseInt(seedStr, 10, 64)
	if err != nil {
		log.Fatalf("Invalid MESHPOOL_SEED value '%s': %v", seedStr, err)
	}
	return s
}
