// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"errors"
	"flag"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"time"

	"github.com/devblok/penumbra/camera"
	"github.com/devblok/penumbra/config"
	"github.com/devblok/penumbra/core"
	"github.com/devblok/penumbra/gfx"
	"github.com/devblok/penumbra/utility/kar"
	"github.com/devblok/penumbra/window"
	glm "github.com/go-gl/mathgl/mgl32"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/mmap"
)

func init() {
	runtime.LockOSThread()
}

// Profiling
var (
	cpuProfile   = flag.String("cpuprof", "", "Profile CPU usage to file")
	memProfile   = flag.String("memprof", "", "Profile memory usage into a file")
	traceProfile = flag.String("trace", "", "Trace output for profiling")
	debug        = flag.Bool("vkdbg", false, "Load Vulkan validation layers")
	verbose      = flag.Bool("v", false, "Debug logging")
	configPath   = flag.String("config", "", "Configuration file, defaults to $"+config.PathVariable+" or "+config.DefaultPath)
)

func main() {
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	if err := profiled(run); err != nil {
		log.WithError(err).Fatal("penumbra exited")
	}
}

// profiled runs fn under the profilers requested on the command line.
func profiled(fn func() error) error {
	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return err
		}
		defer pprof.StopCPUProfile()
	}

	if *traceProfile != "" {
		f, err := os.Create(*traceProfile)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := trace.Start(f); err != nil {
			return err
		}
		defer trace.Stop()
	}

	if err := fn(); err != nil {
		return err
	}

	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := pprof.WriteHeapProfile(f); err != nil {
			return err
		}
	}
	return nil
}

func run() error {
	path := *configPath
	if path == "" {
		path = config.Path()
	}
	configuration, err := config.Load(path)
	if err != nil {
		return err
	}

	src, closeSource, err := openSource(configuration.AssetArchive)
	if err != nil {
		return err
	}
	defer closeSource()

	sdlWindow, err := window.New(configuration.Window)
	if err != nil {
		return err
	}
	defer sdlWindow.Destroy()

	vkInstance, err := core.NewVulkanInstance(core.DefaultVulkanApplicationInfo, sdlWindow.ProcAddr(), core.InstanceConfiguration{
		DebugMode:  *debug,
		Extensions: sdlWindow.Extensions(),
	})
	if err != nil {
		return err
	}
	defer vkInstance.Destroy()

	if err := sdlWindow.CreateSurface(vkInstance); err != nil {
		return err
	}

	timeService := core.NewTime(configuration.Time)
	defer timeService.Stop()

	vkRenderer, err := core.NewVulkanRenderer(vkInstance, configuration.Renderer, src, timeService)
	if err != nil {
		return err
	}

	cam := camera.NewArcball(glm.Vec3{}, 8)
	ctx := &core.Context{
		Window: sdlWindow,
		Camera: cam,
	}
	if err := vkRenderer.Initialise(ctx); err != nil {
		vkRenderer.Destroy()
		return err
	}
	defer vkRenderer.Destroy()

	start := time.Now()
	for sdlWindow.PollEvents(ctx, cam) {
		timeService.Wait()
		if err := vkRenderer.Draw(ctx); err != nil {
			if errors.Is(err, core.ErrWindowClosed) {
				break
			}
			return err
		}
	}

	log.WithFields(log.Fields{
		"frames":  timeService.Frames(),
		"seconds": time.Since(start).Seconds(),
	}).Info("event loop exited")
	return nil
}

// openSource picks where assets come from, a memory mapped kar
// archive when configured, the working directory otherwise.
func openSource(archive string) (gfx.Source, func(), error) {
	if archive == "" {
		return gfx.DirSource{Root: "."}, func() {}, nil
	}

	r, err := mmap.Open(archive)
	if err != nil {
		return nil, nil, err
	}
	ar, err := kar.Open(r)
	if err != nil {
		r.Close()
		return nil, nil, err
	}
	log.WithFields(log.Fields{
		"archive": archive,
		"files":   len(ar.Names()),
	}).Info("reading assets from archive")
	return ar, func() { r.Close() }, nil
}
