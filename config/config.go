// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package config reads the flat KEY=value engine configuration.
// Values set in the environment take precedence over the file.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/devblok/penumbra/core"
	"github.com/gobuffalo/envy"
	"github.com/joho/godotenv"
)

// ErrMissingKey is returned when a required key is in neither the file nor the environment.
var ErrMissingKey = errors.New("missing configuration key")

// PathVariable names the environment variable holding the config file path.
const (
	PathVariable = "PENUMBRA_CONFIG"
	DefaultPath  = "penumbra.conf"
)

// Keys read by Load
const (
	WindowWidth       = "WINDOW_WIDTH"
	WindowHeight      = "WINDOW_HEIGHT"
	WindowTitle       = "WINDOW_TITLE"
	MaxFramesInFlight = "MAX_FRAMES_IN_FLIGHT"
	ShaderDir         = "SHADER_DIR"
	Models            = "MODELS"
	Texture           = "TEXTURE"
	CubemapDir        = "CUBEMAP_DIR"
	AssetArchive      = "ASSET_ARCHIVE"
	FPS               = "FPS"
	MSAA              = "MSAA"
	ShadowMapSize     = "SHADOW_MAP_SIZE"
)

// Defaults of the optional keys
const (
	DefaultShaderDir     = "./shaders"
	DefaultFPS           = 60
	DefaultMSAA          = 4
	DefaultShadowMapSize = 2048
)

// Path is the config file to read, PENUMBRA_CONFIG or penumbra.conf.
func Path() string {
	return envy.Get(PathVariable, DefaultPath)
}

// Load reads the file at path and resolves it into the engine configuration.
func Load(path string) (core.Configuration, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		return core.Configuration{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(values)
}

// Parse resolves file values, overridden by the environment,
// into the engine configuration.
func Parse(values map[string]string) (core.Configuration, error) {
	s := source(values)
	var cfg core.Configuration

	title, err := s.String(WindowTitle)
	if err != nil {
		return cfg, err
	}
	width, err := s.Int(WindowWidth)
	if err != nil {
		return cfg, err
	}
	height, err := s.Int(WindowHeight)
	if err != nil {
		return cfg, err
	}
	frames, err := s.Int(MaxFramesInFlight)
	if err != nil {
		return cfg, err
	}
	if width <= 0 || height <= 0 {
		return cfg, fmt.Errorf("window size %dx%d must be positive", width, height)
	}
	if frames <= 0 {
		return cfg, fmt.Errorf("%s must be positive, got %d", MaxFramesInFlight, frames)
	}

	fps, err := s.OptionalInt(FPS, DefaultFPS)
	if err != nil {
		return cfg, err
	}
	samples, err := s.OptionalInt(MSAA, DefaultMSAA)
	if err != nil {
		return cfg, err
	}
	shadowSize, err := s.OptionalInt(ShadowMapSize, DefaultShadowMapSize)
	if err != nil {
		return cfg, err
	}

	cfg.Window = core.WindowConfiguration{
		Title:  title,
		Width:  uint32(width),
		Height: uint32(height),
	}
	cfg.Time = core.TimeConfiguration{
		FramesPerSecond: fps,
	}
	cfg.Renderer = core.RendererConfiguration{
		FramesInFlight:   frames,
		DeviceExtensions: core.DefaultDeviceExtensions,
		Samples:          samples,
		ShadowMapSize:    uint32(shadowSize),
		ShaderDirectory:  s.Optional(ShaderDir, DefaultShaderDir),
		Models:           s.Strings(Models),
		Texture:          s.Optional(Texture, ""),
		CubemapDir:       s.Optional(CubemapDir, ""),
	}
	cfg.AssetArchive = s.Optional(AssetArchive, "")
	return cfg, nil
}

// source looks keys up in the environment first, then in the file.
type source map[string]string

func (s source) lookup(key string) (string, bool) {
	fileValue, ok := s[key]
	value := strings.TrimSpace(envy.Get(key, fileValue))
	if !ok && value == "" {
		return "", false
	}
	return value, true
}

// String returns a required value.
func (s source) String(key string) (string, error) {
	value, ok := s.lookup(key)
	if !ok || value == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingKey, key)
	}
	return value, nil
}

// Int returns a required integer value.
func (s source) Int(key string) (int, error) {
	value, err := s.String(key)
	if err != nil {
		return 0, err
	}
	return parseInt(key, value)
}

// Optional returns the value or def when unset.
func (s source) Optional(key, def string) string {
	if value, ok := s.lookup(key); ok && value != "" {
		return value
	}
	return def
}

// OptionalInt returns the integer value or def when unset.
func (s source) OptionalInt(key string, def int) (int, error) {
	value, ok := s.lookup(key)
	if !ok || value == "" {
		return def, nil
	}
	return parseInt(key, value)
}

// Strings splits a comma separated value, empty entries are dropped.
func (s source) Strings(key string) []string {
	value, _ := s.lookup(key)
	var out []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func parseInt(key, value string) (int, error) {
	i, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return i, nil
}
