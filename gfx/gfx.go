// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package gfx defines rendering related features that renderers must implement.
package gfx

import (
	"io/ioutil"
	"path/filepath"
)

// Releasable defines any memory-occupying item that can be freed.
type Releasable interface {

	// Release releases memory occupied by the implementing structure.
	Release()
}

// Source describes where the renderer gets its asset bytes from.
// Shaders, models and textures are all read as opaque blobs.
type Source interface {

	// ReadFile returns the entire contents of the named asset.
	ReadFile(name string) ([]byte, error)
}

// DirSource reads assets from the filesystem, relative
// names are resolved against Root into absolute paths.
type DirSource struct {
	Root string
}

// Path resolves the absolute path of the named asset.
func (d DirSource) Path(name string) (string, error) {
	if filepath.IsAbs(name) {
		return name, nil
	}
	return filepath.Abs(filepath.Join(d.Root, name))
}

// ReadFile implements Source
func (d DirSource) ReadFile(name string) ([]byte, error) {
	path, err := d.Path(name)
	if err != nil {
		return nil, err
	}
	return ioutil.ReadFile(path)
}
