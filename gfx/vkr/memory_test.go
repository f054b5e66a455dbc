// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/devblok/penumbra/gfx/vkr"
	vk "github.com/vulkan-go/vulkan"
)

func memoryProperties(flags ...vk.MemoryPropertyFlagBits) vk.PhysicalDeviceMemoryProperties {
	var props vk.PhysicalDeviceMemoryProperties
	props.MemoryTypeCount = uint32(len(flags))
	for idx, f := range flags {
		props.MemoryTypes[idx] = vk.MemoryType{
			PropertyFlags: vk.MemoryPropertyFlags(f),
		}
	}
	return props
}

var typicalDiscrete = memoryProperties(
	vk.MemoryPropertyDeviceLocalBit,
	vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit,
	vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit|vk.MemoryPropertyHostCachedBit,
	vk.MemoryPropertyDeviceLocalBit|vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit,
)

func TestFindMemoryTypeLowestIndex(t *testing.T) {
	hostCoherent := vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	tests := []struct {
		name   string
		filter uint32
		flags  vk.MemoryPropertyFlags
		want   uint32
	}{
		{"device local any", 0xF, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit), 0},
		{"host coherent any", 0xF, hostCoherent, 1},
		{"host coherent filtered", 0xC, hostCoherent, 2},
		{"device local filtered", 0xA, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit), 3},
		{"no flags", 0x8, 0, 3},
	}

	for _, test := range tests {
		got, err := vkr.FindMemoryType(typicalDiscrete, test.filter, test.flags)
		if err != nil {
			t.Fatalf("%s: %s", test.name, err)
		}
		if got != test.want {
			t.Fatalf("%s: got index %d, want %d", test.name, got, test.want)
		}
	}
}

func TestFindMemoryTypeDeterministic(t *testing.T) {
	flags := vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit)
	first, err := vkr.FindMemoryType(typicalDiscrete, 0xE, flags)
	if err != nil {
		t.Fatal(err)
	}
	for idx := 0; idx < 100; idx++ {
		again, err := vkr.FindMemoryType(typicalDiscrete, 0xE, flags)
		if err != nil {
			t.Fatal(err)
		}
		if again != first {
			t.Fatalf("run %d returned %d, first run returned %d", idx, again, first)
		}
	}
}

func TestFindMemoryTypeUnavailable(t *testing.T) {
	_, err := vkr.FindMemoryType(typicalDiscrete, 0x1, vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit))
	if !errors.Is(err, vkr.ErrMemoryTypeUnavailable) {
		t.Fatalf("expected ErrMemoryTypeUnavailable, got %v", err)
	}

	// bits beyond the type count are never considered
	_, err = vkr.FindMemoryType(typicalDiscrete, 0x10, 0)
	if !errors.Is(err, vkr.ErrMemoryTypeUnavailable) {
		t.Fatalf("expected ErrMemoryTypeUnavailable, got %v", err)
	}
}

func TestCheckCarriesLocation(t *testing.T) {
	if err := vkr.Check("vk.Nothing()", vk.Success); err != nil {
		t.Fatalf("success produced an error: %s", err)
	}

	err := vkr.Check("vk.CreateDevice()", vk.ErrorInitializationFailed)
	var vkErr *vkr.Error
	if !errors.As(err, &vkErr) {
		t.Fatalf("expected *vkr.Error, got %T", err)
	}
	if filepath.Base(vkErr.File) != "memory_test.go" {
		t.Fatalf("wrong location: %s", vkErr.File)
	}
	if vkErr.Result != vk.ErrorInitializationFailed {
		t.Fatalf("wrong result: %d", vkErr.Result)
	}
}

func BenchmarkFindMemoryType(b *testing.B) {
	flags := vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	for idx := 0; idx < b.N; idx++ {
		vkr.FindMemoryType(typicalDiscrete, 0xF, flags)
	}
}
