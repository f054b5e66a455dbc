// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/devblok/penumbra/gfx"
	"github.com/devblok/penumbra/gfx/vkr"
	vk "github.com/vulkan-go/vulkan"
)

// NewVulkanShader loads a compiled shader from src and creates its module.
// The stage is read from the file name, see shaderTypeFromPath.
func NewVulkanShader(device vk.Device, src gfx.Source, path string) (*VulkanShader, error) {
	shaderType := shaderTypeFromPath(path)
	if shaderType == UnknownShaderType {
		return nil, fmt.Errorf("%s: cannot tell the shader stage from the file name", path)
	}

	contents, err := src.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(contents) == 0 || len(contents)%4 != 0 {
		return nil, fmt.Errorf("%s: not a SPIR-V binary (%d bytes)", path, len(contents))
	}

	smci := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(contents)),
		PCode:    SliceUint32(contents),
	}

	var module vk.ShaderModule
	if err := vkr.Check(fmt.Sprintf("vk.CreateShaderModule(%s)", path), vk.CreateShaderModule(device, &smci, nil, &module)); err != nil {
		return nil, err
	}

	return &VulkanShader{
		name:       strings.Split(filepath.Base(path), ".")[0],
		shaderType: shaderType,
		device:     device,
		module:     module,
	}, nil
}

// VulkanShader is a loaded shader module
type VulkanShader struct {
	name       string
	shaderType ShaderType
	device     vk.Device
	module     vk.ShaderModule
}

// Type returns the pipeline stage the shader is for
func (v *VulkanShader) Type() ShaderType {
	return v.shaderType
}

// Name is the file name up to the first dot
func (v *VulkanShader) Name() string {
	return v.name
}

func (v *VulkanShader) stageInfo() vk.PipelineShaderStageCreateInfo {
	return vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  v.shaderType.stage(),
		Module: v.module,
		PName:  "main\x00",
	}
}

// Destroy implements interface
func (v *VulkanShader) Destroy() {
	vk.DestroyShaderModule(v.device, v.module, nil)
}
