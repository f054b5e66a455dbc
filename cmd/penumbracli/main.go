// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/devblok/penumbra/core"
	log "github.com/sirupsen/logrus"
)

var (
	debug  = flag.Bool("vkdbg", false, "Load Vulkan validation layers")
	indent = flag.Bool("indent", false, "Indent the JSON output")
)

func main() {
	flag.Parse()

	cfg := core.InstanceConfiguration{
		DebugMode: *debug,
	}

	coreInstance, err := core.NewVulkanInstance(core.DefaultVulkanApplicationInfo, nil, cfg)
	if err != nil {
		log.WithError(err).Fatal("creating instance")
	}
	defer coreInstance.Destroy()

	var bytes []byte
	if *indent {
		bytes, err = json.MarshalIndent(coreInstance.PhysicalDevicesInfo(), "", "  ")
	} else {
		bytes, err = json.Marshal(coreInstance.PhysicalDevicesInfo())
	}
	if err != nil {
		log.WithError(err).Error("encoding device info")
		return
	}
	fmt.Fprintf(os.Stdout, "%s\n", bytes)
}
