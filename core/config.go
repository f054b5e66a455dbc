package core

// Configuration defines a global engine configuration setting
type Configuration struct {
	Time     TimeConfiguration
	Window   WindowConfiguration
	Renderer RendererConfiguration

	// AssetArchive is a kar file all assets are read from,
	// the file system is used when empty
	AssetArchive string
}

// TimeConfiguration is used to configure time services
type TimeConfiguration struct {
	// FramesPerSecond caps frames per second that is put out
	// To unlimit, set to 0
	FramesPerSecond int
}

// WindowConfiguration is the initial window setup
type WindowConfiguration struct {
	Title  string
	Width  uint32
	Height uint32
}

// InstanceConfiguration is used to create the Vulkan instance
type InstanceConfiguration struct {
	DebugMode  bool
	Extensions []string
	Layers     []string
}

// RendererConfiguration is used to configure the renderer
type RendererConfiguration struct {
	// FramesInFlight is the number of frames the CPU
	// may record ahead of the GPU
	FramesInFlight   int
	DeviceExtensions []string

	// Samples is the requested MSAA sample count,
	// lowered to what the device supports
	Samples int

	ShadowMapSize uint32

	ShaderDirectory string
	Models          []string
	Texture         string
	CubemapDir      string
}

// DefaultDeviceExtensions are needed for presenting to a window
var DefaultDeviceExtensions = []string{
	"VK_KHR_swapchain",
}
