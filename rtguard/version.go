package rtguard

// Version information for the realtime-safety sanitizer.
const (
	// Version is the current version of the sanitizer runtime.
	Version = "0.1.0"

	// VersionMajor is the major version number.
	VersionMajor = 0

	// VersionMinor is the minor version number.
	VersionMinor = 1

	// VersionPatch is the patch version number.
	VersionPatch = 0
)

// Info provides runtime information about the sanitizer.
type Info struct {
	// Version is the runtime version string.
	Version string

	// Mode describes the detection strategy.
	Mode string

	// Enabled indicates whether the sanitizer is currently armed.
	Enabled bool
}

// GetInfo returns information about the sanitizer runtime.
//
// Example:
//
//	info := rtguard.GetInfo()
//	fmt.Printf("rtguard %s (%s)\n", info.Version, info.Mode)
func GetInfo() Info {
	return Info{
		Version: Version,
		Mode:    "intercept-and-forward",
		Enabled: Active(),
	}
}
