package volt

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Version is the current SDK version.
//
// This version follows semantic versioning (https://semver.org/).
const Version = "0.1.0"

// APIVersion is the VoltageGPU API version this SDK was built against.
const APIVersion = "1.2.0"

// APIVersionRange is the semver constraint of server versions this SDK is
// known to work with. The server reports its version in the
// X-Volt-API-Version response header.
const APIVersionRange = ">=1.0.0, <2.0.0"

// apiVersionHeader carries the server version on every response.
const apiVersionHeader = "X-Volt-API-Version"

// CompatibilityStatus is the outcome of [CheckCompatibility].
type CompatibilityStatus int

const (
	// Unknown means the server version could not be parsed.
	Unknown CompatibilityStatus = iota
	// Compatible means the server version satisfies [APIVersionRange].
	Compatible
	// Incompatible means the server version is outside [APIVersionRange].
	Incompatible
)

func (s CompatibilityStatus) String() string {
	switch s {
	case Compatible:
		return "compatible"
	case Incompatible:
		return "incompatible"
	}
	return "unknown"
}

// CompatibilityResult describes how a server version relates to this SDK.
type CompatibilityResult struct {
	Status         CompatibilityStatus
	ServerVersion  string
	SDKVersion     string
	SupportedRange string
	Message        string
}

// IsCompatible returns true if Status is [Compatible].
func (r CompatibilityResult) IsCompatible() bool {
	return r.Status == Compatible
}

// CheckCompatibility compares a server version against [APIVersionRange].
func CheckCompatibility(serverVersion string) CompatibilityResult {
	res := CompatibilityResult{
		Status:         Unknown,
		ServerVersion:  serverVersion,
		SDKVersion:     Version,
		SupportedRange: APIVersionRange,
	}

	v, err := semver.NewVersion(serverVersion)
	if err != nil {
		res.Message = fmt.Sprintf("cannot parse server version %q: %v", serverVersion, err)
		return res
	}
	c, err := semver.NewConstraint(APIVersionRange)
	if err != nil {
		res.Message = fmt.Sprintf("invalid supported range %q: %v", APIVersionRange, err)
		return res
	}

	if c.Check(v) {
		res.Status = Compatible
		res.Message = fmt.Sprintf("server API %s is compatible with SDK %s", serverVersion, Version)
	} else {
		res.Status = Incompatible
		res.Message = fmt.Sprintf("server API %s is not compatible with SDK %s (supports %s)",
			serverVersion, Version, APIVersionRange)
	}
	return res
}

// IsCompatible reports whether serverVersion satisfies [APIVersionRange].
func IsCompatible(serverVersion string) bool {
	return CheckCompatibility(serverVersion).IsCompatible()
}
