package loader

import (
	"fmt"
	"strconv"
	"strings"

	pluginapi "github.com/jmylchreest/gh-please/pkg/plugin"
)

// MinProtocolVersion is the oldest plugin protocol the loader accepts.
const MinProtocolVersion = "1.0.0"

type protocolVersion struct {
	major, minor, patch int
}

func parseProtocolVersion(s string) (protocolVersion, error) {
	parts := strings.Split(strings.TrimPrefix(s, "v"), ".")
	if len(parts) != 3 {
		return protocolVersion{}, fmt.Errorf("invalid protocol version %q (expected MAJOR.MINOR.PATCH)", s)
	}
	var nums [3]int
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return protocolVersion{}, fmt.Errorf("invalid protocol version %q", s)
		}
		nums[i] = n
	}
	return protocolVersion{major: nums[0], minor: nums[1], patch: nums[2]}, nil
}

func (v protocolVersion) less(o protocolVersion) bool {
	if v.major != o.major {
		return v.major < o.major
	}
	if v.minor != o.minor {
		return v.minor < o.minor
	}
	return v.patch < o.patch
}

// checkProtocol accepts a plugin whose major protocol version matches the
// host's and which is not older than MinProtocolVersion.
func checkProtocol(pluginVersion string) error {
	got, err := parseProtocolVersion(pluginVersion)
	if err != nil {
		return err
	}
	host, err := parseProtocolVersion(pluginapi.ProtocolVersion)
	if err != nil {
		return err
	}
	minimum, err := parseProtocolVersion(MinProtocolVersion)
	if err != nil {
		return err
	}

	if got.major != host.major {
		return fmt.Errorf("incompatible plugin protocol %s: gh-please requires %d.x.x", pluginVersion, host.major)
	}
	if got.less(minimum) {
		return fmt.Errorf("plugin protocol %s is too old, minimum is %s", pluginVersion, MinProtocolVersion)
	}
	return nil
}
