//go:build !darwin && !linux

package probe

import (
	"fmt"
	"runtime"
)

func hostOSVersion() (string, error) {
	return "", fmt.Errorf("OS version detection not supported on %s", runtime.GOOS)
}
