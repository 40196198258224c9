package probe

import "golang.org/x/sys/unix"

func hostOSVersion() (string, error) {
	return unix.Sysctl("kern.osproductversion")
}
