// Misc OS related info

package utils

import (
	"time"
)

const DEFAULT_LINUX_CLKTCK = 100

var (
	OSName    string
	OSRelease string
	// Boot time, inferred from uptime at process start:
	OSBtime time.Time
	// USER_HZ, the unit for certain kernel reported time intervals:
	LinuxClktck    int64 = DEFAULT_LINUX_CLKTCK
	LinuxClktckSec float64
)

func init() {
	OSName, OSRelease = getOsNameRelease()
	if clktck, err := getClktck(); err == nil && clktck > 0 {
		LinuxClktck = clktck
	}
	LinuxClktckSec = 1. / float64(LinuxClktck)
	OSBtime = getOsBtime()
}
