// Misc Other OS related info

//go:build !linux

package utils

import (
	"runtime"
	"time"
)

var dummyBtime = time.Now()

func getOsNameRelease() (string, string) {
	return runtime.GOOS, ""
}

func getClktck() (int64, error) {
	return DEFAULT_LINUX_CLKTCK, nil
}

func getOsBtime() time.Time {
	return dummyBtime
}
