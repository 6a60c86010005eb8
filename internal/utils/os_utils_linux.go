// Misc Linux OS related info

//go:build linux

package utils

import (
	"bytes"
	"strings"
	"time"

	"github.com/capnm/sysinfo"
	"github.com/tklauser/go-sysconf"

	"golang.org/x/sys/unix"
)

func zeroSuffixBufToString(buf []byte) string {
	i := bytes.IndexByte(buf, 0)
	if i < 0 {
		i = len(buf)
	}
	return string(buf[:i])
}

func getOsNameRelease() (string, string) {
	uname := unix.Utsname{}
	if err := unix.Uname(&uname); err != nil {
		return "linux", ""
	}
	return strings.ToLower(zeroSuffixBufToString(uname.Sysname[:])),
		zeroSuffixBufToString(uname.Release[:])
}

func getClktck() (int64, error) {
	return sysconf.Sysconf(sysconf.SC_CLK_TCK)
}

func getOsBtime() time.Time {
	si := sysinfo.Get()
	return time.Now().Add(-si.Uptime)
}
