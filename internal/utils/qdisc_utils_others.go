// Compact qdisc stats, non Linux

//go:build !linux

package utils

import (
	"fmt"
	"runtime"
)

var QdiscAvail = false

func (qb *QdiscBrief) Update() error {
	return fmt.Errorf("qdisc not supported for GOOS=%s", runtime.GOOS)
}
