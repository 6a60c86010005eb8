// Qdisc control over rtnetlink, non Linux

//go:build !linux

package tcnl

import (
	"fmt"
	"runtime"
)

var QdiscAvail = false

func (qd *QdiscDump) Update() error {
	return fmt.Errorf("qdisc not supported for GOOS=%s", runtime.GOOS)
}

func QdiscModify(op int, req *QdiscRequest) error {
	return fmt.Errorf("qdisc not supported for GOOS=%s", runtime.GOOS)
}
