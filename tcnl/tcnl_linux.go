// Qdisc control over rtnetlink, Linux

//go:build linux

package tcnl

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/mdlayher/netlink"

	"golang.org/x/sys/unix"
)

var QdiscAvail = true

func dialRtnl() (*netlink.Conn, error) {
	c, err := netlink.Dial(unix.NETLINK_ROUTE, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial netlink: %v", err)
	}

	if err := c.SetOption(netlink.GetStrictCheck, true); err != nil {
		// Silently accept ENOPROTOOPT errors when kernel is not > 4.20:
		if !errors.Is(err, syscall.ENOPROTOOPT) {
			c.Close()
			return nil, fmt.Errorf("unexpected error trying to set option NETLINK_GET_STRICT_CHK: %v", err)
		}
	}

	if ReceiveBufferSize > 0 {
		if err := c.SetReadBuffer(ReceiveBufferSize); err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to set netlink receive buffer size: %v", err)
		}
	}

	return c, nil
}

func (qd *QdiscDump) Update() error {
	c, err := dialRtnl()
	if err != nil {
		return err
	}
	defer c.Close()

	req := netlink.Message{
		Header: netlink.Header{
			Type:  unix.RTM_GETQDISC,
			Flags: netlink.Request | netlink.Dump,
		},
		Data: (&TcMsg{IfIndex: qd.FilterIfIndex}).Encode(),
	}

	msgs, err := c.Execute(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %v", err)
	}

	*qd.shared.scanNum++
	scanNum := *qd.shared.scanNum
	for _, msg := range msgs {
		if err := qd.absorbMsg(msg.Data, scanNum); err != nil {
			return err
		}
	}

	return qd.resolveAndPrune(scanNum)
}

func QdiscModify(op int, req *QdiscRequest) error {
	var (
		msgType netlink.HeaderType
		flags   netlink.HeaderFlags
	)
	switch op {
	case QDISC_OP_ADD:
		msgType, flags = unix.RTM_NEWQDISC, netlink.Create|netlink.Excl
	case QDISC_OP_CHANGE:
		msgType = unix.RTM_NEWQDISC
	case QDISC_OP_REPLACE:
		msgType, flags = unix.RTM_NEWQDISC, netlink.Create|netlink.Replace
	case QDISC_OP_DEL:
		msgType = unix.RTM_DELQDISC
	default:
		return fmt.Errorf("invalid qdisc modify op#%d", op)
	}

	c, err := dialRtnl()
	if err != nil {
		return err
	}
	defer c.Close()

	tcm := TcMsg{
		IfIndex: req.IfIndex,
		Handle:  req.Handle,
		Parent:  req.Parent,
	}
	msg := netlink.Message{
		Header: netlink.Header{
			Type:  msgType,
			Flags: netlink.Request | netlink.Acknowledge | flags,
		},
		Data: append(tcm.Encode(), req.Attrs...),
	}

	if _, err := c.Execute(msg); err != nil {
		return fmt.Errorf("qdisc %s: %v", QdiscOpName(op), err)
	}
	return nil
}
