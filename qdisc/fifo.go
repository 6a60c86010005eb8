// Classic fifo disciplines. pfifo limits by packet count, bfifo by bytes;
// their options travel as a bare struct tc_fifo_qopt rather than a nested
// attribute block.

package qdisc

import (
	"fmt"
	"io"
	"math"

	"github.com/docker/go-units"
	"github.com/mdlayher/netlink"
	"github.com/mdlayher/netlink/nlenc"

	"github.com/bgp59/aifo-stfq-tc/tcnl"
)

const TC_FIFO_QOPT_LEN = 4

type FifoAdapter struct {
	kind string
	// Byte sized limit, admitting k/m/g suffixes:
	byteLimit bool
}

func init() {
	Register(&FifoAdapter{kind: "pfifo"})
	Register(&FifoAdapter{kind: "bfifo", byteLimit: true})
}

func (a *FifoAdapter) Kind() string {
	return a.kind
}

func (a *FifoAdapter) Explain(w io.Writer) {
	unit := "PACKETS"
	if a.byteLimit {
		unit = "BYTES"
	}
	fmt.Fprintf(w, "Usage: ... %s [ limit %s ]\n", a.kind, unit)
}

func (a *FifoAdapter) ParseOptions(args *Args, ae *netlink.AttributeEncoder) error {
	var (
		limit    uint32
		limitSet bool
	)

	for args.More() {
		arg := args.Next()
		switch arg {
		case "limit":
			val, err := args.NextValue()
			if err != nil {
				return err
			}
			if a.byteLimit {
				size, err := units.RAMInBytes(val)
				if err != nil || size < 0 || size > math.MaxUint32 {
					return fmt.Errorf("illegal %q", "limit")
				}
				limit = uint32(size)
			} else {
				if limit, err = ParseU32("limit", val); err != nil {
					return err
				}
			}
			limitSet = true
		case "help":
			return ErrHelp
		default:
			return &UnknownParamError{Kind: a.kind, Param: arg}
		}
	}

	// tc omits TCA_OPTIONS altogether when no limit was given:
	if limitSet {
		qopt := make([]byte, TC_FIFO_QOPT_LEN)
		nlenc.PutUint32(qopt, limit)
		ae.Bytes(tcnl.TCA_OPTIONS, qopt)
	}
	return nil
}

func (a *FifoAdapter) FormatOptions(p *Printer, data []byte) error {
	if data == nil {
		return nil
	}
	if len(data) < TC_FIFO_QOPT_LEN {
		return fmt.Errorf(
			"%s: options payload too short: %d < %d bytes",
			a.kind, len(data), TC_FIFO_QOPT_LEN,
		)
	}
	limit := uint64(nlenc.Uint32(data[:4]))
	if a.byteLimit {
		p.Uint("limit", "limit %db ", limit)
	} else {
		p.Uint("limit", "limit %dp ", limit)
	}
	return nil
}

func (a *FifoAdapter) FormatXStats(p *Printer, data []byte) error {
	return nil
}
