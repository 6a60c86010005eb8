// parser for /proc/net/dev

package procfs

import (
	"bytes"
	"fmt"
	"path"
)

// Inter-|   Receive                                                |  Transmit
//  face |bytes    packets errs drop fifo frame compressed multicast|bytes    packets errs drop fifo colls carrier compressed
//     lo:    6740      68    0    0    0     0          0         0     6740      68    0    0    0     0       0          0
//   eth0: 1936365    7267    0    0    0     0          0         0 14322183    7122    0    0    0     0       0          0

// References:
//  https://github.com/torvalds/linux/blob/b8f1fa2419c19c81bc386a6b350879ba54a573e1/net/core/net-procfs.c#L77
//  https://github.com/torvalds/linux/blob/791c8ab095f71327899023223940dd52257a4173/Documentation/networking/statistics.rst#procfs

// Each interface presents its counters as []uint64, indexed as follows:
const (
	NET_DEV_RX_BYTES = iota
	NET_DEV_RX_PACKETS
	NET_DEV_RX_ERRS
	NET_DEV_RX_DROP
	NET_DEV_RX_FIFO
	NET_DEV_RX_FRAME
	NET_DEV_RX_COMPRESSED
	NET_DEV_RX_MULTICAST
	NET_DEV_TX_BYTES
	NET_DEV_TX_PACKETS
	NET_DEV_TX_ERRS
	NET_DEV_TX_DROP
	NET_DEV_TX_FIFO
	NET_DEV_TX_COLLS
	NET_DEV_TX_CARRIER
	NET_DEV_TX_COMPRESSED
	// Must be last:
	NET_DEV_NUM_STATS
)

type NetDev struct {
	// Counters indexed by device name:
	DevStats map[string][]uint64

	// The file to read:
	path string

	// Devices may appear/disappear dynamically. To detect and remove
	// deleted devices from DevStats, the scan# below is incremented at the
	// start of every scan and each device found during it has its entry in
	// devScanNum updated. At the end of the scan the devices left behind
	// are removed:
	devScanNum map[string]int
	scanNum    int

	// The parser relies on the column order from the header. The layout
	// cannot change without a kernel change, i.e. a reboot, so the header
	// is validated once, at the first pass, and the accepted header is
	// simply compared against at each subsequent pass as a sanity check:
	validHeader    []byte
	numLinesHeader int
}

// Read the entire file in one go, using a ReadFileBufPool:
var netDevReadFileBufPool = ReadFileBufPool256k

// Rather than whitelisting byte exact headers, which vary in column spacing
// across kernels, the header is accepted if its lines carry the expected
// group markers:
var netDevHeaderMarkers = [][]byte{
	[]byte("Receive"),
	[]byte("Transmit"),
	[]byte("|bytes"),
}

const NET_DEV_HEADER_NUM_LINES = 2

func NewNetDev(procfsRoot string) *NetDev {
	return &NetDev{
		DevStats:   map[string][]uint64{},
		devScanNum: map[string]int{},
		path:       path.Join(procfsRoot, "net", "dev"),
	}
}

// The other member of a current/previous tandem. The clone starts w/ the
// devices known so far; their counters and scan state are carried over only
// for full clones:
func (netDev *NetDev) Clone(full bool) *NetDev {
	newNetDev := &NetDev{
		DevStats:       map[string][]uint64{},
		devScanNum:     map[string]int{},
		path:           netDev.path,
		numLinesHeader: netDev.numLinesHeader,
	}
	if netDev.validHeader != nil {
		newNetDev.validHeader = make([]byte, len(netDev.validHeader))
		copy(newNetDev.validHeader, netDev.validHeader)
	}

	for dev, devStats := range netDev.DevStats {
		newNetDev.DevStats[dev] = make([]uint64, NET_DEV_NUM_STATS)
		if full {
			copy(newNetDev.DevStats[dev], devStats)
		}
	}
	if full {
		for dev, devScanNum := range netDev.devScanNum {
			newNetDev.devScanNum[dev] = devScanNum
		}
		newNetDev.scanNum = netDev.scanNum
	}

	return newNetDev
}

func (netDev *NetDev) validateHeader(buf []byte) {
	off, l := 0, len(buf)
	for n := 0; n < NET_DEV_HEADER_NUM_LINES; n++ {
		for ; off < l && buf[off] != '\n'; off++ {
		}
		if off < l {
			off++
		} else {
			return
		}
	}
	header := buf[:off]
	for _, marker := range netDevHeaderMarkers {
		if !bytes.Contains(header, marker) {
			return
		}
	}
	netDev.validHeader = make([]byte, off)
	copy(netDev.validHeader, header)
	netDev.numLinesHeader = NET_DEV_HEADER_NUM_LINES
}

func (netDev *NetDev) Parse() error {
	fBuf, err := netDevReadFileBufPool.ReadFile(netDev.path)
	if err != nil {
		return err
	}
	defer netDevReadFileBufPool.ReturnBuf(fBuf)

	buf, l := fBuf.Bytes(), fBuf.Len()

	validHeader := netDev.validHeader
	if validHeader == nil {
		netDev.validateHeader(buf)
		validHeader = netDev.validHeader
		if validHeader == nil {
			return fmt.Errorf("%s: unsupported file header", netDev.path)
		}
	} else if l < len(validHeader) || !bytes.Equal(validHeader, buf[:len(validHeader)]) {
		return fmt.Errorf("%s: invalid/changed file header", netDev.path)
	}
	statsOff := len(validHeader)

	scanNum := netDev.scanNum + 1
	for pos, lineNum := statsOff, netDev.numLinesHeader+1; pos < l; lineNum++ {
		// New line starts here:
		lineStart, eol := pos, false

		// Extract the device name, terminated by `:':
		for ; pos < l && isWhitespace[buf[pos]]; pos++ {
		}
		dev := ""
		for devStart, done := pos, false; !done && pos < l; pos++ {
			c := buf[pos]
			if c == ':' {
				if devStart < pos-1 {
					dev = string(buf[devStart:pos])
				}
				done = true
			} else if eol = (c == '\n'); eol || isWhitespace[c] {
				done = true
			}
		}
		if dev == "" {
			return fmt.Errorf(
				"%s#%d: %q: missing `DEV:'",
				netDev.path, lineNum, getCurrentLine(buf, lineStart),
			)
		}

		stats := netDev.DevStats[dev]
		if stats == nil {
			stats = make([]uint64, NET_DEV_NUM_STATS)
			netDev.DevStats[dev] = stats
		}

		// Extract the counters:
		statIndex := 0
		for !eol && pos < l && statIndex < NET_DEV_NUM_STATS {
			for ; pos < l && isWhitespace[buf[pos]]; pos++ {
			}
			value, hasValue := uint64(0), false
			for done := false; !done && pos < l; pos++ {
				c := buf[pos]
				if digit := c - '0'; digit < 10 {
					value = (value << 3) + (value << 1) + uint64(digit)
					hasValue = true
				} else if eol = (c == '\n'); eol || isWhitespace[c] {
					done = true
				} else {
					return fmt.Errorf(
						"%s#%d: %q: invalid value",
						netDev.path, lineNum, getCurrentLine(buf, lineStart),
					)
				}
			}
			if hasValue {
				stats[statIndex] = value
				statIndex++
			}
		}

		// All values retrieved?
		if statIndex < NET_DEV_NUM_STATS {
			return fmt.Errorf(
				"%s#%d: %q: not enough values: want: %d, got: %d",
				netDev.path, lineNum, getCurrentLine(buf, lineStart), NET_DEV_NUM_STATS, statIndex,
			)
		}

		// Mark the device as seen by this scan:
		netDev.devScanNum[dev] = scanNum

		// Advance to EOL:
		for ; !eol && pos < l; pos++ {
			c := buf[pos]
			if eol = (c == '\n'); !eol && !isWhitespace[c] {
				return fmt.Errorf(
					"%s#%d: %q: %q: unexpected content after dev counters",
					netDev.path, lineNum, getCurrentLine(buf, lineStart), getCurrentLine(buf, pos),
				)
			}
		}
	}

	// Prune devices no longer present:
	for dev, devScanNum := range netDev.devScanNum {
		if devScanNum != scanNum {
			delete(netDev.DevStats, dev)
			delete(netDev.devScanNum, dev)
		}
	}

	// Update scan#:
	netDev.scanNum = scanNum

	return nil
}
