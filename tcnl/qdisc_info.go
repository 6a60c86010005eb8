// Qdisc dump state, usable either one-shot (show) or as a current/previous
// tandem for rate computation (watch).

package tcnl

import (
	"net"
	"time"

	"github.com/mdlayher/netlink"
	"github.com/mdlayher/netlink/nlenc"
)

const (
	// uint32 indices:
	QDISC_STAT_PACKETS = iota
	QDISC_STAT_DROPS
	QDISC_STAT_REQUEUES
	QDISC_STAT_OVERLIMITS
	QDISC_STAT_QLEN
	QDISC_STAT_BACKLOG

	// Must be last:
	QDISC_STAT_UINT32_NUM
)

const (
	// uint64 indices:
	QDISC_STAT_BYTES = iota

	// Must be last:
	QDISC_STAT_UINT64_NUM
)

const (
	// How often to refresh the interface index -> name cache:
	IF_INDEX_TO_NAME_CACHE_REFRESH_INTERVAL = 60 * time.Second

	// struct tc_stats, the legacy TCA_STATS payload:
	TC_STATS_LEN = 36
	// struct gnet_stats_basic and gnet_stats_queue minimum payloads under
	// TCA_STATS2:
	GNET_STATS_BASIC_MIN_LEN = 12
	GNET_STATS_QUEUE_MIN_LEN = 20
)

type QdiscInfoKey struct {
	IfIndex uint32
	Handle  uint32
}

type QdiscInfo struct {
	IfName string
	Kind   string
	Handle uint32
	Parent uint32
	// Reference count as reported in tcmsg info:
	Refcnt uint32
	// Counters, as uint32/uint64 lists so that deltas can be computed in a
	// loop:
	Uint32 [QDISC_STAT_UINT32_NUM]uint32
	Uint64 [QDISC_STAT_UINT64_NUM]uint64
	// Raw discipline specific payloads, for the option adapters:
	Options []byte
	XStats  []byte
	// Scan number used to identify out of scope qdiscs:
	scanNum int
}

// The following information is shared between the members of a
// current/previous tandem. Only one member is in use at a time, so access
// needs no locking:
type qdiscDumpShared struct {
	// Scan number incremented w/ every update; qdiscs that have
	// scan#(qdisc) != scan# have vanished and are removed:
	scanNum *int

	// Interface index -> name cache, refreshed periodically or every time
	// there is a miss:
	ifIndexToNameCache            map[uint32]string
	ifIndexToNameCacheLastRefresh time.Time
}

type QdiscDump struct {
	// Map info by (ifIndex, handle), since it is unique:
	Info map[QdiscInfoKey]*QdiscInfo

	// Restrict the dump to one interface, 0 for all:
	FilterIfIndex int32

	// Shared info:
	shared *qdiscDumpShared
}

func NewQdiscDump() *QdiscDump {
	return &QdiscDump{
		Info: make(map[QdiscInfoKey]*QdiscInfo),
		shared: &qdiscDumpShared{
			scanNum:            new(int),
			ifIndexToNameCache: make(map[uint32]string),
		},
	}
}

// The other member of a current/previous tandem; it starts w/ the identity
// info of the qdiscs known so far and zeroed counters:
func (qd *QdiscDump) Clone() *QdiscDump {
	newQd := &QdiscDump{
		Info:          make(map[QdiscInfoKey]*QdiscInfo),
		FilterIfIndex: qd.FilterIfIndex,
		shared:        qd.shared,
	}
	for qiKey, qi := range qd.Info {
		newQd.Info[qiKey] = &QdiscInfo{
			IfName:  qi.IfName,
			Kind:    qi.Kind,
			Handle:  qi.Handle,
			Parent:  qi.Parent,
			scanNum: qi.scanNum,
		}
	}
	return newQd
}

func (qi *QdiscInfo) parseTCAStats(data []byte) {
	if len(data) < TC_STATS_LEN {
		return
	}
	qi.Uint64[QDISC_STAT_BYTES] = nlenc.Uint64(data[0:8])
	qi.Uint32[QDISC_STAT_PACKETS] = nlenc.Uint32(data[8:12])
	qi.Uint32[QDISC_STAT_DROPS] = nlenc.Uint32(data[12:16])
	qi.Uint32[QDISC_STAT_OVERLIMITS] = nlenc.Uint32(data[16:20])
	qi.Uint32[QDISC_STAT_QLEN] = nlenc.Uint32(data[28:32])
	qi.Uint32[QDISC_STAT_BACKLOG] = nlenc.Uint32(data[32:36])
}

func (qi *QdiscInfo) parseTCAStats2(data []byte) error {
	nested, err := netlink.UnmarshalAttributes(data)
	if err != nil {
		return err
	}

	for _, a := range nested {
		switch a.Type & NLA_TYPE_MASK {
		case TCA_STATS_BASIC:
			if len(a.Data) >= GNET_STATS_BASIC_MIN_LEN {
				qi.Uint64[QDISC_STAT_BYTES] = nlenc.Uint64(a.Data[0:8])
				qi.Uint32[QDISC_STAT_PACKETS] = nlenc.Uint32(a.Data[8:12])
			}
		case TCA_STATS_QUEUE:
			if len(a.Data) >= GNET_STATS_QUEUE_MIN_LEN {
				qi.Uint32[QDISC_STAT_QLEN] = nlenc.Uint32(a.Data[0:4])
				qi.Uint32[QDISC_STAT_BACKLOG] = nlenc.Uint32(a.Data[4:8])
				qi.Uint32[QDISC_STAT_DROPS] = nlenc.Uint32(a.Data[8:12])
				qi.Uint32[QDISC_STAT_REQUEUES] = nlenc.Uint32(a.Data[12:16])
				qi.Uint32[QDISC_STAT_OVERLIMITS] = nlenc.Uint32(a.Data[16:20])
			}
		case TCA_STATS_APP:
			qi.XStats = a.Data
		default:
		}
	}
	return nil
}

// Absorb one RTM_GETQDISC dump reply message:
func (qd *QdiscDump) absorbMsg(data []byte, scanNum int) error {
	tcm, err := DecodeTcMsg(data)
	if err != nil {
		return err
	}
	if qd.FilterIfIndex != 0 && tcm.IfIndex != qd.FilterIfIndex {
		return nil
	}

	qiKey := QdiscInfoKey{IfIndex: uint32(tcm.IfIndex), Handle: tcm.Handle}
	qi := qd.Info[qiKey]
	if qi == nil {
		qi = &QdiscInfo{}
		qd.Info[qiKey] = qi
	}
	qi.Handle = tcm.Handle
	qi.Parent = tcm.Parent
	qi.Refcnt = tcm.Info
	qi.Options, qi.XStats = nil, nil

	attrs, err := netlink.UnmarshalAttributes(data[TCMSG_LEN:])
	if err != nil {
		return err
	}
	var legacyXStats []byte
	for _, attr := range attrs {
		switch attr.Type & NLA_TYPE_MASK {
		case TCA_KIND:
			qi.Kind = nlenc.String(attr.Data)
		case TCA_OPTIONS:
			qi.Options = attr.Data
		case TCA_STATS2:
			if err := qi.parseTCAStats2(attr.Data); err != nil {
				return err
			}
		case TCA_STATS:
			// Legacy:
			qi.parseTCAStats(attr.Data)
		case TCA_XSTATS:
			// Legacy, app stats under TCA_STATS2 take precedence:
			legacyXStats = attr.Data
		default:
		}
	}
	if qi.XStats == nil {
		qi.XStats = legacyXStats
	}

	qi.scanNum = scanNum
	return nil
}

func (qd *QdiscDump) ifIndexToNameRefresh() error {
	ifas, err := net.Interfaces()
	if err != nil {
		return err
	}
	for _, ifa := range ifas {
		qd.shared.ifIndexToNameCache[uint32(ifa.Index)] = ifa.Name
	}
	qd.shared.ifIndexToNameCacheLastRefresh = time.Now()
	return nil
}

// Resolve interface names and remove out-of-scope qdiscs:
func (qd *QdiscDump) resolveAndPrune(scanNum int) error {
	shared := qd.shared
	refreshed := false
	if time.Since(shared.ifIndexToNameCacheLastRefresh) >= IF_INDEX_TO_NAME_CACHE_REFRESH_INTERVAL {
		if err := qd.ifIndexToNameRefresh(); err != nil {
			return err
		}
		refreshed = true
	}
	for qiKey, qi := range qd.Info {
		if qi.scanNum != scanNum {
			delete(qd.Info, qiKey)
			continue
		}
		if qi.IfName == "" {
			ifName := shared.ifIndexToNameCache[qiKey.IfIndex]
			if ifName == "" && !refreshed {
				if err := qd.ifIndexToNameRefresh(); err != nil {
					return err
				}
				refreshed = true
			}
			qi.IfName = shared.ifIndexToNameCache[qiKey.IfIndex]
		}
	}
	return nil
}
