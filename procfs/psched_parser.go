// parser for /proc/net/psched

package procfs

import (
	"fmt"
	"path"
)

// The file is a single line of 4 hex u32 values:
//
//   000003e8 00000040 000f4240 3b9aca00
//
// exposing the packet scheduler clock parameters. tc derives its time <->
// tick conversion from the first three; the fourth reports the hrtimer
// resolution in units of 1/ns.

// Value indexes:
const (
	PSCHED_T2US = iota // scheduler ticks -> micro seconds
	PSCHED_US2T        // micro seconds -> scheduler ticks
	PSCHED_CLOCK_RES   // clock resolution, in time units per second
	PSCHED_HRTIMER_RES
	// Must be last:
	PSCHED_NUM_VALUES
)

// Reference time units per second for the clock factor:
const PSCHED_TIME_UNITS_PER_SEC = 1000000

type Psched struct {
	Values [PSCHED_NUM_VALUES]uint32

	// Derived conversion factors, following the tc rules, including the
	// compatibility hack whereby a kernel advertising nano second clock
	// resolution really has a tick multiplier of 1:
	ClockFactor float64
	TickInUsec  float64

	// The file to read:
	path string
}

var pschedReadFileBufPool = ReadFileBufPool16k

func NewPsched(procfsRoot string) *Psched {
	return &Psched{
		path: path.Join(procfsRoot, "net", "psched"),
	}
}

func (psched *Psched) Parse() error {
	fBuf, err := pschedReadFileBufPool.ReadFile(psched.path)
	if err != nil {
		return err
	}
	defer pschedReadFileBufPool.ReturnBuf(fBuf)

	buf, l := fBuf.Bytes(), fBuf.Len()

	pos := 0
	for valueIndex := 0; valueIndex < PSCHED_NUM_VALUES; valueIndex++ {
		for ; pos < l && isWhitespaceNl[buf[pos]]; pos++ {
		}
		value, hasValue := uint32(0), false
		for done := false; !done && pos < l; pos++ {
			c := buf[pos]
			if digit := hexDigit[c]; digit != 0xff {
				value = (value << 4) + uint32(digit)
				hasValue = true
			} else if isWhitespaceNl[c] {
				done = true
			} else {
				return fmt.Errorf(
					"%s: %q: invalid hex value",
					psched.path, getCurrentLine(buf, -pos),
				)
			}
		}
		if !hasValue {
			return fmt.Errorf(
				"%s: not enough values: want: %d, got: %d",
				psched.path, PSCHED_NUM_VALUES, valueIndex,
			)
		}
		psched.Values[valueIndex] = value
	}

	t2us, us2t := psched.Values[PSCHED_T2US], psched.Values[PSCHED_US2T]
	clockRes := psched.Values[PSCHED_CLOCK_RES]
	if us2t == 0 {
		return fmt.Errorf("%s: zero us->tick ratio", psched.path)
	}
	if clockRes == 1000000000 {
		t2us = us2t
	}
	psched.ClockFactor = float64(clockRes) / PSCHED_TIME_UNITS_PER_SEC
	psched.TickInUsec = float64(t2us) / float64(us2t) * psched.ClockFactor

	return nil
}
