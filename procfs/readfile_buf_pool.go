// Read a file into a reusable buffer from a pool; this should be more efficient
// than allocating a buffer every time and relying on GC.

package procfs

import (
	"github.com/bgp59/aifo-stfq-tc/internal/utils"
)

// Predefined pools, sized for the files read by this package:
var (
	ReadFileBufPool16k  = utils.NewReadFileBufPool(32, 0x4000)
	ReadFileBufPool256k = utils.NewReadFileBufPool(8, 0x40000)
)
