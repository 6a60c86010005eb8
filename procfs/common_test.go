// Definitions common to all tests:

package procfs

const PROCFS_TESTDATA_ROOT = "testdata"
