package dlmalloc

import (
	"fmt"
	"os"
)

// trace writes one line to stderr when an Arena's Trace field is set,
// mirroring the teacher's stderr debug hook (see dbg in the test suite)
// but available in non-test builds since Trace is a runtime switch here,
// not a build tag.
func trace(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "dlmalloc: "+format+"\n", args...)
}
