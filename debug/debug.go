// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: debug.go: Cold-path diagnostics for ring setup & teardown
//
// Purpose:
//   - Logs segment attach/detach, configuration and harness failures.
//   - Never used by WriteAcquire/ReadAcquire or any other hot-path call.
//
// Notes:
//   - Avoids fmt.Sprintf; messages are built by plain concatenation.
//   - Output goes straight to stderr through utils.PrintWarning.
//
// ⚠️ Never invoke in hot loops, use only in failure diagnostics.
// ─────────────────────────────────────────────────────────────────────────────

package debug

import "spscring/utils"

// DropError logs err under prefix. A nil err logs the bare prefix, which is
// handy as a trace tag.
//
//go:nosplit
//go:inline
func DropError(prefix string, err error) {
	if err != nil {
		utils.PrintWarning(prefix + ": " + err.Error() + "\n")
		return
	}
	utils.PrintWarning(prefix + "\n")
}

// DropMessage logs a tagged informational message.
//
//go:nosplit
//go:inline
func DropMessage(prefix, message string) {
	utils.PrintWarning(prefix + ": " + message + "\n")
}
