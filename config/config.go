package config

import (
	"github.com/tliron/commonlog"
	"github.com/tliron/commonlog/simple"
)

const loggerName = "v8tag"

// Log is the verbose logger shared by the whole tool. It stays quiet unless
// InitLogger(true) is called.
var Log = commonlog.GetLogger(loggerName)

// InitLogger installs an unbuffered stderr backend. The buffered default only
// flushes when the program ends through kutil's exit hooks, which main never
// uses.
func InitLogger(isVerbose bool) {
	verbosity := 0
	if isVerbose {
		verbosity = 2
	}
	backend := simple.NewBackend()
	backend.Buffered = false
	commonlog.SetBackend(backend)
	commonlog.Configure(verbosity, nil)
	Log = commonlog.GetLogger(loggerName)
}
