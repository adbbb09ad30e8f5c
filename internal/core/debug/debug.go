package debug

import (
	"fmt"
	"net/http"
	_ "net/http/pprof"

	"github.com/davecgh/go-spew/spew"
	"github.com/sirupsen/logrus"

	"github.com/dcrodman/railyard/internal/core/client"
	"github.com/dcrodman/railyard/internal/packets"
)

var dumpConfig = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// StartPprofServer starts the default pprof HTTP server that can be accessed via localhost
// to get runtime information about the server. See https://golang.org/pkg/net/http/pprof/
func StartPprofServer(logger *logrus.Logger, port int) {
	listenerAddr := fmt.Sprintf("localhost:%d", port)
	logger.Infof("starting pprof server on %s", listenerAddr)

	go func() {
		if err := http.ListenAndServe(listenerAddr, nil); err != nil {
			logger.Infof("error starting pprof server: %s", err)
		}
	}()
}

// DumpMessage returns a readable rendering of a decoded message.
func DumpMessage(m packets.Message) string {
	return dumpConfig.Sdump(m)
}

// LogMessage writes a decoded message to the debug log, tagged with its direction.
func LogMessage(logger *logrus.Logger, direction string, peer client.PeerID, m packets.Message) {
	if !logger.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	logger.WithFields(logrus.Fields{
		"peer":      peer,
		"direction": direction,
		"type":      m.Type().String(),
	}).Debug(DumpMessage(m))
}
