package simctrl

import (
	"fmt"
	"io"

	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
)

const statsViewPath = "/debug/statsview"

// startStatsView launches the runtime statistics server in its own
// goroutine and returns a function that stops it.
func startStatsView(addr string, output io.Writer) func() {
	viewer.SetConfiguration(viewer.WithAddr(addr))
	mgr := statsview.New()
	go mgr.Start()

	fmt.Fprintf(output, "Stats server available at http://%s%s\n", addr, statsViewPath)
	return mgr.Stop
}
