package upstream

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"os"
	"strings"
)

// dumpOut receives debug dumps. Tests in this package may replace it.
var dumpOut io.Writer = os.Stderr

func (d *Dispatcher) dumpRequest(transport string, req *http.Request, body []byte) {
	if d == nil || !d.debug || req == nil {
		return
	}
	head, err := httputil.DumpRequestOut(req, false)
	if err != nil {
		slog.Error("upstream.request.dump.failed", "transport", transport, "error", err)
		return
	}
	d.writeDebugDumpBlock("UPSTREAM REQUEST "+transport, append(head, body...))
}

func (d *Dispatcher) dumpResponse(transport string, resp *http.Response, body []byte) {
	if d == nil || !d.debug || resp == nil {
		return
	}
	head, err := httputil.DumpResponse(resp, false)
	if err != nil {
		slog.Error("upstream.response.dump.failed", "transport", transport, "error", err)
		return
	}
	title := fmt.Sprintf("UPSTREAM RESPONSE %s status=%d", transport, resp.StatusCode)
	d.writeDebugDumpBlock(title, append(head, body...))
}

func (d *Dispatcher) writeDebugDumpBlock(title string, data []byte) {
	d.dumpMu.Lock()
	defer d.dumpMu.Unlock()

	title = strings.TrimSpace(title)
	var b strings.Builder
	b.WriteString("===== " + title + " BEGIN =====\n")
	if len(data) > 0 {
		b.Write(data)
		if data[len(data)-1] != '\n' {
			b.WriteByte('\n')
		}
	}
	b.WriteString("===== " + title + " END =====\n")
	if _, err := io.WriteString(dumpOut, b.String()); err != nil {
		slog.Error("upstream.dump.write.failed", "title", title, "error", err)
	}
}
