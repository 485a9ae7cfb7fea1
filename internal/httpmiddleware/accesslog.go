package httpmiddleware

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

// redactedParams never reach the access log.
var redactedParams = []string{"access_token"}

// AccessLog is gin's request logger with credentials stripped from the query
// string. skip lists paths that are not logged at all.
func AccessLog(out io.Writer, skip ...string) gin.HandlerFunc {
	return gin.LoggerWithConfig(gin.LoggerConfig{
		Output:    out,
		SkipPaths: skip,
		Formatter: func(p gin.LogFormatterParams) string {
			return fmt.Sprintf("[GIN] %v | %3d | %13v | %15s | %-7s %#v\n%s",
				p.TimeStamp.Format("2006/01/02 - 15:04:05"),
				p.StatusCode,
				p.Latency,
				p.ClientIP,
				p.Method,
				redactQuery(p.Path),
				p.ErrorMessage,
			)
		},
	})
}

func redactQuery(path string) string {
	base, raw, ok := strings.Cut(path, "?")
	if !ok {
		return path
	}
	q, err := url.ParseQuery(raw)
	if err != nil {
		return base + "?<unparsable>"
	}
	changed := false
	for _, name := range redactedParams {
		if q.Has(name) {
			q.Set(name, "REDACTED")
			changed = true
		}
	}
	if !changed {
		return path
	}
	return base + "?" + q.Encode()
}
