package dissect

import (
	"strconv"
	"strings"

	"dpinet.dev/dpinet/internal/model"
)

// HTTPDissector best-effort parses HTTP/1.x request or status lines and
// headers up to the blank line that ends them. It does not parse the
// body: Content-Length, if present, is reported as a field only.
type HTTPDissector struct{}

func (HTTPDissector) Tag() model.ProtoTag { return model.ProtoHTTP }

func (HTTPDissector) Dissect(data []byte, base int) Result {
	text := string(data)
	headerEnd := strings.Index(text, "\r\n\r\n")
	terminator := "\r\n\r\n"
	if headerEnd == -1 {
		headerEnd = strings.Index(text, "\n\n")
		terminator = "\n\n"
		if headerEnd == -1 {
			return truncatedResult(model.ProtoHTTP, data, base, "headers")
		}
	}

	head := text[:headerEnd]
	lines := splitHTTPLines(head)
	if len(lines) == 0 {
		return malformedResult(model.ProtoHTTP, base, base+len(data), "empty message")
	}

	fields := map[string]any{}
	startLine := lines[0]
	if isHTTPStatusLine(startLine) {
		parts := strings.SplitN(startLine, " ", 3)
		fields["kind"] = "response"
		if len(parts) >= 2 {
			fields["status_code"] = parts[1]
		}
		if len(parts) == 3 {
			fields["status_text"] = parts[2]
		}
		fields["version"] = parts[0]
	} else {
		parts := strings.SplitN(startLine, " ", 3)
		if len(parts) == 0 || !httpMethods[parts[0]] {
			return malformedResult(model.ProtoHTTP, base, base+headerEnd+len(terminator), "unrecognized request method")
		}
		fields["kind"] = "request"
		fields["method"] = parts[0]
		if len(parts) >= 2 {
			fields["path"] = parts[1]
		}
		if len(parts) == 3 {
			fields["version"] = parts[2]
		}
	}

	headers := map[string]string{}
	for _, line := range lines[1:] {
		idx := strings.Index(line, ":")
		if idx == -1 {
			continue
		}
		name := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		headers[strings.ToLower(name)] = value
	}
	fields["headers"] = headers

	if cl, ok := headers["content-length"]; ok {
		if n, err := strconv.Atoi(cl); err == nil {
			fields["content_length"] = n
		}
	}

	end := headerEnd + len(terminator)
	return Result{
		Layer: model.LayerRecord{
			Proto:       model.ProtoHTTP,
			Fields:      fields,
			StartOffset: base,
			EndOffset:   base + end,
		},
	}
}

func splitHTTPLines(head string) []string {
	head = strings.ReplaceAll(head, "\r\n", "\n")
	var lines []string
	for _, l := range strings.Split(head, "\n") {
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

var httpVersionPrefixes = []string{"HTTP/1.0", "HTTP/1.1", "HTTP/2", "HTTP/0.9"}

// httpMethods is the fixed enum of request methods Dissect recognizes;
// a request line whose token isn't in this set is reported as malformed
// rather than carried through as an arbitrary string.
var httpMethods = map[string]bool{
	"GET":     true,
	"HEAD":    true,
	"POST":    true,
	"PUT":     true,
	"DELETE":  true,
	"CONNECT": true,
	"OPTIONS": true,
	"TRACE":   true,
	"PATCH":   true,
}

func isHTTPStatusLine(line string) bool {
	for _, p := range httpVersionPrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}
