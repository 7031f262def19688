package config

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"time"
)

// maxLineSize caps a single input line.
const maxLineSize = 1024 * 1024

var (
	arrayTableHeader = regexp.MustCompile(`^\[\[([^\]]+)\]\]$`)
	tableHeader      = regexp.MustCompile(`^\[([^\]]+)\]$`)
	keyValueLine     = regexp.MustCompile(`^([^=]*)=(.*)$`)
)

// ParseContext is the section state carried from one line to the next.
// The zero value is the state at the top of a file.
type ParseContext struct {
	// TablePath is the name of the current [table], if any.
	TablePath string

	// ArrayTablePath is the indexed path of the current [[array-table]]
	// instance (for example "proxies.2"), if any.
	ArrayTablePath string

	counters map[string]int
}

// Counter returns how many instances of the array-table name have been opened.
func (c ParseContext) Counter(name string) int {
	return c.counters[name]
}

// prefix is the path every key on the current line is nested under.
func (c ParseContext) prefix() string {
	if c.ArrayTablePath != "" {
		return c.ArrayTablePath
	}
	return c.TablePath
}

// openArrayTable returns the context after a [[name]] header. The counter map is
// copied so earlier contexts stay valid.
func (c ParseContext) openArrayTable(name string) ParseContext {
	counters := make(map[string]int, len(c.counters)+1)
	for k, v := range c.counters {
		counters[k] = v
	}
	index := counters[name]
	counters[name] = index + 1

	return ParseContext{
		ArrayTablePath: fmt.Sprintf("%s.%d", name, index),
		counters:       counters,
	}
}

// ParseLine classifies one input line. It returns the context for the next line,
// the key/value the line defines (nil for headers, blanks and comments) and a
// diagnostic for lines that could not be understood.
func ParseLine(ctx ParseContext, lineNo int, line string) (ParseContext, *KeyValue, *Diagnostic) {
	line = strings.TrimSpace(stripComment(line))
	if line == "" {
		return ctx, nil, nil
	}

	if m := arrayTableHeader.FindStringSubmatch(line); m != nil {
		name := strings.TrimSpace(m[1])
		return ctx.openArrayTable(name), nil, nil
	}

	if m := tableHeader.FindStringSubmatch(line); m != nil {
		return ParseContext{
			TablePath: strings.TrimSpace(m[1]),
			counters:  ctx.counters,
		}, nil, nil
	}

	if m := keyValueLine.FindStringSubmatch(line); m != nil {
		key := strings.TrimSpace(m[1])
		if key == "" {
			return ctx, nil, &Diagnostic{
				Line:     lineNo,
				Message:  "missing key before '='",
				Severity: SeverityWarning,
				Code:     CodeEmptyKey,
			}
		}

		path := strings.TrimPrefix(ctx.prefix()+"."+key, ".")
		value := Typify(m[2])
		kv := &KeyValue{Path: path, Value: value.Raw, Type: value.Type}

		if strings.TrimSpace(m[2]) == "" {
			return ctx, kv, &Diagnostic{
				Line:     lineNo,
				Path:     path,
				Message:  "empty value",
				Severity: SeverityWarning,
				Code:     CodeEmptyValue,
			}
		}
		return ctx, kv, nil
	}

	return ctx, nil, &Diagnostic{
		Line:     lineNo,
		Message:  fmt.Sprintf("unrecognized syntax: %q", line),
		Severity: SeverityWarning,
		Code:     CodeUnrecognizedLine,
	}
}

// stripComment cuts the line at the first '#' outside a double-quoted span.
func stripComment(line string) string {
	inQuotes := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\\':
			if inQuotes {
				i++
			}
		case '"':
			inQuotes = !inQuotes
		case '#':
			if !inQuotes {
				return line[:i]
			}
		}
	}
	return line
}

// Parse reads every line of r and builds a document. Unrecognized and oversized
// lines become diagnostics; only a read error stops the parse, in which case no
// document is returned.
func Parse(name string, r io.Reader) (*Document, error) {
	doc := newDocument(name)
	reader := bufio.NewReaderSize(r, 64*1024)

	var ctx ParseContext
	headers := make(map[string]int)
	lineNo := 0
	for {
		line, tooLong, err := readLine(reader)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, newIOError(CodeReadFailed, name, fmt.Errorf("line %d: %w", lineNo+1, err))
		}
		lineNo++

		if tooLong {
			doc.diagnostics = append(doc.diagnostics, Diagnostic{
				File:     name,
				Line:     lineNo,
				Message:  fmt.Sprintf("line exceeds %d bytes, skipped", maxLineSize),
				Severity: SeverityWarning,
				Code:     CodeLineTooLong,
			})
			continue
		}

		next, kv, diag := ParseLine(ctx, lineNo, line)
		if next.ArrayTablePath != "" && next.ArrayTablePath != ctx.ArrayTablePath {
			headers[next.ArrayTablePath] = lineNo
		}
		ctx = next

		if kv != nil {
			doc.set(kv.Path, Entry{Raw: kv.Value, Type: kv.Type})
		}
		if diag != nil {
			diag.File = name
			doc.diagnostics = append(doc.diagnostics, *diag)
		}
	}

	doc.arrayTables = ctx.counters
	doc.loadedAt = time.Now()
	doc.index()
	doc.diagnostics = append(doc.diagnostics, emptyInstances(doc, headers)...)

	return doc, nil
}

// emptyInstances reports every array-table whose counted instances stop before
// its last header, pointing at the header of the first empty instance.
func emptyInstances(doc *Document, headers map[string]int) []Diagnostic {
	names := make([]string, 0, len(doc.arrayTables))
	for name := range doc.arrayTables {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []Diagnostic
	for _, name := range names {
		opened := doc.arrayTables[name]
		counted := doc.ArrayTableCount(name)
		if opened <= counted {
			continue
		}
		path := fmt.Sprintf("%s.%d", name, counted)
		msg := fmt.Sprintf("[[%s]] instance %d has no keys", name, counted)
		if uncounted := opened - counted - 1; uncounted > 0 {
			msg += fmt.Sprintf("; the %d instance(s) after it are not counted", uncounted)
		}
		out = append(out, Diagnostic{
			File:     doc.Source(),
			Line:     headers[path],
			Path:     path,
			Message:  msg,
			Severity: SeverityWarning,
			Code:     CodeEmptyArrayTable,
		})
	}
	return out
}

// readLine returns the next line without its terminator. A line longer than
// maxLineSize is consumed and reported through tooLong with no content.
func readLine(r *bufio.Reader) (string, bool, error) {
	var buf []byte
	started, tooLong := false, false
	for {
		frag, isPrefix, err := r.ReadLine()
		if err != nil {
			if err == io.EOF && started {
				return string(buf), tooLong, nil
			}
			return "", false, err
		}
		started = true

		if !tooLong {
			if len(buf)+len(frag) > maxLineSize {
				tooLong = true
				buf = nil
			} else {
				buf = append(buf, frag...)
			}
		}
		if !isPrefix {
			return string(buf), tooLong, nil
		}
	}
}
