package actionlog

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"markestedt/keyrecorder/keymap"
)

const headerPrefix = "initialPos:"

// MalformedLogError reports a log that cannot be played at all.
type MalformedLogError struct {
	Line   int
	Reason string
}

func (e *MalformedLogError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed action log (line %d): %s", e.Line, e.Reason)
	}
	return "malformed action log: " + e.Reason
}

// Encode writes the log in its line-oriented text form:
//
//	initialPos:<x>,<y>
//	<ns> <Key>:press|release
//	<ns> mouseMove:<dx>,<dy>
func Encode(w io.Writer, l *Log) error {
	bw := bufio.NewWriter(w)

	p := l.InitialCursor()
	if _, err := fmt.Fprintf(bw, "%s%d,%d\n", headerPrefix, p.X, p.Y); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, e := range l.Events() {
		var err error
		if e.Kind == Move {
			_, err = fmt.Fprintf(bw, "%d %s:%d,%d\n", int64(e.At), keymap.MouseMove, e.DX, e.DY)
		} else {
			_, err = fmt.Fprintf(bw, "%d %s:%s\n", int64(e.At), e.Subject, e.Kind)
		}
		if err != nil {
			return fmt.Errorf("failed to write event: %w", err)
		}
	}

	return bw.Flush()
}

// Parse reads a log. A missing or malformed header rejects the whole stream;
// individual event lines that cannot be understood are skipped.
func Parse(r io.Reader) (*Log, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("failed to read header: %w", err)
		}
		return nil, &MalformedLogError{Reason: "empty log"}
	}

	initial, err := parseHeader(strings.TrimRight(sc.Text(), "\r"))
	if err != nil {
		return nil, err
	}

	l := New(initial)
	lineNo := 1
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}

		e, ok := parseEvent(line)
		if !ok {
			slog.Debug("Skipping action log line", "line", lineNo, "text", line)
			continue
		}
		l.events = append(l.events, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read action log: %w", err)
	}

	return l, nil
}

func parseHeader(line string) (Point, error) {
	rest, ok := strings.CutPrefix(line, headerPrefix)
	if !ok {
		return Point{}, &MalformedLogError{Line: 1, Reason: "missing initialPos header"}
	}

	xs, ys, ok := strings.Cut(rest, ",")
	if !ok {
		return Point{}, &MalformedLogError{Line: 1, Reason: "initialPos needs x,y"}
	}

	x, errX := strconv.Atoi(strings.TrimSpace(xs))
	y, errY := strconv.Atoi(strings.TrimSpace(ys))
	if errX != nil || errY != nil {
		return Point{}, &MalformedLogError{Line: 1, Reason: fmt.Sprintf("invalid initialPos %q", rest)}
	}

	return Point{X: x, Y: y}, nil
}

func parseEvent(line string) (Event, bool) {
	ts, rest, ok := strings.Cut(line, " ")
	if !ok {
		return Event{}, false
	}

	ns, err := strconv.ParseInt(ts, 10, 64)
	if err != nil || ns < 0 {
		return Event{}, false
	}

	// Split on the last colon so the ":" key itself survives.
	i := strings.LastIndex(rest, ":")
	if i < 0 {
		return Event{}, false
	}
	subject, detail := rest[:i], rest[i+1:]
	at := time.Duration(ns)

	if subject == keymap.MouseMove {
		dxs, dys, ok := strings.Cut(detail, ",")
		if !ok {
			return Event{}, false
		}
		dx, errX := strconv.Atoi(dxs)
		dy, errY := strconv.Atoi(dys)
		if errX != nil || errY != nil {
			return Event{}, false
		}
		return MoveEvent(at, dx, dy), true
	}

	k, ok := keymap.Lookup(subject)
	if !ok {
		return Event{}, false
	}

	switch detail {
	case "press":
		return KeyEvent(at, k, false), true
	case "release":
		return KeyEvent(at, k, true), true
	default:
		return Event{}, false
	}
}
