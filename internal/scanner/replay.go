package scanner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/btrelay/internal/cursor"
	"github.com/srg/btrelay/internal/relay"
	"github.com/srg/btrelay/pkg/sensor"
)

// ReplaySource feeds recorded scan results, one per line:
//
//	<addr> <rssi> <adv hex> [<scan response hex>]
//
// Blank lines and lines starting with # are skipped. Malformed lines are
// logged and skipped.
type ReplaySource struct {
	name   string
	r      io.Reader
	closer io.Closer
	logger *logrus.Logger

	// Interval paces results; zero replays as fast as possible.
	Interval time.Duration
}

func NewReplaySource(name string, r io.Reader, logger *logrus.Logger) *ReplaySource {
	if logger == nil {
		logger = logrus.New()
	}
	return &ReplaySource{name: name, r: r, logger: logger}
}

// OpenReplay opens a capture file. "-" reads stdin.
func OpenReplay(path string, logger *logrus.Logger) (*ReplaySource, error) {
	if path == "-" {
		return NewReplaySource("stdin", os.Stdin, logger), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture: %w", err)
	}
	src := NewReplaySource(path, f, logger)
	src.closer = f
	return src, nil
}

func (s *ReplaySource) Name() string { return "replay:" + s.name }

// Scan reads until EOF, which is not an error.
func (s *ReplaySource) Scan(ctx context.Context, handler func(relay.ScanResult)) error {
	if s.closer != nil {
		defer s.closer.Close()
	}

	var ticker *time.Ticker
	if s.Interval > 0 {
		ticker = time.NewTicker(s.Interval)
		defer ticker.Stop()
	}

	sc := bufio.NewScanner(s.r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		res, err := ParseLine(line)
		if err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"source": s.name,
				"line":   lineNo,
			}).Warn("Skipping malformed capture line")
			continue
		}
		if ticker != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
		handler(res)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("failed to read capture: %w", err)
	}
	return nil
}

// ParseLine parses one capture line.
func ParseLine(line string) (relay.ScanResult, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 || len(fields) > 4 {
		return relay.ScanResult{}, fmt.Errorf("expected 3 or 4 fields, got %d", len(fields))
	}
	addr, err := sensor.ParseAddr(fields[0])
	if err != nil {
		return relay.ScanResult{}, err
	}
	rssi, err := strconv.Atoi(fields[1])
	if err != nil {
		return relay.ScanResult{}, fmt.Errorf("invalid rssi %q", fields[1])
	}
	res := relay.ScanResult{Addr: addr, RSSI: rssi}
	if res.AdvData, err = cursor.FromHex(fields[2]); err != nil {
		return relay.ScanResult{}, fmt.Errorf("invalid advertising data: %w", err)
	}
	if len(fields) == 4 {
		if res.ScanRsp, err = cursor.FromHex(fields[3]); err != nil {
			return relay.ScanResult{}, fmt.Errorf("invalid scan response: %w", err)
		}
	}
	return res, nil
}

// FormatLine renders res in the capture format ParseLine reads. Empty
// advertising data is written as "-".
func FormatLine(res relay.ScanResult) string {
	data := cursor.New(res.AdvData)
	advHex := data.Hex()
	if advHex == "" {
		advHex = "-"
	}
	line := fmt.Sprintf("%s %d %s", res.Addr, res.RSSI, advHex)
	if len(res.ScanRsp) > 0 {
		rsp := cursor.New(res.ScanRsp)
		line += " " + rsp.Hex()
	}
	return line
}
