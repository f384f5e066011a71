package infrastructure

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"go.bug.st/serial"

	"github.com/ComputerScienceHouse/mineral/internal/modules/vending/application/port"
	"github.com/ComputerScienceHouse/mineral/internal/modules/vending/domain"
)

// TagReader yields associations from a physical reader.
type TagReader interface {
	// Poll never blocks.
	Poll() (domain.Association, bool)
	Close() error
}

// LineTagReader reads one association per line from a device stream.
type LineTagReader struct {
	src       io.ReadCloser
	lines     chan domain.Association
	done      chan struct{}
	closeOnce sync.Once
}

// NewLineTagReader starts reading src in the background.
func NewLineTagReader(src io.ReadCloser) *LineTagReader {
	r := &LineTagReader{
		src:   src,
		lines: make(chan domain.Association, 8),
		done:  make(chan struct{}),
	}
	go r.readLoop()
	return r
}

const defaultBaudRate = 115200

// OpenTagReader opens the reader named by a device connection string.
// "tty:/dev/ttyACM0@9600" opens a serial port, "file:/path" a plain file or fifo.
func OpenTagReader(conn string) (TagReader, error) {
	scheme, path, ok := strings.Cut(strings.TrimSpace(conn), ":")
	if !ok || strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: malformed device %q", port.ErrReaderUnavailable, conn)
	}
	switch strings.ToLower(scheme) {
	case "file":
		f, err := os.OpenFile(path, os.O_RDONLY, 0)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", port.ErrReaderUnavailable, err)
		}
		return NewLineTagReader(f), nil
	case "tty":
		name, baud, err := parseSerialDevice(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", port.ErrReaderUnavailable, err)
		}
		p, err := serial.Open(name, &serial.Mode{
			BaudRate: baud,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: open %s: %w", port.ErrReaderUnavailable, name, err)
		}
		return NewLineTagReader(p), nil
	default:
		return nil, fmt.Errorf("%w: unsupported device %q", port.ErrReaderUnavailable, conn)
	}
}

// parseSerialDevice splits "/dev/ttyUSB0@9600" into a port name and baud rate.
func parseSerialDevice(spec string) (string, int, error) {
	name, rate, hasRate := strings.Cut(strings.TrimSpace(spec), "@")
	if name == "" {
		return "", 0, fmt.Errorf("missing serial port name in %q", spec)
	}
	if !hasRate {
		return name, defaultBaudRate, nil
	}
	baud, err := strconv.Atoi(rate)
	if err != nil || baud <= 0 {
		return "", 0, fmt.Errorf("invalid baud rate %q", rate)
	}
	return name, baud, nil
}

func (r *LineTagReader) readLoop() {
	defer close(r.lines)
	scanner := bufio.NewScanner(r.src)
	for scanner.Scan() {
		assoc := strings.TrimSpace(scanner.Text())
		if assoc == "" {
			continue
		}
		select {
		case r.lines <- domain.Association(assoc):
		case <-r.done:
			return
		}
	}
	if err := scanner.Err(); err != nil {
		select {
		case <-r.done:
		default:
			slog.Warn("tag reader stopped", slog.Any("error", err))
		}
	}
}

func (r *LineTagReader) Poll() (domain.Association, bool) {
	select {
	case assoc, ok := <-r.lines:
		if !ok {
			return "", false
		}
		return assoc, true
	default:
		return "", false
	}
}

func (r *LineTagReader) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.done)
		err = r.src.Close()
	})
	return err
}
