package client

import (
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"
)

const (
	eventPrefix = "event:"
	dataPrefix  = "data:"
)

var errInvalidJSON = errors.New("payload is not valid JSON")

// Parser reassembles event/data frames from arbitrarily chunked bytes.
// It holds the state of exactly one stream and must not be reused.
type Parser struct {
	dec    *chunkDecoder
	buffer string // undelimited remainder of the last chunk
	event  string
	data   string
	err    error // set once the parser halted
	logger *zap.Logger
}

func NewParser(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{
		dec:    newChunkDecoder(),
		logger: logger,
	}
}

// Feed consumes one chunk and returns the frames it completed, in the
// order their blank-line terminators appeared. If a completed frame
// carries an undecodable payload, Feed returns the events that preceded
// it together with a *FrameDecodeError, drops the rest of the chunk and
// halts: every later call returns the same error and no events.
func (p *Parser) Feed(chunk []byte) ([]StreamEvent, error) {
	if p.err != nil {
		return nil, p.err
	}

	p.buffer += p.dec.decode(chunk)
	lines := strings.Split(p.buffer, "\n")
	p.buffer = lines[len(lines)-1]

	var events []StreamEvent
	for _, line := range lines[:len(lines)-1] {
		line = strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(line, eventPrefix):
			p.event = strings.TrimSpace(line[len(eventPrefix):])
		case strings.HasPrefix(line, dataPrefix):
			p.data = strings.TrimSpace(line[len(dataPrefix):])
		case line == "":
			if p.event != "" && p.data != "" {
				if !json.Valid([]byte(p.data)) {
					p.err = &FrameDecodeError{Event: p.event, Payload: p.data, Err: errInvalidJSON}
					p.logger.Error("[stream] frame decode failed, halting",
						zap.String("event", p.event), zap.String("payload", p.data))
					p.reset()
					p.buffer = ""
					return events, p.err
				}
				events = append(events, StreamEvent{Event: p.event, Data: json.RawMessage(p.data)})
			}
			p.reset()
		}
	}
	return events, nil
}

// Pending reports whether a partially received frame is buffered.
func (p *Parser) Pending() bool {
	return p.event != "" || p.data != "" || p.buffer != ""
}

func (p *Parser) reset() {
	p.event = ""
	p.data = ""
}
