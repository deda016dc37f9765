package pgdriver

import (
	"bytes"
	"fmt"

	"github.com/dreamware/accessmanager/internal/event"
	"github.com/dreamware/accessmanager/internal/wire"
)

// encodeFrame serializes ev through internal/wire's length-prefixed binary
// codec for storage in the frame bytea column. Using the same codec the
// pack's bulk ingestion format specifies means a pg-backed log and a
// wire-format log dump are byte-for-byte interchangeable.
func encodeFrame(ev event.Event) ([]byte, error) {
	var buf bytes.Buffer
	if err := wire.Encode(&buf, ev); err != nil {
		return nil, fmt.Errorf("pgdriver: encode frame for %s: %w", ev.Kind, err)
	}
	return buf.Bytes(), nil
}

// decodeFrame reconstructs the event frame wrote, trusting the frame as
// the sole source of header fields — the row's own sequence/event_id/
// occurred_at columns exist only to let SQL index and filter without
// decoding every frame.
func decodeFrame(frame []byte) (event.Event, error) {
	ev, err := wire.Decode(bytes.NewReader(frame))
	if err != nil {
		return event.Event{}, fmt.Errorf("pgdriver: decode frame: %w", err)
	}
	return ev, nil
}
