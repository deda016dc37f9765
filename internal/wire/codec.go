package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/dreamware/accessmanager/internal/event"
	"github.com/dreamware/accessmanager/internal/graphstore"
)

// kindByte/byteKind map event.Kind to the single-byte wire discriminator.
// Order is append-only: a deployed byte value must never be reassigned.
var kindByte = map[event.Kind]byte{
	event.KindUser:             0,
	event.KindGroup:            1,
	event.KindUserToGroup:      2,
	event.KindGroupToGroup:     3,
	event.KindUserToComponent:  4,
	event.KindGroupToComponent: 5,
	event.KindEntityType:       6,
	event.KindEntity:           7,
	event.KindUserToEntity:     8,
	event.KindGroupToEntity:    9,
	event.KindReconcile:        10,
}

var byteKind = func() map[byte]event.Kind {
	m := make(map[byte]event.Kind, len(kindByte))
	for k, b := range kindByte {
		m[b] = k
	}
	return m
}()

const ticksPerSecond = int64(time.Second / 100)

func timeToTicks(t time.Time) int64 { return t.UnixNano() / 100 }

func ticksToTime(ticks int64) time.Time {
	return time.Unix(ticks/ticksPerSecond, (ticks%ticksPerSecond)*100).UTC()
}

// Encode writes ev to w as one length-prefixed frame.
func Encode(w io.Writer, ev event.Event) error {
	kb, ok := kindByte[ev.Kind]
	if !ok {
		return fmt.Errorf("wire: encode: unknown kind %q", ev.Kind)
	}

	var body bytes.Buffer
	body.WriteByte(kb)
	idBytes, err := ev.EventID.MarshalBinary()
	if err != nil {
		return fmt.Errorf("wire: encode: marshal event id: %w", err)
	}
	body.Write(idBytes)
	body.WriteByte(byte(ev.Action))
	if err := binary.Write(&body, binary.BigEndian, timeToTicks(ev.OccurredAt)); err != nil {
		return fmt.Errorf("wire: encode: occurred_at: %w", err)
	}
	if err := binary.Write(&body, binary.BigEndian, ev.HashCode); err != nil {
		return fmt.Errorf("wire: encode: hash_code: %w", err)
	}
	if err := binary.Write(&body, binary.BigEndian, ev.Sequence); err != nil {
		return fmt.Errorf("wire: encode: sequence: %w", err)
	}

	fields, err := fieldsFor(ev.Kind, ev.Payload)
	if err != nil {
		return err
	}
	for _, f := range fields {
		if err := writeString(&body, f); err != nil {
			return fmt.Errorf("wire: encode: payload field: %w", err)
		}
	}

	if err := binary.Write(w, binary.BigEndian, uint32(body.Len())); err != nil {
		return fmt.Errorf("wire: encode: frame length: %w", err)
	}
	if _, err := w.Write(body.Bytes()); err != nil {
		return fmt.Errorf("wire: encode: frame body: %w", err)
	}
	return nil
}

// Decode reads one length-prefixed frame from r and reconstructs the
// event it encodes.
func Decode(r io.Reader) (event.Event, error) {
	var frameLen uint32
	if err := binary.Read(r, binary.BigEndian, &frameLen); err != nil {
		return event.Event{}, err
	}

	body := make([]byte, frameLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return event.Event{}, fmt.Errorf("wire: decode: frame body: %w", err)
	}
	return decodeBody(body)
}

func decodeBody(body []byte) (event.Event, error) {
	buf := bytes.NewReader(body)

	kb, err := buf.ReadByte()
	if err != nil {
		return event.Event{}, fmt.Errorf("wire: decode: kind byte: %w", err)
	}
	kind, ok := byteKind[kb]
	if !ok {
		return event.Event{}, fmt.Errorf("wire: decode: unknown kind byte %d", kb)
	}

	idBytes := make([]byte, 16)
	if _, err := io.ReadFull(buf, idBytes); err != nil {
		return event.Event{}, fmt.Errorf("wire: decode: event id: %w", err)
	}
	id, err := uuid.FromBytes(idBytes)
	if err != nil {
		return event.Event{}, fmt.Errorf("wire: decode: parse event id: %w", err)
	}

	actionByte, err := buf.ReadByte()
	if err != nil {
		return event.Event{}, fmt.Errorf("wire: decode: action: %w", err)
	}

	var ticks int64
	if err := binary.Read(buf, binary.BigEndian, &ticks); err != nil {
		return event.Event{}, fmt.Errorf("wire: decode: occurred_at: %w", err)
	}
	var hashCode int32
	if err := binary.Read(buf, binary.BigEndian, &hashCode); err != nil {
		return event.Event{}, fmt.Errorf("wire: decode: hash_code: %w", err)
	}
	var sequence int64
	if err := binary.Read(buf, binary.BigEndian, &sequence); err != nil {
		return event.Event{}, fmt.Errorf("wire: decode: sequence: %w", err)
	}

	payload, err := payloadFor(kind, buf)
	if err != nil {
		return event.Event{}, err
	}

	return event.Event{
		Header: event.Header{
			EventID:    id,
			Kind:       kind,
			Action:     event.Action(actionByte),
			OccurredAt: ticksToTime(ticks),
			HashCode:   hashCode,
			Sequence:   sequence,
		},
		Payload: payload,
	}, nil
}

func writeString(w *bytes.Buffer, s string) error {
	if len(s) > 1<<16-1 {
		return fmt.Errorf("field too long (%d bytes)", len(s))
	}
	if err := binary.Write(w, binary.BigEndian, uint16(len(s))); err != nil {
		return err
	}
	_, err := w.WriteString(s)
	return err
}

func readString(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

// fieldsFor extracts ev's kind-specific strings in a fixed per-kind order
// so decode can reverse it without relying on field names.
func fieldsFor(kind event.Kind, p event.Payload) ([]string, error) {
	switch v := p.(type) {
	case event.UserPayload:
		return []string{string(v.User)}, nil
	case event.GroupPayload:
		return []string{string(v.Group)}, nil
	case event.UserToGroupPayload:
		return []string{string(v.User), string(v.Group)}, nil
	case event.GroupToGroupPayload:
		return []string{string(v.FromGroup), string(v.ToGroup)}, nil
	case event.UserToComponentPayload:
		return []string{string(v.User), string(v.Component), string(v.Access)}, nil
	case event.GroupToComponentPayload:
		return []string{string(v.Group), string(v.Component), string(v.Access)}, nil
	case event.EntityTypePayload:
		return []string{string(v.EntityType)}, nil
	case event.EntityPayload:
		return []string{string(v.EntityType), string(v.EntityID)}, nil
	case event.UserToEntityPayload:
		return []string{string(v.User), string(v.EntityType), string(v.EntityID)}, nil
	case event.GroupToEntityPayload:
		return []string{string(v.Group), string(v.EntityType), string(v.EntityID)}, nil
	case event.ReconcilePayload:
		return []string{v.OriginalEventID.String(), string(v.OriginalKind), v.SucceededShard, v.FailedShard, boolString(v.Undo)}, nil
	default:
		return nil, fmt.Errorf("wire: encode: unhandled payload type %T for kind %q", p, kind)
	}
}

func payloadFor(kind event.Kind, r *bytes.Reader) (event.Payload, error) {
	read := func(n int) ([]string, error) {
		out := make([]string, n)
		for i := range out {
			s, err := readString(r)
			if err != nil {
				return nil, fmt.Errorf("wire: decode: field %d: %w", i, err)
			}
			out[i] = s
		}
		return out, nil
	}

	switch kind {
	case event.KindUser:
		f, err := read(1)
		if err != nil {
			return nil, err
		}
		return event.UserPayload{User: graphstore.UserID(f[0])}, nil
	case event.KindGroup:
		f, err := read(1)
		if err != nil {
			return nil, err
		}
		return event.GroupPayload{Group: graphstore.GroupID(f[0])}, nil
	case event.KindUserToGroup:
		f, err := read(2)
		if err != nil {
			return nil, err
		}
		return event.UserToGroupPayload{User: graphstore.UserID(f[0]), Group: graphstore.GroupID(f[1])}, nil
	case event.KindGroupToGroup:
		f, err := read(2)
		if err != nil {
			return nil, err
		}
		return event.GroupToGroupPayload{FromGroup: graphstore.GroupID(f[0]), ToGroup: graphstore.GroupID(f[1])}, nil
	case event.KindUserToComponent:
		f, err := read(3)
		if err != nil {
			return nil, err
		}
		return event.UserToComponentPayload{User: graphstore.UserID(f[0]), Component: graphstore.ComponentID(f[1]), Access: graphstore.AccessLevel(f[2])}, nil
	case event.KindGroupToComponent:
		f, err := read(3)
		if err != nil {
			return nil, err
		}
		return event.GroupToComponentPayload{Group: graphstore.GroupID(f[0]), Component: graphstore.ComponentID(f[1]), Access: graphstore.AccessLevel(f[2])}, nil
	case event.KindEntityType:
		f, err := read(1)
		if err != nil {
			return nil, err
		}
		return event.EntityTypePayload{EntityType: graphstore.EntityType(f[0])}, nil
	case event.KindEntity:
		f, err := read(2)
		if err != nil {
			return nil, err
		}
		return event.EntityPayload{EntityType: graphstore.EntityType(f[0]), EntityID: graphstore.EntityID(f[1])}, nil
	case event.KindUserToEntity:
		f, err := read(3)
		if err != nil {
			return nil, err
		}
		return event.UserToEntityPayload{User: graphstore.UserID(f[0]), EntityType: graphstore.EntityType(f[1]), EntityID: graphstore.EntityID(f[2])}, nil
	case event.KindGroupToEntity:
		f, err := read(3)
		if err != nil {
			return nil, err
		}
		return event.GroupToEntityPayload{Group: graphstore.GroupID(f[0]), EntityType: graphstore.EntityType(f[1]), EntityID: graphstore.EntityID(f[2])}, nil
	case event.KindReconcile:
		f, err := read(5)
		if err != nil {
			return nil, err
		}
		origID, err := uuid.Parse(f[0])
		if err != nil {
			return nil, fmt.Errorf("wire: decode: reconcile original event id: %w", err)
		}
		return event.ReconcilePayload{
			OriginalEventID: origID,
			OriginalKind:    event.Kind(f[1]),
			SucceededShard:  f[2],
			FailedShard:     f[3],
			Undo:            f[4] == "true",
		}, nil
	default:
		return nil, fmt.Errorf("wire: decode: unhandled kind %q", kind)
	}
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
