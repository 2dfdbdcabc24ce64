package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/CTAG07/chainwalk/pkg/markov"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrUnknownCodec is returned by CodecByName for an unregistered name.
var ErrUnknownCodec = errors.New("store: unknown codec")

// Snapshot is a chain in storable form. The order is kept next to the
// records because a chain without states has no record to carry it.
type Snapshot struct {
	Order   int             `json:"order"`
	Records []markov.Record `json:"records"`
}

// SnapshotOf exports c.
func SnapshotOf(c *markov.Chain) Snapshot {
	return Snapshot{Order: c.Order(), Records: c.Export()}
}

// Chain imports the snapshot. The stored order overrides any WithOrder in
// opts.
func (s Snapshot) Chain(opts ...markov.Option) (*markov.Chain, error) {
	return markov.Import(s.Records, append(opts, markov.WithOrder(s.Order))...)
}

// Codec converts chain snapshots to bytes and back.
type Codec interface {
	// Name identifies the codec in stored snapshots.
	Name() string
	// Ext is the file extension used by FileStore, including the dot.
	Ext() string
	Encode(snap Snapshot) ([]byte, error)
	Decode(data []byte) (Snapshot, error)
}

// CodecByName returns the codec registered under name.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSONCodec{}, nil
	case "msgpack":
		return MsgpackCodec{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
}

// JSONCodec stores chains as a JSON object holding the order and the
// records in the form written by markov.Chain.WriteJSON. It also decodes a
// bare WriteJSON array, taking the order from the first record.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }
func (JSONCodec) Ext() string  { return ".json" }

func (JSONCodec) Encode(snap Snapshot) ([]byte, error) {
	if snap.Records == nil {
		snap.Records = []markov.Record{}
	}
	return json.Marshal(snap)
}

func (JSONCodec) Decode(data []byte) (Snapshot, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var records []markov.Record
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return Snapshot{}, fmt.Errorf("failed to decode json chain: %w", err)
		}
		return snapshotOfRecords(records), nil
	}

	var snap Snapshot
	if err := json.Unmarshal(trimmed, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode json chain: %w", err)
	}
	return snap, nil
}

// snapshotOfRecords derives the order of a record list that was stored
// without one.
func snapshotOfRecords(records []markov.Record) Snapshot {
	snap := Snapshot{Order: markov.DefaultOrder, Records: records}
	if len(records) > 0 {
		snap.Order = len(records[0].State) - 1
	}
	return snap
}

// packedPair and packedRecord are the msgpack layout of a record. Tokens
// are kept in their wire form so both codecs agree on token identity.
type packedPair struct {
	Token []byte `msgpack:"t"`
	Count int    `msgpack:"c"`
}

type packedRecord struct {
	State [][]byte     `msgpack:"s"`
	Next  []packedPair `msgpack:"n"`
	Prev  []packedPair `msgpack:"p"`
}

type packedSnapshot struct {
	Order   int            `msgpack:"o"`
	Records []packedRecord `msgpack:"r"`
}

// MsgpackCodec stores chains as compact msgpack blobs.
type MsgpackCodec struct{}

func (MsgpackCodec) Name() string { return "msgpack" }
func (MsgpackCodec) Ext() string  { return ".msgpack" }

func (MsgpackCodec) Encode(snap Snapshot) ([]byte, error) {
	packed := make([]packedRecord, len(snap.Records))
	for i, rec := range snap.Records {
		p := packedRecord{
			State: make([][]byte, len(rec.State)),
			Next:  packPairs(rec.Next),
			Prev:  packPairs(rec.Prev),
		}
		for j, tok := range rec.State {
			p.State[j] = markov.EncodeToken(tok)
		}
		packed[i] = p
	}
	return msgpack.Marshal(packedSnapshot{Order: snap.Order, Records: packed})
}

func (MsgpackCodec) Decode(data []byte) (Snapshot, error) {
	var packed packedSnapshot
	if err := msgpack.Unmarshal(data, &packed); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode msgpack chain: %w", err)
	}
	records := make([]markov.Record, len(packed.Records))
	for i, p := range packed.Records {
		rec := markov.Record{State: make([]markov.Token, len(p.State))}
		for j, raw := range p.State {
			tok, err := markov.DecodeToken(raw)
			if err != nil {
				return Snapshot{}, fmt.Errorf("record %d: %w", i, err)
			}
			rec.State[j] = tok
		}
		var err error
		if rec.Next, err = unpackPairs(p.Next); err != nil {
			return Snapshot{}, fmt.Errorf("record %d next: %w", i, err)
		}
		if rec.Prev, err = unpackPairs(p.Prev); err != nil {
			return Snapshot{}, fmt.Errorf("record %d prev: %w", i, err)
		}
		records[i] = rec
	}
	return Snapshot{Order: packed.Order, Records: records}, nil
}

func packPairs(pairs []markov.Transition) []packedPair {
	out := make([]packedPair, len(pairs))
	for i, p := range pairs {
		out[i] = packedPair{Token: markov.EncodeToken(p.Token), Count: p.Count}
	}
	return out
}

func unpackPairs(pairs []packedPair) ([]markov.Transition, error) {
	out := make([]markov.Transition, len(pairs))
	for i, p := range pairs {
		tok, err := markov.DecodeToken(p.Token)
		if err != nil {
			return nil, err
		}
		out[i] = markov.Transition{Token: tok, Count: p.Count}
	}
	return out, nil
}
