package venue

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"etf-mm-bot/internal/book"
	"etf-mm-bot/internal/engine"
)

// Frame type tags. Every frame on the wire is a msgpack map whose "t"
// key names the frame kind; remaining keys depend on the kind.
const (
	frameLogin  = "login"
	frameInsert = "insert"
	frameCancel = "cancel"
	frameHedge  = "hedge"
	framePing   = "ping"
	framePong   = "pong"

	frameBook      = "book"
	frameTicks     = "ticks"
	frameFill      = "fill"
	frameStatus    = "status"
	frameHedgeFill = "hedge_fill"
	frameError     = "error"
)

func EncodeLogin(name, secret string) ([]byte, error) {
	if name == "" || secret == "" {
		return nil, errors.New("login name and secret are required")
	}
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := enc.EncodeMapLen(3); err != nil {
		return nil, err
	}
	if err := encodeTag(enc, frameLogin); err != nil {
		return nil, err
	}
	if err := enc.EncodeString("n"); err != nil {
		return nil, err
	}
	if err := enc.EncodeString(name); err != nil {
		return nil, err
	}
	if err := enc.EncodeString("s"); err != nil {
		return nil, err
	}
	if err := enc.EncodeString(secret); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func EncodeInsert(id uint64, side engine.Side, price, volume int64, lifespan engine.Lifespan) ([]byte, error) {
	if id == 0 {
		return nil, errors.New("order id is required")
	}
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := enc.EncodeMapLen(6); err != nil {
		return nil, err
	}
	if err := encodeTag(enc, frameInsert); err != nil {
		return nil, err
	}
	if err := encodeOrderID(enc, id); err != nil {
		return nil, err
	}
	if err := enc.EncodeString("b"); err != nil {
		return nil, err
	}
	if err := enc.EncodeBool(side == engine.SideBuy); err != nil {
		return nil, err
	}
	if err := enc.EncodeString("p"); err != nil {
		return nil, err
	}
	if err := enc.EncodeInt(price); err != nil {
		return nil, err
	}
	if err := enc.EncodeString("v"); err != nil {
		return nil, err
	}
	if err := enc.EncodeInt(volume); err != nil {
		return nil, err
	}
	if err := enc.EncodeString("l"); err != nil {
		return nil, err
	}
	if err := enc.EncodeString(lifespan.String()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func EncodeCancel(id uint64) ([]byte, error) {
	if id == 0 {
		return nil, errors.New("order id is required")
	}
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := enc.EncodeMapLen(2); err != nil {
		return nil, err
	}
	if err := encodeTag(enc, frameCancel); err != nil {
		return nil, err
	}
	if err := encodeOrderID(enc, id); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func EncodeHedge(id uint64, side engine.Side, price, volume int64) ([]byte, error) {
	if id == 0 {
		return nil, errors.New("order id is required")
	}
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := enc.EncodeMapLen(5); err != nil {
		return nil, err
	}
	if err := encodeTag(enc, frameHedge); err != nil {
		return nil, err
	}
	if err := encodeOrderID(enc, id); err != nil {
		return nil, err
	}
	if err := enc.EncodeString("b"); err != nil {
		return nil, err
	}
	if err := enc.EncodeBool(side == engine.SideBuy); err != nil {
		return nil, err
	}
	if err := enc.EncodeString("p"); err != nil {
		return nil, err
	}
	if err := enc.EncodeInt(price); err != nil {
		return nil, err
	}
	if err := enc.EncodeString("v"); err != nil {
		return nil, err
	}
	if err := enc.EncodeInt(volume); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func EncodePing() ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := enc.EncodeMapLen(1); err != nil {
		return nil, err
	}
	if err := encodeTag(enc, framePing); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeTag(enc *msgpack.Encoder, tag string) error {
	if err := enc.EncodeString("t"); err != nil {
		return err
	}
	return enc.EncodeString(tag)
}

func encodeOrderID(enc *msgpack.Encoder, id uint64) error {
	if err := enc.EncodeString("o"); err != nil {
		return err
	}
	return enc.EncodeUint(id)
}

// frame is the union of all inbound frame fields; the "t" tag decides
// which are meaningful.
type frame struct {
	Type       string             `msgpack:"t"`
	Instrument int64              `msgpack:"i"`
	Seq        uint64             `msgpack:"q"`
	BidPrices  [book.Levels]int64 `msgpack:"bp"`
	BidVolumes [book.Levels]int64 `msgpack:"bv"`
	AskPrices  [book.Levels]int64 `msgpack:"ap"`
	AskVolumes [book.Levels]int64 `msgpack:"av"`
	OrderID    uint64             `msgpack:"o"`
	Price      int64              `msgpack:"p"`
	Volume     int64              `msgpack:"v"`
	FillVolume int64              `msgpack:"f"`
	Remaining  int64              `msgpack:"r"`
	Fees       int64              `msgpack:"c"`
	Message    string             `msgpack:"m"`
}

func decodeFrame(data []byte) (frame, error) {
	var f frame
	if err := msgpack.Unmarshal(data, &f); err != nil {
		return frame{}, fmt.Errorf("decode frame: %w", err)
	}
	if f.Type == "" {
		return frame{}, errors.New("frame missing type tag")
	}
	return f, nil
}

func (f frame) snapshot() (book.Snapshot, error) {
	if f.Instrument < 0 || f.Instrument > int64(book.ETF) {
		return book.Snapshot{}, fmt.Errorf("unknown instrument %d", f.Instrument)
	}
	return book.Snapshot{
		Instrument: book.Instrument(f.Instrument),
		Seq:        f.Seq,
		BidPrices:  f.BidPrices,
		BidVolumes: f.BidVolumes,
		AskPrices:  f.AskPrices,
		AskVolumes: f.AskVolumes,
	}, nil
}
