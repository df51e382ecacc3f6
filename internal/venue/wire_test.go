package venue

import (
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"etf-mm-bot/internal/book"
	"etf-mm-bot/internal/engine"
)

func TestEncodeLogin(t *testing.T) {
	data, err := EncodeLogin("trader-7", "hunter2")
	if err != nil {
		t.Fatalf("EncodeLogin: %v", err)
	}
	var got map[string]interface{}
	if err := msgpack.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["t"] != frameLogin || got["n"] != "trader-7" || got["s"] != "hunter2" {
		t.Fatalf("unexpected login frame: %v", got)
	}
}

func TestEncodeLoginRequiresCredentials(t *testing.T) {
	if _, err := EncodeLogin("", "secret"); err == nil {
		t.Fatalf("expected error for empty name")
	}
	if _, err := EncodeLogin("name", ""); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}

func TestEncodeInsertRoundTrip(t *testing.T) {
	data, err := EncodeInsert(42, engine.SideBuy, 10050, 20, engine.FillAndKill)
	if err != nil {
		t.Fatalf("EncodeInsert: %v", err)
	}
	f, err := decodeFrame(data)
	if err != nil {
		t.Fatalf("decodeFrame: %v", err)
	}
	if f.Type != frameInsert || f.OrderID != 42 || f.Price != 10050 || f.Volume != 20 {
		t.Fatalf("unexpected insert frame: %+v", f)
	}

	var raw map[string]interface{}
	if err := msgpack.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if raw["b"] != true {
		t.Fatalf("expected buy flag set, got %v", raw["b"])
	}
	if raw["l"] != "fill_and_kill" {
		t.Fatalf("expected fill_and_kill lifespan, got %v", raw["l"])
	}
}

func TestEncodeInsertRejectsZeroID(t *testing.T) {
	if _, err := EncodeInsert(0, engine.SideBuy, 1, 1, engine.GoodForDay); err == nil {
		t.Fatalf("expected error for zero order id")
	}
}

func TestEncodeCancelRoundTrip(t *testing.T) {
	data, err := EncodeCancel(7)
	if err != nil {
		t.Fatalf("EncodeCancel: %v", err)
	}
	f, err := decodeFrame(data)
	if err != nil {
		t.Fatalf("decodeFrame: %v", err)
	}
	if f.Type != frameCancel || f.OrderID != 7 {
		t.Fatalf("unexpected cancel frame: %+v", f)
	}
}

func TestEncodeHedgeRoundTrip(t *testing.T) {
	data, err := EncodeHedge(9, engine.SideSell, 100, 15)
	if err != nil {
		t.Fatalf("EncodeHedge: %v", err)
	}
	f, err := decodeFrame(data)
	if err != nil {
		t.Fatalf("decodeFrame: %v", err)
	}
	if f.Type != frameHedge || f.OrderID != 9 || f.Price != 100 || f.Volume != 15 {
		t.Fatalf("unexpected hedge frame: %+v", f)
	}
	var raw map[string]interface{}
	if err := msgpack.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if raw["b"] != false {
		t.Fatalf("expected sell flag, got %v", raw["b"])
	}
}

func TestDecodeBookFrame(t *testing.T) {
	data, err := msgpack.Marshal(map[string]interface{}{
		"t":  frameBook,
		"i":  int64(book.ETF),
		"q":  uint64(12),
		"bp": []int64{10000, 9900, 0, 0, 0},
		"bv": []int64{50, 30, 0, 0, 0},
		"ap": []int64{10100, 10200, 0, 0, 0},
		"av": []int64{40, 10, 0, 0, 0},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	f, err := decodeFrame(data)
	if err != nil {
		t.Fatalf("decodeFrame: %v", err)
	}
	snap, err := f.snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Instrument != book.ETF || snap.Seq != 12 {
		t.Fatalf("unexpected snapshot header: %+v", snap)
	}
	if snap.BestBid() != 10000 || snap.BestAsk() != 10100 {
		t.Fatalf("unexpected tops: bid %d ask %d", snap.BestBid(), snap.BestAsk())
	}
	if snap.BidVolumes[1] != 30 || snap.AskPrices[1] != 10200 {
		t.Fatalf("unexpected depth: %+v", snap)
	}
}

func TestDecodeRejectsUnknownInstrument(t *testing.T) {
	data, err := msgpack.Marshal(map[string]interface{}{"t": frameBook, "i": int64(5), "q": uint64(1)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	f, err := decodeFrame(data)
	if err != nil {
		t.Fatalf("decodeFrame: %v", err)
	}
	if _, err := f.snapshot(); err == nil {
		t.Fatalf("expected error for instrument 5")
	}
}

func TestDecodeRejectsMissingType(t *testing.T) {
	data, err := msgpack.Marshal(map[string]interface{}{"o": uint64(1)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, err := decodeFrame(data); err == nil {
		t.Fatalf("expected error for missing type tag")
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := decodeFrame([]byte{0xc1, 0x00}); err == nil {
		t.Fatalf("expected error for garbage frame")
	}
}
