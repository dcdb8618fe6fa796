package http2

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	headers := []HeaderField{
		{Name: ":method", Value: "GET"},
		{Name: ":path", Value: "/widgets"},
		{Name: ":scheme", Value: "https"},
		{Name: "x-custom", Value: "value"},
	}

	enc := NewEncoder(DefaultHeaderTableSize)
	block := enc.Encode(headers)

	dec := NewDecoder(DefaultHeaderTableSize, 0)
	got, err := dec.Decode(block)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got) != len(headers) {
		t.Fatalf("got %d fields, want %d", len(got), len(headers))
	}
	for i, h := range headers {
		if got[i] != h {
			t.Errorf("field %d: got %+v, want %+v", i, got[i], h)
		}
	}
}

func TestEncodeUsesStaticTableExactMatch(t *testing.T) {
	enc := NewEncoder(DefaultHeaderTableSize)
	block := enc.Encode([]HeaderField{{Name: ":method", Value: "GET"}})

	// An exact static-table hit encodes as a single indexed byte (0x80 | index).
	if len(block) != 1 {
		t.Fatalf("got %d bytes, want 1 (indexed representation)", len(block))
	}
	if block[0]&0x80 == 0 {
		t.Fatalf("got %08b, want the indexed-field bit set", block[0])
	}
}

func TestEncodeRepeatedHeaderUsesDynamicTable(t *testing.T) {
	enc := NewEncoder(DefaultHeaderTableSize)
	first := enc.Encode([]HeaderField{{Name: "x-request-id", Value: "abc123"}})
	second := enc.Encode([]HeaderField{{Name: "x-request-id", Value: "abc123"}})

	if len(second) >= len(first) {
		t.Fatalf("expected the second encoding (%d bytes) to be shorter than the first (%d), once the field is in the dynamic table", len(second), len(first))
	}

	dec := NewDecoder(DefaultHeaderTableSize, 0)
	if _, err := dec.Decode(first); err != nil {
		t.Fatalf("Decode(first): %v", err)
	}
	got, err := dec.Decode(second)
	if err != nil {
		t.Fatalf("Decode(second): %v", err)
	}
	if len(got) != 1 || got[0].Name != "x-request-id" || got[0].Value != "abc123" {
		t.Fatalf("got %+v", got)
	}
}

func TestDecodeRejectsHuffmanCodedStrings(t *testing.T) {
	// Literal header field without indexing (0x00 prefix), name as a new
	// literal with the Huffman bit (0x80) set on its length prefix.
	block := []byte{0x00, 0x81, 0xff}
	dec := NewDecoder(DefaultHeaderTableSize, 0)
	_, err := dec.Decode(block)
	if err != ErrHuffmanUnsupported {
		t.Fatalf("got %v, want ErrHuffmanUnsupported", err)
	}
}

func TestDecodeRejectsInvalidIndex(t *testing.T) {
	// Indexed header field referencing index 0, which is reserved/invalid.
	block := []byte{0x80}
	dec := NewDecoder(DefaultHeaderTableSize, 0)
	if _, err := dec.Decode(block); err == nil {
		t.Fatal("expected an error decoding indexed field 0")
	}
}

func TestDecodeTableSizeUpdateShrinksDynamicTable(t *testing.T) {
	enc := NewEncoder(DefaultHeaderTableSize)
	big := enc.Encode([]HeaderField{{Name: "x-a", Value: "1"}, {Name: "x-b", Value: "2"}})

	dec := NewDecoder(DefaultHeaderTableSize, 0)
	if _, err := dec.Decode(big); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if dec.table.dynamic.Size() == 0 {
		t.Fatal("expected the dynamic table to hold the decoded entries")
	}

	// Dynamic table size update to 0 (0x20 prefix, 5-bit integer = 0).
	if err := dec.decodeTableSizeUpdate(&byteReader{data: []byte{0x20}}); err != nil {
		t.Fatalf("decodeTableSizeUpdate: %v", err)
	}
	if dec.table.dynamic.Size() != 0 {
		t.Fatalf("got dynamic table size %d, want 0 after shrinking to zero", dec.table.dynamic.Size())
	}
}

func TestDynamicTableEvictsOldestOnOverflow(t *testing.T) {
	dt := newDynamicTable(64) // room for one 49-byte entry (8+9+32), not two
	dt.Add("name-one", "value-one")
	dt.Add("name-two", "value-two")

	if dt.count != 1 {
		t.Fatalf("got %d entries, want 1 after eviction", dt.count)
	}
	hf, ok := dt.Get(1)
	if !ok || hf.Name != "name-two" {
		t.Fatalf("got %+v, ok=%v, want the most recently added entry to survive", hf, ok)
	}
}

func TestDynamicTableFindReportsPartialNameMatch(t *testing.T) {
	dt := newDynamicTable(4096)
	dt.Add("x-custom", "first")

	index, exact := dt.Find("x-custom", "second")
	if exact {
		t.Fatal("did not expect an exact match")
	}
	if index != 1 {
		t.Fatalf("got index %d, want 1 (name-only match)", index)
	}
}

func TestIndexTableCombinesStaticAndDynamicRanges(t *testing.T) {
	it := newIndexTable(4096)
	it.Add("x-custom", "value")

	hf, ok := it.Get(1)
	if !ok || hf.Name != ":authority" {
		t.Fatalf("got %+v, want the first static entry", hf)
	}

	hf, ok = it.Get(StaticTableSize + 1)
	if !ok || hf.Name != "x-custom" || hf.Value != "value" {
		t.Fatalf("got %+v, want the dynamic entry at the combined index", hf)
	}
}
