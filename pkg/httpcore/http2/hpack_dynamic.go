package http2

// HPACK dynamic table, RFC 7541 §2.3: a FIFO of header fields stored as a
// circular buffer, newest first, indexed from 62 upward once combined
// with the static table.

type dynamicTable struct {
	entries []HeaderField
	head    int
	count   int
	size    uint32
	maxSize uint32
}

func entrySize(name, value string) uint32 {
	return uint32(len(name) + len(value) + 32)
}

func newDynamicTable(maxSize uint32) *dynamicTable {
	capacity := int(maxSize / 64)
	if capacity < 16 {
		capacity = 16
	}
	return &dynamicTable{entries: make([]HeaderField, capacity), maxSize: maxSize}
}

func (dt *dynamicTable) Add(name, value string) {
	size := entrySize(name, value)
	for dt.size+size > dt.maxSize && dt.count > 0 {
		dt.evictOldest()
	}
	if size > dt.maxSize {
		return
	}
	if dt.count == len(dt.entries) {
		dt.resize()
	}
	dt.head = (dt.head - 1 + len(dt.entries)) % len(dt.entries)
	dt.entries[dt.head] = HeaderField{Name: name, Value: value}
	dt.count++
	dt.size += size
}

func (dt *dynamicTable) Get(index int) (HeaderField, bool) {
	if index < 1 || index > dt.count {
		return HeaderField{}, false
	}
	pos := (dt.head + index - 1) % len(dt.entries)
	return dt.entries[pos], true
}

func (dt *dynamicTable) Find(name, value string) (index int, exactMatch bool) {
	for i := 0; i < dt.count; i++ {
		pos := (dt.head + i) % len(dt.entries)
		entry := dt.entries[pos]
		if entry.Name == name {
			if entry.Value == value {
				return i + 1, true
			}
			if index == 0 {
				index = i + 1
			}
		}
	}
	return index, false
}

func (dt *dynamicTable) Size() uint32 { return dt.size }

func (dt *dynamicTable) SetMaxSize(maxSize uint32) {
	dt.maxSize = maxSize
	for dt.size > dt.maxSize && dt.count > 0 {
		dt.evictOldest()
	}
}

func (dt *dynamicTable) evictOldest() {
	if dt.count == 0 {
		return
	}
	tail := (dt.head + dt.count - 1) % len(dt.entries)
	entry := dt.entries[tail]
	dt.size -= entrySize(entry.Name, entry.Value)
	dt.count--
	dt.entries[tail] = HeaderField{}
}

func (dt *dynamicTable) resize() {
	newEntries := make([]HeaderField, len(dt.entries)*2)
	for i := 0; i < dt.count; i++ {
		pos := (dt.head + i) % len(dt.entries)
		newEntries[i] = dt.entries[pos]
	}
	dt.entries = newEntries
	dt.head = 0
}

// indexTable combines the static and dynamic tables under one absolute
// index space (1-61 static, 62+ dynamic).
type indexTable struct {
	dynamic *dynamicTable
}

func newIndexTable(maxDynamicSize uint32) *indexTable {
	return &indexTable{dynamic: newDynamicTable(maxDynamicSize)}
}

func (it *indexTable) Get(index int) (HeaderField, bool) {
	if index <= 0 {
		return HeaderField{}, false
	}
	if index <= StaticTableSize {
		return GetStaticEntry(index), true
	}
	return it.dynamic.Get(index - StaticTableSize)
}

func (it *indexTable) Add(name, value string) { it.dynamic.Add(name, value) }

func (it *indexTable) Find(name, value string) (index int, exactMatch bool) {
	staticIdx, staticExact := FindStaticIndex(name, value)
	if staticExact {
		return staticIdx, true
	}
	dynamicIdx, dynamicExact := it.dynamic.Find(name, value)
	if dynamicIdx > 0 {
		absoluteIdx := StaticTableSize + dynamicIdx
		if dynamicExact {
			return absoluteIdx, true
		}
		if staticIdx == 0 {
			return absoluteIdx, false
		}
	}
	if staticIdx > 0 {
		return staticIdx, false
	}
	return 0, false
}

func (it *indexTable) SetMaxDynamicSize(maxSize uint32) { it.dynamic.SetMaxSize(maxSize) }
