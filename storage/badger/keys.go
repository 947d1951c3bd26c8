package badger

const (
	indexEntryPrefix = "vecidx:"
	recordPrefix     = "mrec:"
)

func makeIndexKey(id string) []byte {
	return []byte(indexEntryPrefix + id)
}

func makeRecordCollectionPrefix(collection string) []byte {
	return []byte(recordPrefix + collection + ":")
}

func makeRecordKey(collection, id string) []byte {
	prefix := makeRecordCollectionPrefix(collection)
	buf := make([]byte, len(prefix)+len(id))
	offset := copy(buf, prefix)
	copy(buf[offset:], id)
	return buf
}
