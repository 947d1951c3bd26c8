package badger

import "github.com/poiesic/mediasearch/storage"

// NewMemoryStores opens an in-memory backend with a vector index and a
// record store on top of it. Closing the backend releases both.
func NewMemoryStores() (storage.VectorIndex, storage.RecordStore, *Backend, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, nil, nil, err
	}

	return NewVectorIndex(backend), NewRecordStore(backend), backend, nil
}
