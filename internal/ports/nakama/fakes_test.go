package nakama

import (
	"context"
	"strconv"
	"sync"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
)

// noopLogger implements runtime.Logger for tests that only need to satisfy the interface.
type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) WithField(string, interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) WithFields(map[string]interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) Fields() map[string]interface{} {
	return nil
}

// fakeStorage mimics Nakama's conditional storage writes: version "*" requires the object to be
// absent, an empty version writes unconditionally, anything else must match the stored version.
type fakeStorage struct {
	mu      sync.Mutex
	objects map[string]*api.StorageObject
	nextVer int
	writes  int
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string]*api.StorageObject{}}
}

func objectKey(collection, key, userID string) string {
	return collection + "/" + key + "/" + userID
}

func (f *fakeStorage) StorageRead(ctx context.Context, reads []*runtime.StorageRead) ([]*api.StorageObject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*api.StorageObject{}
	for _, r := range reads {
		if obj, ok := f.objects[objectKey(r.Collection, r.Key, r.UserID)]; ok {
			out = append(out, &api.StorageObject{
				Collection: obj.Collection,
				Key:        obj.Key,
				UserId:     obj.UserId,
				Value:      obj.Value,
				Version:    obj.Version,
			})
		}
	}
	return out, nil
}

func (f *fakeStorage) MultiUpdate(ctx context.Context, accountUpdates []*runtime.AccountUpdate, storageWrites []*runtime.StorageWrite, storageDeletes []*runtime.StorageDelete, walletUpdates []*runtime.WalletUpdate, updateLedger bool) ([]*api.StorageObjectAck, []*runtime.WalletUpdateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, w := range storageWrites {
		existing, ok := f.objects[objectKey(w.Collection, w.Key, w.UserID)]
		switch {
		case w.Version == "":
		case w.Version == "*":
			if ok {
				return nil, nil, runtime.ErrStorageRejectedVersion
			}
		case !ok || existing.Version != w.Version:
			return nil, nil, runtime.ErrStorageRejectedVersion
		}
	}

	acks := make([]*api.StorageObjectAck, 0, len(storageWrites))
	for _, w := range storageWrites {
		f.nextVer++
		version := "v" + strconv.Itoa(f.nextVer)
		f.objects[objectKey(w.Collection, w.Key, w.UserID)] = &api.StorageObject{
			Collection: w.Collection,
			Key:        w.Key,
			UserId:     w.UserID,
			Value:      w.Value,
			Version:    version,
		}
		acks = append(acks, &api.StorageObjectAck{
			Collection: w.Collection,
			Key:        w.Key,
			Version:    version,
			UserId:     w.UserID,
		})
	}
	f.writes++
	return acks, nil, nil
}

func (f *fakeStorage) count(collection string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, obj := range f.objects {
		if obj.Collection == collection {
			n++
		}
	}
	return n
}

var _ StorageBackend = (*fakeStorage)(nil)
