package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/quickserve/expo/internal/utils"
	"github.com/quickserve/expo/pkg/acks"
	"github.com/quickserve/expo/pkg/remote"
	"github.com/spf13/viper"
)

// newRemoteClient builds the store client from config. The store URL is
// the only required setting.
func newRemoteClient() (*remote.Client, error) {
	baseURL := viper.GetString("remote.url")
	if baseURL == "" {
		return nil, fmt.Errorf("remote.url is not set; add it to ~/.expo.yaml or the REMOTE_URL env var")
	}
	opts := []remote.Option{
		remote.WithCollection(viper.GetString("remote.collection")),
		remote.WithArchiveRoot(viper.GetString("remote.archive")),
	}
	if token := viper.GetString("remote.token"); token != "" {
		opts = append(opts, remote.WithAuthToken(token))
	}
	return remote.New(baseURL, opts...), nil
}

// openAcks opens the acknowledgment database under its cross-process
// lock. The caller must call the returned release func.
func openAcks() (*acks.Store, func(), error) {
	dbPath, err := utils.GetAbsDBPath(viper.GetString("dbpath"))
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, nil, err
	}

	lock, err := utils.NewDBLock(dbPath)
	if err != nil {
		return nil, nil, err
	}
	if err := lock.Lock(); err != nil {
		return nil, nil, err
	}

	store, err := acks.Open(dbPath)
	if err != nil {
		lock.Unlock()
		return nil, nil, err
	}

	release := func() {
		store.Close()
		if err := lock.Unlock(); err != nil {
			utils.Log.Warnf("could not release db lock: %v", err)
		}
	}
	return store, release, nil
}
