// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package adal

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/azure/adtoken/pkg/osutil"
	"github.com/gofrs/flock"
)

// fileLockTimeout bounds how long a cache access waits on another process
// holding the lock.
const (
	fileLockTimeout       = 10 * time.Second
	fileLockRetryInterval = 100 * time.Millisecond
)

// FileStore persists a TokenCache to a file, guarded by an advisory
// cross-process lock. Wire it with TokenCache.SetObserver: the cache is
// reloaded before every access and written back after accesses that changed
// it.
type FileStore struct {
	path string
	lock *flock.Flock
}

func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, newArgumentError("path", "path must not be empty")
	}

	if err := os.MkdirAll(filepath.Dir(path), osutil.PermissionDirectoryOwnerOnly); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	return &FileStore{
		path: path,
		lock: flock.New(path + ".lock"),
	}, nil
}

func (s *FileStore) Path() string {
	return s.path
}

// OnBeforeAccess loads the persisted blob into the cache so this process sees
// tokens written by others.
func (s *FileStore) OnBeforeAccess(args CacheNotificationArgs) {
	s.withLock(func() {
		blob, err := os.ReadFile(s.path)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				log.Printf("adal: reading token cache file: %v", err)
			}
			return
		}

		args.Cache.Deserialize(blob)
		args.Cache.ResetStateChanged()
	})
}

func (s *FileStore) OnBeforeWrite(args CacheNotificationArgs) {
}

// OnAfterAccess writes the cache back when the access changed it.
func (s *FileStore) OnAfterAccess(args CacheNotificationArgs) {
	if !args.Cache.HasStateChanged() {
		return
	}

	s.withLock(func() {
		blob, err := args.Cache.Serialize()
		if err != nil {
			log.Printf("adal: serializing token cache: %v", err)
			return
		}

		if err := writeFileAtomic(s.path, blob); err != nil {
			log.Printf("adal: writing token cache file: %v", err)
			return
		}

		args.Cache.ResetStateChanged()
	})
}

// Delete removes the persisted cache file.
func (s *FileStore) Delete() error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing token cache file: %w", err)
	}

	return nil
}

func (s *FileStore) withLock(fn func()) {
	ctx, cancel := context.WithTimeout(context.Background(), fileLockTimeout)
	defer cancel()

	locked, err := s.lock.TryLockContext(ctx, fileLockRetryInterval)
	if err != nil || !locked {
		log.Printf("adal: could not lock token cache file, proceeding without the lock: %v", err)
		fn()
		return
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			log.Printf("adal: unlocking token cache file: %v", err)
		}
	}()

	fn()
}

// writeFileAtomic stages the blob next to the target and renames it into
// place so a crashed writer never leaves a truncated cache.
func writeFileAtomic(path string, blob []byte) error {
	staging, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}

	stagingPath := staging.Name()
	defer os.Remove(stagingPath)

	if err := staging.Chmod(osutil.PermissionFileOwnerOnly); err != nil {
		staging.Close()
		return err
	}

	if _, err := staging.Write(blob); err != nil {
		staging.Close()
		return err
	}

	if err := staging.Close(); err != nil {
		return err
	}

	return os.Rename(stagingPath, path)
}
