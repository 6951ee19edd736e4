// ABOUTME: Folder operations on the catalog with path-prefix semantics
// ABOUTME: Renames cascade to descendant folders and the feeds inside them

package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrFolderNotFound is returned when a named folder does not exist.
var ErrFolderNotFound = errors.New("folder not found")

// Folder paths are slash-separated, e.g. "tech/go". The folder set is
// persisted as a state slot so empty folders survive restarts.
const stateFolders = "folders"

func (s *Store) loadFolders() error {
	raw, err := s.store.GetState(stateFolders)
	if err != nil {
		return fmt.Errorf("loading folders: %w", err)
	}
	if raw == nil {
		return nil
	}
	var paths []string
	if err := json.Unmarshal(raw, &paths); err != nil {
		return fmt.Errorf("decoding folders: %w", err)
	}
	for _, path := range paths {
		s.folders[path] = struct{}{}
	}
	return nil
}

// saveFolders must be called with the lock held.
func (s *Store) saveFolders() error {
	paths := make([]string, 0, len(s.folders))
	for path := range s.folders {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	raw, err := json.Marshal(paths)
	if err != nil {
		return fmt.Errorf("encoding folders: %w", err)
	}
	return s.store.SetState(stateFolders, raw)
}

// Folders returns all folder paths, sorted. Folders referenced by
// feeds but never explicitly created are included.
func (s *Store) Folders() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := make(map[string]struct{}, len(s.folders))
	for path := range s.folders {
		set[path] = struct{}{}
	}
	for _, feed := range s.feeds {
		if feed.FolderPath != "" {
			set[feed.FolderPath] = struct{}{}
		}
	}
	paths := make([]string, 0, len(set))
	for path := range set {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// CreateFolder registers a folder path. Creating an existing folder is
// a no-op.
func (s *Store) CreateFolder(path string) error {
	path = strings.Trim(path, "/")
	if path == "" {
		return errors.New("folder path cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.folders[path]; ok {
		return nil
	}
	s.folders[path] = struct{}{}
	return s.saveFolders()
}

// RenameFolder moves a folder to a new path. The rename cascades to
// every descendant folder and to the folder path of every feed under
// the old prefix.
func (s *Store) RenameFolder(oldPath, newPath string) error {
	oldPath = strings.Trim(oldPath, "/")
	newPath = strings.Trim(newPath, "/")
	if newPath == "" {
		return errors.New("folder path cannot be empty")
	}
	s.mu.Lock()
	if !s.folderExistsLocked(oldPath) {
		s.mu.Unlock()
		return ErrFolderNotFound
	}
	renamed := make(map[string]struct{}, len(s.folders))
	for path := range s.folders {
		renamed[rewriteFolderPath(path, oldPath, newPath)] = struct{}{}
	}
	renamed[newPath] = struct{}{}
	s.folders = renamed
	if err := s.saveFolders(); err != nil {
		s.mu.Unlock()
		return err
	}
	for _, feed := range s.feeds {
		moved := rewriteFolderPath(feed.FolderPath, oldPath, newPath)
		if moved == feed.FolderPath {
			continue
		}
		feed.FolderPath = moved
		feed.Touch()
		if err := s.store.SaveFeed(feed); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("saving feed: %w", err)
		}
	}
	s.mu.Unlock()
	s.notify(Event{Kind: EventCatalogUpdated})
	return nil
}

// RemoveFolder deletes a folder and its descendants. Feeds inside move
// to the root; they are not deleted.
func (s *Store) RemoveFolder(path string) error {
	path = strings.Trim(path, "/")
	s.mu.Lock()
	if !s.folderExistsLocked(path) {
		s.mu.Unlock()
		return ErrFolderNotFound
	}
	for existing := range s.folders {
		if existing == path || strings.HasPrefix(existing, path+"/") {
			delete(s.folders, existing)
		}
	}
	if err := s.saveFolders(); err != nil {
		s.mu.Unlock()
		return err
	}
	for _, feed := range s.feeds {
		if feed.FolderPath != path && !strings.HasPrefix(feed.FolderPath, path+"/") {
			continue
		}
		feed.FolderPath = ""
		feed.Touch()
		if err := s.store.SaveFeed(feed); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("saving feed: %w", err)
		}
	}
	s.mu.Unlock()
	s.notify(Event{Kind: EventCatalogUpdated})
	return nil
}

// folderExistsLocked checks the explicit set and feed references.
func (s *Store) folderExistsLocked(path string) bool {
	if _, ok := s.folders[path]; ok {
		return true
	}
	for _, feed := range s.feeds {
		if feed.FolderPath == path {
			return true
		}
	}
	return false
}

// rewriteFolderPath maps a path under oldPrefix to the same position
// under newPrefix; paths outside the prefix are returned unchanged.
func rewriteFolderPath(path, oldPrefix, newPrefix string) string {
	if path == oldPrefix {
		return newPrefix
	}
	if strings.HasPrefix(path, oldPrefix+"/") {
		return newPrefix + path[len(oldPrefix):]
	}
	return path
}
