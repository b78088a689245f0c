// Package store keeps installed plugin scripts on disk.
//
// Each plugin is two files in one flat directory:
//
//	<id>.js    the script source
//	<id>.yaml  the manifest: descriptor metadata, revision, checksum, install times
//
// Writes go through renameio, so a reader never sees a half-written script or
// manifest. Manifests are cached in memory and refreshed from disk on List.
//
// Watcher reports scripts that change on disk so the server can reload the
// active plugin.
//
// Example:
//
//	s, err := store.New(cfg.Store.Dir, logger)
//	m, err := s.Install(ctx, desc)
//	desc, m, err := s.Get(ctx, "kw")
package store
