package app

import (
	"errors"
	"io/fs"

	"github.com/rs/zerolog"

	"example.com/userapi/internal/storage/jsonfile"
	"example.com/userapi/internal/storage/memory"
)

// loadUsersFile never fails: a missing or unusable file leaves the service
// with an empty collection.
func loadUsersFile(path string, log zerolog.Logger) *memory.Store {
	users, err := jsonfile.Load(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Info().Str("file", path).Msg("users file not found, starting empty")
		} else {
			log.Warn().Err(err).Str("file", path).Msg("users file unreadable, starting empty")
		}
		return memory.New()
	}
	store, err := memory.NewFrom(users)
	if err != nil {
		log.Warn().Err(err).Str("file", path).Msg("users file inconsistent, starting empty")
		return memory.New()
	}
	log.Info().Str("file", path).Int("users", len(users)).Msg("users file loaded")
	return store
}

func flushUsersFile(path string, store *memory.Store, log zerolog.Logger) error {
	users := store.Snapshot()
	if err := jsonfile.Save(path, users); err != nil {
		log.Error().Err(err).Str("file", path).Msg("failed to write users file")
		return err
	}
	log.Info().Str("file", path).Int("users", len(users)).Msg("users file written")
	return nil
}
