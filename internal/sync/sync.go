// Package sync reconciles card sources into storage: parsing source files,
// filing cards into their decks, inserting new cards, and removing cards
// whose source content disappeared.
package sync

import (
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/conorfennell/knoldeck/internal/domain"
	"github.com/conorfennell/knoldeck/internal/gitsource"
	"github.com/conorfennell/knoldeck/internal/knol"
	"github.com/conorfennell/knoldeck/internal/parser"
	"github.com/conorfennell/knoldeck/internal/storage"
)

// DefaultDeck receives cards whose source file names no deck.
const DefaultDeck = "Default"

// Syncer reconciles all configured sources.
type Syncer struct {
	db       *storage.DB
	logger   *zap.Logger
	reposDir string
}

// New creates a Syncer that stores git clones under reposDir.
func New(db *storage.DB, logger *zap.Logger, reposDir string) *Syncer {
	return &Syncer{db: db, logger: logger, reposDir: reposDir}
}

// Run iterates over all sources and reconciles each one. Individual source
// failures are logged and skipped; Run fails only when storage itself does.
func (s *Syncer) Run(now time.Time) error {
	sources, err := s.db.GetAllSources()
	if err != nil {
		return fmt.Errorf("failed to get sources: %w", err)
	}
	if len(sources) == 0 {
		s.logger.Info("no sources configured")
		return nil
	}

	if err := os.MkdirAll(s.reposDir, 0o755); err != nil {
		return fmt.Errorf("failed to create repos directory: %w", err)
	}

	for _, source := range sources {
		s.logger.Info("syncing source",
			zap.Int64("id", source.ID),
			zap.String("type", source.Type),
			zap.String("path", source.Path),
		)

		scanPath := source.Path
		if source.Type == "git" {
			localPath, err := gitURLToLocalPath(s.reposDir, source.Path)
			if err != nil {
				s.logger.Error("cannot determine local path for git repo",
					zap.String("url", source.Path), zap.Error(err))
				continue
			}
			if err := gitsource.Sync(source.Path, localPath, s.logger); err != nil {
				s.logger.Error("git sync failed", zap.String("url", source.Path), zap.Error(err))
				continue
			}
			scanPath = localPath
		}

		if err := s.reconcile(source, scanPath, now); err != nil {
			s.logger.Error("reconcile failed", zap.String("path", scanPath), zap.Error(err))
		}
	}
	return nil
}

// reconcile walks one source directory, inserting newly discovered cards
// and deleting orphans no longer present in any file.
func (s *Syncer) reconcile(source storage.Source, scanPath string, now time.Time) error {
	found := make(map[string]bool)
	var inserted, parseErrors int

	walkErr := filepath.WalkDir(scanPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}

		fileCards, parseErr := parser.ParseFile(path)
		if parseErr != nil {
			parseErrors++
			s.logger.Warn("parse failed", zap.String("file", path), zap.Error(parseErr))
		}
		for _, card := range fileCards {
			card.Hash = knol.Hash(card)
			found[card.Hash] = true
			stored, err := s.fileCard(card, source.ID, now)
			if err != nil {
				parseErrors++
				s.logger.Warn("failed to store card", zap.String("hash", card.Hash), zap.Error(err))
				continue
			}
			if stored {
				inserted++
			}
		}
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("walking %s: %w", scanPath, walkErr)
	}

	dbCards, err := s.db.GetCardsBySourceID(source.ID)
	if err != nil {
		return fmt.Errorf("getting cards for source %d: %w", source.ID, err)
	}
	var orphans int
	for _, dbCard := range dbCards {
		if found[dbCard.Hash] {
			continue
		}
		orphans++
		if err := s.db.DeleteCardByHash(dbCard.Hash); err != nil {
			s.logger.Warn("failed to delete orphaned card", zap.String("hash", dbCard.Hash), zap.Error(err))
		}
	}

	if err := s.db.UpdateSourceLastScanned(source.ID, now); err != nil {
		s.logger.Warn("failed to stamp source", zap.Int64("source_id", source.ID), zap.Error(err))
	}

	s.logger.Info("reconciliation complete",
		zap.String("path", scanPath),
		zap.Int("found", len(found)),
		zap.Int("inserted", inserted),
		zap.Int("orphaned_deleted", orphans),
		zap.Int("errors", parseErrors),
	)
	return nil
}

// fileCard inserts a card unless its hash is already stored, creating the
// target deck on first use. It reports whether a new card was inserted.
func (s *Syncer) fileCard(card domain.Card, sourceID int64, now time.Time) (bool, error) {
	existing, err := s.db.FindCardByHash(card.Hash)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	deckName := card.Deck
	if deckName == "" {
		deckName = DefaultDeck
	}
	deck, err := s.db.GetOrCreateDeck(deckName, now)
	if err != nil {
		return false, err
	}
	if err := s.db.InsertCard(card, deck.ID, sourceID, now); err != nil {
		return false, err
	}
	return true, nil
}

// gitURLToLocalPath maps a git URL (https or scp-style) to a stable clone
// location under baseDir.
func gitURLToLocalPath(baseDir, repoURL string) (string, error) {
	parsed, err := url.Parse(repoURL)
	if err == nil && (parsed.Scheme == "https" || parsed.Scheme == "http") {
		return filepath.Join(baseDir, parsed.Host, strings.TrimSuffix(parsed.Path, ".git")), nil
	}

	// scp-style: git@host:owner/repo.git
	if strings.Contains(repoURL, "@") {
		parts := strings.SplitN(repoURL, ":", 2)
		if len(parts) == 2 {
			hostAndUser := strings.SplitN(parts[0], "@", 2)
			if len(hostAndUser) == 2 {
				return filepath.Join(baseDir, hostAndUser[1], strings.TrimSuffix(parts[1], ".git")), nil
			}
		}
	}
	return "", fmt.Errorf("could not parse git URL: %s", repoURL)
}
