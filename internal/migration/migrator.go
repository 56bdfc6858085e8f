// ABOUTME: One-shot migration from the legacy JSON files into the vault
// ABOUTME: Backs up first, imports in one transaction, rolls back on failure
package migration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/harper/vault-standalone/internal/legacy"
	"github.com/harper/vault-standalone/internal/storage"
)

// ErrMigration wraps any failure during the import. When it is returned the
// partially-built vault has been destroyed and the legacy files are intact.
var ErrMigration = errors.New("migration failed")

// Report summarizes a completed migration run.
type Report struct {
	Facts       int
	Sessions    int
	Messages    int
	Preferences int
	Orphaned    int
	BackupPath  string
	Skipped     bool
}

// Migrator moves a legacy dataset into the vault exactly once. A second run
// against a vault whose migration marker is set is a no-op.
type Migrator struct {
	logger *slog.Logger

	// failAt aborts the import after the named stage. Test hook only.
	failAt string
}

func New() *Migrator {
	return &Migrator{logger: slog.Default().With("component", "migration")}
}

// Run migrates the legacy files in legacyDir into eng. Every migrated row and
// the completion marker commit in a single transaction; on any failure the
// vault file is destroyed and the untouched legacy files remain the source of
// truth for the next attempt.
func (m *Migrator) Run(ctx context.Context, legacyDir string, eng *storage.Engine, identityID string) (*Report, error) {
	if done, err := eng.GetMeta(ctx, storage.MetaMigrationComplete); err == nil && done == "1" {
		m.logger.Info("migration already complete, skipping")
		return &Report{Skipped: true}, nil
	} else if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: reading migration marker: %v", ErrMigration, err)
	}

	data, err := m.loadLegacy(legacyDir)
	if err != nil {
		return nil, err
	}
	if data.Empty() {
		// Fresh install. Nothing to move, but the marker still has to be set
		// so later runs never re-enter the migration path.
		m.logger.Info("no legacy data found, marking migration complete", "dir", legacyDir)
		if err := m.markComplete(ctx, eng, identityID); err != nil {
			return nil, err
		}
		return &Report{}, nil
	}

	backupPath, err := m.backup(legacyDir)
	if err != nil {
		return nil, fmt.Errorf("%w: backing up legacy files: %v", ErrMigration, err)
	}
	m.logger.Info("legacy files backed up", "path", backupPath)

	report := &Report{BackupPath: backupPath}
	if err := m.importAll(ctx, eng, data, identityID, report); err != nil {
		m.logger.Error("import failed, destroying partial vault", "error", err)
		if destroyErr := eng.Destroy(); destroyErr != nil {
			m.logger.Error("failed to destroy partial vault", "error", destroyErr)
		}
		if restoreErr := m.restore(backupPath, legacyDir); restoreErr != nil {
			m.logger.Error("failed to restore legacy backup", "error", restoreErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrMigration, err)
	}

	m.logger.Info("migration complete",
		"facts", report.Facts,
		"sessions", report.Sessions,
		"messages", report.Messages,
		"preferences", report.Preferences,
		"orphaned_messages", report.Orphaned)
	return report, nil
}

func (m *Migrator) loadLegacy(dir string) (*legacy.Data, error) {
	data, err := legacy.Load(dir)
	if err != nil {
		// A malformed legacy file is a hard stop, never an empty default.
		return nil, fmt.Errorf("%w: %v", ErrMigration, err)
	}
	return data, nil
}

func (m *Migrator) importAll(ctx context.Context, eng *storage.Engine, data *legacy.Data, identityID string, report *Report) error {
	sessions := data.ModelSessions()
	messages, counts := data.ModelMessages()
	facts := data.ModelFacts()
	prefs := data.ModelPreferences()

	known := make(map[string]bool, len(sessions))
	for _, s := range sessions {
		known[s.ID] = true
	}

	return eng.Import(ctx, func(it *storage.ImportTx) error {
		for i := range facts {
			if err := it.InsertFact(&facts[i]); err != nil {
				return err
			}
			report.Facts++
		}
		if err := m.checkpoint("facts"); err != nil {
			return err
		}

		for i := range sessions {
			sessions[i].MessageCount = counts[sessions[i].ID]
			if err := it.InsertSession(&sessions[i]); err != nil {
				return err
			}
			report.Sessions++
		}
		if err := m.checkpoint("sessions"); err != nil {
			return err
		}

		for i := range messages {
			if !known[messages[i].SessionID] {
				m.logger.Warn("skipping orphaned message",
					"id", messages[i].ID, "session_id", messages[i].SessionID)
				report.Orphaned++
				continue
			}
			if err := it.InsertMessage(&messages[i]); err != nil {
				return err
			}
			report.Messages++
		}
		if err := m.checkpoint("messages"); err != nil {
			return err
		}

		for i := range prefs {
			if err := it.InsertPreference(&prefs[i]); err != nil {
				return err
			}
			report.Preferences++
		}

		return m.setMarkers(func(k, v string) error { return it.SetMeta(k, v) }, identityID)
	})
}

// markComplete records the completion marker outside an import, for the
// fresh-install path.
func (m *Migrator) markComplete(ctx context.Context, eng *storage.Engine, identityID string) error {
	err := m.setMarkers(func(k, v string) error { return eng.SetMeta(ctx, k, v) }, identityID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMigration, err)
	}
	return nil
}

func (m *Migrator) setMarkers(set func(k, v string) error, identityID string) error {
	if err := set(storage.MetaMigrationComplete, "1"); err != nil {
		return err
	}
	if err := set(storage.MetaMigratedAt, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return set(storage.MetaIdentityID, identityID)
}

func (m *Migrator) checkpoint(stage string) error {
	if m.failAt == stage {
		return fmt.Errorf("injected failure after %s", stage)
	}
	return nil
}

// backup copies every legacy file into a timestamped sibling directory. The
// originals are never touched; the copy exists so the user can recover even
// if something else later damages the live files.
func (m *Migrator) backup(dir string) (string, error) {
	backupDir := fmt.Sprintf("%s-backup-%s", dir, time.Now().UTC().Format("20060102T150405"))
	if err := os.MkdirAll(backupDir, 0o700); err != nil {
		return "", err
	}
	if err := copyLegacyFiles(dir, backupDir); err != nil {
		return "", err
	}
	return backupDir, nil
}

// restore copies backed-up files over the legacy directory, recreating any
// that went missing since the backup was taken.
func (m *Migrator) restore(backupDir, dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	return copyLegacyFiles(backupDir, dir)
}

func copyLegacyFiles(src, dst string) error {
	names := []string{
		legacy.ProfileFile, legacy.FactsFile, legacy.SessionsFile,
		legacy.MessagesFile, legacy.PreferencesFile,
	}
	for _, name := range names {
		if err := copyFile(filepath.Join(src, name), filepath.Join(dst, name)); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
