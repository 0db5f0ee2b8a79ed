package rules

import (
	"context"
	"log/slog"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/warden-mail/warden/internal/logging"
	"github.com/warden-mail/warden/internal/mailbox"
)

// Store persists rules in a local SQLite database through gorm.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// OpenDB opens (and migrates) the rule database at the given path.
// Use ":memory:" for an ephemeral database in tests.
func OpenDB(path string, logger *slog.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logging.NewGormAdapter(logger),
	})
	if err != nil {
		return nil, mailbox.NewBackendError(mailbox.CodeRuleStorageError, "failed to open rule database: %v", err)
	}
	return db, nil
}

// NewStore creates a rule store on the given database handle and
// migrates the rules table.
func NewStore(db *gorm.DB, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := db.AutoMigrate(&Rule{}); err != nil {
		return nil, mailbox.NewBackendError(mailbox.CodeRuleStorageError, "failed to migrate rules table: %v", err)
	}
	return &Store{
		db:     db,
		logger: logging.WithComponent(logger, "rules"),
	}, nil
}

// List returns every stored rule ordered by creation time.
func (s *Store) List(ctx context.Context) ([]Rule, error) {
	var rules []Rule
	if err := s.db.WithContext(ctx).Order("created_at").Find(&rules).Error; err != nil {
		return nil, mailbox.NewBackendError(mailbox.CodeRuleStorageError, "failed to load rules: %v", err)
	}
	return rules, nil
}

// Insert stores a new rule. A name collision surfaces as a storage
// error since rule names are unique.
func (s *Store) Insert(ctx context.Context, rule *Rule) error {
	if err := s.db.WithContext(ctx).Create(rule).Error; err != nil {
		return mailbox.NewBackendError(mailbox.CodeRuleStorageError, "failed to store rule %q: %v", rule.Name, err)
	}
	s.logger.InfoContext(ctx, "rule stored", logging.Rule(rule.ID), slog.String("name", rule.Name))
	return nil
}

// Delete removes the rule whose ID or name equals the identifier.
// A missing rule is reported as a rule-not-found error.
func (s *Store) Delete(ctx context.Context, identifier string) error {
	res := s.db.WithContext(ctx).Where("id = ? OR name = ?", identifier, identifier).Delete(&Rule{})
	if res.Error != nil {
		return mailbox.NewBackendError(mailbox.CodeRuleStorageError, "failed to delete rule %q: %v", identifier, res.Error)
	}
	if res.RowsAffected == 0 {
		return mailbox.NewBackendError(mailbox.CodeRuleNotFound, "rule %q not found", identifier)
	}
	s.logger.InfoContext(ctx, "rule deleted", logging.Rule(identifier))
	return nil
}
