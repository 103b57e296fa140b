// Package database provides the data access layer for the catalog.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Connection setup, migrations, permission seeding
//	├── authors/         # Author CRUD with the delete guard
//	├── books/           # Books and their genre/language links
//	├── instances/       # Lendable copies and loan state
//	├── reviews/         # Book reviews
//	├── taxonomy/        # Genres and languages (one generic repository)
//	├── users/           # Accounts and permission grants
//	└── audit/           # Audit trail
//
// # Using Sub-packages
//
//	db, err := database.NewDatabase(cfg.Database)
//
//	authorsRepo := authors.NewRepository(db.DB)
//	genresRepo := taxonomy.NewGenreRepository(db.DB)
//
//	author, err := authorsRepo.Get(ctx, 42)
//
// # Errors
//
// Repositories pass gorm errors through Translate, so callers see
// catalog.ErrNotFound, catalog.ErrDuplicateName and
// catalog.ErrReferentialRestrict regardless of the driver.
//
// # Adding a New Domain
//
//  1. Create a new sub-package: internal/database/<name>/
//  2. Define a Repository struct with a *gorm.DB field
//  3. Add NewRepository(db *gorm.DB) constructor
//  4. Add compile-time interface check: var _ catalog.SomeStore = (*Repository)(nil)
package database
