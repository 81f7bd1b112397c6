// Package migration applies versioned schema files to a database.
//
// Migration files are named {version}_{description}.sql (for example
// "001_documents.sql") and are read from an fs.FS, usually an embedded
// directory. Applied versions are tracked in a schema_migrations table whose
// shape is owned by the driver specific Executor.
//
// Example usage:
//
//	runner := migration.NewRunner(executor, logger)
//	if err := runner.Run(ctx, migrationsFS); err != nil {
//		return err
//	}
package migration
