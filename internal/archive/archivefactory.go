package archive

import (
	"fmt"
	"log"
)

func NewArchive(archiveType, connectionString string) (ArchiveService, error) {
	switch archiveType {
	case "sqlite":
		service, err := NewSQLiteArchive(connectionString)
		if err != nil {
			return nil, err
		}
		// Ensure schema exists (idempotent), important for in-memory SQLite
		log.Print("initializing upload archive schema (ensuring tables exist)")
		if err := service.CreateSchema(); err != nil {
			return nil, fmt.Errorf("failed to create upload archive schema: %w", err)
		}
		return service, nil
	default:
		return nil, fmt.Errorf("unsupported archive driver: %s", archiveType)
	}
}
