package database_test

import (
	"context"
	"testing"

	"github.com/fabfab/doc-analyzer/database"
)

func TestEnsureContextSchemaRejectsInvalidDimension(t *testing.T) {
	if err := database.EnsureContextSchema(context.Background(), nil, 0); err == nil {
		t.Fatal("expected error when dimension is not positive")
	}
	if err := database.EnsureContextSchema(context.Background(), nil, -5); err == nil {
		t.Fatal("expected error for negative dimension")
	}
}
