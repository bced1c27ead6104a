package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/fraudwatch/server/domain/entities"
	"github.com/fraudwatch/server/domain/repositories"
)

func testDB(t *testing.T) (*UserRepository, *AnalysisRepository) {
	t.Helper()

	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewUserRepository(db).(*UserRepository), NewAnalysisRepository(db).(*AnalysisRepository)
}

func createUser(t *testing.T, users *UserRepository, username, email string) *entities.User {
	t.Helper()
	user := &entities.User{
		Username:       username,
		Email:          email,
		HashedPassword: "$2a$10$fakehashfortest",
	}
	if err := users.Create(context.Background(), user); err != nil {
		t.Fatalf("Create user failed: %v", err)
	}
	return user
}

func TestUserCreateAndGet(t *testing.T) {
	users, _ := testDB(t)
	ctx := context.Background()

	user := createUser(t, users, "maria", "maria@example.com")
	if user.ID == 0 {
		t.Error("user id should be assigned")
	}

	byName, err := users.GetByUsername(ctx, "maria")
	if err != nil {
		t.Fatalf("GetByUsername failed: %v", err)
	}
	if byName.Email != "maria@example.com" {
		t.Errorf("Email = %q", byName.Email)
	}

	byID, err := users.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if byID.Username != "maria" {
		t.Errorf("Username = %q", byID.Username)
	}
}

func TestUserGetMissing(t *testing.T) {
	users, _ := testDB(t)

	if _, err := users.GetByUsername(context.Background(), "nobody"); !errors.Is(err, repositories.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUserDuplicateConflicts(t *testing.T) {
	users, _ := testDB(t)
	ctx := context.Background()

	createUser(t, users, "maria", "maria@example.com")

	dupName := &entities.User{Username: "maria", Email: "other@example.com", HashedPassword: "x"}
	if err := users.Create(ctx, dupName); !errors.Is(err, repositories.ErrConflict) {
		t.Fatalf("duplicate username: err = %v, want ErrConflict", err)
	}

	dupEmail := &entities.User{Username: "otra", Email: "maria@example.com", HashedPassword: "x"}
	if err := users.Create(ctx, dupEmail); !errors.Is(err, repositories.ErrConflict) {
		t.Fatalf("duplicate email: err = %v, want ErrConflict", err)
	}
}

func TestAnalysisListNewestFirst(t *testing.T) {
	users, analyses := testDB(t)
	ctx := context.Background()
	user := createUser(t, users, "maria", "maria@example.com")

	base := time.Now().UTC().Add(-time.Hour)
	for i, text := range []string{"primero", "segundo", "tercero"} {
		a := &entities.Analysis{
			UserID:       user.ID,
			AnalyzedText: text,
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		}
		if err := analyses.Create(ctx, a); err != nil {
			t.Fatalf("Create analysis failed: %v", err)
		}
	}

	records, err := analyses.ListByUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	if records[0].AnalyzedText != "tercero" || records[2].AnalyzedText != "primero" {
		t.Errorf("records not newest first: %q, %q, %q",
			records[0].AnalyzedText, records[1].AnalyzedText, records[2].AnalyzedText)
	}
}

func TestAnalysisNullableFields(t *testing.T) {
	users, analyses := testDB(t)
	ctx := context.Background()
	user := createUser(t, users, "maria", "maria@example.com")

	a := &entities.Analysis{UserID: user.ID, AnalyzedText: ""}
	if err := analyses.Create(ctx, a); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	records, err := analyses.ListByUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Result != nil || records[0].SessionID != nil || records[0].Origin != nil {
		t.Error("nullable fields should round-trip as nil")
	}
}

func TestAnalysisDelete(t *testing.T) {
	users, analyses := testDB(t)
	ctx := context.Background()
	owner := createUser(t, users, "maria", "maria@example.com")
	other := createUser(t, users, "pedro", "pedro@example.com")

	a := &entities.Analysis{UserID: owner.ID, AnalyzedText: "texto"}
	if err := analyses.Create(ctx, a); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := analyses.Delete(ctx, 999, owner.ID); !errors.Is(err, repositories.ErrNotFound) {
		t.Fatalf("missing record: err = %v, want ErrNotFound", err)
	}
	if err := analyses.Delete(ctx, a.ID, other.ID); !errors.Is(err, repositories.ErrNotOwned) {
		t.Fatalf("foreign record: err = %v, want ErrNotOwned", err)
	}
	if err := analyses.Delete(ctx, a.ID, owner.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	records, err := analyses.ListByUser(ctx, owner.ID)
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("got %d records after delete, want 0", len(records))
	}
}
