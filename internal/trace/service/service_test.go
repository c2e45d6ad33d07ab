package service

import (
	"testing"

	"github.com/cassianoaxe/endurancy/internal/shared/storage"
	"github.com/cassianoaxe/endurancy/internal/trace/repository"
	"github.com/cassianoaxe/endurancy/internal/trace/testutil"
	"gorm.io/gorm"
)

func newTestServices(t *testing.T) (*Services, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	store, err := storage.New(storage.Config{})
	if err != nil {
		t.Fatalf("init storage: %v", err)
	}
	repos := repository.NewRepositories(db)
	return NewServices(repos, Deps{DB: db, Store: store}), db
}

func testActor(roles ...string) Actor {
	return Actor{
		UserID:   "test-user-001",
		UserName: "Test Admin",
		OrgID:    testutil.TestOrgID,
		IP:       "127.0.0.1",
		Roles:    roles,
	}
}
