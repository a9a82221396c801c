package credstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/projectdesk/projectdesk/internal/model"
	"github.com/projectdesk/projectdesk/internal/testutil"
)

func TestUserDocument_RoundTrip(t *testing.T) {
	created := time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)
	doc := newUserDocument(&model.User{
		Username:     "ana",
		Email:        "  Ana@Example.COM ",
		PasswordHash: "hash",
		CreatedAt:    created,
	})

	if doc.Email != "ana@example.com" {
		t.Errorf("email not normalized: %q", doc.Email)
	}

	doc.ID = primitive.NewObjectID()
	u := doc.toModel()
	if u.ID != doc.ID.Hex() {
		t.Errorf("ID = %q, want %q", u.ID, doc.ID.Hex())
	}
	if u.PasswordHash != "hash" || u.Username != "ana" || !u.CreatedAt.Equal(created) {
		t.Errorf("unexpected model: %+v", u)
	}
}

func TestUserRepository_Integration(t *testing.T) {
	uri := testutil.RequireEnv(t, "MONGO_URL")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	connector := NewConnector(uri, testutil.UniqueName("projectdesk_test"), discardLogger())
	db, err := connector.Connect(ctx)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() {
		_ = testutil.DropMongoDatabase(context.Background(), db)
		_ = connector.Close(context.Background())
	})

	repo := NewUserRepository(db)
	if err := repo.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes: %v", err)
	}

	user := testutil.NewTestUser(t, "ana@example.com")
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.ID == "" {
		t.Fatal("expected generated ID")
	}

	got, err := repo.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if got.PasswordHash != "" {
		t.Error("GetUserByID must not return the password hash")
	}
	if got.Email != "ana@example.com" {
		t.Errorf("Email = %q", got.Email)
	}

	byEmail, err := repo.GetUserByEmail(ctx, "ANA@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if byEmail.PasswordHash == "" {
		t.Error("GetUserByEmail should include the password hash for login")
	}

	dup := testutil.NewTestUser(t, "ana@example.com")
	if err := repo.CreateUser(ctx, dup); !errors.Is(err, ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}

	if _, err := repo.GetUserByID(ctx, primitive.NewObjectID().Hex()); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := repo.GetUserByID(ctx, "not-an-object-id"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound for invalid id, got %v", err)
	}
}
