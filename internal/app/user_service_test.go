package app_test

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/stackmesh/entitybus/internal/app"
	"github.com/stackmesh/entitybus/internal/domain"
	"github.com/stackmesh/entitybus/internal/domain/user"
)

func validUserNew() user.New {
	return user.New{
		Email:    "ada@example.com",
		Name:     "Ada",
		Password: "correct horse",
	}
}

// storedUser is the canonical existing user for precondition tests. The
// hash corresponds to the password "correct horse".
func storedUser(t *testing.T) user.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hashing fixture password: %v", err)
	}
	return user.User{
		ID:       "u1",
		Email:    "ada@example.com",
		Name:     "Ada",
		Password: string(hash),
	}
}

// --- Create ---

func TestUserCreate_Success(t *testing.T) {
	t.Parallel()

	users := &fakeCollection[user.User]{
		createFn: func(_ context.Context, doc *user.User) (*user.User, error) {
			created := *doc
			created.ID = "u1"
			return &created, nil
		},
	}
	pub := &fakePublisher{}
	svc := app.NewUserService(users, pub, nil)

	got, err := svc.Create(context.Background(), validUserNew())
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if got.ID != "u1" {
		t.Errorf("ID = %q, want %q", got.ID, "u1")
	}
	if got.Password != "" {
		t.Errorf("Password = %q, want redacted", got.Password)
	}

	events := pub.published()
	if len(events) != 1 {
		t.Fatalf("published %d events, want 1", len(events))
	}
	if events[0].event != user.EventCreated {
		t.Errorf("event = %q, want %q", events[0].event, user.EventCreated)
	}
	if events[0].key != "u1" {
		t.Errorf("event key = %q, want %q", events[0].key, "u1")
	}
	payload, ok := events[0].payload.(user.User)
	if !ok {
		t.Fatalf("payload type = %T, want user.User", events[0].payload)
	}
	if payload.Password != "" {
		t.Error("event payload carries the password hash, want redacted")
	}
}

func TestUserCreate_HashesPassword(t *testing.T) {
	t.Parallel()

	var stored user.User
	users := &fakeCollection[user.User]{
		createFn: func(_ context.Context, doc *user.User) (*user.User, error) {
			stored = *doc
			stored.ID = "u1"
			return &stored, nil
		},
	}
	svc := app.NewUserService(users, &fakePublisher{}, nil)

	n := validUserNew()
	if _, err := svc.Create(context.Background(), n); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if stored.Password == n.Password {
		t.Fatal("stored password equals the plaintext, want bcrypt hash")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte(n.Password)); err != nil {
		t.Errorf("stored hash does not match the plaintext: %v", err)
	}
}

func TestUserCreate_InvalidInput(t *testing.T) {
	t.Parallel()

	users := &fakeCollection[user.User]{}
	pub := &fakePublisher{}
	svc := app.NewUserService(users, pub, nil)

	_, err := svc.Create(context.Background(), user.New{Email: "bad"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Create() = %v, want ErrValidation", err)
	}

	if users.creates != 0 {
		t.Errorf("store writes = %d, want 0", users.creates)
	}
	if len(pub.published()) != 0 {
		t.Errorf("published %d events, want 0", len(pub.published()))
	}
}

func TestUserCreate_DuplicateEmail(t *testing.T) {
	t.Parallel()

	existing := storedUser(t)
	users := &fakeCollection[user.User]{
		findOneFn: func(_ context.Context, _ domain.Filter) (*user.User, error) {
			return &existing, nil
		},
	}
	pub := &fakePublisher{}
	svc := app.NewUserService(users, pub, nil)

	_, err := svc.Create(context.Background(), validUserNew())
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("Create() = %v, want ErrConflict", err)
	}

	if users.creates != 0 {
		t.Errorf("store writes = %d, want 0", users.creates)
	}
	if len(pub.published()) != 0 {
		t.Errorf("published %d events, want 0", len(pub.published()))
	}
}

func TestUserCreate_StoreFailure_NoEvent(t *testing.T) {
	t.Parallel()

	users := &fakeCollection[user.User]{
		createFn: func(context.Context, *user.User) (*user.User, error) {
			return nil, domain.Unexpectedf(errors.New("connection reset"), "inserting users document")
		},
	}
	pub := &fakePublisher{}
	svc := app.NewUserService(users, pub, nil)

	_, err := svc.Create(context.Background(), validUserNew())
	if !errors.Is(err, domain.ErrUnexpected) {
		t.Fatalf("Create() = %v, want ErrUnexpected", err)
	}

	if len(pub.published()) != 0 {
		t.Errorf("published %d events, want 0 after failed write", len(pub.published()))
	}
}

func TestUserCreate_PublishFailureDoesNotFailCommand(t *testing.T) {
	t.Parallel()

	users := &fakeCollection[user.User]{
		createFn: func(_ context.Context, doc *user.User) (*user.User, error) {
			created := *doc
			created.ID = "u1"
			return &created, nil
		},
	}
	pub := &fakePublisher{err: errors.New("broker unavailable")}
	svc := app.NewUserService(users, pub, nil)

	got, err := svc.Create(context.Background(), validUserNew())
	if err != nil {
		t.Fatalf("Create() error: %v, want nil despite publish failure", err)
	}
	if got == nil || got.ID != "u1" {
		t.Fatalf("Create() = %+v, want created user", got)
	}
}

// --- Update ---

func TestUserUpdate_Success(t *testing.T) {
	t.Parallel()

	existing := storedUser(t)
	name := "Grace"
	users := &fakeCollection[user.User]{
		findOneFn: func(_ context.Context, _ domain.Filter) (*user.User, error) {
			return &existing, nil
		},
		updateFn: func(_ context.Context, _ domain.Filter, patch domain.Patch) (*user.User, error) {
			updated := existing
			updated.Name = patch["name"].(string)
			return &updated, nil
		},
	}
	pub := &fakePublisher{}
	svc := app.NewUserService(users, pub, nil)

	got, err := svc.Update(context.Background(), "u1", user.Update{Name: &name})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if got.Name != "Grace" {
		t.Errorf("Name = %q, want %q", got.Name, "Grace")
	}
	if got.Password != "" {
		t.Errorf("Password = %q, want redacted", got.Password)
	}

	events := pub.published()
	if len(events) != 1 {
		t.Fatalf("published %d events, want 1", len(events))
	}
	if events[0].event != user.EventUpdated {
		t.Errorf("event = %q, want %q", events[0].event, user.EventUpdated)
	}
}

func TestUserUpdate_NotFound_NoWriteNoEvent(t *testing.T) {
	t.Parallel()

	users := &fakeCollection[user.User]{}
	pub := &fakePublisher{}
	svc := app.NewUserService(users, pub, nil)

	name := "Grace"
	_, err := svc.Update(context.Background(), "missing", user.Update{Name: &name})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Update() = %v, want ErrNotFound", err)
	}

	if users.updates != 0 {
		t.Errorf("store writes = %d, want 0", users.updates)
	}
	if len(pub.published()) != 0 {
		t.Errorf("published %d events, want 0", len(pub.published()))
	}
}

func TestUserUpdate_InvalidInput(t *testing.T) {
	t.Parallel()

	users := &fakeCollection[user.User]{}
	pub := &fakePublisher{}
	svc := app.NewUserService(users, pub, nil)

	_, err := svc.Update(context.Background(), "u1", user.Update{})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Update() = %v, want ErrValidation for empty update", err)
	}
	if users.updates != 0 {
		t.Errorf("store writes = %d, want 0", users.updates)
	}
}

func TestUserUpdate_EmailTaken(t *testing.T) {
	t.Parallel()

	existing := storedUser(t)
	other := storedUser(t)
	other.ID = "u2"
	other.Email = "grace@example.com"

	users := &fakeCollection[user.User]{
		findOneFn: func(_ context.Context, filter domain.Filter) (*user.User, error) {
			if email, ok := filter["email"]; ok {
				if email == other.Email {
					return &other, nil
				}
				return nil, domain.ErrNotFound
			}
			return &existing, nil
		},
	}
	pub := &fakePublisher{}
	svc := app.NewUserService(users, pub, nil)

	taken := other.Email
	_, err := svc.Update(context.Background(), "u1", user.Update{Email: &taken})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("Update() = %v, want ErrConflict", err)
	}

	if users.updates != 0 {
		t.Errorf("store writes = %d, want 0", users.updates)
	}
	if len(pub.published()) != 0 {
		t.Errorf("published %d events, want 0", len(pub.published()))
	}
}

func TestUserUpdate_UnchangedEmailSkipsUniquenessCheck(t *testing.T) {
	t.Parallel()

	existing := storedUser(t)
	users := &fakeCollection[user.User]{
		findOneFn: func(_ context.Context, filter domain.Filter) (*user.User, error) {
			if _, ok := filter["email"]; ok {
				t.Error("uniqueness lookup for an unchanged email")
			}
			return &existing, nil
		},
		updateFn: func(context.Context, domain.Filter, domain.Patch) (*user.User, error) {
			return &existing, nil
		},
	}
	svc := app.NewUserService(users, &fakePublisher{}, nil)

	same := existing.Email
	if _, err := svc.Update(context.Background(), "u1", user.Update{Email: &same}); err != nil {
		t.Fatalf("Update() error: %v", err)
	}
}

func TestUserUpdate_PasswordRehashed(t *testing.T) {
	t.Parallel()

	existing := storedUser(t)
	var gotPatch domain.Patch
	users := &fakeCollection[user.User]{
		findOneFn: func(_ context.Context, _ domain.Filter) (*user.User, error) {
			return &existing, nil
		},
		updateFn: func(_ context.Context, _ domain.Filter, patch domain.Patch) (*user.User, error) {
			gotPatch = patch
			return &existing, nil
		},
	}
	svc := app.NewUserService(users, &fakePublisher{}, nil)

	newPassword := "another secret"
	if _, err := svc.Update(context.Background(), "u1", user.Update{Password: &newPassword}); err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	hash, ok := gotPatch["password"].(string)
	if !ok {
		t.Fatalf("patch[password] = %v, want hashed string", gotPatch["password"])
	}
	if hash == newPassword {
		t.Fatal("patch carries the plaintext password, want bcrypt hash")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(newPassword)); err != nil {
		t.Errorf("patched hash does not match the plaintext: %v", err)
	}
}

func TestUserUpdate_StoreFailure_NoEvent(t *testing.T) {
	t.Parallel()

	existing := storedUser(t)
	users := &fakeCollection[user.User]{
		findOneFn: func(_ context.Context, _ domain.Filter) (*user.User, error) {
			return &existing, nil
		},
		updateFn: func(context.Context, domain.Filter, domain.Patch) (*user.User, error) {
			return nil, domain.Unexpectedf(errors.New("connection reset"), "updating users document")
		},
	}
	pub := &fakePublisher{}
	svc := app.NewUserService(users, pub, nil)

	name := "Grace"
	_, err := svc.Update(context.Background(), "u1", user.Update{Name: &name})
	if !errors.Is(err, domain.ErrUnexpected) {
		t.Fatalf("Update() = %v, want ErrUnexpected", err)
	}
	if len(pub.published()) != 0 {
		t.Errorf("published %d events, want 0 after failed write", len(pub.published()))
	}
}

// --- Delete ---

func TestUserDelete_Success(t *testing.T) {
	t.Parallel()

	existing := storedUser(t)
	users := &fakeCollection[user.User]{
		findOneFn: func(_ context.Context, _ domain.Filter) (*user.User, error) {
			return &existing, nil
		},
		deleteFn: func(context.Context, domain.Filter) error {
			return nil
		},
	}
	pub := &fakePublisher{}
	svc := app.NewUserService(users, pub, nil)

	if err := svc.Delete(context.Background(), "u1"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}

	events := pub.published()
	if len(events) != 1 {
		t.Fatalf("published %d events, want 1", len(events))
	}
	if events[0].event != user.EventDeleted {
		t.Errorf("event = %q, want %q", events[0].event, user.EventDeleted)
	}
	if events[0].key != "u1" {
		t.Errorf("event key = %q, want %q", events[0].key, "u1")
	}
}

func TestUserDelete_NotFound_NoEvent(t *testing.T) {
	t.Parallel()

	users := &fakeCollection[user.User]{}
	pub := &fakePublisher{}
	svc := app.NewUserService(users, pub, nil)

	err := svc.Delete(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Delete() = %v, want ErrNotFound", err)
	}
	if users.deletes != 0 {
		t.Errorf("store deletes = %d, want 0", users.deletes)
	}
	if len(pub.published()) != 0 {
		t.Errorf("published %d events, want 0", len(pub.published()))
	}
}

// --- ValidateCredentials ---

func TestValidateCredentials_Success(t *testing.T) {
	t.Parallel()

	existing := storedUser(t)
	users := &fakeCollection[user.User]{
		findOneFn: func(_ context.Context, _ domain.Filter) (*user.User, error) {
			return &existing, nil
		},
	}
	svc := app.NewUserService(users, &fakePublisher{}, nil)

	got, err := svc.ValidateCredentials(context.Background(), existing.Email, "correct horse")
	if err != nil {
		t.Fatalf("ValidateCredentials() error: %v", err)
	}
	if got.ID != existing.ID {
		t.Errorf("ID = %q, want %q", got.ID, existing.ID)
	}
	if got.Password != "" {
		t.Errorf("Password = %q, want redacted", got.Password)
	}
}

func TestValidateCredentials_FailuresIndistinguishable(t *testing.T) {
	t.Parallel()

	existing := storedUser(t)
	users := &fakeCollection[user.User]{
		findOneFn: func(_ context.Context, filter domain.Filter) (*user.User, error) {
			if filter["email"] == existing.Email {
				return &existing, nil
			}
			return nil, domain.ErrNotFound
		},
	}
	svc := app.NewUserService(users, &fakePublisher{}, nil)

	_, unknownErr := svc.ValidateCredentials(context.Background(), "nobody@example.com", "correct horse")
	_, wrongErr := svc.ValidateCredentials(context.Background(), existing.Email, "wrong password")

	if !errors.Is(unknownErr, domain.ErrValidation) {
		t.Fatalf("unknown email error = %v, want ErrValidation", unknownErr)
	}
	if !errors.Is(wrongErr, domain.ErrValidation) {
		t.Fatalf("wrong password error = %v, want ErrValidation", wrongErr)
	}
	if unknownErr.Error() != wrongErr.Error() {
		t.Errorf("error messages differ: %q vs %q, want identical so callers cannot probe for registered emails",
			unknownErr.Error(), wrongErr.Error())
	}
}

// --- Read operations ---

func TestUserList_RedactsPasswords(t *testing.T) {
	t.Parallel()

	existing := storedUser(t)
	users := &fakeCollection[user.User]{
		findFn: func(context.Context, domain.Filter) ([]user.User, error) {
			return []user.User{existing}, nil
		},
	}
	svc := app.NewUserService(users, &fakePublisher{}, nil)

	got, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("List() returned %d users, want 1", len(got))
	}
	if got[0].Password != "" {
		t.Errorf("Password = %q, want redacted", got[0].Password)
	}
}

func TestUserGet_NotFound(t *testing.T) {
	t.Parallel()

	svc := app.NewUserService(&fakeCollection[user.User]{}, &fakePublisher{}, nil)

	_, err := svc.Get(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get() = %v, want ErrNotFound", err)
	}
}
