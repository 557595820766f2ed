package invite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/chipin/chipin/internal/ledger"
	"github.com/chipin/chipin/internal/models"
	"github.com/chipin/chipin/internal/notify"
	"github.com/chipin/chipin/internal/storage"
	"github.com/chipin/chipin/internal/storage/sqlite"
)

func setupService(t *testing.T, ttl time.Duration) (*Service, storage.Store) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "chipin-invite-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := sqlite.New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	emitter := notify.NewEmitter(store, notify.LogNotifier{})
	return NewService(store, emitter, ttl), store
}

func createUser(t *testing.T, store storage.Store, id, email string) {
	t.Helper()
	user := &models.User{ID: id, Email: email, DisplayName: id}
	if err := store.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("failed to create user %s: %v", id, err)
	}
}

func createGroup(t *testing.T, store storage.Store, adminID string) *models.Group {
	t.Helper()
	group := &models.Group{Name: "Trip", Currency: "USD", CreatedBy: adminID}
	if err := store.CreateGroup(context.Background(), group); err != nil {
		t.Fatalf("failed to create group: %v", err)
	}
	return group
}

func TestCreateInvitation(t *testing.T) {
	svc, store := setupService(t, 0)
	ctx := context.Background()

	createUser(t, store, "alice", "alice@example.com")
	createUser(t, store, "bob", "bob@example.com")
	group := createGroup(t, store, "alice")
	if _, err := store.AddMember(ctx, &models.Member{
		GroupID: group.ID, UserID: "bob", Role: models.RoleMember, CreatedAt: time.Now().Unix(),
	}); err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}

	t.Run("admin invites a new email", func(t *testing.T) {
		result, err := svc.CreateInvitation(ctx, group.ID, "alice", "Carol@Example.com", "")
		if err != nil {
			t.Fatalf("CreateInvitation failed: %v", err)
		}
		inv := result.Invitation
		if inv.Email != "carol@example.com" {
			t.Errorf("email = %s, want lowercased carol@example.com", inv.Email)
		}
		if inv.Role != models.RoleMember {
			t.Errorf("role = %s, want default member", inv.Role)
		}
		if inv.Status != models.InviteStatusPending {
			t.Errorf("status = %s, want pending", inv.Status)
		}
		if len(inv.Token) != 64 {
			t.Errorf("token length = %d, want 64 hex chars", len(inv.Token))
		}
		if inv.ExpiresAt <= inv.CreatedAt {
			t.Error("expiry not after creation")
		}
	})

	t.Run("duplicate active invitation conflicts", func(t *testing.T) {
		_, err := svc.CreateInvitation(ctx, group.ID, "alice", "carol@example.com", "")
		if !errors.Is(err, ledger.ErrStateConflict) {
			t.Errorf("got %v, want ErrStateConflict", err)
		}
	})

	t.Run("non-admin may not invite", func(t *testing.T) {
		_, err := svc.CreateInvitation(ctx, group.ID, "bob", "dave@example.com", "")
		if !errors.Is(err, ledger.ErrAuthorization) {
			t.Errorf("got %v, want ErrAuthorization", err)
		}
	})

	t.Run("existing member may not be invited", func(t *testing.T) {
		_, err := svc.CreateInvitation(ctx, group.ID, "alice", "bob@example.com", "")
		if !errors.Is(err, ledger.ErrStateConflict) {
			t.Errorf("got %v, want ErrStateConflict", err)
		}
	})

	t.Run("unknown role is rejected", func(t *testing.T) {
		_, err := svc.CreateInvitation(ctx, group.ID, "alice", "dave@example.com", "owner")
		if !errors.Is(err, ledger.ErrValidation) {
			t.Errorf("got %v, want ErrValidation", err)
		}
	})

	t.Run("empty email is rejected", func(t *testing.T) {
		_, err := svc.CreateInvitation(ctx, group.ID, "alice", "  ", "")
		if !errors.Is(err, ledger.ErrValidation) {
			t.Errorf("got %v, want ErrValidation", err)
		}
	})
}

func TestAcceptInvitation(t *testing.T) {
	t.Run("full lifecycle creates the membership", func(t *testing.T) {
		svc, store := setupService(t, 0)
		ctx := context.Background()

		createUser(t, store, "alice", "alice@example.com")
		createUser(t, store, "carol", "carol@example.com")
		group := createGroup(t, store, "alice")

		created, err := svc.CreateInvitation(ctx, group.ID, "alice", "carol@example.com", "")
		if err != nil {
			t.Fatalf("CreateInvitation failed: %v", err)
		}

		result, err := svc.AcceptInvitation(ctx, created.Invitation.Token, "carol")
		if err != nil {
			t.Fatalf("AcceptInvitation failed: %v", err)
		}
		if result.GroupID != group.ID {
			t.Errorf("group ID = %s, want %s", result.GroupID, group.ID)
		}
		if !result.MemberCreated {
			t.Error("MemberCreated = false, want true")
		}

		member, err := store.GetMember(ctx, group.ID, "carol")
		if err != nil {
			t.Fatalf("GetMember failed: %v", err)
		}
		if member.Role != models.RoleMember {
			t.Errorf("role = %s, want member", member.Role)
		}

		// Terminal state: a second accept conflicts.
		if _, err := svc.AcceptInvitation(ctx, created.Invitation.Token, "carol"); !errors.Is(err, ledger.ErrStateConflict) {
			t.Errorf("got %v, want ErrStateConflict", err)
		}
	})

	t.Run("email mismatch is rejected", func(t *testing.T) {
		svc, store := setupService(t, 0)
		ctx := context.Background()

		createUser(t, store, "alice", "alice@example.com")
		createUser(t, store, "mallory", "mallory@example.com")
		group := createGroup(t, store, "alice")

		created, err := svc.CreateInvitation(ctx, group.ID, "alice", "carol@example.com", "")
		if err != nil {
			t.Fatalf("CreateInvitation failed: %v", err)
		}

		_, err = svc.AcceptInvitation(ctx, created.Invitation.Token, "mallory")
		if !errors.Is(err, ledger.ErrAuthorization) {
			t.Errorf("got %v, want ErrAuthorization", err)
		}
		if _, err := store.GetMember(ctx, group.ID, "mallory"); !errors.Is(err, storage.ErrNotFound) {
			t.Error("rejected accept still created a membership")
		}
	})

	t.Run("expired invitation rejects and flips the row", func(t *testing.T) {
		svc, store := setupService(t, time.Second)
		ctx := context.Background()

		createUser(t, store, "alice", "alice@example.com")
		createUser(t, store, "carol", "carol@example.com")
		group := createGroup(t, store, "alice")

		created, err := svc.CreateInvitation(ctx, group.ID, "alice", "carol@example.com", "")
		if err != nil {
			t.Fatalf("CreateInvitation failed: %v", err)
		}

		// Move the clock past expiry instead of sleeping.
		svc.now = func() int64 { return created.Invitation.ExpiresAt + 1 }

		_, err = svc.AcceptInvitation(ctx, created.Invitation.Token, "carol")
		if !errors.Is(err, ledger.ErrStateConflict) {
			t.Errorf("got %v, want ErrStateConflict", err)
		}

		inv, err := store.GetInvitationByToken(ctx, created.Invitation.Token)
		if err != nil {
			t.Fatalf("GetInvitationByToken failed: %v", err)
		}
		if inv.Status != models.InviteStatusExpired {
			t.Errorf("status = %s, want expired (flipped on read)", inv.Status)
		}
		if _, err := store.GetMember(ctx, group.ID, "carol"); !errors.Is(err, storage.ErrNotFound) {
			t.Error("expired accept still created a membership")
		}
	})

	t.Run("accept when already a member is a benign no-op", func(t *testing.T) {
		svc, store := setupService(t, 0)
		ctx := context.Background()

		createUser(t, store, "alice", "alice@example.com")
		createUser(t, store, "carol", "carol@example.com")
		group := createGroup(t, store, "alice")

		created, err := svc.CreateInvitation(ctx, group.ID, "alice", "carol@example.com", "")
		if err != nil {
			t.Fatalf("CreateInvitation failed: %v", err)
		}
		// Carol joins through another path before accepting.
		if _, err := store.AddMember(ctx, &models.Member{
			GroupID: group.ID, UserID: "carol", Role: models.RoleMember, CreatedAt: time.Now().Unix(),
		}); err != nil {
			t.Fatalf("AddMember failed: %v", err)
		}

		result, err := svc.AcceptInvitation(ctx, created.Invitation.Token, "carol")
		if err != nil {
			t.Fatalf("AcceptInvitation failed: %v", err)
		}
		if result.MemberCreated {
			t.Error("MemberCreated = true for an existing member, want false")
		}

		members, err := store.ListMembers(ctx, group.ID)
		if err != nil {
			t.Fatalf("ListMembers failed: %v", err)
		}
		if len(members) != 2 {
			t.Errorf("got %d members, want 2", len(members))
		}
	})

	t.Run("concurrent accepts have one winner", func(t *testing.T) {
		svc, store := setupService(t, 0)
		ctx := context.Background()

		createUser(t, store, "alice", "alice@example.com")
		createUser(t, store, "carol", "carol@example.com")
		group := createGroup(t, store, "alice")

		created, err := svc.CreateInvitation(ctx, group.ID, "alice", "carol@example.com", "")
		if err != nil {
			t.Fatalf("CreateInvitation failed: %v", err)
		}

		const workers = 6
		wins := 0
		var mu sync.Mutex
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.AcceptInvitation(ctx, created.Invitation.Token, "carol")
				if err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
					return
				}
				if !errors.Is(err, ledger.ErrStateConflict) {
					t.Errorf("loser got %v, want ErrStateConflict", err)
				}
			}()
		}
		wg.Wait()

		if wins != 1 {
			t.Errorf("got %d winners, want exactly 1", wins)
		}
		members, err := store.ListMembers(ctx, group.ID)
		if err != nil {
			t.Fatalf("ListMembers failed: %v", err)
		}
		if len(members) != 2 {
			t.Errorf("got %d members, want 2", len(members))
		}
	})
}

func TestDeclineInvitation(t *testing.T) {
	svc, store := setupService(t, 0)
	ctx := context.Background()

	createUser(t, store, "alice", "alice@example.com")
	createUser(t, store, "carol", "carol@example.com")
	createUser(t, store, "mallory", "mallory@example.com")
	group := createGroup(t, store, "alice")

	created, err := svc.CreateInvitation(ctx, group.ID, "alice", "carol@example.com", "")
	if err != nil {
		t.Fatalf("CreateInvitation failed: %v", err)
	}

	t.Run("only the invitee may decline", func(t *testing.T) {
		err := svc.DeclineInvitation(ctx, created.Invitation.Token, "mallory")
		if !errors.Is(err, ledger.ErrAuthorization) {
			t.Errorf("got %v, want ErrAuthorization", err)
		}
	})

	t.Run("decline is terminal", func(t *testing.T) {
		if err := svc.DeclineInvitation(ctx, created.Invitation.Token, "carol"); err != nil {
			t.Fatalf("DeclineInvitation failed: %v", err)
		}
		err := svc.DeclineInvitation(ctx, created.Invitation.Token, "carol")
		if !errors.Is(err, ledger.ErrStateConflict) {
			t.Errorf("got %v, want ErrStateConflict", err)
		}
		if _, err := store.GetMember(ctx, group.ID, "carol"); !errors.Is(err, storage.ErrNotFound) {
			t.Error("declined invitation still created a membership")
		}
	})

	t.Run("declined email may be invited again", func(t *testing.T) {
		if _, err := svc.CreateInvitation(ctx, group.ID, "alice", "carol@example.com", ""); err != nil {
			t.Errorf("re-invitation after decline failed: %v", err)
		}
	})
}

func TestExpirePending(t *testing.T) {
	svc, store := setupService(t, time.Hour)
	ctx := context.Background()

	createUser(t, store, "alice", "alice@example.com")
	group := createGroup(t, store, "alice")

	created, err := svc.CreateInvitation(ctx, group.ID, "alice", "carol@example.com", "")
	if err != nil {
		t.Fatalf("CreateInvitation failed: %v", err)
	}

	svc.now = func() int64 { return created.Invitation.ExpiresAt + 1 }
	n, err := svc.ExpirePending(ctx)
	if err != nil {
		t.Fatalf("ExpirePending failed: %v", err)
	}
	if n != 1 {
		t.Errorf("swept %d invitations, want 1", n)
	}

	inv, err := store.GetInvitationByToken(ctx, created.Invitation.Token)
	if err != nil {
		t.Fatalf("GetInvitationByToken failed: %v", err)
	}
	if inv.Status != models.InviteStatusExpired {
		t.Errorf("status = %s, want expired", inv.Status)
	}
}
