package httpapi

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"tokodesk/backend/internal/domain"
)

type userStoreStub struct {
	mu      sync.Mutex
	users   map[string]domain.UserAccount
	updates int
}

func (s *userStoreStub) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users == nil {
		s.users = make(map[string]domain.UserAccount)
	}
	s.users[user.Username] = user
	return nil
}

func (s *userStoreStub) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	return out, nil
}

func (s *userStoreStub) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.users[username]
	user.Password = password
	s.users[username] = user
	s.updates++
	return nil
}

func seededUserStore() *userStoreStub {
	return &userStoreStub{
		users: map[string]domain.UserAccount{
			"admin": {
				Username:  "admin",
				Password:  "admin123",
				Role:      "admin",
				Active:    true,
				CreatedAt: time.Now().UTC(),
			},
		},
	}
}

func TestAuthManagerUpgradesLegacyPlainPassword(t *testing.T) {
	store := seededUserStore()

	manager := NewAuthManager("test-secret", time.Hour, store)
	_, err := manager.Login(domain.LoginRequest{
		Username: "admin",
		Password: "admin123",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	users, err := store.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users failed: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("expected 1 user, got %d", len(users))
	}
	if users[0].Password == "admin123" {
		t.Fatalf("expected password to be upgraded from plain-text")
	}
	if !strings.HasPrefix(users[0].Password, "$2") {
		t.Fatalf("expected bcrypt password hash, got %s", users[0].Password)
	}
}

func TestParseTokenRoundTrip(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, seededUserStore())

	resp, err := manager.Login(domain.LoginRequest{Username: "admin", Password: "admin123"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	actor, err := manager.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token failed: %v", err)
	}
	if actor.Username != "admin" || actor.Role != "admin" {
		t.Fatalf("unexpected actor %+v", actor)
	}

	if _, err := manager.ParseToken(resp.AccessToken + "x"); err == nil {
		t.Fatalf("expected tampered token to be rejected")
	}

	other := NewAuthManager("different-secret", time.Hour, seededUserStore())
	if _, err := other.ParseToken(resp.AccessToken); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}
}

func TestCreateStaffStoresPasswordHash(t *testing.T) {
	store := seededUserStore()
	manager := NewAuthManager("test-secret", time.Hour, store)

	staff, err := manager.CreateStaff(context.Background(), domain.StaffCreateRequest{
		Username: "agentbaru",
		Password: "pass1234",
		Role:     "agent",
	})
	if err != nil {
		t.Fatalf("create staff failed: %v", err)
	}
	if staff.Username != "agentbaru" || staff.Role != "agent" {
		t.Fatalf("unexpected staff %+v", staff)
	}

	users, err := store.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users failed: %v", err)
	}
	var found *domain.UserAccount
	for i := range users {
		if users[i].Username == "agentbaru" {
			found = &users[i]
			break
		}
	}
	if found == nil {
		t.Fatalf("expected staff user to be saved")
	}
	if found.Password == "pass1234" {
		t.Fatalf("expected staff password to be hashed")
	}
	if !strings.HasPrefix(found.Password, "$2") {
		t.Fatalf("expected bcrypt hash prefix, got %s", found.Password)
	}

	if _, err := manager.Login(domain.LoginRequest{Username: "agentbaru", Password: "pass1234"}); err != nil {
		t.Fatalf("login with created staff failed: %v", err)
	}
}

func TestCreateStaffValidation(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, seededUserStore())

	cases := []domain.StaffCreateRequest{
		{Username: "ab", Password: "pass1234"},
		{Username: "validname", Password: "short"},
		{Username: "validname", Password: "pass1234", Role: "superuser"},
		{Username: "admin", Password: "pass1234"},
	}
	for _, req := range cases {
		if _, err := manager.CreateStaff(context.Background(), req); err == nil {
			t.Fatalf("expected rejection for %+v", req)
		}
	}
}

func TestCreateStaffDefaultsToCashierRole(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, seededUserStore())

	staff, err := manager.CreateStaff(context.Background(), domain.StaffCreateRequest{
		Username: "kasirbaru",
		Password: "pass1234",
	})
	if err != nil {
		t.Fatalf("create staff failed: %v", err)
	}
	if staff.Role != "cashier" {
		t.Fatalf("expected default cashier role, got %s", staff.Role)
	}
}

func TestListStaffSortedByUsername(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, seededUserStore())

	if _, err := manager.CreateStaff(context.Background(), domain.StaffCreateRequest{Username: "zagent", Password: "pass1234", Role: "agent"}); err != nil {
		t.Fatalf("create staff: %v", err)
	}

	staff, err := manager.ListStaff(context.Background())
	if err != nil {
		t.Fatalf("list staff: %v", err)
	}
	if len(staff) != 2 {
		t.Fatalf("expected 2 staff users, got %d", len(staff))
	}
	if staff[0].Username != "admin" || staff[1].Username != "zagent" {
		t.Fatalf("expected username sort, got %+v", staff)
	}
}
