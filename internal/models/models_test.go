package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestRoleOrdering(t *testing.T) {
	if !(RoleNone.Rank() < RoleReader.Rank() && RoleReader.Rank() < RoleAdmin.Rank()) {
		t.Fatalf("expected none < reader < admin, got %d %d %d", RoleNone.Rank(), RoleReader.Rank(), RoleAdmin.Rank())
	}
	if !RoleAdmin.AtLeast(RoleReader) {
		t.Error("expected admin to be at least reader")
	}
	if RoleReader.AtLeast(RoleAdmin) {
		t.Error("expected reader not to be at least admin")
	}
	if RoleNone.Assignable() {
		t.Error("expected none not to be assignable")
	}
	if !RoleReader.Assignable() || !RoleAdmin.Assignable() {
		t.Error("expected reader and admin to be assignable")
	}
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		input   string
		want    Role
		wantErr bool
	}{
		{input: "admin", want: RoleAdmin},
		{input: " READER ", want: RoleReader},
		{input: "none", want: RoleNone},
		{input: "owner", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseRole(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got role %q", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestMembershipDepart(t *testing.T) {
	m := &Membership{Status: MembershipActive, Role: RoleReader}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	if err := m.Depart(at); err != nil {
		t.Fatalf("expected first departure to succeed, got %v", err)
	}
	if m.IsActive() {
		t.Fatal("expected membership to be departed")
	}
	if m.DepartedAt == nil || !m.DepartedAt.Equal(at) {
		t.Fatalf("expected departed at %v, got %v", at, m.DepartedAt)
	}

	if err := m.Depart(at.Add(time.Hour)); err != ErrAlreadyDeparted {
		t.Fatalf("expected ErrAlreadyDeparted, got %v", err)
	}
	if !m.DepartedAt.Equal(at) {
		t.Fatalf("expected departure timestamp to stay %v, got %v", at, m.DepartedAt)
	}
}

func TestRequestStatusResolved(t *testing.T) {
	if RequestOpen.Resolved() {
		t.Error("expected open not to be resolved")
	}
	if !RequestApproved.Resolved() || !RequestDeclined.Resolved() {
		t.Error("expected approved and declined to be resolved")
	}
}

func TestReaderHelpers(t *testing.T) {
	r := &Reader{Username: "alice"}
	if r.DisplayName() != "alice" {
		t.Errorf("expected username fallback, got %q", r.DisplayName())
	}
	r.FirstName = "Alice"
	r.LastName = "Liddell"
	if r.DisplayName() != "Alice Liddell" {
		t.Errorf("expected full name, got %q", r.DisplayName())
	}
	if !r.IsActive() {
		t.Error("expected reader without departure to be active")
	}
	now := time.Now()
	r.DepartedAt = &now
	if r.IsActive() {
		t.Error("expected departed reader to be inactive")
	}
	var missing *Reader
	if missing.IsActive() {
		t.Error("expected nil reader to be inactive")
	}
}

func TestRefreshTokenExpired(t *testing.T) {
	expiresAt := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	token := &RefreshToken{ExpiresAt: expiresAt}

	if token.Expired(expiresAt.Add(-time.Second)) {
		t.Error("expected token to be valid before expiry")
	}
	if !token.Expired(expiresAt) {
		t.Error("expected token to be expired at expiry instant")
	}
}

func TestNotificationViewedBy(t *testing.T) {
	reader := uuid.New()
	n := &Notification{Views: []NotificationView{{ReaderID: reader}}}
	if !n.ViewedBy(reader) {
		t.Error("expected notification to be viewed by reader")
	}
	if n.ViewedBy(uuid.New()) {
		t.Error("expected notification not to be viewed by stranger")
	}
}

func TestTableNames(t *testing.T) {
	tables := map[string]string{
		Reader{}.TableName():            "readers",
		BookClub{}.TableName():          "book_clubs",
		Membership{}.TableName():        "memberships",
		MembershipRequest{}.TableName(): "membership_requests",
		Notification{}.TableName():      "notifications",
		NotificationView{}.TableName():  "notification_views",
		RefreshToken{}.TableName():      "refresh_tokens",
		LinkedAccount{}.TableName():     "linked_accounts",
		AuditLog{}.TableName():          "audit_logs",
	}
	for got, want := range tables {
		if got != want {
			t.Errorf("expected table %q, got %q", want, got)
		}
	}
}
