package account

import (
	"errors"
	"testing"
)

func TestCredentialKey(t *testing.T) {
	cases := []struct {
		id   string
		want string
	}{
		{"work", "MAILWARD_ACCOUNT_WORK_PASSWORD"},
		{"Work-2", "MAILWARD_ACCOUNT_WORK_2_PASSWORD"},
		{"my_acct", "MAILWARD_ACCOUNT_MY_ACCT_PASSWORD"},
		{"alice+work@company.co.uk", "MAILWARD_ACCOUNT_ALICE_WORK_COMPANY_CO_UK_PASSWORD"},
	}
	for _, tc := range cases {
		if got := CredentialKey(tc.id); got != tc.want {
			t.Errorf("CredentialKey(%q) = %q, want %q", tc.id, got, tc.want)
		}
	}
}

func TestEnvCredentials(t *testing.T) {
	t.Setenv("MAILWARD_ACCOUNT_WORK_PASSWORD", "hunter2")

	pw, err := EnvCredentials{}.Password("work")
	if err != nil {
		t.Fatalf("Password: %v", err)
	}
	if pw != "hunter2" {
		t.Errorf("expected hunter2, got %q", pw)
	}
}

func TestEnvCredentialsMissing(t *testing.T) {
	_, err := EnvCredentials{}.Password("ghost")
	if !errors.Is(err, ErrCredentialNotFound) {
		t.Fatalf("expected ErrCredentialNotFound, got %v", err)
	}
}
