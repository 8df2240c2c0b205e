package supabase_test

import (
	"os"
	"testing"

	"meditrackctl/plugins/supabase"
)

func newE2EClient(t *testing.T, keyEnvVar string) *supabase.Client {
	t.Helper()

	baseURL := os.Getenv("SUPABASE_URL")
	if baseURL == "" {
		t.Skip("SUPABASE_URL not set; skipping live backend end-to-end tests")
	}
	key := os.Getenv(keyEnvVar)
	if key == "" {
		t.Skipf("%s not set; skipping live backend end-to-end tests", keyEnvVar)
	}

	return supabase.NewClient(baseURL, key)
}

func TestSelectMedicationsE2E(t *testing.T) {
	client := newE2EClient(t, "SUPABASE_ANON_KEY")

	rows, err := client.Select("medications", supabase.Query{Select: "id,name,strength", Limit: 5})
	if err != nil {
		t.Fatalf("Select returned error: %v", err)
	}
	if !rows.OK() {
		t.Fatalf("Select medications failed with status %d: %s", rows.Status, rows.Body)
	}
}

func TestListUsersE2E(t *testing.T) {
	client := newE2EClient(t, "SUPABASE_SERVICE_ROLE_KEY")

	users, err := client.ListUsers()
	if err != nil {
		t.Fatalf("ListUsers returned error: %v", err)
	}
	if len(users) == 0 {
		t.Fatalf("ListUsers returned zero users")
	}
}

func TestCountRowsE2E(t *testing.T) {
	client := newE2EClient(t, "SUPABASE_SERVICE_ROLE_KEY")

	count, err := client.CountRows("user_profiles")
	if err != nil {
		t.Fatalf("CountRows returned error: %v", err)
	}
	if count < 0 {
		t.Fatalf("CountRows returned negative count %d", count)
	}
}
