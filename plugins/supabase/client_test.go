package supabase

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meditrackctl/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, "test-key")
}

func TestCreateAdminUser(t *testing.T) {
	t.Run("success returns the created account", func(t *testing.T) {
		var gotReq CreateUserRequest
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "POST", r.Method)
			assert.Equal(t, "/auth/v1/admin/users", r.URL.Path)
			assert.Equal(t, "test-key", r.Header.Get("apikey"))
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, `{"id":"uid-1","email":"admin@meditrack.test","role":"authenticated"}`)
		})

		user, err := client.CreateAdminUser(CreateUserRequest{
			Email:        "admin@meditrack.test",
			Password:     "secret",
			EmailConfirm: true,
			UserMetadata: map[string]any{"first_name": "Super", "last_name": "Admin"},
		})
		require.NoError(t, err)
		assert.Equal(t, "uid-1", user.ID)
		assert.True(t, gotReq.EmailConfirm)
		assert.Equal(t, "Super", gotReq.UserMetadata["first_name"])
	})

	t.Run("structured duplicate error maps to ErrUserAlreadyExists", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			fmt.Fprint(w, `{"code":422,"error_code":"email_exists","msg":"A user with this email address has already been registered"}`)
		})

		_, err := client.CreateAdminUser(CreateUserRequest{Email: "admin@meditrack.test"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUserAlreadyExists)
	})

	t.Run("legacy message-only duplicate still classifies", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"code":400,"msg":"User already exists"}`)
		})

		_, err := client.CreateAdminUser(CreateUserRequest{Email: "admin@meditrack.test"})
		assert.ErrorIs(t, err, ErrUserAlreadyExists)
	})

	t.Run("other errors surface status and body", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"code":403,"error_code":"not_admin","msg":"User not allowed"}`)
		})

		_, err := client.CreateAdminUser(CreateUserRequest{Email: "admin@meditrack.test"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrUserAlreadyExists)
		assert.Contains(t, err.Error(), "not_admin")
	})
}

func TestListUsersPaginates(t *testing.T) {
	pagesServed := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/admin/users", r.URL.Path)
		pagesServed++

		page := r.URL.Query().Get("page")
		var users []AdminUser
		switch page {
		case "1":
			for i := 0; i < listUsersPerPage; i++ {
				users = append(users, AdminUser{ID: fmt.Sprintf("uid-%d", i)})
			}
		case "2":
			users = []AdminUser{{ID: "uid-50"}, {ID: "uid-51"}, {ID: "uid-52"}}
		default:
			t.Errorf("unexpected page %q", page)
		}
		_ = json.NewEncoder(w).Encode(listUsersResponse{Users: users})
	})

	users, err := client.ListUsers()
	require.NoError(t, err)
	assert.Len(t, users, listUsersPerPage+3)
	assert.Equal(t, 2, pagesServed)
}

func TestFindUserByEmail(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(listUsersResponse{Users: []AdminUser{
			{ID: "uid-1", Email: "someone@meditrack.test"},
			{ID: "uid-2", Email: "Admin@MediTrack.Test"},
		}})
	})

	t.Run("matches exactly after normalization", func(t *testing.T) {
		user, err := client.FindUserByEmail(" admin@meditrack.test ")
		require.NoError(t, err)
		assert.Equal(t, "uid-2", user.ID)
	})

	t.Run("absent email returns ErrUserNotFound", func(t *testing.T) {
		_, err := client.FindUserByEmail("ghost@meditrack.test")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestUpdateProfile(t *testing.T) {
	var gotPatch ProfileUpdate
	var gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "PATCH", r.Method)
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPatch))
		w.WriteHeader(http.StatusNoContent)
	})

	err := client.UpdateProfile("uid-7", ProfileUpdate{
		Role:       model.AdminRole,
		IsApproved: true,
		ApprovedBy: "uid-7",
		ApprovedAt: "2026-03-14T09:30:00Z",
	})
	require.NoError(t, err)
	assert.Equal(t, "/rest/v1/user_profiles?id=eq.uid-7", gotPath)
	assert.Equal(t, model.AdminRole, gotPatch.Role)
	assert.True(t, gotPatch.IsApproved)
	assert.Equal(t, "uid-7", gotPatch.ApprovedBy)
}

func TestGetProfileByEmail(t *testing.T) {
	t.Run("returns the first matching row", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/rest/v1/user_profiles", r.URL.Path)
			assert.Equal(t, "eq.admin@meditrack.test", r.URL.Query().Get("email"))
			fmt.Fprint(w, `[{"id":"uid-1","email":"admin@meditrack.test","role":"admin","is_approved":true}]`)
		})

		profile, err := client.GetProfileByEmail("admin@meditrack.test")
		require.NoError(t, err)
		require.NotNil(t, profile)
		assert.Equal(t, model.AdminRole, profile.Role)
		assert.True(t, profile.IsApproved)
	})

	t.Run("empty result set yields nil without error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `[]`)
		})

		profile, err := client.GetProfileByEmail("ghost@meditrack.test")
		require.NoError(t, err)
		assert.Nil(t, profile)
	})
}

func TestCountRows(t *testing.T) {
	t.Run("parses the Content-Range total", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "count=exact", r.Header.Get("Prefer"))
			w.Header().Set("Content-Range", "0-0/42")
			fmt.Fprint(w, `[{"id":"uid-1"}]`)
		})

		count, err := client.CountRows("user_profiles")
		require.NoError(t, err)
		assert.Equal(t, int64(42), count)
	})

	t.Run("empty table reports zero", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Range", "*/0")
			fmt.Fprint(w, `[]`)
		})

		count, err := client.CountRows("invitation_codes")
		require.NoError(t, err)
		assert.Equal(t, int64(0), count)
	})
}

func TestExecSQL(t *testing.T) {
	t.Run("posts the script to the rpc endpoint", func(t *testing.T) {
		var gotBody map[string]string
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/rest/v1/rpc/exec_sql", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			w.WriteHeader(http.StatusNoContent)
		})

		require.NoError(t, client.ExecSQL("create table t (id int);"))
		assert.Equal(t, "create table t (id int);", gotBody["sql"])
	})

	t.Run("missing rpc surfaces the raw body", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"message":"function public.exec_sql does not exist"}`)
		})

		err := client.ExecSQL("select 1;")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not exist")
	})
}

func TestSelectAndInsert(t *testing.T) {
	t.Run("select encodes query parameters and never errors on status", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/rest/v1/medications", r.URL.Path)
			q := r.URL.Query()
			assert.Equal(t, "id,name,strength", q.Get("select"))
			assert.Equal(t, "5", q.Get("limit"))
			assert.Equal(t, "name.asc", q.Get("order"))
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"message":"JWT expired"}`)
		})

		rows, err := client.Select("medications", Query{Select: "id,name,strength", Limit: 5, Order: "name.asc"})
		require.NoError(t, err, "non-2xx statuses are data, not errors")
		assert.Equal(t, http.StatusUnauthorized, rows.Status)
		assert.False(t, rows.OK())
		assert.Contains(t, string(rows.Body), "JWT expired")
	})

	t.Run("insert asks for the created representation", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "POST", r.Method)
			assert.Equal(t, "return=representation", r.Header.Get("Prefer"))
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `[{"id":"log-9","patient_id":"TEST-999"}]`)
		})

		rows, err := client.Insert("dispensing_logs", map[string]string{"patient_id": "TEST-999"})
		require.NoError(t, err)
		assert.True(t, rows.OK())

		var created []model.DispensingLog
		require.NoError(t, rows.Decode(&created))
		require.Len(t, created, 1)
		assert.Equal(t, "log-9", created[0].ID)
	})
}
