package setup

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"meditrackctl/model"
	"meditrackctl/plugins/supabase"
)

// MockBackendClient simulates the backend auth + data APIs for testing
type MockBackendClient struct {
	mu       sync.Mutex
	users    map[string]*supabase.AdminUser // normalized email -> user
	profiles map[string]*model.UserProfile  // userID -> profile
	counts   map[string]int64               // table -> forced row count
	nextID   int

	execSQLErr error // forced ExecSQL failure
	createErr  error // forced CreateAdminUser failure (non-duplicate)
	updateErr  error // forced UpdateProfile failure

	// Capture calls for verification
	createCalls    []supabase.CreateUserRequest
	profileUpdates map[string][]supabase.ProfileUpdate // userID -> patches applied
	execSQLCalls   []string
}

// NewMockBackendClient creates a new mock backend client
func NewMockBackendClient() *MockBackendClient {
	return &MockBackendClient{
		users:          make(map[string]*supabase.AdminUser),
		profiles:       make(map[string]*model.UserProfile),
		counts:         make(map[string]int64),
		profileUpdates: make(map[string][]supabase.ProfileUpdate),
		nextID:         1000,
	}
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateAdminUser creates a user, mimicking the backend trigger that inserts
// a pending user_profiles row alongside every new account.
func (m *MockBackendClient) CreateAdminUser(create supabase.CreateUserRequest) (*supabase.AdminUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.createCalls = append(m.createCalls, create)

	if m.createErr != nil {
		return nil, m.createErr
	}
	if _, exists := m.users[normalize(create.Email)]; exists {
		return nil, supabase.ErrUserAlreadyExists
	}

	user := &supabase.AdminUser{
		ID:        fmt.Sprintf("uid-%04d", m.nextID),
		Email:     create.Email,
		CreatedAt: time.Now(),
	}
	m.nextID++
	m.users[normalize(create.Email)] = user

	first, _ := create.UserMetadata["first_name"].(string)
	last, _ := create.UserMetadata["last_name"].(string)
	m.profiles[user.ID] = &model.UserProfile{
		ID:         user.ID,
		Email:      create.Email,
		FirstName:  first,
		LastName:   last,
		Role:       model.StudentRole,
		IsApproved: false,
	}

	return user, nil
}

// FindUserByEmail matches the email exactly after normalization
func (m *MockBackendClient) FindUserByEmail(email string) (*supabase.AdminUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[normalize(email)]
	if !ok {
		return nil, supabase.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

// UpdateProfile applies a patch to the stored profile
func (m *MockBackendClient) UpdateProfile(userID string, patch supabase.ProfileUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.updateErr != nil {
		return m.updateErr
	}

	profile, ok := m.profiles[userID]
	if !ok {
		return errors.New("profile not found")
	}

	m.profileUpdates[userID] = append(m.profileUpdates[userID], patch)

	profile.Role = patch.Role
	profile.IsApproved = patch.IsApproved
	approvedBy := patch.ApprovedBy
	profile.ApprovedBy = &approvedBy
	if ts, err := time.Parse(time.RFC3339, patch.ApprovedAt); err == nil {
		profile.ApprovedAt = &ts
	}
	return nil
}

// GetProfileByEmail returns the profile matching the email, or nil
func (m *MockBackendClient) GetProfileByEmail(email string) (*model.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	target := normalize(email)
	for _, profile := range m.profiles {
		if normalize(profile.Email) == target {
			copied := *profile
			return &copied, nil
		}
	}
	return nil, nil
}

// CountRows returns the forced count for a table, defaulting to the number of
// profiles for user_profiles
func (m *MockBackendClient) CountRows(table string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if count, ok := m.counts[table]; ok {
		return count, nil
	}
	if table == "user_profiles" {
		return int64(len(m.profiles)), nil
	}
	return 0, nil
}

// ExecSQL records the submitted script and returns the forced error, if any
func (m *MockBackendClient) ExecSQL(sqlContent string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.execSQLCalls = append(m.execSQLCalls, sqlContent)
	return m.execSQLErr
}

// Test helper methods

// SeedUser simulates an account created out-of-band (e.g. by a previous run
// or through the dashboard), with its trigger-created pending profile.
func (m *MockBackendClient) SeedUser(email, firstName, lastName string) *supabase.AdminUser {
	m.mu.Lock()
	defer m.mu.Unlock()

	user := &supabase.AdminUser{
		ID:    fmt.Sprintf("uid-%04d", m.nextID),
		Email: email,
	}
	m.nextID++
	m.users[normalize(email)] = user
	m.profiles[user.ID] = &model.UserProfile{
		ID:        user.ID,
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
		Role:      model.StudentRole,
	}
	return user
}

// SetRowCount forces the count returned for a table
func (m *MockBackendClient) SetRowCount(table string, count int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[table] = count
}

// SetExecSQLError forces ExecSQL to fail
func (m *MockBackendClient) SetExecSQLError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.execSQLErr = err
}

// SetCreateError forces CreateAdminUser to fail with a non-duplicate error
func (m *MockBackendClient) SetCreateError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createErr = err
}

// SetUpdateError forces UpdateProfile to fail
func (m *MockBackendClient) SetUpdateError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateErr = err
}

// UserCount returns how many accounts exist in the mock identity store
func (m *MockBackendClient) UserCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

// GetProfile returns the stored profile for a user ID
func (m *MockBackendClient) GetProfile(userID string) *model.UserProfile {
	m.mu.Lock()
	defer m.mu.Unlock()
	if profile, ok := m.profiles[userID]; ok {
		copied := *profile
		return &copied
	}
	return nil
}

// GetCreateCalls returns every create-user request seen by the mock
func (m *MockBackendClient) GetCreateCalls() []supabase.CreateUserRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]supabase.CreateUserRequest{}, m.createCalls...)
}

// GetProfileUpdates returns the patches applied to a user ID
func (m *MockBackendClient) GetProfileUpdates(userID string) []supabase.ProfileUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]supabase.ProfileUpdate{}, m.profileUpdates[userID]...)
}

// GetExecSQLCalls returns every script submitted to ExecSQL
func (m *MockBackendClient) GetExecSQLCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.execSQLCalls...)
}
