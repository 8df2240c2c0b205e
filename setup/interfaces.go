package setup

import (
	"meditrackctl/model"
	"meditrackctl/plugins/supabase"
)

// BackendClient defines the backend operations the provisioning workflow needs
type BackendClient interface {
	CreateAdminUser(create supabase.CreateUserRequest) (*supabase.AdminUser, error)
	FindUserByEmail(email string) (*supabase.AdminUser, error)
	UpdateProfile(userID string, patch supabase.ProfileUpdate) error
	GetProfileByEmail(email string) (*model.UserProfile, error)
	CountRows(table string) (int64, error)
	ExecSQL(sqlContent string) error
}
