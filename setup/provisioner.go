package setup

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"meditrackctl/db"
	"meditrackctl/model"
	"meditrackctl/plugins/supabase"
)

const auditTool = "setup-auth"

// Config carries everything the provisioning run needs, resolved once at
// process start. No credential or identity literal appears below main.
type Config struct {
	AdminEmail     string
	AdminPassword  string
	AdminFirstName string
	AdminLastName  string
	MigrationPath  string
}

// Provisioner drives the admin-provisioning workflow: best-effort migration,
// create-or-reconcile of the super-admin account, then verification. Running
// it N times converges to the same state as running it once.
type Provisioner struct {
	Client BackendClient
	Store  *db.SQLStore // optional local audit trail
	Log    *zap.SugaredLogger
	Config Config

	Now func() time.Time // overridable for tests
}

func (p *Provisioner) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Provisioner) logger() *zap.SugaredLogger {
	if p.Log != nil {
		return p.Log
	}
	return zap.NewNop().Sugar()
}

func (p *Provisioner) audit(step, action, message string) {
	if p.Store == nil {
		return
	}
	p.Store.LogAuditEvent(p.logger(), model.AuditLog{
		Tool:    auditTool,
		Step:    step,
		Action:  action,
		Message: message,
	})
}

// Run executes the full workflow. The migration step never fails the run;
// EnsureAdmin and Verify do.
func (p *Provisioner) Run() error {
	// Best-effort: the schema may already exist from a previous run, and we
	// cannot distinguish "already applied" from "genuinely broken" here.
	p.RunMigration()

	if err := p.EnsureAdmin(); err != nil {
		fmt.Println("❌ Failed to create admin user")
		return err
	}

	return p.Verify()
}

// RunMigration reads the migration script and submits it to the backend's
// exec_sql RPC. Returns false when the file is missing or the call failed;
// the caller proceeds either way.
func (p *Provisioner) RunMigration() bool {
	fmt.Println("📊 Running database migration...")

	sqlContent, err := os.ReadFile(p.Config.MigrationPath)
	if err != nil {
		fmt.Printf("❌ Migration file not found: %s\n", p.Config.MigrationPath)
		p.audit("migration", "MIGRATION_SKIPPED", fmt.Sprintf("migration file missing: %v", err))
		return false
	}

	if err := p.Client.ExecSQL(string(sqlContent)); err != nil {
		fmt.Printf("❌ Migration failed: %v\n", err)
		fmt.Println("   You may need to run the SQL manually in the backend dashboard")
		p.audit("migration", "MIGRATION_FAILED", err.Error())
		return false
	}

	fmt.Println("✅ Database migration completed successfully")
	p.audit("migration", "MIGRATION_APPLIED", p.Config.MigrationPath)
	return true
}

// EnsureAdmin guarantees that exactly one account with the admin email exists
// and is fully privileged. Account creation on the backend is not idempotent
// (a second create errors instead of returning the existing row), so the
// duplicate signal switches us to an update-only reconciliation path.
func (p *Provisioner) EnsureAdmin() error {
	fmt.Println("👤 Creating super admin account...")

	user, err := p.Client.CreateAdminUser(supabase.CreateUserRequest{
		Email:        p.Config.AdminEmail,
		Password:     p.Config.AdminPassword,
		EmailConfirm: true, // skip confirmation mail for the provisioned admin
		UserMetadata: map[string]any{
			"first_name": p.Config.AdminFirstName,
			"last_name":  p.Config.AdminLastName,
		},
	})

	switch {
	case err == nil:
		fmt.Printf("✅ Admin user created with ID: %s\n", user.ID)
		if err := p.promoteProfile(user.ID); err != nil {
			p.audit("ensure-admin", "ADMIN_PROMOTE_FAILED", err.Error())
			return fmt.Errorf("configure admin profile: %w", err)
		}
		fmt.Println("✅ Admin profile configured successfully")
		p.audit("ensure-admin", "ADMIN_CREATED", user.ID)
		return nil

	case errors.Is(err, supabase.ErrUserAlreadyExists):
		fmt.Println("⚠️  Admin user already exists, updating permissions...")
		existing, findErr := p.Client.FindUserByEmail(p.Config.AdminEmail)
		if findErr != nil {
			p.audit("ensure-admin", "ADMIN_RECONCILE_FAILED", findErr.Error())
			return fmt.Errorf("locate existing admin: %w", findErr)
		}
		if err := p.promoteProfile(existing.ID); err != nil {
			p.audit("ensure-admin", "ADMIN_RECONCILE_FAILED", err.Error())
			return fmt.Errorf("update existing admin: %w", err)
		}
		fmt.Println("✅ Existing admin user updated successfully")
		p.audit("ensure-admin", "ADMIN_RECONCILED", existing.ID)
		return nil

	default:
		p.audit("ensure-admin", "ADMIN_CREATE_FAILED", err.Error())
		return fmt.Errorf("create admin user: %w", err)
	}
}

// promoteProfile flips the profile row to role=admin, approved by itself.
func (p *Provisioner) promoteProfile(userID string) error {
	return p.Client.UpdateProfile(userID, supabase.ProfileUpdate{
		Role:       model.AdminRole,
		IsApproved: true,
		ApprovedBy: userID,
		ApprovedAt: p.now().UTC().Format(time.RFC3339),
	})
}

// Verify re-reads the backend state. A missing admin profile fails the run; a
// profile with unexpected role/approval values is reported as a warning only,
// since the writes already happened and there is nothing to roll back.
func (p *Provisioner) Verify() error {
	fmt.Println("🔍 Verifying setup...")

	profileCount, err := p.Client.CountRows("user_profiles")
	if err != nil {
		p.audit("verify", "VERIFY_FAILED", err.Error())
		return fmt.Errorf("verification failed: %w", err)
	}
	inviteCount, err := p.Client.CountRows("invitation_codes")
	if err != nil {
		p.audit("verify", "VERIFY_FAILED", err.Error())
		return fmt.Errorf("verification failed: %w", err)
	}
	fmt.Println("✅ Tables created successfully:")
	fmt.Printf("   📋 user_profiles: %d records\n", profileCount)
	fmt.Printf("   📋 invitation_codes: %d records\n", inviteCount)

	admin, err := p.Client.GetProfileByEmail(p.Config.AdminEmail)
	if err != nil {
		p.audit("verify", "VERIFY_FAILED", err.Error())
		return fmt.Errorf("verification failed: %w", err)
	}
	if admin == nil {
		fmt.Println("⚠️  Super admin account not found")
		p.audit("verify", "VERIFY_FAILED", "admin profile not found")
		return fmt.Errorf("admin profile not found for %s", p.Config.AdminEmail)
	}

	fmt.Println("✅ Super admin account verified:")
	fmt.Printf("   📧 Email: %s\n", admin.Email)
	fmt.Printf("   👤 Name: %s %s\n", admin.FirstName, admin.LastName)
	fmt.Printf("   🔐 Role: %s\n", admin.Role)
	fmt.Printf("   ✅ Approved: %t\n", admin.IsApproved)

	if admin.Role != model.AdminRole || !admin.IsApproved {
		fmt.Println("⚠️  Admin profile exists but role/approval do not match the intended state")
		p.audit("verify", "VERIFY_MISMATCH", fmt.Sprintf("role=%s approved=%t", admin.Role, admin.IsApproved))
		return nil
	}

	p.audit("verify", "VERIFY_OK", admin.ID)
	return nil
}
