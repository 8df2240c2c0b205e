package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"meditrackctl/db"
	"meditrackctl/plugins/supabase"
	"meditrackctl/setup"
)

const (
	backendURLEnvVar = "VITE_SUPABASE_URL"
	serviceKeyEnvVar = "SUPABASE_SERVICE_ROLE_KEY" //nolint:gosec
	anonKeyEnvVar    = "VITE_SUPABASE_ANON_KEY"    //nolint:gosec

	defaultMigrationPath = "migrations/auth_migration.sql"
	defaultAuditDBPath   = "meditrack_admin.db"
)

// Fixed admin identity for this version; not configurable via environment.
const (
	adminEmail     = "2646502936yjh@gmail.com"
	adminPassword  = "Meditrack370"
	adminFirstName = "Super"
	adminLastName  = "Admin"
)

func main() {
	var migrationPath string
	var auditDBPath string

	rootCmd := &cobra.Command{
		Use:   "setup-auth",
		Short: "Provision the MediTrack super-admin account and apply the auth migration",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("======================================================================")
			fmt.Println("🚀 MEDITRACK AUTHENTICATION SYSTEM SETUP")
			fmt.Println("======================================================================")
			fmt.Println()

			backendURL := viper.GetString(backendURLEnvVar)
			if backendURL == "" {
				log.Fatalf("ERROR: environment variable %s is not set", backendURLEnvVar)
			}

			// Prefer the service-role key; fall back to the anon key. The
			// migration and admin-API steps will fail softly or hard on their
			// own if the anon key lacks the privilege.
			apiKey := viper.GetString(serviceKeyEnvVar)
			if apiKey == "" {
				apiKey = viper.GetString(anonKeyEnvVar)
			}
			if apiKey == "" {
				log.Fatalf("ERROR: no backend key found; set %s or %s", serviceKeyEnvVar, anonKeyEnvVar)
			}

			client := supabase.NewClient(backendURL, apiKey)
			fmt.Println("✅ Connected to backend")

			provisioner := &setup.Provisioner{
				Client: client,
				Store:  openAuditStore(auditDBPath),
				Log:    newSugaredLogger(),
				Config: setup.Config{
					AdminEmail:     adminEmail,
					AdminPassword:  adminPassword,
					AdminFirstName: adminFirstName,
					AdminLastName:  adminLastName,
					MigrationPath:  migrationPath,
				},
			}

			if err := provisioner.Run(); err != nil {
				log.Fatalf("setup failed: %v", err)
			}

			fmt.Println()
			fmt.Println("======================================================================")
			fmt.Println("🎉 AUTHENTICATION SYSTEM SETUP COMPLETE!")
			fmt.Println("======================================================================")
			fmt.Println()
			fmt.Println("📧 Admin Email:", adminEmail)
			fmt.Println("🔐 Admin Password:", adminPassword)
			fmt.Println()
			fmt.Println("⚠️  IMPORTANT NEXT STEPS:")
			fmt.Println("1. Login to the app with admin credentials")
			fmt.Println("2. Change the admin password immediately")
			fmt.Println("3. Test user registration and approval workflow")
			fmt.Println("4. Create invitation codes for authorized users")
		},
	}

	rootCmd.Flags().StringVar(&migrationPath, "migration", defaultMigrationPath, "Path to the auth migration SQL file")
	rootCmd.Flags().StringVar(&auditDBPath, "audit-db", defaultAuditDBPath, "Path to the local SQLite audit database ('' disables)")

	viper.AutomaticEnv() // binds environment variables to viper config

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("command failed: %v", err)
	}
}

// openAuditStore opens the local audit trail. A missing or broken audit
// database is reported and ignored; it never blocks provisioning.
func openAuditStore(path string) *db.SQLStore {
	if path == "" {
		return nil
	}
	conn, err := db.BootstrapSQLite(path)
	if err != nil {
		log.Printf("warning: audit database unavailable: %v", err)
		return nil
	}
	return db.NewSQLStore(conn)
}

func newSugaredLogger() *zap.SugaredLogger {
	zl, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return zl.Sugar()
}
