package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/frahmantamala/document-management/internal/auth"
)

// seedRoles is the default role layout. The admin role holds the global
// wildcard; editors manage documents and can look at users; viewers only read
// their own documents.
var seedRoles = []struct {
	Name string
	Keys []string
}{
	{"admin", []string{"*"}},
	{"editor", []string{"documents.*", auth.PermUsersView}},
	{"viewer", []string{auth.PermDocumentsView}},
}

var seedPermissions = []struct {
	Key    string
	Module string
}{
	{auth.PermDocumentsCreate, "documents"},
	{auth.PermDocumentsView, "documents"},
	{auth.PermDocumentsViewAll, "documents"},
	{auth.PermDocumentsUpdate, "documents"},
	{auth.PermDocumentsUpdateAll, "documents"},
	{auth.PermDocumentsDelete, "documents"},
	{auth.PermDocumentsDeleteAll, "documents"},
	{"documents.*", "documents"},
	{auth.PermUsersCreate, "users"},
	{auth.PermUsersView, "users"},
	{auth.PermUsersUpdate, "users"},
	{auth.PermUsersDelete, "users"},
	{auth.PermRolesCreate, "roles"},
	{auth.PermRolesView, "roles"},
	{auth.PermRolesUpdate, "roles"},
	{auth.PermRolesDelete, "roles"},
	{auth.PermAuditView, "audit"},
	{"*", "global"},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the permission catalog, default roles and the admin account",
	Run: func(cmd *cobra.Command, args []string) {
		if seedAdminPassword == "" {
			log.Fatal("--admin-password is required")
		}

		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		sqlDB, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer sqlDB.Close()

		db, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: sqlDB.DB}), &gorm.Config{})
		if err != nil {
			log.Fatalf("failed to init orm: %v", err)
		}

		for _, p := range seedPermissions {
			var exists int
			if err := db.Raw("SELECT 1 FROM permissions WHERE key = ?", p.Key).Row().Scan(&exists); err == nil {
				continue
			}
			if err := db.Exec("INSERT INTO permissions (key, module, is_active, created_at) VALUES (?, ?, true, now())", p.Key, p.Module).Error; err != nil {
				log.Fatalf("failed to insert permission %s: %v", p.Key, err)
			}
			fmt.Println("Seeded permission:", p.Key)
		}

		for _, r := range seedRoles {
			var roleID int64
			if err := db.Raw("SELECT id FROM roles WHERE name = ?", r.Name).Row().Scan(&roleID); err != nil {
				if err := db.Exec("INSERT INTO roles (name, is_active, created_at, updated_at) VALUES (?, true, now(), now())", r.Name).Error; err != nil {
					log.Fatalf("failed to insert role %s: %v", r.Name, err)
				}
				if err := db.Raw("SELECT id FROM roles WHERE name = ?", r.Name).Row().Scan(&roleID); err != nil {
					log.Fatalf("role not found after insert %s: %v", r.Name, err)
				}
				fmt.Println("Seeded role:", r.Name)
			}

			for _, key := range r.Keys {
				var pid int64
				if err := db.Raw("SELECT id FROM permissions WHERE key = ?", key).Row().Scan(&pid); err != nil {
					log.Fatalf("permission not found %s: %v", key, err)
				}
				var exists int
				if err := db.Raw("SELECT 1 FROM role_permissions WHERE role_id = ? AND permission_id = ?", roleID, pid).Row().Scan(&exists); err == nil {
					continue
				}
				if err := db.Exec("INSERT INTO role_permissions (role_id, permission_id) VALUES (?, ?)", roleID, pid).Error; err != nil {
					log.Fatalf("failed to grant %s to role %s: %v", key, r.Name, err)
				}
			}
		}

		var exists int
		if err := db.Raw("SELECT 1 FROM users WHERE email = ?", seedAdminEmail).Row().Scan(&exists); err == nil {
			fmt.Println("Admin user already exists:", seedAdminEmail)
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(seedAdminPassword), cfg.Security.BCryptCost)
		if err != nil {
			log.Fatalf("failed to hash admin password: %v", err)
		}

		var adminRoleID int64
		if err := db.Raw("SELECT id FROM roles WHERE name = 'admin'").Row().Scan(&adminRoleID); err != nil {
			log.Fatalf("admin role not found: %v", err)
		}

		if err := db.Exec(
			"INSERT INTO users (email, name, password_hash, status, role_id, created_at, updated_at) VALUES (?, 'Administrator', ?, 'active', ?, now(), now())",
			seedAdminEmail, string(hash), adminRoleID,
		).Error; err != nil {
			log.Fatalf("failed to insert admin user: %v", err)
		}

		fmt.Println("Seeded admin user:", seedAdminEmail)
	},
}
