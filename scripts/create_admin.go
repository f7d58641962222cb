// scripts/create_admin.go seeds the first admin login. Safe to run
// twice; an existing username is left untouched.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/ShubhamSingh-04/attendance-system-server/config"
	"github.com/ShubhamSingh-04/attendance-system-server/database"
	"github.com/ShubhamSingh-04/attendance-system-server/models"
)

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	database.Connect(cfg)

	username := env("ADMIN_USERNAME", "admin")
	email := env("ADMIN_EMAIL", "admin@example.com")
	password := env("ADMIN_PASSWORD", "changeme123")

	var existing models.User
	if err := database.DB.Where("username = ?", username).First(&existing).Error; err != nil {
		if err != gorm.ErrRecordNotFound {
			log.Fatalf("failed to query users: %v", err)
		}
	} else {
		fmt.Println("admin user already exists:", username)
		os.Exit(0)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	u := models.User{
		Username: username,
		Email:    email,
		Password: string(hashed),
		Role:     models.RoleAdmin,
	}
	if err := database.DB.Create(&u).Error; err != nil {
		log.Fatalf("failed to insert admin: %v", err)
	}

	fmt.Println("admin user created:", username)
	fmt.Println("password:", password, "(change it after first login)")
}
