// seed-admin creates the first console user so a fresh store can sign in.
//
// Usage (from backend directory):
//   STORE_PATH=... ADMIN_USERNAME=... ADMIN_PASSWORD=... go run ./cmd/seed-admin
package main

import (
	"errors"
	"fmt"
	"os"

	"bitbucket.org/frioaustral/plant_backend/config"
	"bitbucket.org/frioaustral/plant_backend/models"
)

func main() {
	username := os.Getenv("ADMIN_USERNAME")
	password := os.Getenv("ADMIN_PASSWORD")
	if username == "" || password == "" {
		fmt.Fprintln(os.Stderr, "ADMIN_USERNAME and ADMIN_PASSWORD are required")
		os.Exit(1)
	}

	if err := config.ConnectStore(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer config.GetStore().Close()

	user, err := models.CreateUser(&models.NewUser{
		Username:          username,
		Name:              os.Getenv("ADMIN_NAME"),
		Password:          password,
		DefaultWorkCenter: os.Getenv("ADMIN_WORK_CENTER"),
	})
	if err != nil {
		if errors.Is(err, models.ErrInvariantViolation) {
			fmt.Fprintf(os.Stderr, "user %s already exists\n", username)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "failed to create user: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("created user %s (%s)\n", user.Username, user.ID)
}
