package models

import (
	"fmt"
	"time"

	"bitbucket.org/frioaustral/plant_backend/config"
	"bitbucket.org/frioaustral/plant_backend/utils"
)

// User is a session identity. It exists to stamp and filter by work center;
// permission checks live in the callers, not here.
type User struct {
	ID                string    `json:"id"`
	Username          string    `json:"username"`
	Name              string    `json:"name"`
	PasswordHash      string    `json:"password_hash"`
	Token             string    `json:"token,omitempty"`
	DefaultWorkCenter string    `json:"default_work_center"`
	CreatedAt         time.Time `json:"created_at"`
}

type NewUser struct {
	Username          string `json:"username" validate:"required"`
	Name              string `json:"name"`
	Password          string `json:"password" validate:"required,min=6"`
	DefaultWorkCenter string `json:"default_work_center"`
}

func CreateUser(input *NewUser) (*User, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	hash, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := User{
		ID:                newId(),
		Username:          input.Username,
		Name:              input.Name,
		PasswordHash:      string(hash),
		DefaultWorkCenter: input.DefaultWorkCenter,
		CreatedAt:         time.Now(),
	}

	store := config.GetStore()
	err = store.Update(func(get Getter, put Putter) error {
		users, err := LoadCollection[User](get, CollectionUsers)
		if err != nil {
			return err
		}
		for _, existing := range users {
			if existing.Username == user.Username {
				return fmt.Errorf("duplicate username %s: %w", user.Username, ErrInvariantViolation)
			}
		}
		users = append(users, user)
		return SaveCollection(put, CollectionUsers, users)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// AuthenticateUser verifies the password and issues a fresh session token.
func AuthenticateUser(username string, password string) (*User, error) {
	var authenticated User
	store := config.GetStore()
	err := store.Update(func(get Getter, put Putter) error {
		users, err := LoadCollection[User](get, CollectionUsers)
		if err != nil {
			return err
		}
		for i, user := range users {
			if user.Username != username {
				continue
			}
			if utils.ComparePassword(user.PasswordHash, password) != nil {
				return fmt.Errorf("user %s: %w", username, ErrNotFound)
			}
			users[i].Token = newId()
			authenticated = users[i]
			return SaveCollection(put, CollectionUsers, users)
		}
		return fmt.Errorf("user %s: %w", username, ErrNotFound)
	})
	if err != nil {
		return nil, err
	}
	return &authenticated, nil
}

func GetUserByToken(token string) (*User, error) {
	if token == "" {
		return nil, fmt.Errorf("empty token: %w", ErrNotFound)
	}
	users, err := ListCollection[User](CollectionUsers)
	if err != nil {
		return nil, err
	}
	for _, user := range users {
		if user.Token == token {
			return &user, nil
		}
	}
	return nil, fmt.Errorf("token: %w", ErrNotFound)
}
