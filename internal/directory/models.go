package directory

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("user with this phone or email already exists")
)

type Position struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type User struct {
	ID                    int64  `json:"id"`
	Name                  string `json:"name"`
	Email                 string `json:"email"`
	Phone                 string `json:"phone"`
	Position              string `json:"position"`
	PositionID            int64  `json:"position_id"`
	Photo                 string `json:"photo"`
	RegistrationTimestamp int64  `json:"registration_timestamp"`
}

type NewUser struct {
	Name       string
	Email      string
	Phone      string
	PositionID int64
}
