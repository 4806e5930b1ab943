package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// PasswordCost is above bcrypt's default; credential rows hold PHI-adjacent
// accounts.
const PasswordCost = 12

// HashPassword hashes a password using bcrypt.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	return string(bytes), err
}

// CheckPassword compares a password with its hash.
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// dummyHash is a valid bcrypt hash of an unguessable constant. Login paths
// compare against it when the account does not exist so that unknown-email
// and wrong-password failures take the same time.
const dummyHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

// EqualizeTiming burns one bcrypt comparison for accounts that do not
// exist.
func EqualizeTiming(password string) {
	_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
}
