package auth

import (
	"golang.org/x/crypto/bcrypt"
)

func HashString(originalString string) (string, error) {
	return HashStringCost(originalString, bcrypt.DefaultCost)
}

// HashStringCost hashes with an explicit bcrypt cost. Tests use bcrypt.MinCost.
func HashStringCost(originalString string, cost int) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(originalString), cost)
	if err != nil {
		return "", err
	}

	return string(bytes), nil
}

func VerifyHashedString(originalString, hashedString string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedString), []byte(originalString))

	return err == nil
}
