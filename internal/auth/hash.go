package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// Custo 12: login é raro o bastante para pagar um bcrypt mais caro.
const bcryptCost = 12

func HashPassword(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CheckPassword compara em tempo constante; qualquer erro conta como senha errada.
func CheckPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
