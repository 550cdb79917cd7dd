package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
)

var cpfNonDigits = regexp.MustCompile(`[^0-9]`)

// NormalizeCPF descarta máscara e separadores; sobram só os 11 dígitos.
func NormalizeCPF(cpf string) string {
	return cpfNonDigits.ReplaceAllString(cpf, "")
}

// CPFHash é a coluna de unicidade do CPF: hash determinístico do valor
// normalizado, comparável por igualdade sem decifrar nada.
func CPFHash(cpfNormalized string) string {
	h := sha256.Sum256([]byte(cpfNormalized))
	return hex.EncodeToString(h[:])
}
