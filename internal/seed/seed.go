package seed

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fabiortecnologia/sghss/internal/auth"
	"github.com/fabiortecnologia/sghss/internal/crypto"
)

// Run popula dados mínimos de primeiro boot: admin, recepção, dois
// profissionais e dois pacientes (um com login). Idempotente: se já houver
// usuários, não faz nada.
func Run(ctx context.Context, pool *pgxpool.Pool, keys map[string][]byte, keyVer string) error {
	var n int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM users").Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		log.Printf("[seed] usuários existem, nada a fazer")
		return nil
	}

	adminHash, err := auth.HashPassword("Admin123!")
	if err != nil {
		return err
	}
	staffHash, err := auth.HashPassword("ChangeMe123!")
	if err != nil {
		return err
	}

	var adminID int64
	if err := pool.QueryRow(ctx, `
		INSERT INTO users (name, email, password_hash, role)
		VALUES ('Administrador', 'admin@sghss.local', $1, $2) RETURNING id
	`, adminHash, auth.RoleAdmin).Scan(&adminID); err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, `
		INSERT INTO users (name, email, password_hash, role)
		VALUES ('Recepção', 'recepcao@sghss.local', $1, $2)
	`, staffHash, auth.RoleReceptionist); err != nil {
		return err
	}

	profs := []struct {
		name, specialty, crm, email string
	}{
		{"Dra. Helena Costa", "Cardiologia", "CRM-10001", "helena@sghss.local"},
		{"Dr. Rafael Lima", "Clínica Geral", "CRM-10002", "rafael@sghss.local"},
	}
	for _, p := range profs {
		var userID int64
		if err := pool.QueryRow(ctx, `
			INSERT INTO users (name, email, password_hash, role)
			VALUES ($1, $2, $3, $4) RETURNING id
		`, p.name, p.email, staffHash, auth.RoleProfessional).Scan(&userID); err != nil {
			return err
		}
		if _, err := pool.Exec(ctx, `
			INSERT INTO professionals (user_id, full_name, specialty, crm, email)
			VALUES ($1, $2, $3, $4, $5)
		`, userID, p.name, p.specialty, p.crm, p.email); err != nil {
			return err
		}
	}

	patients := []struct {
		name, cpf, email string
		withLogin        bool
	}{
		{"João da Silva", "39053344705", "joao@example.com", true},
		{"Maria Oliveira", "52998224725", "maria@example.com", false},
	}
	for _, p := range patients {
		var userID *int64
		if p.withLogin {
			var id int64
			if err := pool.QueryRow(ctx, `
				INSERT INTO users (name, email, password_hash, role)
				VALUES ($1, $2, $3, $4) RETURNING id
			`, p.name, p.email, staffHash, auth.RolePatient).Scan(&id); err != nil {
				return err
			}
			userID = &id
		}
		ciphertext, nonce, err := crypto.Encrypt([]byte(p.cpf), keyVer, keys)
		if err != nil {
			return err
		}
		hash := crypto.CPFHash(p.cpf)
		if _, err := pool.Exec(ctx, `
			INSERT INTO patients (user_id, full_name, cpf_encrypted, cpf_nonce, cpf_key_version, cpf_hash, email)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, userID, p.name, ciphertext, nonce, keyVer, hash, p.email); err != nil {
			return err
		}
	}

	log.Printf("[seed] dados iniciais criados (admin@sghss.local / Admin123!)")
	return nil
}
