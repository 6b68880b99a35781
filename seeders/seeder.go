package seeders

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"maintenance-system/pkg/constants"
	"maintenance-system/pkg/service"
)

// SeedUsers создаёт пользователей и привязанные к ним записи техников. Повторный запуск ничего не дублирует.
func SeedUsers(ctx context.Context, db *pgxpool.Pool) error {
	log.Println("▶️  Запуск наполнения пользователей и техников...")

	for _, u := range usersData {
		tag, err := db.Exec(ctx,
			`INSERT INTO users (full_name, email, phone, role) VALUES ($1, $2, $3, $4) ON CONFLICT (email) DO NOTHING`,
			u.FullName, u.Email, u.Phone, string(u.Role))
		if err != nil {
			return fmt.Errorf("пользователь %s: %w", u.Email, err)
		}
		if tag.RowsAffected() == 0 {
			log.Printf("    - Пользователь %s уже существует. Пропускаем.", u.Email)
		}
	}

	for _, t := range techniciansData {
		var userID uint64
		var name string
		if err := db.QueryRow(ctx, `SELECT id, full_name FROM users WHERE email = $1`, t.UserEmail).Scan(&userID, &name); err != nil {
			return fmt.Errorf("не найден пользователь техника %s: %w", t.UserEmail, err)
		}
		_, err := db.Exec(ctx, `
			INSERT INTO technicians (technician_id, user_id, name, email, specialization, location)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (user_id) WHERE user_id IS NOT NULL DO NOTHING`,
			uuid.NewString(), userID, name, t.UserEmail, t.Specialization, t.Location)
		if err != nil {
			return fmt.Errorf("техник %s: %w", t.UserEmail, err)
		}
	}

	log.Println("✅ Пользователи и техники готовы")
	return nil
}

// SeedRequests добавляет несколько заявок в пул ожидания, чтобы было что распределять.
func SeedRequests(ctx context.Context, db *pgxpool.Pool) error {
	log.Println("▶️  Запуск наполнения заявок...")

	for _, r := range requestsData {
		var clientID uint64
		var name, phone string
		if err := db.QueryRow(ctx, `SELECT id, full_name, COALESCE(phone, '') FROM users WHERE email = $1`, r.ClientEmail).
			Scan(&clientID, &name, &phone); err != nil {
			return fmt.Errorf("не найден клиент %s: %w", r.ClientEmail, err)
		}
		_, err := db.Exec(ctx, `
			INSERT INTO requests (client_id, title, category, description, location, urgency, contact_name, contact_email, contact_phone)
			SELECT $1::bigint, $2::varchar, $3::varchar, $4::text, $5::varchar, $6::varchar, $7::varchar, $8::varchar, $9::varchar
			WHERE NOT EXISTS (SELECT 1 FROM requests WHERE client_id = $1::bigint AND title = $2::varchar)`,
			clientID, r.Title, r.Category, r.Description, r.Location, r.Urgency, name, r.ClientEmail, phone)
		if err != nil {
			return fmt.Errorf("заявка %q: %w", r.Title, err)
		}
	}

	log.Println("✅ Заявки добавлены")
	return nil
}

// PrintTokens выдаёт access-токены всем сидированным пользователям: входа в системе нет.
func PrintTokens(ctx context.Context, db *pgxpool.Pool, jwtSvc service.JWTService) error {
	rows, err := db.Query(ctx, `SELECT id, email, role FROM users ORDER BY id`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id    uint64
			email string
			role  string
		)
		if err := rows.Scan(&id, &email, &role); err != nil {
			return err
		}
		access, _, err := jwtSvc.GenerateTokens(id, constants.Role(role))
		if err != nil {
			return err
		}
		log.Printf("🔑 %-30s %-10s %s", email, role, access)
	}
	return rows.Err()
}
