package postgres

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/mefissto/appshell/auth-service/internal/models"
	"github.com/mefissto/appshell/auth-service/internal/storage"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Файл интеграционных тестов для пакета postgres (репозиторий user.go):
// - поднимает реальный PostgreSQL через testcontainers-go (образ postgres:16-alpine);
// - применяет миграции из ./migrations (1_init_users.up.sql);
// - проверяет happy-path (создание и поиск по email/ID), уникальность (email CITEXT),
//   подтверждение e-mail и замену токена подтверждения;
// - валидирует сценарии отсутствия записей (storage.ErrNotFound).
//
// Запуск локально:
//   GO_TEST_INTEGRATION=1 go test ./internal/storage/postgres -v -race -count=1

// repoRootFromThisFile — определяет корень репозитория относительно текущего файла тестов.
// Используется для поиска SQL-миграций в каталоге ./migrations независимо от текущего рабочего каталога.
func repoRootFromThisFile() string {
	// internal/storage/postgres/... -> подняться на 3 уровня до корня.
	_, thisFile, _, _ := runtime.Caller(0)
	return filepath.Clean(filepath.Join(filepath.Dir(thisFile), "..", "..", ".."))
}

// readMigration — читает содержимое SQL-миграции из подкаталога ./migrations.
func readMigration(t *testing.T, name string) string {
	t.Helper()
	root := repoRootFromThisFile()
	path := filepath.Join(root, "migrations", name)
	b, err := os.ReadFile(path)
	require.NoError(t, err, "read migration %s", path)
	return string(b)
}

// startPostgres — поднимает временный экземпляр PostgreSQL через testcontainers-go,
// применяет миграцию users и возвращает инициализированное хранилище и функцию очистки.
// Если переменная окружения GO_TEST_INTEGRATION не установлена — тест пропускается.
func startPostgres(t *testing.T) (*Storage, func()) {
	t.Helper()
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("integration tests are disabled (set GO_TEST_INTEGRATION=1)")
	}

	ctx := context.Background()
	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		Env:          map[string]string{"POSTGRES_USER": "user", "POSTGRES_PASSWORD": "pass", "POSTGRES_DB": "db"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)

	host, _ := c.Host(ctx)
	port, _ := c.MappedPort(ctx, "5432/tcp")
	dsn := fmt.Sprintf("postgres://user:pass@%s:%s/db?sslmode=disable", host, port.Port())

	// применяем миграции.
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	_, err = pool.Exec(ctx, readMigration(t, "1_init_users.up.sql"))
	require.NoError(t, err)

	st, err := New(ctx, dsn)
	require.NoError(t, err)

	cleanup := func() {
		st.Close()
		_ = c.Terminate(context.Background())
	}
	return st, cleanup
}

// TestIntegration_SaveUser_And_GetByEmail_And_ByID_OK — happy-path:
// сохранение пользователя и последующий поиск по email и ID; проверка CITEXT (регистронезависимо) и таймстемпов.
func TestIntegration_SaveUser_And_GetByEmail_And_ByID_OK(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	now := time.Now().UTC()
	verifyExp := now.Add(24 * time.Hour)
	u := &models.User{
		ID:                    uuid.New(),
		Name:                  "Ann",
		Email:                 "User@Example.Com",
		PasswordHash:          "hash",
		VerificationTokenHash: "vhash",
		VerificationExpiresAt: &verifyExp,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	require.NoError(t, st.SaveUser(context.Background(), u))

	gotByEmail, err := st.UserByEmail(context.Background(), strings.ToLower(u.Email))
	require.NoError(t, err)
	require.Equal(t, strings.ToLower(u.Email), strings.ToLower(gotByEmail.Email))
	require.Equal(t, "Ann", gotByEmail.Name)
	require.False(t, gotByEmail.EmailVerified)
	require.Equal(t, "vhash", gotByEmail.VerificationTokenHash)
	require.NotNil(t, gotByEmail.VerificationExpiresAt)
	require.WithinDuration(t, verifyExp, *gotByEmail.VerificationExpiresAt, time.Second)
	require.WithinDuration(t, u.CreatedAt, gotByEmail.CreatedAt, time.Second)
	require.WithinDuration(t, u.UpdatedAt, gotByEmail.UpdatedAt, time.Second)

	gotByID, err := st.UserByID(context.Background(), u.ID)
	require.NoError(t, err)
	require.Equal(t, u.ID, gotByID.ID)
}

// TestIntegration_SaveUser_UniqueEmail_CaseInsensitive_Violation — конфликт
// уникальности по email: CITEXT считает "user@x" и "USER@x" одним адресом.
func TestIntegration_SaveUser_UniqueEmail_CaseInsensitive_Violation(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now().UTC()

	u1 := &models.User{
		ID:           uuid.New(),
		Name:         "Ann",
		Email:        "user@example.com",
		PasswordHash: "hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, st.SaveUser(ctx, u1))

	u2 := &models.User{
		ID:           uuid.New(),
		Name:         "Another",
		Email:        "USER@example.com",
		PasswordHash: "hash2",
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := st.SaveUser(ctx, u2)
	require.Error(t, err)
	require.ErrorIs(t, err, storage.ErrAlreadyExists)
}

func TestIntegration_UserByEmail_NotFound(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	_, err := st.UserByEmail(context.Background(), "missing@example.com")
	require.Error(t, err)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

// TestIntegration_ConfirmEmail_Flow — подтверждение e-mail: флаг выставлен,
// verification-поля очищены одним обновлением; повтор по чужому id — ErrNotFound.
func TestIntegration_ConfirmEmail_Flow(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now().UTC()
	verifyExp := now.Add(24 * time.Hour)

	u := &models.User{
		ID:                    uuid.New(),
		Name:                  "Ann",
		Email:                 "user@example.com",
		PasswordHash:          "hash",
		VerificationTokenHash: "vhash",
		VerificationExpiresAt: &verifyExp,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	require.NoError(t, st.SaveUser(ctx, u))

	require.NoError(t, st.ConfirmEmail(ctx, u.ID))

	got, err := st.UserByID(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, got.EmailVerified)
	require.Empty(t, got.VerificationTokenHash)
	require.Nil(t, got.VerificationExpiresAt)

	err = st.ConfirmEmail(ctx, uuid.New())
	require.ErrorIs(t, err, storage.ErrNotFound)
}

// TestIntegration_UpdateVerificationToken — замена токена подтверждения
// (повторная отправка письма).
func TestIntegration_UpdateVerificationToken(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now().UTC()

	u := &models.User{
		ID:           uuid.New(),
		Name:         "Ann",
		Email:        "user@example.com",
		PasswordHash: "hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, st.SaveUser(ctx, u))

	newExp := now.Add(24 * time.Hour)
	require.NoError(t, st.UpdateVerificationToken(ctx, u.ID, "fresh-hash", newExp))

	got, err := st.UserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "fresh-hash", got.VerificationTokenHash)
	require.NotNil(t, got.VerificationExpiresAt)
	require.WithinDuration(t, newExp, *got.VerificationExpiresAt, time.Second)

	err = st.UpdateVerificationToken(ctx, uuid.New(), "x", newExp)
	require.ErrorIs(t, err, storage.ErrNotFound)
}
