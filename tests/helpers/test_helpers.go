package helpers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"habitQuestAPI/internal/user"
	"habitQuestAPI/services"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SetupTestDB connects to the test database and applies the schema. Tests
// are skipped when no database is configured so the pure-rule suites still
// run everywhere.
func SetupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL or DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("Failed to ping test database: %v", err)
	}

	applySchema(t, pool)
	return pool
}

func applySchema(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to locate schema file")
	}
	schemaPath := filepath.Join(filepath.Dir(thisFile), "..", "..", "db", "schema.sql")

	schema, err := os.ReadFile(schemaPath)
	if err != nil {
		t.Fatalf("Failed to read schema file: %v", err)
	}

	ctx := context.Background()
	for _, stmt := range strings.Split(string(schema), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			t.Fatalf("Failed to apply schema statement: %v\n%s", err, stmt)
		}
	}
}

// CleanupTestDB removes test users (cascading to all their reward state)
// and closes the pool.
func CleanupTestDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	ctx := context.Background()
	_, err := pool.Exec(ctx, "DELETE FROM users WHERE clerk_id LIKE 'user_test_%'")
	if err != nil {
		t.Logf("Warning: failed to cleanup test data: %v", err)
	}
	pool.Close()
}

// CreateTestUser provisions a user plus stats row with a unique Clerk id.
func CreateTestUser(t *testing.T, userService *services.UserService) *user.User {
	t.Helper()

	clerkID := fmt.Sprintf("user_test_%d", time.Now().UnixNano())
	u, err := userService.CreateUser(context.Background(), &user.CreateUserRequest{
		ClerkID:   clerkID,
		Email:     clerkID + "@example.com",
		Username:  clerkID,
		FirstName: "Test",
		LastName:  "User",
	})
	if err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return u
}

// MockClerkWebhookPayload builds the Clerk event body the webhook handler
// expects, for tests that drive signup over HTTP.
func MockClerkWebhookPayload(eventType, clerkID string) []byte {
	switch eventType {
	case "user.created":
		return []byte(fmt.Sprintf(`{
			"object": "event",
			"type": "%s",
			"data": {
				"id": "%s",
				"first_name": "Test",
				"last_name": "User",
				"username": "testuser_%s",
				"image_url": "https://example.com/avatar.jpg",
				"email_addresses": [{
					"id": "email_1",
					"email_address": "%s@example.com",
					"verification": {"status": "verified"}
				}]
			}
		}`, eventType, clerkID, clerkID, clerkID))
	case "user.deleted":
		return []byte(fmt.Sprintf(`{
			"object": "event",
			"type": "%s",
			"data": {"id": "%s", "deleted": true}
		}`, eventType, clerkID))
	default:
		return []byte(fmt.Sprintf(`{"object": "event", "type": "%s", "data": {}}`, eventType))
	}
}

// GenerateMockClerkJWT signs a token shaped like a Clerk session token.
// It is not verifiable against real Clerk keys, which is exactly what the
// auth middleware tests need.
func GenerateMockClerkJWT(clerkID string) (string, error) {
	secretKey := []byte("test-secret-key-for-testing-only")

	claims := jwt.MapClaims{
		"sub": clerkID,
		"iss": "https://clerk.test",
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(24 * time.Hour).Unix(),
		"azp": "test-app-id",
		"sid": "sess_test123",
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}
