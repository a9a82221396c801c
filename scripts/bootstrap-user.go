package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/projectdesk/projectdesk/internal/auth"
	"github.com/projectdesk/projectdesk/internal/credstore"
	"github.com/projectdesk/projectdesk/internal/model"
	"github.com/projectdesk/projectdesk/internal/service"
)

type output struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func main() {
	var (
		mongoURL      = flag.String("mongo-url", os.Getenv("MONGO_URL"), "MongoDB connection string")
		mongoDatabase = flag.String("mongo-database", envOr("MONGO_DATABASE", "projectdesk"), "MongoDB database name")
		jwtSecret     = flag.String("jwt-secret", os.Getenv("JWT_SECRET"), "HMAC secret the API verifies tokens with")
		username      = flag.String("username", "admin", "Username for a new user")
		email         = flag.String("email", "admin@projectdesk.local", "User email")
		manager       = flag.Bool("manager", false, "Issue the token with the manager role")
		ttl           = flag.Duration("ttl", 24*time.Hour, "Token lifetime")
		format        = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	if *mongoURL == "" || *jwtSecret == "" {
		fmt.Fprintln(os.Stderr, "MONGO_URL and JWT_SECRET are required")
		os.Exit(1)
	}

	password, err := readPassword()
	if err != nil {
		fmt.Fprintln(os.Stderr, "read password:", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	connector := credstore.NewConnector(*mongoURL, *mongoDatabase, logger)
	db, err := connector.Connect(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect credential store:", err)
		os.Exit(1)
	}
	defer connector.Close(context.Background())

	users := credstore.NewUserRepository(db)
	if err := users.EnsureIndexes(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "ensure indexes:", err)
		os.Exit(1)
	}

	tokens := auth.NewTokenManager([]byte(*jwtSecret), *ttl)
	svc := service.NewUserService(users, nil, tokens, nil, logger, nil)

	// An existing user is reused as long as the password matches.
	_, err = svc.Signup(ctx, service.SignupInput{Username: *username, Email: *email, Password: password})
	if err != nil && !errors.Is(err, service.ErrUserExists) {
		fmt.Fprintln(os.Stderr, "create user:", err)
		os.Exit(1)
	}

	login, err := svc.Login(ctx, *email, password)
	if err != nil {
		fmt.Fprintln(os.Stderr, "login:", err)
		os.Exit(1)
	}

	token, identity := login.Token, login.Identity
	if *manager {
		token, identity, err = svc.IssueToken(login.Identity.WithRole(model.RoleManager))
		if err != nil {
			fmt.Fprintln(os.Stderr, "issue manager token:", err)
			os.Exit(1)
		}
	}

	out := output{
		UserID:    identity.UserID,
		Username:  identity.Username,
		Email:     identity.Email,
		Role:      string(identity.Role),
		Token:     token,
		ExpiresAt: identity.ExpiresAt,
	}

	switch strings.ToLower(*format) {
	case "plain":
		fmt.Println(out.Token)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	default:
		fmt.Fprintln(os.Stderr, "invalid format; use plain or json")
		os.Exit(1)
	}
}

// readPassword prompts on a terminal, otherwise reads the first line of stdin.
func readPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, "Password: ")
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}

	raw, err := io.ReadAll(io.LimitReader(os.Stdin, 4096))
	if err != nil {
		return "", err
	}
	password := strings.TrimRight(strings.SplitN(string(raw), "\n", 2)[0], "\r")
	if password == "" {
		return "", errors.New("empty password on stdin")
	}
	return password, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
