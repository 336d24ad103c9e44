package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"foundation_portal/internal/app/bootstrap"
	"foundation_portal/internal/app/service"
	"foundation_portal/internal/common"
	"foundation_portal/internal/common/security"
	"foundation_portal/internal/domain/model"
	"foundation_portal/internal/domain/repository"
	"foundation_portal/internal/platform/config"
	"foundation_portal/internal/platform/logging"

	"golang.org/x/term"
)

// accountStore is where new accounts go and how their passwords are hashed.
type accountStore struct {
	Users      repository.UserRepository
	BcryptCost int
	Close      func()
}

type openStore func(ctx context.Context) (*accountStore, error)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr, openConfiguredStore); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func openConfiguredStore(ctx context.Context) (*accountStore, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return openAccountStore(ctx, cfg)
}

// openAccountStore refuses the memory driver: the account would vanish with this process.
func openAccountStore(ctx context.Context, cfg *config.Config) (*accountStore, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		return nil, fmt.Errorf("STORE_DRIVER=%s does not persist accounts, set STORE_DRIVER=%s", config.StoreDriverMemory, config.StoreDriverPostgres)
	}
	store, err := bootstrap.OpenStore(ctx, cfg, logging.New(cfg.LogLevel, cfg.LogFormat))
	if err != nil {
		return nil, err
	}
	return &accountStore{Users: store.Users, BcryptCost: cfg.BcryptCost, Close: store.Close}, nil
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer, open openStore) error {
	fs := flag.NewFlagSet("createuser", flag.ContinueOnError)
	fs.SetOutput(stderr)

	email := fs.String("email", "", "Email address")
	name := fs.String("name", "", "Display name")
	roleFlag := fs.String("role", string(model.RoleAdmin), "Role: user, moderator, editor or admin")
	passwordFlag := fs.String("password", "", "Password (optional, will prompt if omitted)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *email == "" || *name == "" {
		fmt.Fprintln(stdout, "Usage: createuser -email <email> -name <name> [-role <role>] [-password <password>]")
		fs.PrintDefaults()
		return fmt.Errorf("missing required flags: email, name")
	}

	role, err := model.ParseRole(*roleFlag)
	if err != nil {
		return err
	}

	password := *passwordFlag
	if password == "" {
		fmt.Fprint(stdout, "Password: ")
		password, err = readPassword(stdin)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(stdout)
	}
	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("password cannot be empty")
	}

	store, err := open(ctx)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	logger := logging.NewWithOutput(stderr, "warn", "text")
	identity := service.NewIdentityService(store.Users, security.Lifetime{}, store.BcryptCost, logger)

	user, err := identity.CreateAccount(ctx, service.RegisterRequest{Name: *name, Email: *email, Password: password}, role)
	if err != nil {
		if errors.Is(err, common.ErrConflict) {
			return fmt.Errorf("user %s already exists", *email)
		}
		return err
	}

	fmt.Fprintf(stdout, "User %s created successfully with ID %s and role %s\n", user.Email, user.ID, user.Role)
	return nil
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		bytePassword, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(bytePassword), nil
	}

	// Pipes and tests
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
