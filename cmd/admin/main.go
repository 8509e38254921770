// Command admin manages chatpool accounts directly in the configured store.
//
//	admin useradd -username NAME [-email ADDR] [-generate]
//	admin userdel -username NAME
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

	"github.com/joho/godotenv"
	"golang.org/x/term"

	"github.com/chatpool/chatpool-go/internal/config"
	"github.com/chatpool/chatpool-go/internal/crypto"
	"github.com/chatpool/chatpool-go/internal/logging"
	"github.com/chatpool/chatpool-go/internal/repository"
	"github.com/chatpool/chatpool-go/internal/service"
)

const generatedPasswordLength = 20

// adminIssuer satisfies service.TokenIssuer; the CLI never hands out tokens.
type adminIssuer struct{}

func (adminIssuer) Issue(string) (string, error) {
	return "", errors.New("token issuance is not available in the admin tool")
}

func main() {
	_ = godotenv.Load()
	logging.New(os.Getenv("ENV"), getenvDefault("LOG_LEVEL", "warn"))

	if err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "admin:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		return errors.New("usage: admin <useradd|userdel> [flags]")
	}

	dbCfg, err := config.LoadDatabase()
	if err != nil {
		return err
	}
	stores, err := repository.OpenStores(ctx, dbCfg.Driver, dbCfg.DSN)
	if err != nil {
		return err
	}
	defer stores.Close()

	hashParams, err := config.LoadHashParams()
	if err != nil {
		return err
	}
	hasher, err := crypto.NewPasswordHasher(hashParams)
	if err != nil {
		return err
	}
	svc, err := service.NewAuthService(stores.Users, hasher, adminIssuer{})
	if err != nil {
		return err
	}

	switch args[0] {
	case "useradd":
		return userAdd(ctx, svc, args[1:], stdin, stdout)
	case "userdel":
		return userDel(ctx, svc, args[1:], stdout)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func userAdd(ctx context.Context, svc *service.AuthService, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("useradd", flag.ContinueOnError)
	username := fs.String("username", "", "account name")
	email := fs.String("email", "", "optional e-mail address")
	generate := fs.Bool("generate", false, "generate a random password and print it")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" {
		return errors.New("useradd: -username is required")
	}

	var password string
	var err error
	if *generate {
		password, err = crypto.GeneratePassword(generatedPasswordLength)
	} else {
		password, err = readPassword(stdin, stdout)
	}
	if err != nil {
		return err
	}

	user, err := svc.CreateAccount(ctx, *username, password, *email)
	if err != nil {
		return fmt.Errorf("useradd: %w", err)
	}

	fmt.Fprintf(stdout, "created user %s (%s)\n", user.Username, user.ID)
	if *generate {
		fmt.Fprintf(stdout, "password: %s\n", password)
	}
	return nil
}

func userDel(ctx context.Context, svc *service.AuthService, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("userdel", flag.ContinueOnError)
	username := fs.String("username", "", "account name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" {
		return errors.New("userdel: -username is required")
	}

	if err := svc.DeleteAccount(ctx, *username); err != nil {
		return fmt.Errorf("userdel: %w", err)
	}
	fmt.Fprintf(stdout, "deleted user %s\n", *username)
	return nil
}

// readPassword prompts without echo on a terminal and otherwise reads the
// first line of stdin.
func readPassword(stdin io.Reader, stdout io.Writer) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(stdout, "Password: ")
		pw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(stdout)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(pw), nil
	}

	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
