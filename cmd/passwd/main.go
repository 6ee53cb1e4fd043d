// linechat-passwd hashes a password for the users file, or stores the user
// in the sqlite credential table.
//
// Usage:
//
//	linechat-passwd [--cost N] <username>            prints {"<username>": "<bcrypt hash>"}
//	linechat-passwd --db linechat.db <username>      creates the user or resets its password
//	linechat-passwd --db linechat.db --delete <username>
//	linechat-passwd --db linechat.db --list
//
// The password is read from the terminal without echo, or from the first
// line of stdin when it is not a terminal.
package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"linechat/internal/auth"
	"linechat/internal/storage"
	"linechat/internal/user"

	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

func main() {
	cost := pflag.Int("cost", bcrypt.DefaultCost, "bcrypt cost when printing a hash")
	dbPath := pflag.String("db", "", "store the user in this sqlite database instead of printing")
	remove := pflag.Bool("delete", false, "delete the user from --db")
	list := pflag.Bool("list", false, "list the users in --db")
	pflag.Parse()

	var err error
	switch {
	case *list && *dbPath != "":
		err = withUsers(*dbPath, listUsers)
	case *remove && *dbPath != "" && pflag.NArg() == 1:
		err = withUsers(*dbPath, func(users *user.UserService) error {
			return users.DeleteUser(pflag.Arg(0))
		})
	case !*list && !*remove && pflag.NArg() == 1:
		err = run(pflag.Arg(0), *cost, *dbPath)
	default:
		fmt.Fprintln(os.Stderr, "usage: linechat-passwd [--cost N] [--db path] <username>")
		fmt.Fprintln(os.Stderr, "       linechat-passwd --db path --delete <username>")
		fmt.Fprintln(os.Stderr, "       linechat-passwd --db path --list")
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "linechat-passwd: %v\n", err)
		os.Exit(1)
	}
}

func withUsers(dbPath string, fn func(*user.UserService) error) error {
	db, err := storage.Connect(dbPath)
	if err != nil {
		return err
	}
	defer storage.Close(db)
	return fn(user.NewUserService(db))
}

func listUsers(users *user.UserService) error {
	names, err := users.ListUsers()
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

func run(username string, cost int, dbPath string) error {
	password, err := readPassword(os.Stdin)
	if err != nil {
		return err
	}

	if dbPath != "" {
		return withUsers(dbPath, func(users *user.UserService) error {
			u, created, err := users.SetPassword(username, password)
			if err != nil {
				return err
			}
			if created {
				fmt.Printf("created user %s (%s)\n", u.Username, u.ID)
			} else {
				fmt.Printf("updated password for %s\n", u.Username)
			}
			return nil
		})
	}

	hash, err := auth.HashStringCost(password, cost)
	if err != nil {
		return err
	}
	out, err := json.Marshal(map[string]string{username: hash})
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func readPassword(stdin *os.File) (string, error) {
	fd := int(stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, "Password: ")
		pw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return validPassword(string(pw))
	}

	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return validPassword(strings.TrimRight(line, "\r\n"))
}

func validPassword(pw string) (string, error) {
	if pw == "" {
		return "", errors.New("empty password")
	}
	if strings.ContainsAny(pw, " \t") {
		return "", errors.New("password must not contain whitespace; the chat login line is space separated")
	}
	return pw, nil
}
