package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/technosupport/ts-camstream/internal/tokens"
)

// Mints an admin access token for curl-level poking at the API.
func main() {
	email := flag.String("email", "admin@example.com", "actor recorded in camera history")
	refresh := flag.Bool("refresh", false, "mint a refresh token instead")
	flag.Parse()

	key := os.Getenv("JWT_SIGNING_KEY")
	if key == "" {
		key = "dev-secret-do-not-use-in-prod"
	}
	mgr := tokens.NewManager(key)

	var (
		token string
		err   error
	)
	if *refresh {
		token, err = mgr.GenerateRefreshToken(*email)
	} else {
		token, err = mgr.GenerateAccessToken(*email)
	}
	if err != nil {
		panic(err)
	}
	fmt.Println(token)
}
