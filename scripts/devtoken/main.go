// Command devtoken mints a portal bearer token for local testing. The
// production login flow lives outside this service.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/odyssey-erp/qbportal/internal/shared"
)

func main() {
	userID := flag.String("user", "dev-user", "portal user id (token subject)")
	email := flag.String("email", "", "optional email claim")
	ttl := flag.Duration("ttl", 12*time.Hour, "token lifetime")
	flag.Parse()

	secret := getenv("JWT_SECRET", "")
	if secret == "" {
		log.Fatal("JWT_SECRET must be set")
	}

	token, err := shared.NewIdentityVerifier(secret, nil).Issue(*userID, *email, *ttl)
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}
	fmt.Println(token)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
