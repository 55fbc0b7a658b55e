// Command devtoken mints an HS256 token the gateway accepts and optionally
// sends one request through the gateway with it.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cajuhub/roombook/libs/auth"
	"github.com/cajuhub/roombook/libs/config"
)

func main() {
	var (
		userID  = flag.String("user", config.String("DEV_USER_ID", ""), "user id placed in the token subject")
		role    = flag.String("role", config.String("DEV_ROLE", "member"), "member or admin")
		secret  = flag.String("secret", config.String("JWT_SECRET", "dev-secret"), "HS256 signing secret shared with the gateway")
		ttl     = flag.Duration("ttl", time.Hour, "token lifetime")
		baseURL = flag.String("base-url", config.String("BASE_URL", "http://localhost:8080"), "gateway base url")
		method  = flag.String("method", http.MethodGet, "request method when -path is set")
		path    = flag.String("path", "", "if set, call this gateway path with the token and print the response")
		body    = flag.String("body", "", "request body for -path")
	)
	flag.Parse()

	if strings.TrimSpace(*userID) == "" {
		fatal("-user (or DEV_USER_ID) is required")
	}
	if *role != "member" && *role != auth.RoleAdmin {
		fatal(fmt.Sprintf("unsupported role %q", *role))
	}

	token, err := auth.SignHS256(auth.NewClaims(*userID, *role, *ttl), *secret)
	if err != nil {
		fatal(err.Error())
	}
	if *path == "" {
		fmt.Println(token)
		return
	}

	req, err := http.NewRequest(*method, strings.TrimRight(*baseURL, "/")+*path, bytes.NewBufferString(*body))
	if err != nil {
		fatal(err.Error())
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if *body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := (&http.Client{Timeout: 10 * time.Second}).Do(req)
	if err != nil {
		fatal(err.Error())
	}
	defer resp.Body.Close()

	out, _ := io.ReadAll(resp.Body)
	fmt.Printf("status=%d\n%s\n", resp.StatusCode, bytes.TrimSpace(out))
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}
