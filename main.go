package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/gridbase/gridbase/api"
	dbclass "github.com/gridbase/gridbase/db"
)

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// parseTokens reads GRIDBASE_TOKENS as "token=owner,token2=owner2".
func parseTokens(raw string) api.TokenMap {
	tokens := api.TokenMap{}
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) == 2 && parts[0] != "" && parts[1] != "" {
			tokens[parts[0]] = parts[1]
		}
	}
	return tokens
}

func main() {
	defer fmt.Println("End...")

	fmt.Println("Starting...")

	conn, err := dbclass.Open(env("GRIDBASE_DB", "./gridbase.db"))
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	tokens := parseTokens(env("GRIDBASE_TOKENS", "dev=local"))

	server := api.NewAPIServer(
		env("GRIDBASE_ADDR", ":1212"),
		conn,
		env("GRIDBASE_DOCS_DIR", "./documents"),
		tokens,
	)
	if err := server.Run(); err != nil {
		log.Fatal(err)
	}
}
